// Package account provides an account and identity core: users, polymorphic
// email addresses, rotated password credentials, and one-time redeemable
// keys, all persisted through Bun repositories.
//
// Polymorphic slots:
//   - Records relate through Slot values, a (kind, id) column pair embedded in
//     the owning row. A Kind is a registered tag string, the Registry maps it
//     back to a concrete record type, and SlotRule descriptors constrain which
//     kinds each relationship accepts. RepositoryManager.ResolveSlot turns a
//     populated slot into its full record.
//
// Primary email invariant:
//   - Every owner with at least one address has exactly one primary. The
//     EmailAddresses repository enforces it: the first address auto-promotes,
//     SetPrimary swaps atomically inside one transaction, and the primary or
//     sole address cannot be deleted.
//
// Redeemable keys:
//   - RedeemableKey delegates a one-time side effect (email verification,
//     account activation) to the entity its redeemable slot addresses. The
//     RedemptionEngine stages transient context, validates liveness and the
//     pinned redeemer, runs the entity's redeem capability, and claims the
//     terminal redeemed state with a conditional update so concurrent
//     redeemers resolve to exactly one winner.
//
// Activity sinks:
//   - ActivitySink is a light-weight audit emitter used by the commands and
//     the redemption engine. Sinks run best-effort (errors are logged) so you
//     can forward to a database or queue without blocking account flows.
package account
