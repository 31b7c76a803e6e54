package account

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// RedemptionEngine drives the RedeemableKey state machine.
//
// A key is Active until it either passes its expiry (Expired) or is
// successfully redeemed (Redeemed). Both outcomes are terminal: an expired
// key can never be redeemed and a redeemed key can never expire or be
// redeemed again.
type RedemptionEngine interface {
	Stage(key *RedeemableKey, actor *User, payload map[string]any)
	Validate(ctx context.Context, key *RedeemableKey) error
	Redeem(ctx context.Context, key *RedeemableKey) (bool, error)
	Expire(ctx context.Context, key *RedeemableKey) error
}

// RedemptionOption customizes engine construction.
type RedemptionOption func(*redemptionEngine)

// WithRedemptionClock injects a custom clock (useful for tests).
func WithRedemptionClock(clock Clock) RedemptionOption {
	return func(e *redemptionEngine) {
		if clock != nil {
			e.now = clock
		}
	}
}

// WithRedemptionActivitySink sets the sink used to publish redemption events.
func WithRedemptionActivitySink(sink ActivitySink) RedemptionOption {
	return func(e *redemptionEngine) {
		e.activitySink = normalizeActivitySink(sink)
	}
}

// WithRedemptionLogger overrides the logger used for sink failures.
func WithRedemptionLogger(logger Logger) RedemptionOption {
	return func(e *redemptionEngine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewRedemptionEngine returns the default implementation backed by the
// provided repository manager.
func NewRedemptionEngine(repo RepositoryManager, opts ...RedemptionOption) RedemptionEngine {
	e := &redemptionEngine{
		repo:         repo,
		now:          time.Now,
		activitySink: noopActivitySink{},
		logger:       defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

type redemptionEngine struct {
	repo         RepositoryManager
	now          Clock
	activitySink ActivitySink
	logger       Logger
}

// Stage attaches the acting user and side effect parameters to the key.
// The context is transient: it is never persisted and must be supplied
// again on every redemption attempt.
func (e *redemptionEngine) Stage(key *RedeemableKey, actor *User, payload map[string]any) {
	key.Stage(actor, payload)
}

// Validate checks the staged redemption without mutating anything: key
// liveness, the required redeemer, and the addressed entity's own
// preconditions.
func (e *redemptionEngine) Validate(ctx context.Context, key *RedeemableKey) error {
	return e.validate(ctx, nil, key, key.Staged())
}

func (e *redemptionEngine) validate(ctx context.Context, tx bun.IDB, key *RedeemableKey, stage *RedemptionStage) error {
	if stage == nil {
		return ErrRedemptionNotStaged
	}

	if key.IsRedeemed() {
		return withMeta(ErrKeyAlreadyRedeemed, map[string]any{
			"key": key.ID.String(),
		})
	}

	if key.IsExpired(e.now()) {
		return withMeta(ErrKeyExpired, map[string]any{
			"key": key.ID.String(),
		})
	}

	if err := e.checkRedeemer(key, stage); err != nil {
		return err
	}

	target, err := e.redeemableFor(ctx, tx, key)
	if err != nil {
		return err
	}

	valid, err := target.IsValidRedemption(ctx, tx, stage)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "entity redemption precondition failed")
	}

	if !valid {
		return withMeta(ErrRedemptionRejected, map[string]any{
			"key":  key.ID.String(),
			"kind": string(key.Redeemable.Kind),
		})
	}

	return nil
}

// Redeem re-validates, then in one transaction invokes the addressed
// entity's redeem capability and claims the terminal redeemed state. When
// the entity reports failure the transaction rolls back and redeemed_at
// stays unset. Two racing calls on the same key resolve to exactly one
// winner; the loser observes ErrKeyAlreadyRedeemed.
func (e *redemptionEngine) Redeem(ctx context.Context, key *RedeemableKey) (bool, error) {
	stage := key.Staged()
	if stage == nil {
		return false, ErrRedemptionNotStaged
	}

	if err := e.Validate(ctx, key); err != nil {
		return false, err
	}

	err := e.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		// Re-check liveness through the transaction; the pre-validation ran
		// against a possibly stale snapshot.
		fresh, err := e.freshKey(ctx, tx, key)
		if err != nil {
			return err
		}

		fresh.Stage(stage.Actor, stage.Payload)
		if err := e.validate(ctx, tx, fresh, stage); err != nil {
			return err
		}

		target, err := e.redeemableFor(ctx, tx, fresh)
		if err != nil {
			return err
		}

		ok, err := target.Redeem(ctx, tx, stage)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryOperation, "entity redemption failed")
		}
		if !ok {
			return withMeta(ErrRedemptionRejected, map[string]any{
				"key": fresh.ID.String(),
			})
		}

		claimed, err := e.repo.RedeemableKeys().ClaimTx(ctx, tx, fresh, e.now().UTC())
		if err != nil {
			return err
		}

		if !claimed {
			// Lost a race: the conditional claim matched no row. Roll the
			// entity side effect back and report the terminal state.
			if fresh.ExpiresAt != nil && fresh.ExpiresAt.Before(e.now()) {
				return ErrKeyExpired
			}
			return ErrKeyAlreadyRedeemed
		}

		key.RedeemedAt = fresh.RedeemedAt
		return nil
	})

	if err != nil {
		return false, err
	}

	key.ClearStage()

	e.recordActivity(ctx, ActivityEvent{
		EventType: ActivityEventKeyRedeemed,
		Actor:     stageActor(stage),
		Subject:   key.Redeemable,
		Metadata: map[string]any{
			"key": key.ID.String(),
		},
	})

	return true, nil
}

// Expire administratively forces the key to expire now. It has no effect on
// a redeemed key: redemption is terminal and wins.
func (e *redemptionEngine) Expire(ctx context.Context, key *RedeemableKey) error {
	if key.IsRedeemed() {
		return nil
	}

	transitioned, err := e.repo.RedeemableKeys().Expire(ctx, key, e.now().UTC())
	if err != nil {
		return err
	}

	if transitioned {
		e.recordActivity(ctx, ActivityEvent{
			EventType: ActivityEventKeyExpired,
			Subject:   key.Redeemable,
			Metadata: map[string]any{
				"key": key.ID.String(),
			},
		})
	}

	return nil
}

func (e *redemptionEngine) checkRedeemer(key *RedeemableKey, stage *RedemptionStage) error {
	if key.Redeemer.IsZero() {
		return nil
	}

	// Identity equality on the stored id; two instances of the same record
	// match.
	if stage.Actor == nil || !key.Redeemer.References(stage.Actor) {
		return withMeta(ErrRedeemerMismatch, map[string]any{
			"key": key.ID.String(),
		})
	}

	return nil
}

// redeemableFor resolves the key's target and wraps it in its kind's
// capability adapter. Dispatch goes through the registered kind tag; the
// switch is exhaustive over kinds eligible for KeyRedeemableRule.
func (e *redemptionEngine) redeemableFor(ctx context.Context, tx bun.IDB, key *RedeemableKey) (Redeemable, error) {
	record, err := e.repo.ResolveSlot(ctx, tx, key.Redeemable)
	if err != nil {
		return nil, err
	}

	switch key.Redeemable.Kind {
	case KindEmailAddress:
		email, ok := record.(*EmailAddress)
		if !ok {
			return nil, withMeta(ErrUnknownKind, map[string]any{
				"kind": string(key.Redeemable.Kind),
			})
		}
		return &redeemableEmailAddress{emails: e.repo.EmailAddresses(), record: email, now: e.now}, nil
	case KindUser:
		user, ok := record.(*User)
		if !ok {
			return nil, withMeta(ErrUnknownKind, map[string]any{
				"kind": string(key.Redeemable.Kind),
			})
		}
		return &redeemableUser{users: e.repo.Users(), record: user}, nil
	default:
		return nil, withMeta(ErrUnknownKind, map[string]any{
			"kind": string(key.Redeemable.Kind),
		})
	}
}

func (e *redemptionEngine) freshKey(ctx context.Context, tx bun.IDB, key *RedeemableKey) (*RedeemableKey, error) {
	record, err := e.repo.ResolveSlot(ctx, tx, Slot{Kind: KindRedeemableKey, ID: key.ID})
	if err != nil {
		return nil, err
	}

	fresh, ok := record.(*RedeemableKey)
	if !ok {
		return nil, withMeta(ErrUnknownKind, map[string]any{
			"kind": string(KindRedeemableKey),
		})
	}

	return fresh, nil
}

func (e *redemptionEngine) recordActivity(ctx context.Context, event ActivityEvent) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = e.now()
	}

	sink := normalizeActivitySink(e.activitySink)
	if err := sink.Record(ctx, event); err != nil {
		e.logger.Error("redemption engine activity sink error: %v", err)
	}
}

func stageActor(stage *RedemptionStage) ActorRef {
	if stage == nil || stage.Actor == nil {
		return ActorRef{Type: "system"}
	}
	return ActorRef{ID: stage.Actor.ID.String(), Type: string(KindUser)}
}

// redeemableEmailAddress adapts EmailAddress to the Redeemable capability:
// redemption verifies the address for its owner.
type redeemableEmailAddress struct {
	emails EmailAddresses
	record *EmailAddress
	now    Clock
}

var _ Redeemable = (*redeemableEmailAddress)(nil)

func (r *redeemableEmailAddress) GetIsRedeemed() bool {
	return r.record.IsVerified()
}

// IsValidRedemption requires the staged actor to own the address.
func (r *redeemableEmailAddress) IsValidRedemption(ctx context.Context, tx bun.IDB, stage *RedemptionStage) (bool, error) {
	if stage == nil || stage.Actor == nil {
		return false, nil
	}
	return r.record.Owner.References(stage.Actor), nil
}

// Redeem stamps verified_at. Re-verifying an already verified address is a
// no-op success; the timestamp never changes once set.
func (r *redeemableEmailAddress) Redeem(ctx context.Context, tx bun.IDB, stage *RedemptionStage) (bool, error) {
	if _, err := r.emails.VerifyTx(ctx, tx, r.record, r.now().UTC()); err != nil {
		return false, err
	}
	return true, nil
}

// redeemableUser adapts User to the Redeemable capability: redemption
// activates a pending account.
type redeemableUser struct {
	users  Users
	record *User
}

var _ Redeemable = (*redeemableUser)(nil)

func (r *redeemableUser) GetIsRedeemed() bool {
	return r.record.IsActive
}

// IsValidRedemption allows anonymous activation (following an emailed link)
// or self activation; it rejects a different authenticated actor.
func (r *redeemableUser) IsValidRedemption(ctx context.Context, tx bun.IDB, stage *RedemptionStage) (bool, error) {
	if stage == nil || stage.Actor == nil {
		return true, nil
	}
	return stage.Actor.ID == r.record.ID, nil
}

// Redeem activates the user. Activating an already active user is a no-op
// success.
func (r *redeemableUser) Redeem(ctx context.Context, tx bun.IDB, stage *RedemptionStage) (bool, error) {
	if r.record.IsActive {
		return true, nil
	}

	if _, err := r.users.ActivateTx(ctx, tx, r.record.ID); err != nil {
		return false, err
	}

	r.record.IsActive = true
	return true, nil
}
