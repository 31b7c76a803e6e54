package account

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind is the stable tag distinguishing one registered entity kind from
// another. Tags are assigned at registration time and never reused.
type Kind string

const (
	KindUser          Kind = "account.user"
	KindEmailAddress  Kind = "account.email_address"
	KindPassword      Kind = "account.password"
	KindRedeemableKey Kind = "account.redeemable_key"
)

// Entity is implemented by every record that can participate in a
// polymorphic slot.
type Entity interface {
	EntityKind() Kind
	EntityID() uuid.UUID
}

// Descriptor describes a registered entity kind.
type Descriptor struct {
	Kind      Kind
	Table     string
	NewRecord func() Entity
}

// Registry maps kind tags to descriptors. It is built once at startup and
// read only afterwards, so lookups need no synchronization.
type Registry struct {
	entries map[Kind]Descriptor
	order   []Kind
}

// NewRegistry builds an immutable registry from the given descriptors.
// Registering the same kind tag twice fails with ErrDuplicateKind.
func NewRegistry(descriptors ...Descriptor) (*Registry, error) {
	r := &Registry{
		entries: make(map[Kind]Descriptor, len(descriptors)),
	}

	for _, d := range descriptors {
		if err := r.register(d); err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Registry) register(d Descriptor) error {
	if d.Kind == "" {
		return withMeta(ErrUnknownKind, map[string]any{
			"reason": "empty kind tag",
		})
	}

	if _, ok := r.entries[d.Kind]; ok {
		return withMeta(ErrDuplicateKind, map[string]any{
			"kind": string(d.Kind),
		})
	}

	r.entries[d.Kind] = d
	r.order = append(r.order, d.Kind)
	return nil
}

// Resolve returns the descriptor for a kind tag.
func (r *Registry) Resolve(kind Kind) (Descriptor, bool) {
	d, ok := r.entries[kind]
	return d, ok
}

// MustResolve returns the descriptor for a kind tag and panics when the kind
// was never registered. Reaching for an unregistered kind is a programming
// fault, not a recoverable condition.
func (r *Registry) MustResolve(kind Kind) Descriptor {
	d, ok := r.entries[kind]
	if !ok {
		panic(fmt.Sprintf("go-account: kind %q is not registered; register every participating kind before serving requests", kind))
	}
	return d
}

// Contains reports whether the kind tag is registered.
func (r *Registry) Contains(kind Kind) bool {
	_, ok := r.entries[kind]
	return ok
}

// Kinds returns the registered kind tags in registration order.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, len(r.order))
	copy(out, r.order)
	return out
}

// KindOf returns the kind tag for an entity instance, failing with
// ErrUnknownKind when the instance's kind was never registered.
func (r *Registry) KindOf(e Entity) (Kind, error) {
	if e == nil {
		return "", withMeta(ErrUnknownKind, map[string]any{
			"reason": "nil entity",
		})
	}

	kind := e.EntityKind()
	if !r.Contains(kind) {
		return "", withMeta(ErrUnknownKind, map[string]any{
			"kind": string(kind),
		})
	}

	return kind, nil
}

// DefaultRegistry returns a registry with every kind this package persists.
// Call it once during process bootstrap and hand the result to consumers.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Descriptor{Kind: KindUser, Table: "users", NewRecord: func() Entity { return &User{} }},
		Descriptor{Kind: KindEmailAddress, Table: "email_addresses", NewRecord: func() Entity { return &EmailAddress{} }},
		Descriptor{Kind: KindPassword, Table: "passwords", NewRecord: func() Entity { return &Password{} }},
		Descriptor{Kind: KindRedeemableKey, Table: "redeemable_keys", NewRecord: func() Entity { return &RedeemableKey{} }},
	)
	if err != nil {
		panic(err)
	}
	return r
}
