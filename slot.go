package account

import (
	"github.com/google/uuid"
)

// Slot is a polymorphic relationship field: a (kind, id) pair pointing at
// exactly one of several registered entity kinds, or at nothing when the
// owning slot rule allows null. It is embedded in owning records through a
// bun embed prefix so each slot maps to a single column pair.
type Slot struct {
	Kind Kind      `bun:"kind,nullzero" json:"kind,omitempty"`
	ID   uuid.UUID `bun:"id,nullzero,type:uuid" json:"id,omitempty"`
}

// MakeSlot builds a populated slot for an entity instance.
func MakeSlot(e Entity) Slot {
	if e == nil {
		return Slot{}
	}
	return Slot{Kind: e.EntityKind(), ID: e.EntityID()}
}

// IsZero reports whether the slot references nothing.
func (s Slot) IsZero() bool {
	return s.Kind == "" && s.ID == uuid.Nil
}

// Equals compares two slots by kind tag and stored id.
func (s Slot) Equals(other Slot) bool {
	return s.Kind == other.Kind && s.ID == other.ID
}

// References reports whether the slot points at the given entity.
func (s Slot) References(e Entity) bool {
	if e == nil {
		return false
	}
	return s.Kind == e.EntityKind() && s.ID == e.EntityID()
}

// Clear empties the slot. Persisting a cleared non nullable slot fails the
// owning record's rule check.
func (s *Slot) Clear() {
	s.Kind = ""
	s.ID = uuid.Nil
}

// Set points the slot at an entity, validating the kind against the rule's
// eligible set. Passing nil clears the slot when the rule allows null.
func (s *Slot) Set(e Entity, rule SlotRule) error {
	if e == nil {
		if !rule.Nullable {
			return withMeta(ErrSlotEmpty, map[string]any{
				"slot": rule.Name,
			})
		}
		s.Clear()
		return nil
	}

	kind := e.EntityKind()
	if !rule.eligible(kind) {
		return withMeta(ErrUnknownKind, map[string]any{
			"slot": rule.Name,
			"kind": string(kind),
		})
	}

	s.Kind = kind
	s.ID = e.EntityID()
	return nil
}

// SlotRule declares the shape of one polymorphic slot: its name, whether it
// may be empty, and the closed set of kinds it may reference.
type SlotRule struct {
	Name     string
	Nullable bool
	Eligible []Kind
}

func (r SlotRule) eligible(kind Kind) bool {
	for _, k := range r.Eligible {
		if k == kind {
			return true
		}
	}
	return false
}

// Check runs the structural validation for a slot value. It replaces per
// field nullability checks with one invariant: across all eligible kinds the
// number of populated (kind, id) pairs is exactly zero or one, and zero only
// when the rule allows null. Run before every persist.
func (r SlotRule) Check(s Slot) error {
	populatedKind := s.Kind != ""
	populatedID := s.ID != uuid.Nil

	if populatedKind != populatedID {
		return withMeta(ErrSlotConflict, map[string]any{
			"slot": r.Name,
			"kind": string(s.Kind),
			"id":   s.ID.String(),
		})
	}

	if !populatedKind {
		if r.Nullable {
			return nil
		}
		return withMeta(ErrSlotEmpty, map[string]any{
			"slot": r.Name,
		})
	}

	if !r.eligible(s.Kind) {
		return withMeta(ErrUnknownKind, map[string]any{
			"slot": r.Name,
			"kind": string(s.Kind),
		})
	}

	return nil
}

// CheckAgainst additionally requires the slot's kind to be registered.
func (r SlotRule) CheckAgainst(registry *Registry, s Slot) error {
	if err := r.Check(s); err != nil {
		return err
	}

	if !s.IsZero() && registry != nil && !registry.Contains(s.Kind) {
		return withMeta(ErrUnknownKind, map[string]any{
			"slot": r.Name,
			"kind": string(s.Kind),
		})
	}

	return nil
}
