package account

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Timestamps carries creation/update columns shared by every model.
type Timestamps struct {
	CreatedAt *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// SoftDelete carries the soft delete column shared by soft deletable models.
type SoftDelete struct {
	DeletedAt *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// IsDeleted reports whether the record has been soft deleted.
func (s SoftDelete) IsDeleted() bool {
	return s.DeletedAt != nil
}

// Slot rules for every polymorphic relationship this package persists.
// The eligible sets are closed: adding a kind means registering it and
// extending the matching rule here.
var (
	// EmailOwnerRule governs EmailAddress.Owner.
	EmailOwnerRule = SlotRule{Name: "owner", Eligible: []Kind{KindUser}}
	// PasswordProtectedRule governs Password.Protected.
	PasswordProtectedRule = SlotRule{Name: "protected", Eligible: []Kind{KindUser}}
	// KeyRedeemableRule governs RedeemableKey.Redeemable.
	KeyRedeemableRule = SlotRule{Name: "redeemable", Eligible: []Kind{KindEmailAddress, KindUser}}
	// KeyRedeemerRule governs RedeemableKey.Redeemer.
	KeyRedeemerRule = SlotRule{Name: "redeemer", Nullable: true, Eligible: []Kind{KindUser}}
)

// User is an authenticable account holder. Unlike a conventional user model
// it has no email column: addresses live in EmailAddress records that point
// back through a polymorphic owner slot.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string    `bun:"username,notnull,unique" json:"username,omitempty"`
	FirstName     string    `bun:"first_name" json:"first_name,omitempty"`
	LastName      string    `bun:"last_name" json:"last_name,omitempty"`
	IsActive      bool      `bun:"is_active,notnull" json:"is_active,omitempty"`
	IsAdmin       bool      `bun:"is_admin" json:"is_admin,omitempty"`
	Timestamps
	SoftDelete
}

func (u *User) EntityKind() Kind { return KindUser }

func (u *User) EntityID() uuid.UUID {
	if u == nil {
		return uuid.Nil
	}
	return u.ID
}

// FullName is the first name plus the last name with a space in between.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// EmailAddress belongs to exactly one owner through a polymorphic slot and
// holds a globally unique normalized email. At most one address per owner is
// primary.
type EmailAddress struct {
	bun.BaseModel `bun:"table:email_addresses,alias:eml"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Owner         Slot       `bun:"embed:owner_" json:"owner,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	IsPrimary     bool       `bun:"is_primary,notnull" json:"is_primary,omitempty"`
	VerifiedAt    *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`
	Timestamps
}

func (e *EmailAddress) EntityKind() Kind { return KindEmailAddress }

func (e *EmailAddress) EntityID() uuid.UUID {
	if e == nil {
		return uuid.Nil
	}
	return e.ID
}

// IsVerified reports whether the address has been verified.
func (e *EmailAddress) IsVerified() bool {
	return e.VerifiedAt != nil
}

// Validate runs the structural slot check. Called before every persist.
func (e *EmailAddress) Validate() error {
	return EmailOwnerRule.Check(e.Owner)
}

// Password stores one bcrypt hash for a protected entity. Only the most
// recent non deleted Password for a protected slot is current; rotation soft
// deletes the predecessor.
type Password struct {
	bun.BaseModel `bun:"table:passwords,alias:pwd"`
	ID            uuid.UUID `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Protected     Slot      `bun:"embed:protected_" json:"protected,omitempty"`
	Hash          string    `bun:"hash,notnull" json:"-"`
	Timestamps
	SoftDelete
}

func (p *Password) EntityKind() Kind { return KindPassword }

func (p *Password) EntityID() uuid.UUID {
	if p == nil {
		return uuid.Nil
	}
	return p.ID
}

// Validate runs the structural slot check. Called before every persist.
func (p *Password) Validate() error {
	return PasswordProtectedRule.Check(p.Protected)
}

// RedeemableKey delegates a one time, expiry aware side effect to whichever
// entity its redeemable slot addresses. The optional redeemer slot pins the
// key to a required actor. Keys reference their targets weakly: deleting a
// key never deletes the target.
type RedeemableKey struct {
	bun.BaseModel `bun:"table:redeemable_keys,alias:rdk"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Redeemable    Slot       `bun:"embed:redeemable_" json:"redeemable,omitempty"`
	Redeemer      Slot       `bun:"embed:redeemer_" json:"redeemer,omitempty"`
	ExpiresAt     *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	RedeemedAt    *time.Time `bun:"redeemed_at,nullzero" json:"redeemed_at,omitempty"`
	Timestamps

	// staged redemption context lives in memory only and must be supplied
	// again on every attempt.
	staged *RedemptionStage
}

func (k *RedeemableKey) EntityKind() Kind { return KindRedeemableKey }

func (k *RedeemableKey) EntityID() uuid.UUID {
	if k == nil {
		return uuid.Nil
	}
	return k.ID
}

// IsRedeemed reports whether the key reached its terminal redeemed state.
func (k *RedeemableKey) IsRedeemed() bool {
	return k.RedeemedAt != nil
}

// IsExpired reports whether the key is past its expiration at the given
// instant. A redeemed key is never considered expired: redemption is
// terminal and wins.
func (k *RedeemableKey) IsExpired(now time.Time) bool {
	if k.IsRedeemed() {
		return false
	}
	if k.ExpiresAt == nil {
		return false
	}
	return k.ExpiresAt.Before(now)
}

// Stage attaches transient redemption context to the key instance.
func (k *RedeemableKey) Stage(actor *User, payload map[string]any) {
	k.staged = &RedemptionStage{Actor: actor, Payload: payload}
}

// Staged returns the transient redemption context, if any.
func (k *RedeemableKey) Staged() *RedemptionStage {
	return k.staged
}

// ClearStage drops the transient redemption context.
func (k *RedeemableKey) ClearStage() {
	k.staged = nil
}

// Validate runs the structural slot checks. Called before every persist.
func (k *RedeemableKey) Validate() error {
	if err := KeyRedeemableRule.Check(k.Redeemable); err != nil {
		return err
	}
	return KeyRedeemerRule.Check(k.Redeemer)
}

// RedemptionStage is the transient context staged on a key before an attempt.
type RedemptionStage struct {
	Actor   *User
	Payload map[string]any
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func prepareEmailDefaults(record *EmailAddress) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.Email = NormalizeEmail(record.Email)
}

func preparePasswordDefaults(record *Password) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func prepareKeyDefaults(record *RedeemableKey) {
	if record == nil {
		return
	}
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}
