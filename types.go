package account

import (
	"context"
	"log"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// Logger is the minimal logging surface this package depends on.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	log.Printf("[ERROR] "+format, args...)
}

func (d defLogger) Info(format string, args ...any) {
	log.Printf("[INFO] "+format, args...)
}

func (d defLogger) Debug(format string, args ...any) {
	log.Printf("[DEBUG] "+format, args...)
}

// Clock lets callers inject deterministic time, mostly in tests.
type Clock func() time.Time

// Redeemable is the capability set every kind eligible as a redemption
// target must provide. Dispatch happens through the registry kind tag, never
// through runtime type inspection, so the set of implementations is closed.
type Redeemable interface {
	GetIsRedeemed() bool
	IsValidRedemption(ctx context.Context, tx bun.IDB, stage *RedemptionStage) (bool, error)
	Redeem(ctx context.Context, tx bun.IDB, stage *RedemptionStage) (bool, error)
}

// Emailable exposes email address management for an owning entity.
type Emailable interface {
	PrimaryFor(ctx context.Context, owner Entity) (*EmailAddress, error)
	SetPrimary(ctx context.Context, email *EmailAddress) error
	CreateEmail(ctx context.Context, owner Entity, email string, verified bool) (*EmailAddress, error)
}

// PasswordProtected exposes credential management for a protected entity.
type PasswordProtected interface {
	CurrentFor(ctx context.Context, protected Entity) (*Password, error)
	SetPassword(ctx context.Context, protected Entity, rawPassword string) (*Password, error)
	VerifyPassword(ctx context.Context, protected Entity, rawPassword string) (bool, error)
	Unset(ctx context.Context, protected Entity) error
}

// PasswordPolicy is the pass/fail contract for password strength. Policy
// internals are a collaborator concern; this package only consults the
// verdict.
type PasswordPolicy interface {
	Validate(rawPassword string) error
}

// PasswordPolicyFunc adapts a function to the PasswordPolicy interface.
type PasswordPolicyFunc func(rawPassword string) error

// Validate implements PasswordPolicy.
func (f PasswordPolicyFunc) Validate(rawPassword string) error {
	if f == nil {
		return nil
	}
	return f(rawPassword)
}

// LengthPolicy accepts passwords within the given length bounds.
func LengthPolicy(min, max int) PasswordPolicy {
	return PasswordPolicyFunc(func(rawPassword string) error {
		if err := validation.Validate(rawPassword,
			validation.Required,
			validation.Length(min, max),
		); err != nil {
			return withMeta(ErrPasswordPolicy, map[string]any{
				"reason": err.Error(),
			})
		}
		return nil
	})
}

// DefaultPasswordPolicy mirrors the bounds the register payload enforces.
func DefaultPasswordPolicy() PasswordPolicy {
	return LengthPolicy(10, 100)
}
