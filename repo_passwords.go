package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RetirePasswordSQL soft deletes the current password for a protected slot.
// Rotation keeps history: only the newest non deleted row is current.
var RetirePasswordSQL = `UPDATE "passwords" AS "pwd"
SET
	"deleted_at" = ?
WHERE
	"pwd"."protected_kind" = ?
AND "pwd"."protected_id" = ?
AND "pwd"."deleted_at" IS NULL;`

// Passwords manages Password records: hashing on write, constant time
// verification, soft deletion and rotation.
type Passwords interface {
	CreateTx(ctx context.Context, tx bun.IDB, record *Password, criteria ...repository.InsertCriteria) (*Password, error)

	CurrentFor(ctx context.Context, protected Entity) (*Password, error)
	CurrentForTx(ctx context.Context, tx bun.IDB, protected Entity) (*Password, error)
	SetPassword(ctx context.Context, protected Entity, rawPassword string) (*Password, error)
	SetPasswordTx(ctx context.Context, tx bun.IDB, protected Entity, rawPassword string) (*Password, error)
	VerifyPassword(ctx context.Context, protected Entity, rawPassword string) (bool, error)
	Unset(ctx context.Context, protected Entity) error
	UnsetTx(ctx context.Context, tx bun.IDB, protected Entity) error
}

type passwords struct {
	repository.Repository[*Password]
	db     *bun.DB
	policy PasswordPolicy
}

var (
	_ Passwords         = (*passwords)(nil)
	_ PasswordProtected = (*passwords)(nil)
)

type PasswordsOption func(*passwords)

// WithPasswordPolicy overrides the strength policy consulted on writes.
func WithPasswordPolicy(policy PasswordPolicy) PasswordsOption {
	return func(p *passwords) {
		if policy != nil {
			p.policy = policy
		}
	}
}

func NewPasswordsRepository(db *bun.DB, opts ...PasswordsOption) Passwords {
	repo := repository.NewRepository[*Password](db, repository.ModelHandlers[*Password]{
		NewRecord: func() *Password { return &Password{} },
		GetID: func(p *Password) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Password, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	repoPasswords := &passwords{
		Repository: repo,
		db:         db,
		policy:     DefaultPasswordPolicy(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoPasswords)
		}
	}

	return repoPasswords
}

func (a *passwords) CurrentFor(ctx context.Context, protected Entity) (*Password, error) {
	return a.CurrentForTx(ctx, a.db, protected)
}

// CurrentForTx returns the newest non deleted password for a protected slot.
func (a *passwords) CurrentForTx(ctx context.Context, tx bun.IDB, protected Entity) (*Password, error) {
	record := &Password{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.protected_kind = ?", string(protected.EntityKind())).
		Where("?TableAlias.protected_id = ?", protected.EntityID()).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"protected_kind": string(protected.EntityKind()),
					"protected_id":   protected.EntityID().String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *passwords) SetPassword(ctx context.Context, protected Entity, rawPassword string) (*Password, error) {
	var record *Password
	err := a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		record, err = a.SetPasswordTx(ctx, tx, protected, rawPassword)
		return err
	})
	return record, err
}

// SetPasswordTx rotates the password for a protected entity: it rejects raw
// input that already looks hashed, consults the strength policy, soft
// deletes the current password and inserts the new hash. Runs inside one
// transaction.
func (a *passwords) SetPasswordTx(ctx context.Context, tx bun.IDB, protected Entity, rawPassword string) (*Password, error) {
	if looksHashed(rawPassword) {
		return nil, ErrPasswordAlreadyHashed
	}

	if err := a.policy.Validate(rawPassword); err != nil {
		return nil, err
	}

	hash, err := HashPassword(rawPassword)
	if err != nil {
		return nil, err
	}

	record := &Password{Hash: hash}
	if err := record.Protected.Set(protected, PasswordProtectedRule); err != nil {
		return nil, err
	}
	preparePasswordDefaults(record)

	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := a.retireTx(ctx, tx, record.Protected); err != nil {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

// VerifyPassword reports whether the raw password matches the current hash.
// A protected entity without a current password never verifies.
func (a *passwords) VerifyPassword(ctx context.Context, protected Entity, rawPassword string) (bool, error) {
	record, err := a.CurrentFor(ctx, protected)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return false, nil
		}
		return false, err
	}

	if err := ComparePasswordAndHash(rawPassword, record.Hash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}

func (a *passwords) Unset(ctx context.Context, protected Entity) error {
	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return a.UnsetTx(ctx, tx, protected)
	})
}

// UnsetTx soft deletes the current password, leaving the entity unable to
// authenticate by password.
func (a *passwords) UnsetTx(ctx context.Context, tx bun.IDB, protected Entity) error {
	slot := MakeSlot(protected)
	if err := PasswordProtectedRule.Check(slot); err != nil {
		return err
	}
	return a.retireTx(ctx, tx, slot)
}

func (a *passwords) retireTx(ctx context.Context, tx bun.IDB, protected Slot) error {
	now := nowUTC()
	_, err := tx.NewRaw(
		RetirePasswordSQL,
		now, string(protected.Kind), protected.ID,
	).Exec(ctx)
	return err
}
