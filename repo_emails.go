package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ClearPrimaryEmailSQL demotes every other address owned by the same owner.
// It runs together with PromotePrimaryEmailSQL inside one transaction so a
// zero-primary state is never observable.
var ClearPrimaryEmailSQL = `UPDATE "email_addresses" AS "eml"
SET
	"is_primary" = FALSE
WHERE
	"eml"."owner_kind" = ?
AND "eml"."owner_id" = ?
AND "eml"."id" != ?
AND "eml"."is_primary" = TRUE;`

var PromotePrimaryEmailSQL = `UPDATE "email_addresses" AS "eml"
SET
	"is_primary" = TRUE
WHERE
	"eml"."id" = ?;`

// VerifyEmailSQL stamps verified_at only once; re-verification is a no-op.
var VerifyEmailSQL = `UPDATE "email_addresses" AS "eml"
SET
	"verified_at" = ?
WHERE
	"eml"."id" = ?
AND "eml"."verified_at" IS NULL;`

// NormalizeEmail lowercases and trims an email address. All storage and
// uniqueness checks operate on the normalized form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EmailAddresses manages EmailAddress records and enforces the primary email
// invariant: at most one primary address per owner, no deletable primary, no
// deletable sole address.
type EmailAddresses interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*EmailAddress, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *EmailAddress, criteria ...repository.InsertCriteria) (*EmailAddress, error)
	UpdateTx(ctx context.Context, tx bun.IDB, record *EmailAddress, criteria ...repository.UpdateCriteria) (*EmailAddress, error)

	CreateEmail(ctx context.Context, owner Entity, email string, verified bool) (*EmailAddress, error)
	CreateEmailTx(ctx context.Context, tx bun.IDB, owner Entity, email string, verified bool) (*EmailAddress, error)
	GetByEmail(ctx context.Context, email string) (*EmailAddress, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*EmailAddress, error)
	ListFor(ctx context.Context, owner Entity) ([]*EmailAddress, error)
	ListForTx(ctx context.Context, tx bun.IDB, owner Entity) ([]*EmailAddress, error)
	PrimaryFor(ctx context.Context, owner Entity) (*EmailAddress, error)
	PrimaryForTx(ctx context.Context, tx bun.IDB, owner Entity) (*EmailAddress, error)
	SetPrimary(ctx context.Context, email *EmailAddress) error
	SetPrimaryTx(ctx context.Context, tx bun.IDB, email *EmailAddress) error
	DeleteEmail(ctx context.Context, email *EmailAddress) error
	DeleteEmailTx(ctx context.Context, tx bun.IDB, email *EmailAddress) error
	Verify(ctx context.Context, email *EmailAddress, at time.Time) (*EmailAddress, error)
	VerifyTx(ctx context.Context, tx bun.IDB, email *EmailAddress, at time.Time) (*EmailAddress, error)
}

type emailAddresses struct {
	repository.Repository[*EmailAddress]
	db *bun.DB
}

var (
	_ EmailAddresses = (*emailAddresses)(nil)
	_ Emailable      = (*emailAddresses)(nil)
)

func NewEmailAddressesRepository(db *bun.DB) EmailAddresses {
	repo := repository.NewRepository[*EmailAddress](db, repository.ModelHandlers[*EmailAddress]{
		NewRecord: func() *EmailAddress { return &EmailAddress{} },
		GetID: func(e *EmailAddress) uuid.UUID {
			if e == nil {
				return uuid.Nil
			}
			return e.ID
		},
		SetID: func(e *EmailAddress, id uuid.UUID) {
			if e != nil {
				e.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &emailAddresses{
		Repository: repo,
		db:         db,
	}
}

func (a *emailAddresses) CreateEmail(ctx context.Context, owner Entity, email string, verified bool) (*EmailAddress, error) {
	return a.CreateEmailTx(ctx, a.db, owner, email, verified)
}

// CreateEmailTx creates an address for an owner. The first address an owner
// gets is automatically primary. The normalized email must be unique across
// all owners; the unique column constraint backstops the pre-check under
// concurrency.
func (a *emailAddresses) CreateEmailTx(ctx context.Context, tx bun.IDB, owner Entity, email string, verified bool) (*EmailAddress, error) {
	record := &EmailAddress{Email: email}
	if err := record.Owner.Set(owner, EmailOwnerRule); err != nil {
		return nil, err
	}

	prepareEmailDefaults(record)

	if record.Email == "" {
		return nil, goerrors.New("email cannot be empty", goerrors.CategoryValidation).
			WithCode(goerrors.CodeBadRequest)
	}

	if _, err := a.GetByEmailTx(ctx, tx, record.Email); err == nil {
		return nil, withMeta(ErrDuplicateEmail, map[string]any{
			"email": record.Email,
		})
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	siblings, err := a.countForTx(ctx, tx, record.Owner)
	if err != nil {
		return nil, err
	}
	record.IsPrimary = siblings == 0

	if verified {
		now := time.Now()
		record.VerifiedAt = &now
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	created, err := a.Repository.CreateTx(ctx, tx, record)
	if err != nil {
		// A concurrent insert can slip past the pre-check; the unique email
		// column is the backstop and its violation surfaces as the same
		// duplicate error, never a raw store error.
		if isEmailUniqueViolation(err) {
			return nil, withMeta(ErrDuplicateEmail, map[string]any{
				"email": record.Email,
			})
		}
		return nil, err
	}

	return created, nil
}

// isEmailUniqueViolation matches unique violations on the email column for
// the supported drivers. It deliberately keys on the column name so a
// violation of the primary-per-owner index is not mislabeled as a duplicate.
func isEmailUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint failed") &&
		!strings.Contains(msg, "duplicate key value violates unique constraint") {
		return false
	}

	return strings.Contains(msg, "email_addresses.email") ||
		strings.Contains(msg, "email_addresses_email_key")
}

func (a *emailAddresses) GetByEmail(ctx context.Context, email string) (*EmailAddress, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *emailAddresses) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*EmailAddress, error) {
	record := &EmailAddress{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.email = ?", NormalizeEmail(email)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"email": email,
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *emailAddresses) ListFor(ctx context.Context, owner Entity) ([]*EmailAddress, error) {
	return a.ListForTx(ctx, a.db, owner)
}

func (a *emailAddresses) ListForTx(ctx context.Context, tx bun.IDB, owner Entity) ([]*EmailAddress, error) {
	var records []*EmailAddress
	err := tx.NewSelect().
		Model(&records).
		Where("?TableAlias.owner_kind = ?", string(owner.EntityKind())).
		Where("?TableAlias.owner_id = ?", owner.EntityID()).
		Order("created_at DESC").
		Scan(ctx)

	if err != nil {
		return nil, err
	}

	return records, nil
}

func (a *emailAddresses) PrimaryFor(ctx context.Context, owner Entity) (*EmailAddress, error) {
	return a.PrimaryForTx(ctx, a.db, owner)
}

func (a *emailAddresses) PrimaryForTx(ctx context.Context, tx bun.IDB, owner Entity) (*EmailAddress, error) {
	record := &EmailAddress{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.owner_kind = ?", string(owner.EntityKind())).
		Where("?TableAlias.owner_id = ?", owner.EntityID()).
		Where("?TableAlias.is_primary = ?", true).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"owner_kind": string(owner.EntityKind()),
					"owner_id":   owner.EntityID().String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func (a *emailAddresses) SetPrimary(ctx context.Context, email *EmailAddress) error {
	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return a.SetPrimaryTx(ctx, tx, email)
	})
}

// SetPrimaryTx atomically demotes every sibling address and promotes the
// target. Callers outside a transaction should use SetPrimary, which opens
// one; the clear-then-set must never commit separately.
func (a *emailAddresses) SetPrimaryTx(ctx context.Context, tx bun.IDB, email *EmailAddress) error {
	if err := email.Validate(); err != nil {
		return err
	}

	if _, err := tx.NewRaw(
		ClearPrimaryEmailSQL,
		string(email.Owner.Kind), email.Owner.ID, email.ID,
	).Exec(ctx); err != nil {
		return err
	}

	res, err := tx.NewRaw(PromotePrimaryEmailSQL, email.ID).Exec(ctx)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": email.ID.String(),
			})
	}

	email.IsPrimary = true
	return nil
}

func (a *emailAddresses) DeleteEmail(ctx context.Context, email *EmailAddress) error {
	return a.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return a.DeleteEmailTx(ctx, tx, email)
	})
}

// DeleteEmailTx removes an address unless it is the owner's primary or sole
// address.
func (a *emailAddresses) DeleteEmailTx(ctx context.Context, tx bun.IDB, email *EmailAddress) error {
	if email.IsPrimary {
		return withMeta(ErrCannotDeletePrimary, map[string]any{
			"email": email.Email,
		})
	}

	siblings, err := a.countForTx(ctx, tx, email.Owner)
	if err != nil {
		return err
	}

	if siblings <= 1 {
		return withMeta(ErrCannotDeleteOnlyAddress, map[string]any{
			"email": email.Email,
		})
	}

	_, err = tx.NewDelete().
		Model((*EmailAddress)(nil)).
		Where("?TableAlias.id = ?", email.ID).
		Exec(ctx)

	return err
}

func (a *emailAddresses) Verify(ctx context.Context, email *EmailAddress, at time.Time) (*EmailAddress, error) {
	return a.VerifyTx(ctx, a.db, email, at)
}

// VerifyTx stamps verified_at. Re-verifying an already verified address is a
// no-op: the stored timestamp never changes once set.
func (a *emailAddresses) VerifyTx(ctx context.Context, tx bun.IDB, email *EmailAddress, at time.Time) (*EmailAddress, error) {
	if email.IsVerified() {
		return email, nil
	}

	if _, err := tx.NewRaw(VerifyEmailSQL, at, email.ID).Exec(ctx); err != nil {
		return nil, err
	}

	email.VerifiedAt = &at
	return email, nil
}

func (a *emailAddresses) countForTx(ctx context.Context, tx bun.IDB, owner Slot) (int, error) {
	return tx.NewSelect().
		Model((*EmailAddress)(nil)).
		Where("?TableAlias.owner_kind = ?", string(owner.Kind)).
		Where("?TableAlias.owner_id = ?", owner.ID).
		Count(ctx)
}
