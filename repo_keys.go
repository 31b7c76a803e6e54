package account

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultKeyTTL is applied when a key is created without an expiry.
const DefaultKeyTTL = 72 * time.Hour

// ClaimRedeemableKeySQL sets the terminal redeemed timestamp only when the
// key is still unredeemed and unexpired. Of two racing redeemers exactly one
// affects a row; the loser observes AlreadyRedeemed.
var ClaimRedeemableKeySQL = `UPDATE "redeemable_keys" AS "rdk"
SET
	"redeemed_at" = ?
WHERE
	"rdk"."id" = ?
AND "rdk"."redeemed_at" IS NULL
AND ("rdk"."expires_at" IS NULL OR "rdk"."expires_at" > ?);`

// ExpireRedeemableKeySQL forces immediate expiry. A redeemed key is left
// untouched: redemption is terminal and wins.
var ExpireRedeemableKeySQL = `UPDATE "redeemable_keys" AS "rdk"
SET
	"expires_at" = ?
WHERE
	"rdk"."id" = ?
AND "rdk"."redeemed_at" IS NULL;`

// RedeemableKeys manages RedeemableKey records.
type RedeemableKeys interface {
	GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*RedeemableKey, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *RedeemableKey, criteria ...repository.InsertCriteria) (*RedeemableKey, error)

	CreateKey(ctx context.Context, redeemable Entity, redeemer *User, expiresAt *time.Time) (*RedeemableKey, error)
	CreateKeyTx(ctx context.Context, tx bun.IDB, redeemable Entity, redeemer *User, expiresAt *time.Time) (*RedeemableKey, error)
	ClaimTx(ctx context.Context, tx bun.IDB, key *RedeemableKey, at time.Time) (bool, error)
	Expire(ctx context.Context, key *RedeemableKey, at time.Time) (bool, error)
	ExpireTx(ctx context.Context, tx bun.IDB, key *RedeemableKey, at time.Time) (bool, error)

	ListRedeemable(ctx context.Context, now time.Time) ([]*RedeemableKey, error)
	ListRedeemed(ctx context.Context) ([]*RedeemableKey, error)
	ListExpired(ctx context.Context, now time.Time) ([]*RedeemableKey, error)
	ListForRedeemable(ctx context.Context, target Entity) ([]*RedeemableKey, error)
}

type redeemableKeys struct {
	repository.Repository[*RedeemableKey]
	db *bun.DB
}

var _ RedeemableKeys = (*redeemableKeys)(nil)

func NewRedeemableKeysRepository(db *bun.DB) RedeemableKeys {
	repo := repository.NewRepository[*RedeemableKey](db, repository.ModelHandlers[*RedeemableKey]{
		NewRecord: func() *RedeemableKey { return &RedeemableKey{} },
		GetID: func(k *RedeemableKey) uuid.UUID {
			if k == nil {
				return uuid.Nil
			}
			return k.ID
		},
		SetID: func(k *RedeemableKey, id uuid.UUID) {
			if k != nil {
				k.ID = id
			}
		},
	})

	return &redeemableKeys{
		Repository: repo,
		db:         db,
	}
}

func (a *redeemableKeys) CreateKey(ctx context.Context, redeemable Entity, redeemer *User, expiresAt *time.Time) (*RedeemableKey, error) {
	return a.CreateKeyTx(ctx, a.db, redeemable, redeemer, expiresAt)
}

// CreateKeyTx issues a key for a redemption target and an optional required
// redeemer. Without an explicit expiry the key gets the default TTL.
func (a *redeemableKeys) CreateKeyTx(ctx context.Context, tx bun.IDB, redeemable Entity, redeemer *User, expiresAt *time.Time) (*RedeemableKey, error) {
	record := &RedeemableKey{}
	if err := record.Redeemable.Set(redeemable, KeyRedeemableRule); err != nil {
		return nil, err
	}

	if redeemer != nil {
		if err := record.Redeemer.Set(redeemer, KeyRedeemerRule); err != nil {
			return nil, err
		}
	}

	if expiresAt == nil {
		expiry := nowUTC().Add(DefaultKeyTTL)
		expiresAt = &expiry
	}
	record.ExpiresAt = expiresAt

	prepareKeyDefaults(record)

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

// ClaimTx attempts the terminal Active to Redeemed transition with a single
// conditional update. It reports whether this caller won the claim.
func (a *redeemableKeys) ClaimTx(ctx context.Context, tx bun.IDB, key *RedeemableKey, at time.Time) (bool, error) {
	res, err := tx.NewRaw(ClaimRedeemableKeySQL, at, key.ID, at).Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected == 0 {
		return false, nil
	}

	key.RedeemedAt = &at
	return true, nil
}

func (a *redeemableKeys) Expire(ctx context.Context, key *RedeemableKey, at time.Time) (bool, error) {
	return a.ExpireTx(ctx, a.db, key, at)
}

// ExpireTx administratively forces expiry. It has no effect on a redeemed
// key and reports whether the key actually transitioned.
func (a *redeemableKeys) ExpireTx(ctx context.Context, tx bun.IDB, key *RedeemableKey, at time.Time) (bool, error) {
	res, err := tx.NewRaw(ExpireRedeemableKeySQL, at, key.ID).Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if affected == 0 {
		return false, nil
	}

	key.ExpiresAt = &at
	return true, nil
}

func (a *redeemableKeys) ListRedeemable(ctx context.Context, now time.Time) ([]*RedeemableKey, error) {
	var records []*RedeemableKey
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.redeemed_at IS NULL").
		Where("(?TableAlias.expires_at IS NULL OR ?TableAlias.expires_at > ?)", now).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *redeemableKeys) ListRedeemed(ctx context.Context) ([]*RedeemableKey, error) {
	var records []*RedeemableKey
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.redeemed_at IS NOT NULL").
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *redeemableKeys) ListExpired(ctx context.Context, now time.Time) ([]*RedeemableKey, error) {
	var records []*RedeemableKey
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.redeemed_at IS NULL").
		Where("?TableAlias.expires_at IS NOT NULL").
		Where("?TableAlias.expires_at <= ?", now).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *redeemableKeys) ListForRedeemable(ctx context.Context, target Entity) ([]*RedeemableKey, error) {
	var records []*RedeemableKey
	err := a.db.NewSelect().
		Model(&records).
		Where("?TableAlias.redeemable_kind = ?", string(target.EntityKind())).
		Where("?TableAlias.redeemable_id = ?", target.EntityID()).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}
