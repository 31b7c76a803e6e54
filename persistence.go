package account

import (
	"context"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"
)

// RegisterModels registers every model this package persists with the
// shared persistence client. Call once during process bootstrap, before
// fixtures or migrations run.
func RegisterModels() {
	persistence.RegisterModel((*User)(nil))
	persistence.RegisterModel((*EmailAddress)(nil))
	persistence.RegisterModel((*Password)(nil))
	persistence.RegisterModel((*RedeemableKey)(nil))
}

// CreateSchema creates tables and the backstop indexes for every model.
// Meant for tests and throwaway environments; production schemas come from
// migrations.
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*User)(nil),
		(*EmailAddress)(nil),
		(*Password)(nil),
		(*RedeemableKey)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	// One primary address per owner, enforced by the store as the backstop
	// for the clear-then-set swap.
	if _, err := db.NewRaw(`CREATE UNIQUE INDEX IF NOT EXISTS "owner_primary_email_idx"
ON "email_addresses" ("owner_kind", "owner_id") WHERE "is_primary" = TRUE;`).Exec(ctx); err != nil {
		return err
	}

	if _, err := db.NewRaw(`CREATE INDEX IF NOT EXISTS "redeemable_keys_target_idx"
ON "redeemable_keys" ("redeemable_kind", "redeemable_id");`).Exec(ctx); err != nil {
		return err
	}

	return nil
}
