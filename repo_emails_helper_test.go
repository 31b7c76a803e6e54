package account

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// conflictingCreateRepo simulates a concurrent insert winning the race: the
// pre-check saw no duplicate but the store rejects the insert on the unique
// email column.
type conflictingCreateRepo struct {
	repository.Repository[*EmailAddress]
	err error
}

func (r conflictingCreateRepo) CreateTx(ctx context.Context, tx bun.IDB, record *EmailAddress, criteria ...repository.InsertCriteria) (*EmailAddress, error) {
	return nil, r.err
}

func TestCreateEmailMapsUniqueViolationToDuplicate(t *testing.T) {
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, CreateSchema(ctx, db))

	repo := &emailAddresses{
		Repository: conflictingCreateRepo{
			err: errors.New("constraint failed: UNIQUE constraint failed: email_addresses.email (2067)"),
		},
		db: db,
	}

	owner := &User{ID: uuid.New()}

	_, err = repo.CreateEmailTx(ctx, db, owner, "pepe.rone@example.com", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.True(t, IsValidation(err))
}

func TestIsEmailUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "sqlite email column",
			err:  errors.New("constraint failed: UNIQUE constraint failed: email_addresses.email (2067)"),
			want: true,
		},
		{
			name: "postgres email constraint",
			err:  errors.New(`ERROR: duplicate key value violates unique constraint "email_addresses_email_key" (SQLSTATE=23505)`),
			want: true,
		},
		{
			name: "primary per owner index is not a duplicate email",
			err:  errors.New("constraint failed: UNIQUE constraint failed: index 'owner_primary_email_idx' (2067)"),
			want: false,
		},
		{
			name: "unrelated error",
			err:  errors.New("database is locked"),
			want: false,
		},
		{
			name: "nil error",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isEmailUniqueViolation(tt.err))
		})
	}
}
