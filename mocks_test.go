package account_test

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-account"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/uptrace/bun"
)

// MockRepositoryManager implements account.RepositoryManager
type MockRepositoryManager struct {
	mock.Mock
}

func (m *MockRepositoryManager) Validate() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockRepositoryManager) MustValidate() {
	m.Called()
}

func (m *MockRepositoryManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	args := m.Called(ctx, opts, f)
	return args.Error(0)
}

func (m *MockRepositoryManager) Users() account.Users {
	args := m.Called()
	return args.Get(0).(account.Users)
}

func (m *MockRepositoryManager) EmailAddresses() account.EmailAddresses {
	args := m.Called()
	return args.Get(0).(account.EmailAddresses)
}

func (m *MockRepositoryManager) Passwords() account.Passwords {
	args := m.Called()
	return args.Get(0).(account.Passwords)
}

func (m *MockRepositoryManager) RedeemableKeys() account.RedeemableKeys {
	args := m.Called()
	return args.Get(0).(account.RedeemableKeys)
}

func (m *MockRepositoryManager) Registry() *account.Registry {
	args := m.Called()
	return args.Get(0).(*account.Registry)
}

func (m *MockRepositoryManager) ResolveSlot(ctx context.Context, tx bun.IDB, slot account.Slot) (account.Entity, error) {
	args := m.Called(ctx, tx, slot)
	if record, ok := args.Get(0).(account.Entity); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockUsers implements account.Users
type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*account.User, error) {
	args := m.Called(ctx, id, criteria)
	if record, ok := args.Get(0).(*account.User); ok {
		return record, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) CreateTx(ctx context.Context, tx bun.IDB, record *account.User, criteria ...repository.InsertCriteria) (*account.User, error) {
	args := m.Called(ctx, tx, record, criteria)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) UpdateTx(ctx context.Context, tx bun.IDB, record *account.User, criteria ...repository.UpdateCriteria) (*account.User, error) {
	args := m.Called(ctx, tx, record, criteria)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) Register(ctx context.Context, user *account.User) (*account.User, error) {
	args := m.Called(ctx, user)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) RegisterTx(ctx context.Context, tx bun.IDB, user *account.User) (*account.User, error) {
	args := m.Called(ctx, tx, user)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByUsername(ctx context.Context, username string) (*account.User, error) {
	args := m.Called(ctx, username)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*account.User, error) {
	args := m.Called(ctx, tx, username)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByPrimaryEmail(ctx context.Context, email string) (*account.User, error) {
	args := m.Called(ctx, email)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) GetByPrimaryEmailTx(ctx context.Context, tx bun.IDB, email string) (*account.User, error) {
	args := m.Called(ctx, tx, email)
	if out, ok := args.Get(0).(*account.User); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUsers) ActivateTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, tx, id)
	return args.Bool(0), args.Error(1)
}

// MockEmailAddresses implements account.EmailAddresses
type MockEmailAddresses struct {
	mock.Mock
}

func (m *MockEmailAddresses) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*account.EmailAddress, error) {
	args := m.Called(ctx, id, criteria)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) CreateTx(ctx context.Context, tx bun.IDB, record *account.EmailAddress, criteria ...repository.InsertCriteria) (*account.EmailAddress, error) {
	args := m.Called(ctx, tx, record, criteria)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) UpdateTx(ctx context.Context, tx bun.IDB, record *account.EmailAddress, criteria ...repository.UpdateCriteria) (*account.EmailAddress, error) {
	args := m.Called(ctx, tx, record, criteria)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) CreateEmail(ctx context.Context, owner account.Entity, email string, verified bool) (*account.EmailAddress, error) {
	args := m.Called(ctx, owner, email, verified)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) CreateEmailTx(ctx context.Context, tx bun.IDB, owner account.Entity, email string, verified bool) (*account.EmailAddress, error) {
	args := m.Called(ctx, tx, owner, email, verified)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) GetByEmail(ctx context.Context, email string) (*account.EmailAddress, error) {
	args := m.Called(ctx, email)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*account.EmailAddress, error) {
	args := m.Called(ctx, tx, email)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) ListFor(ctx context.Context, owner account.Entity) ([]*account.EmailAddress, error) {
	args := m.Called(ctx, owner)
	if out, ok := args.Get(0).([]*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) ListForTx(ctx context.Context, tx bun.IDB, owner account.Entity) ([]*account.EmailAddress, error) {
	args := m.Called(ctx, tx, owner)
	if out, ok := args.Get(0).([]*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) PrimaryFor(ctx context.Context, owner account.Entity) (*account.EmailAddress, error) {
	args := m.Called(ctx, owner)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) PrimaryForTx(ctx context.Context, tx bun.IDB, owner account.Entity) (*account.EmailAddress, error) {
	args := m.Called(ctx, tx, owner)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) SetPrimary(ctx context.Context, email *account.EmailAddress) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockEmailAddresses) SetPrimaryTx(ctx context.Context, tx bun.IDB, email *account.EmailAddress) error {
	args := m.Called(ctx, tx, email)
	return args.Error(0)
}

func (m *MockEmailAddresses) DeleteEmail(ctx context.Context, email *account.EmailAddress) error {
	args := m.Called(ctx, email)
	return args.Error(0)
}

func (m *MockEmailAddresses) DeleteEmailTx(ctx context.Context, tx bun.IDB, email *account.EmailAddress) error {
	args := m.Called(ctx, tx, email)
	return args.Error(0)
}

func (m *MockEmailAddresses) Verify(ctx context.Context, email *account.EmailAddress, at time.Time) (*account.EmailAddress, error) {
	args := m.Called(ctx, email, at)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEmailAddresses) VerifyTx(ctx context.Context, tx bun.IDB, email *account.EmailAddress, at time.Time) (*account.EmailAddress, error) {
	args := m.Called(ctx, tx, email, at)
	if out, ok := args.Get(0).(*account.EmailAddress); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPasswords implements account.Passwords
type MockPasswords struct {
	mock.Mock
}

func (m *MockPasswords) CreateTx(ctx context.Context, tx bun.IDB, record *account.Password, criteria ...repository.InsertCriteria) (*account.Password, error) {
	args := m.Called(ctx, tx, record, criteria)
	if out, ok := args.Get(0).(*account.Password); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswords) CurrentFor(ctx context.Context, protected account.Entity) (*account.Password, error) {
	args := m.Called(ctx, protected)
	if out, ok := args.Get(0).(*account.Password); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswords) CurrentForTx(ctx context.Context, tx bun.IDB, protected account.Entity) (*account.Password, error) {
	args := m.Called(ctx, tx, protected)
	if out, ok := args.Get(0).(*account.Password); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswords) SetPassword(ctx context.Context, protected account.Entity, rawPassword string) (*account.Password, error) {
	args := m.Called(ctx, protected, rawPassword)
	if out, ok := args.Get(0).(*account.Password); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswords) SetPasswordTx(ctx context.Context, tx bun.IDB, protected account.Entity, rawPassword string) (*account.Password, error) {
	args := m.Called(ctx, tx, protected, rawPassword)
	if out, ok := args.Get(0).(*account.Password); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPasswords) VerifyPassword(ctx context.Context, protected account.Entity, rawPassword string) (bool, error) {
	args := m.Called(ctx, protected, rawPassword)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswords) Unset(ctx context.Context, protected account.Entity) error {
	args := m.Called(ctx, protected)
	return args.Error(0)
}

func (m *MockPasswords) UnsetTx(ctx context.Context, tx bun.IDB, protected account.Entity) error {
	args := m.Called(ctx, tx, protected)
	return args.Error(0)
}

// MockRedeemableKeys implements account.RedeemableKeys
type MockRedeemableKeys struct {
	mock.Mock
}

func (m *MockRedeemableKeys) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (*account.RedeemableKey, error) {
	args := m.Called(ctx, id, criteria)
	if out, ok := args.Get(0).(*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) CreateTx(ctx context.Context, tx bun.IDB, record *account.RedeemableKey, criteria ...repository.InsertCriteria) (*account.RedeemableKey, error) {
	args := m.Called(ctx, tx, record, criteria)
	if out, ok := args.Get(0).(*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) CreateKey(ctx context.Context, redeemable account.Entity, redeemer *account.User, expiresAt *time.Time) (*account.RedeemableKey, error) {
	args := m.Called(ctx, redeemable, redeemer, expiresAt)
	if out, ok := args.Get(0).(*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) CreateKeyTx(ctx context.Context, tx bun.IDB, redeemable account.Entity, redeemer *account.User, expiresAt *time.Time) (*account.RedeemableKey, error) {
	args := m.Called(ctx, tx, redeemable, redeemer, expiresAt)
	if out, ok := args.Get(0).(*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) ClaimTx(ctx context.Context, tx bun.IDB, key *account.RedeemableKey, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, key, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedeemableKeys) Expire(ctx context.Context, key *account.RedeemableKey, at time.Time) (bool, error) {
	args := m.Called(ctx, key, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedeemableKeys) ExpireTx(ctx context.Context, tx bun.IDB, key *account.RedeemableKey, at time.Time) (bool, error) {
	args := m.Called(ctx, tx, key, at)
	return args.Bool(0), args.Error(1)
}

func (m *MockRedeemableKeys) ListRedeemable(ctx context.Context, now time.Time) ([]*account.RedeemableKey, error) {
	args := m.Called(ctx, now)
	if out, ok := args.Get(0).([]*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) ListRedeemed(ctx context.Context) ([]*account.RedeemableKey, error) {
	args := m.Called(ctx)
	if out, ok := args.Get(0).([]*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) ListExpired(ctx context.Context, now time.Time) ([]*account.RedeemableKey, error) {
	args := m.Called(ctx, now)
	if out, ok := args.Get(0).([]*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRedeemableKeys) ListForRedeemable(ctx context.Context, target account.Entity) ([]*account.RedeemableKey, error) {
	args := m.Called(ctx, target)
	if out, ok := args.Get(0).([]*account.RedeemableKey); ok {
		return out, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockActivitySink implements account.ActivitySink
type MockActivitySink struct {
	mock.Mock
}

func (m *MockActivitySink) Record(ctx context.Context, event account.ActivityEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
