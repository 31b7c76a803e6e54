package account_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-account"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestRedeemKeyHandlerRejectsInvalidPayload(t *testing.T) {
	repo := &MockRepositoryManager{}
	handler := account.NewRedeemKeyHandler(repo)

	err := handler.Execute(context.Background(), account.RedeemKeyMessage{
		Key: "not-a-uuid",
	})

	require.Error(t, err)
	assert.True(t, account.IsValidation(err))
}

func TestRedeemKeyHandlerKeyNotFound(t *testing.T) {
	repo := &MockRepositoryManager{}
	keys := &MockRedeemableKeys{}

	handler := account.NewRedeemKeyHandler(repo)

	keyID := uuid.New()

	repo.On("RedeemableKeys").Return(keys)
	keys.On("GetByID", mock.Anything, keyID.String(), mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	var resp *account.RedeemKeyResponse
	err := handler.Execute(context.Background(), account.RedeemKeyMessage{
		Key: keyID.String(),
		OnResponse: func(r *account.RedeemKeyResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, resp.Found)
	assert.False(t, resp.Redeemed)
}

func TestRedeemKeyHandlerExpiredKeyLandsInResponse(t *testing.T) {
	repo := &MockRepositoryManager{}
	keys := &MockRedeemableKeys{}

	handler := account.NewRedeemKeyHandler(repo)

	expiresAt := time.Now().Add(-time.Hour)
	key := &account.RedeemableKey{ID: uuid.New(), ExpiresAt: &expiresAt}
	require.NoError(t, key.Redeemable.Set(&account.User{ID: uuid.New()}, account.KeyRedeemableRule))

	repo.On("RedeemableKeys").Return(keys)
	keys.On("GetByID", mock.Anything, key.ID.String(), mock.Anything).
		Return(key, nil).Once()

	var resp *account.RedeemKeyResponse
	err := handler.Execute(context.Background(), account.RedeemKeyMessage{
		Key: key.ID.String(),
		OnResponse: func(r *account.RedeemKeyResponse) {
			resp = r
		},
	})

	require.NoError(t, err, "state machine failures land in the response")
	require.NotNil(t, resp)
	assert.True(t, resp.Found)
	assert.True(t, resp.Expired)
	assert.False(t, resp.Redeemed)
}

func TestRedeemKeyHandlerAlreadyRedeemedLandsInResponse(t *testing.T) {
	repo := &MockRepositoryManager{}
	keys := &MockRedeemableKeys{}

	handler := account.NewRedeemKeyHandler(repo)

	redeemedAt := time.Now().Add(-time.Hour)
	key := &account.RedeemableKey{ID: uuid.New(), RedeemedAt: &redeemedAt}
	require.NoError(t, key.Redeemable.Set(&account.User{ID: uuid.New()}, account.KeyRedeemableRule))

	repo.On("RedeemableKeys").Return(keys)
	keys.On("GetByID", mock.Anything, key.ID.String(), mock.Anything).
		Return(key, nil).Once()

	var resp *account.RedeemKeyResponse
	err := handler.Execute(context.Background(), account.RedeemKeyMessage{
		Key: key.ID.String(),
		OnResponse: func(r *account.RedeemKeyResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.AlreadyRedeemed)
	assert.False(t, resp.Redeemed)
}

func TestRedeemKeyHandlerActivatesUser(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	keys := &MockRedeemableKeys{}

	handler := account.NewRedeemKeyHandler(repo)

	target := &account.User{ID: uuid.New(), IsActive: false}
	key := &account.RedeemableKey{ID: uuid.New()}
	require.NoError(t, key.Redeemable.Set(target, account.KeyRedeemableRule))

	repo.On("RedeemableKeys").Return(keys)
	repo.On("Users").Return(users)

	keys.On("GetByID", mock.Anything, key.ID.String(), mock.Anything).
		Return(key, nil).Once()

	repo.On("ResolveSlot", mock.Anything, mock.Anything, slotOfKind(account.KindRedeemableKey)).
		Return(key, nil)
	repo.On("ResolveSlot", mock.Anything, mock.Anything, slotOfKind(account.KindUser)).
		Return(target, nil)

	users.On("ActivateTx", mock.Anything, mock.Anything, target.ID).
		Return(true, nil).Once()
	keys.On("ClaimTx", mock.Anything, mock.Anything, key, mock.Anything).
		Return(true, nil).Once()

	repo.On("RunInTx", mock.Anything, (*sql.TxOptions)(nil), mock.Anything).
		Return(nil).
		Run(func(args mock.Arguments) {
			fn := args.Get(2).(func(context.Context, bun.Tx) error)
			var tx bun.Tx
			require.NoError(t, fn(args.Get(0).(context.Context), tx))
		}).Once()

	var resp *account.RedeemKeyResponse
	err := handler.Execute(context.Background(), account.RedeemKeyMessage{
		Key: key.ID.String(),
		OnResponse: func(r *account.RedeemKeyResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Found)
	assert.True(t, resp.Redeemed)

	repo.AssertExpectations(t)
	users.AssertExpectations(t)
	keys.AssertExpectations(t)
}

func TestRedeemKeyHandlerActorNotFound(t *testing.T) {
	repo := &MockRepositoryManager{}
	users := &MockUsers{}
	keys := &MockRedeemableKeys{}

	handler := account.NewRedeemKeyHandler(repo)

	key := &account.RedeemableKey{ID: uuid.New()}
	require.NoError(t, key.Redeemable.Set(&account.User{ID: uuid.New()}, account.KeyRedeemableRule))

	actorID := uuid.New()

	repo.On("RedeemableKeys").Return(keys)
	repo.On("Users").Return(users)

	keys.On("GetByID", mock.Anything, key.ID.String(), mock.Anything).
		Return(key, nil).Once()
	users.On("GetByID", mock.Anything, actorID.String(), mock.Anything).
		Return(nil, repository.NewRecordNotFound()).Once()

	var resp *account.RedeemKeyResponse
	err := handler.Execute(context.Background(), account.RedeemKeyMessage{
		Key:   key.ID.String(),
		Actor: actorID.String(),
		OnResponse: func(r *account.RedeemKeyResponse) {
			resp = r
		},
	})

	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.True(t, resp.Found)
	assert.False(t, resp.Redeemed)
	assert.NotEmpty(t, resp.Errors)
}
