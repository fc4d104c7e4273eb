package account_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feela-app/feela/backend/internal/service/account"
)

func TestRegister(t *testing.T) {
	svc := account.NewService()
	ctx := context.Background()

	require.NoError(t, svc.Register(ctx, "ada", "lovelace"))
	assert.True(t, svc.Exists("ada"))

	err := svc.Register(ctx, "ada", "other")
	assert.ErrorIs(t, err, account.ErrAlreadyExists)
}

func TestRegisterRejectsEmptyFields(t *testing.T) {
	svc := account.NewService()
	ctx := context.Background()

	assert.ErrorIs(t, svc.Register(ctx, "", "pw"), account.ErrInvalidInput)
	assert.ErrorIs(t, svc.Register(ctx, "ada", ""), account.ErrInvalidInput)
	assert.ErrorIs(t, svc.Register(ctx, "", ""), account.ErrInvalidInput)
	assert.False(t, svc.Exists(""))
}

func TestAuthenticate(t *testing.T) {
	svc := account.NewService()
	ctx := context.Background()
	require.NoError(t, svc.Register(ctx, "ada", "Lovelace"))

	assert.NoError(t, svc.Authenticate(ctx, "ada", "Lovelace"))

	wrongPassword := svc.Authenticate(ctx, "ada", "lovelace")
	unknownUser := svc.Authenticate(ctx, "grace", "Lovelace")

	require.ErrorIs(t, wrongPassword, account.ErrInvalidCredentials)
	require.ErrorIs(t, unknownUser, account.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownUser, "errors must be indistinguishable")
}

func TestAuthenticateEmptyPasswordNeverMatches(t *testing.T) {
	svc := account.NewService()

	assert.ErrorIs(t, svc.Authenticate(context.Background(), "", ""), account.ErrInvalidCredentials)
}
