package identity_test

import (
	"context"
	"testing"

	"github.com/ferrydl/ferry/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapTokenStore_Authenticate(t *testing.T) {
	t.Parallel()

	store := identity.NewMapTokenStore([]identity.TokenEntry{
		{Token: "tok-1", UserID: "1", Roles: []string{"admin"}},
		{Token: "tok-2", UserID: "2"},
		{Token: "", UserID: "3"},
		{Token: "tok-1", UserID: "4", Roles: []string{"editor"}},
	})

	assert.Equal(t, 2, store.Len())

	t.Run("later entry wins", func(t *testing.T) {
		t.Parallel()

		user, err := store.Authenticate(context.Background(), "tok-1")
		require.NoError(t, err)
		assert.Equal(t, "4", user.ID)
		assert.True(t, user.HasRole("editor"))
		assert.False(t, user.HasRole("admin"))
	})

	t.Run("no roles", func(t *testing.T) {
		t.Parallel()

		user, err := store.Authenticate(context.Background(), "tok-2")
		require.NoError(t, err)
		assert.Equal(t, "2", user.ID)
		assert.Empty(t, user.Roles)
	})

	t.Run("unknown token", func(t *testing.T) {
		t.Parallel()

		_, err := store.Authenticate(context.Background(), "nope")
		assert.ErrorIs(t, err, identity.ErrTokenNotFound)
	})
}

func TestMapTokenStore_ReturnsCopy(t *testing.T) {
	t.Parallel()

	store := identity.NewMapTokenStore([]identity.TokenEntry{
		{Token: "tok", UserID: "1", Roles: []string{"admin"}},
	})

	user, err := store.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	user.Roles[0] = "changed"

	again, err := store.Authenticate(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin"}, again.Roles)
}
