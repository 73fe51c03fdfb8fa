package profile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_UpdateAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.GetUserData(ctx, "u1")
	require.ErrorIs(t, err, ErrUserNotFound)

	err = store.UpdateUserProfile(ctx, "u1", map[string]any{"email": "u1@example.com", "plan": "free"})
	require.NoError(t, err)

	err = store.UpdateUserProfile(ctx, "u1", map[string]any{"plan": "pro"})
	require.NoError(t, err)

	data, err := store.GetUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1@example.com", data["email"])
	assert.Equal(t, "pro", data["plan"])
}

func TestMemoryStore_Segments(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpdateUserProfile(ctx, "u1", map[string]any{"email": "u1@example.com"}))
	require.NoError(t, store.AddUserToSegment(ctx, "u1", "vip"))
	require.NoError(t, store.AddUserToSegment(ctx, "u1", "vip")) // idempotent
	require.NoError(t, store.AddUserToSegment(ctx, "u1", "newsletter"))

	data, err := store.GetUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"vip", "newsletter"}, data["segments"])

	require.NoError(t, store.RemoveUserFromSegment(ctx, "u1", "vip"))
	require.NoError(t, store.RemoveUserFromSegment(ctx, "u1", "missing")) // no-op

	data, err = store.GetUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"newsletter"}, data["segments"])
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpdateUserProfile(ctx, "u1", map[string]any{"plan": "free"}))

	data, err := store.GetUserData(ctx, "u1")
	require.NoError(t, err)

	data["plan"] = "tampered"

	fresh, err := store.GetUserData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "free", fresh["plan"])
}
