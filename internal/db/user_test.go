package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ukydev/fleet-dispatch/internal/models"
)

func TestMongoUserCollection_InsertAndFind(t *testing.T) {
	store := mongoStore(t)
	ctx := context.Background()

	user := &models.User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         models.RoleAdmin,
		FirstName:    "Test",
		LastName:     "User",
	}
	require.NoError(t, store.Users.InsertUser(ctx, user))
	assert.NotZero(t, user.ID)
	assert.True(t, user.IsActive)
	assert.NotZero(t, user.CreatedAt)

	byID, err := store.Users.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, byID.Username)

	byName, err := store.Users.FindUserByUsername(ctx, "testuser")
	require.NoError(t, err)
	assert.Equal(t, user.Email, byName.Email)

	byEmail, err := store.Users.FindUserByEmail(ctx, "test@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = store.Users.FindUserByUsername(ctx, "nonexistent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMongoUserCollection_UpdateUser(t *testing.T) {
	store := mongoStore(t)
	ctx := context.Background()

	user := &models.User{Username: "testuser", Email: "test@example.com", Role: models.RoleViewer}
	require.NoError(t, store.Users.InsertUser(ctx, user))

	user.Role = models.RoleManager
	user.FirstName = "Updated"
	require.NoError(t, store.Users.UpdateUser(ctx, user))

	got, err := store.Users.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleManager, got.Role)
	assert.Equal(t, "Updated", got.FirstName)

	assert.ErrorIs(t, store.Users.UpdateUser(ctx, &models.User{ID: 999}), ErrNotFound)
}

func TestMongoUserCollection_UpdateLastLogin(t *testing.T) {
	store := mongoStore(t)
	ctx := context.Background()

	user := &models.User{Username: "testuser", Email: "test@example.com", Role: models.RoleAdmin}
	require.NoError(t, store.Users.InsertUser(ctx, user))
	require.NoError(t, store.Users.UpdateLastLogin(ctx, user.ID))

	got, err := store.Users.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastLogin)
}
