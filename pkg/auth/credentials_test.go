package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserTable_Verify(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	users := NewUserTable(map[string]string{"Alice": hash})
	assert.NoError(t, users.Verify("alice", "s3cret"))
	assert.NoError(t, users.Verify("ALICE", "s3cret"))
	assert.True(t, errors.Is(users.Verify("alice", "wrong"), ErrInvalidCredentials))
	assert.True(t, errors.Is(users.Verify("bob", "s3cret"), ErrInvalidCredentials))
	assert.True(t, errors.Is(users.Verify("", ""), ErrInvalidCredentials))
}

func TestContextIdentity(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "", GetUserID(ctx))
	assert.Equal(t, "", GetSessionID(ctx))

	ctx = WithUserID(ctx, "alice")
	assert.Equal(t, "alice", GetUserID(ctx))
	assert.Equal(t, "alice", GetSessionID(ctx), "session falls back to user")

	ctx = WithSessionID(ctx, "session-1")
	assert.Equal(t, "session-1", GetSessionID(ctx))
}
