package auth_test

import (
	"errors"
	"testing"
	"time"

	"moringadaily/internal/auth"
	"moringadaily/internal/models"
	"moringadaily/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestRevokeUserRefreshTokens(t *testing.T) {
	gdb := testutil.NewDB(t)
	alice := testutil.CreateUser(t, gdb, "alice")
	bob := testutil.CreateUser(t, gdb, "bob")
	exp := time.Now().Add(time.Hour)

	require.NoError(t, auth.SaveRefreshToken(gdb, alice.ID, "a1", exp))
	require.NoError(t, auth.SaveRefreshToken(gdb, alice.ID, "a2", exp))
	require.NoError(t, auth.SaveRefreshToken(gdb, alice.ID, "a-old", time.Now().Add(-time.Hour)))
	require.NoError(t, auth.SaveRefreshToken(gdb, bob.ID, "b1", exp))
	require.NoError(t, auth.RevokeRefreshToken(gdb, "a2"))

	n, err := auth.RevokeUserRefreshTokens(gdb, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only live tokens are revoked")

	for _, tok := range []string{"a1", "a2", "a-old"} {
		_, err := auth.ValidateRefreshToken(gdb, tok)
		assert.True(t, errors.Is(err, gorm.ErrRecordNotFound), tok)
	}
	rt, err := auth.ValidateRefreshToken(gdb, "b1")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, rt.UserID)

	n, err = auth.RevokeUserRefreshTokens(gdb, alice.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRevokeRefreshToken_KeepsFirstRevocation(t *testing.T) {
	gdb := testutil.NewDB(t)
	alice := testutil.CreateUser(t, gdb, "alice")
	require.NoError(t, auth.SaveRefreshToken(gdb, alice.ID, "t", time.Now().Add(time.Hour)))

	require.NoError(t, auth.RevokeRefreshToken(gdb, "t"))
	var first models.RefreshToken
	require.NoError(t, gdb.Where("token = ?", "t").First(&first).Error)
	require.NotNil(t, first.RevokedAt)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, auth.RevokeRefreshToken(gdb, "t"))
	var again models.RefreshToken
	require.NoError(t, gdb.Where("token = ?", "t").First(&again).Error)
	require.NotNil(t, again.RevokedAt)
	assert.True(t, first.RevokedAt.Equal(*again.RevokedAt))
}
