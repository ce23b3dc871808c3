package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"moringadaily/internal/auth"
	"moringadaily/internal/cache"
	"moringadaily/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "guard-secret"

func TestGuard_Authenticate(t *testing.T) {
	gdb := testutil.NewDB(t)
	user := testutil.CreateUser(t, gdb, "alice")
	bl := auth.NewBlocklist(cache.NewMemory())
	g := auth.NewGuard(secret, gdb, bl)
	ctx := context.Background()

	tok, err := auth.GenerateAccessToken(user.ID, secret, 5)
	require.NoError(t, err)

	got, claims, err := g.Authenticate(ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	require.NoError(t, bl.Revoke(ctx, claims.ID, time.Now().Add(time.Minute)))
	_, _, err = g.Authenticate(ctx, tok)
	assert.ErrorIs(t, err, auth.ErrTokenRevoked)

	_, _, err = g.Authenticate(ctx, "")
	assert.ErrorIs(t, err, auth.ErrMissingToken)

	_, _, err = g.Authenticate(ctx, "garbage")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	ghost, _ := auth.GenerateAccessToken(9999, secret, 5)
	_, _, err = g.Authenticate(ctx, ghost)
	assert.ErrorIs(t, err, auth.ErrUnknownUser)
}

func TestGuard_InactiveUser(t *testing.T) {
	gdb := testutil.NewDB(t)
	user := testutil.CreateUser(t, gdb, "bob")
	require.NoError(t, gdb.Model(&user).Update("active", false).Error)
	g := auth.NewGuard(secret, gdb, nil)

	tok, _ := auth.GenerateAccessToken(user.ID, secret, 5)
	_, _, err := g.Authenticate(context.Background(), tok)
	assert.ErrorIs(t, err, auth.ErrInactiveUser)
}

func TestMiddleware_AndRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	gdb := testutil.NewDB(t)
	user := testutil.CreateUser(t, gdb, "carol")
	admin := testutil.CreateAdmin(t, gdb, "root")
	g := auth.NewGuard(secret, gdb, nil)

	r := gin.New()
	r.GET("/me", g.Middleware(), func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": auth.GetUserID(c)}) })
	r.GET("/admin", g.Middleware(), auth.RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(path string, uid uint) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if uid != 0 {
			tok, _ := auth.GenerateAccessToken(uid, secret, 5)
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", 0))
	assert.Equal(t, http.StatusOK, do("/me", user.ID))
	assert.Equal(t, http.StatusForbidden, do("/admin", user.ID))
	assert.Equal(t, http.StatusNoContent, do("/admin", admin.ID))
}
