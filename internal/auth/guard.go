package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"moringadaily/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
	ErrUnknownUser  = errors.New("user not found")
	ErrInactiveUser = errors.New("account deactivated")
)

const (
	ctxUserID = "userID"
	ctxUser   = "user"
	ctxClaims = "claims"
)

// Guard 负责把 bearer token 解析为已认证的用户，HTTP 中间件和 WebSocket 握手共用。
type Guard struct {
	secret    string
	db        *gorm.DB
	blocklist *Blocklist
}

func NewGuard(secret string, db *gorm.DB, blocklist *Blocklist) *Guard {
	return &Guard{secret: secret, db: db, blocklist: blocklist}
}

func (g *Guard) Blocklist() *Blocklist { return g.blocklist }

// Authenticate 校验签名、黑名单以及用户状态。
func (g *Guard) Authenticate(ctx context.Context, token string) (*models.User, *Claims, error) {
	if token == "" {
		return nil, nil, ErrMissingToken
	}
	claims, err := ParseAccessToken(token, g.secret)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	if g.blocklist != nil {
		revoked, err := g.blocklist.Revoked(ctx, claims.ID)
		if err != nil {
			// 黑名单后端故障时放行，避免缓存抖动导致全站不可用。
			log.Warn().Err(err).Uint("user_id", claims.UserID).Msg("blocklist lookup")
		} else if revoked {
			return nil, nil, ErrTokenRevoked
		}
	}
	var user models.User
	if err := g.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		return nil, nil, ErrUnknownUser
	}
	if !user.Active {
		return nil, nil, ErrInactiveUser
	}
	return &user, claims, nil
}

// BearerToken 从 Authorization 头提取 token，WebSocket 额外允许 token 查询参数。
func BearerToken(c *gin.Context, allowQuery bool) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if allowQuery {
		return c.Query("token")
	}
	return ""
}

func (g *Guard) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, claims, err := g.Authenticate(c.Request.Context(), BearerToken(c, false))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Set(ctxUserID, user.ID)
		c.Set(ctxUser, *user)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// RequireAdmin 必须挂在 Middleware 之后。
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := GetUser(c)
		if !ok || !user.IsAdmin() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin role required"})
			return
		}
		c.Next()
	}
}

func GetUserID(c *gin.Context) uint {
	if v, ok := c.Get(ctxUserID); ok {
		if id, ok2 := v.(uint); ok2 {
			return id
		}
	}
	return 0
}

func GetUser(c *gin.Context) (models.User, bool) {
	if v, ok := c.Get(ctxUser); ok {
		u, ok2 := v.(models.User)
		return u, ok2
	}
	return models.User{}, false
}

func GetClaims(c *gin.Context) *Claims {
	if v, ok := c.Get(ctxClaims); ok {
		if cl, ok2 := v.(*Claims); ok2 {
			return cl
		}
	}
	return nil
}
