package server

import (
	"net/http"

	"moringadaily/internal/auth"
	"moringadaily/internal/config"
	"moringadaily/internal/db"
	"moringadaily/internal/metrics"
	"moringadaily/internal/mw"
	"moringadaily/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Deps 是构建路由所需的进程级对象，全部由 main 创建。
type Deps struct {
	DB       *gorm.DB
	Hub      *ws.Hub
	Guard    *auth.Guard
	Limiter  *mw.RL
	Services Services
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestID())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	r.Use(metrics.GinMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		if err := db.Ping(d.DB); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "db unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "online": d.Hub.Online()})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", ws.Serve(d.Hub, d.Guard, d.Services.Chat))

	h := NewHandler(d.Services)
	api := r.Group("/api/v1")

	public := api.Group("")
	if d.Limiter != nil {
		public.Use(mw.RateLimit(d.Limiter))
	}
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.RefreshToken)
	public.GET("/categories", h.ListCategories)
	public.GET("/contents", h.ListContents)

	// 需要 Bearer Token 的业务接口，限速在鉴权之后按用户计数。
	authed := api.Group("")
	authed.Use(d.Guard.Middleware())
	if d.Limiter != nil {
		authed.Use(mw.RateLimit(d.Limiter))
	}
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/me", h.Me)
	authed.PATCH("/me", h.UpdateProfile)
	authed.GET("/users/:id", h.GetUser)
	authed.GET("/users/:id/messages", h.MessagesWith)

	authed.POST("/contents", h.CreateContent)
	authed.GET("/contents/:id", h.GetContent)
	authed.GET("/contents/:id/stats", h.Stats)
	authed.POST("/contents/:id/like", h.Like)
	authed.DELETE("/contents/:id/like", h.Unlike)
	authed.POST("/contents/:id/wishlist", h.ToggleWishlist)
	authed.POST("/contents/:id/share", h.Share)
	authed.GET("/contents/:id/comments", h.ListComments)
	authed.POST("/contents/:id/comments", h.AddComment)

	authed.POST("/categories/:id/subscription", h.Subscribe)
	authed.DELETE("/categories/:id/subscription", h.Unsubscribe)
	authed.GET("/subscriptions", h.Subscriptions)

	authed.POST("/conversations", h.OpenConversation)
	authed.GET("/conversations", h.ListConversations)
	authed.GET("/conversations/:id/messages", h.ListMessages)
	authed.POST("/conversations/:id/messages", h.SendMessage)

	authed.GET("/notifications", h.ListNotifications)
	authed.POST("/notifications/:id/read", h.MarkNotificationRead)
	authed.POST("/notifications/read-all", h.MarkAllNotificationsRead)

	admin := authed.Group("/admin")
	admin.Use(auth.RequireAdmin())
	admin.POST("/categories", h.CreateCategory)
	admin.POST("/contents/:id/approve", h.ApproveContent)
	admin.POST("/contents/:id/flag", h.FlagContent)
	admin.PUT("/users/:id/role", h.SetRole)
	admin.POST("/users/:id/deactivate", h.setActive(false))
	admin.POST("/users/:id/activate", h.setActive(true))

	return r
}
