package mw

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS dev 环境允许所有来源，其余环境只允许配置的来源列表。
func CORS(env string, origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", RequestIDHeader},
		ExposeHeaders:    []string{RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}
	if env == "dev" || len(origins) == 0 {
		cfg.AllowOriginFunc = func(origin string) bool { return env == "dev" }
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
