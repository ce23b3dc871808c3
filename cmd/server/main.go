package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"moringadaily/internal/auth"
	"moringadaily/internal/cache"
	"moringadaily/internal/config"
	"moringadaily/internal/db"
	clog "moringadaily/internal/log"
	"moringadaily/internal/mw"
	"moringadaily/internal/notify"
	"moringadaily/internal/server"
	"moringadaily/internal/service"
	"moringadaily/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

func main() {
	// main 负责加载配置、初始化日志、连接数据库，并在同一个 errgroup 中运行 Hub 与 HTTP 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	store, err := cache.New(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("cache connect")
	}
	defer store.Close()

	notifier, closeNotifier, err := newNotifier(cfg, gdb)
	if err != nil {
		log.Fatal().Err(err).Msg("notifier")
	}
	defer closeNotifier()

	blocklist := auth.NewBlocklist(store)
	hub := ws.NewHub(cfg.WSSendBuffer)
	limiter := mw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 10*time.Minute)
	defer limiter.Stop()

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := server.SetupRouter(cfg, server.Deps{
		DB:      gdb,
		Hub:     hub,
		Guard:   auth.NewGuard(cfg.JWTSecret, gdb, blocklist),
		Limiter: limiter,
		Services: server.Services{
			Users:         service.NewUserService(gdb, cfg, blocklist),
			Contents:      service.NewContentService(gdb),
			Comments:      service.NewCommentService(gdb, notifier),
			Interactions:  service.NewInteractionService(gdb, notifier),
			Chat:          service.NewChatService(gdb, hub, notifier),
			Notifications: service.NewNotificationService(gdb),
		},
	})
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.Env).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}

// newNotifier 配置了 Redis 时走 asynq 队列，由 cmd/worker 消费；否则同步写库。
func newNotifier(cfg config.Config, gdb *gorm.DB) (notify.Dispatcher, func(), error) {
	if cfg.RedisURL == "" {
		return notify.NewInline(notify.NewWriter(gdb)), func() {}, nil
	}
	q, err := notify.NewQueue(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return q, func() { _ = q.Close() }, nil
}
