package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roomchat/internal/auth"
	"roomchat/internal/config"
	"roomchat/internal/db"
	"roomchat/internal/identity"
	"roomchat/internal/invite"
	clog "roomchat/internal/log"
	"roomchat/internal/mw"
	"roomchat/internal/server"
	"roomchat/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库与身份服务并启动 Gin 服务。
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load")
	}
	clog.Init(cfg.Env, cfg.LogLevel)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	idc := identity.NewClient(identity.Options{
		URL:        cfg.IdentityURL,
		AnonKey:    cfg.IdentityAnonKey,
		ServiceKey: cfg.IdentityServiceKey,
		JWTSecret:  cfg.IdentityJWTSecret,
		Timeout:    cfg.IdentityTimeout,
	})
	var dir identity.Directory = idc
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		dir = identity.NewCachedDirectory(idc, rdb, cfg.UserCacheTTL, log.Logger)
	}

	rooms := service.NewRoomService(gdb)
	h := server.NewHandler(
		rooms,
		service.NewMessageService(gdb, rooms, dir),
		service.NewInviteService(rooms, invite.NewEngine(cfg.InviteKey)),
		dir,
	)
	am := auth.New(idc, cfg.LoginURL(), cfg.IdentityTimeout, log.Logger)
	limiter := mw.NewRateLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst, 2*time.Minute).Start()
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, h, am, limiter, log.Logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
}
