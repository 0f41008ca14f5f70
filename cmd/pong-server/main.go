package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mpeyrard/pong-arena/internal/chatnotify"
	appcfg "github.com/mpeyrard/pong-arena/internal/config"
	"github.com/mpeyrard/pong-arena/internal/gateway"
	"github.com/mpeyrard/pong-arena/internal/identity"
	"github.com/mpeyrard/pong-arena/internal/invite"
	"github.com/mpeyrard/pong-arena/internal/msgcat"
	"github.com/mpeyrard/pong-arena/internal/obslog"
	"github.com/mpeyrard/pong-arena/internal/presence"
	"github.com/mpeyrard/pong-arena/internal/relay"
	"github.com/mpeyrard/pong-arena/internal/session"
)

func main() {
	_ = godotenv.Load()

	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()

	opts, err := session.ParseRedisURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("redis url error", zap.Error(err))
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal("redis connect error", zap.Error(err))
	}
	cancel()

	store := session.NewStore(rdb, cfg.SessionTTL)

	var results session.ResultStore
	if cfg.DatabaseURL != "" {
		repo, err := session.NewRepository(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("result repository init error", zap.Error(err))
		}
		defer func() { _ = repo.Close() }()
		results = repo
	} else {
		logger.Warn("DATABASE_URL not set, match results kept in memory only")
		results = session.NewMemResults()
	}

	cat, err := msgcat.New(os.Getenv("MESSAGES_DIR"))
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	hub := relay.NewHub()
	notifier := presence.NewService(gateway.NewRoster(store), hub)

	match := session.NewMatchmaker(store, notifier)
	life := session.NewLifecycle(store, notifier)
	rec := session.NewRecorder(store, results, notifier)

	reaper, err := session.NewReaper(store, notifier, cfg.PausedTimeout, cfg.ReaperInterval)
	if err != nil {
		logger.Fatal("reaper init error", zap.Error(err))
	}
	reaper.Start()
	defer func() { _ = reaper.Stop() }()

	var chat chatnotify.Notifier = chatnotify.Nop{}
	if cfg.ChatBaseURL != "" {
		chat = chatnotify.NewClient(cfg.ChatBaseURL)
	}

	gw := gateway.New(gateway.Deps{
		Store:          store,
		Match:          match,
		Life:           life,
		Recorder:       rec,
		Hub:            hub,
		Resolver:       identity.NewTokenResolver(store),
		Invites:        invite.NewManager(),
		Chat:           chat,
		Catalog:        cat,
		Notifier:       notifier,
		Metrics:        gateway.NewMetrics(prometheus.DefaultRegisterer),
		WinScore:       cfg.WinScore,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	mux := http.NewServeMux()
	gw.Routes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	_ = rdb.Close()
}
