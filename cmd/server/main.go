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

	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/auth"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/cache"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/config"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/database"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/handlers"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/logger"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/metrics"
	"github.com/chamithdewmin/iphoneCenter.lk-sub000/internal/router"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logg, err := logger.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logg.Sync()

	if cfg.App.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.Database, logg)
	if err != nil {
		logg.Fatal("database unavailable", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		logg.Fatal("migration failed", zap.Error(err))
	}

	var catalogCache cache.Catalog = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			// The cache is an optimisation; run without it.
			logg.Warn("redis unavailable, catalog cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		} else {
			defer rdb.Close()
			catalogCache = cache.NewRedisCatalog(rdb, cfg.Redis.TTL, logg)
		}
	}

	var (
		m        *metrics.Metrics
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m = metrics.New(reg)
		gatherer = reg
	}

	h := handlers.New(db, auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL), catalogCache, m, cfg.AI, logg)
	h.AllowRegistration = cfg.Auth.AllowRegistration
	if !h.Agent.Enabled() {
		logg.Info("GEMINI_API_KEY not set, stock assistant disabled")
	}

	r, err := router.New(h, router.Options{HTTP: cfg.HTTP, Metrics: m, Gatherer: gatherer, Log: logg})
	if err != nil {
		logg.Fatal("router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("server starting", zap.String("addr", cfg.HTTP.Addr), zap.String("base_url", cfg.HTTP.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logg.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logg.Error("graceful shutdown failed", zap.Error(err))
	}
}
