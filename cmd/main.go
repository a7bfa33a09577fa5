/*
Package main is the entry point for the SIMS portal server.

It is responsible for loading configuration, initializing the global logging system,
connecting the database, the key/value store and the hosted auth service, setting up the
HTTP server, and gracefully handling operating system interrupt signals (SIGINT, SIGTERM)
so portal sessions and live streams are closed cleanly.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sims/internal/app/admissions"
	"sims/internal/app/auth"
	"sims/internal/app/backend"
	"sims/internal/app/db"
	"sims/internal/app/kv"
	"sims/internal/app/live"
	"sims/internal/app/news"
	"sims/internal/app/results"
	"sims/internal/app/storage"
	"sims/internal/configs"
	"sims/internal/handler"
	"sims/internal/pkg/logx"
	"sims/internal/pkg/metrics"
	"sims/internal/pkg/pow"
)

func main() {
	// Load configuration from environment variables
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	logx.InitGlobalLogger(cfg.IsDevelopment())
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("site_url", cfg.SiteURL).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Int("pow_difficulty", cfg.PowDifficulty).
		Bool("redis", cfg.RedisURL != "").
		Bool("media", cfg.S3Enabled()).
		Str("role_fallback", cfg.RoleFetchFallback).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseDSN, cfg.IsDevelopment())
	if err != nil {
		logx.Fatal(err, "Failed to connect to the database")
	}
	defer pool.Close()
	queries := db.New(pool)

	var store kv.Store = kv.NewMemoryStore()
	if cfg.RedisURL != "" {
		redisStore, err := kv.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logx.Fatal(err, "Failed to connect to Redis")
		}
		defer redisStore.Close()
		store = redisStore
	} else {
		logx.Warn("REDIS_URL not set, portal sessions will not survive a restart")
	}

	m := metrics.New()

	authService := backend.NewService(backend.ServiceConfig{
		BaseURL: cfg.BackendURL,
		AnonKey: cfg.BackendAnonKey,
		SiteURL: cfg.SiteURL,
		Timeout: cfg.AuthTimeout,
	}, store)

	registry := auth.NewRegistry(cfg.MaxPortals, cfg.PortalIdleTTL, func(portalID string) *auth.Store {
		return auth.NewStore(authService.Client(portalID), queries, store, auth.Options{
			PortalID:     portalID,
			Timeout:      cfg.AuthTimeout,
			RoleFallback: cfg.RoleFetchFallback,
			Metrics:      m,
		})
	}, m)

	var media *storage.Media
	if cfg.S3Enabled() {
		bucket, err := storage.OpenBucket(storage.BucketConfig{
			Name:            cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize media storage")
		}
		media = storage.NewMedia(bucket, cfg.S3PublicBaseURL)
	} else {
		logx.Warn("S3_BUCKET_NAME not set, gallery and cover uploads are disabled")
	}

	powManager := pow.NewManager(cfg.PowDifficulty)
	limiters := handler.NewLimiters()
	hub := live.NewHub(m)

	deps := &handler.AppDeps{
		Config:     cfg,
		Registry:   registry,
		Overview:   queries,
		News:       news.NewService(queries),
		Results:    results.NewService(queries),
		Admissions: admissions.NewService(queries),
		Media:      media,
		Pow:        powManager,
		Limiters:   limiters,
		Metrics:    m,
		Hub:        hub,
	}

	// Setup HTTP server and routes
	router := handler.Router(deps)

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.GuardWait + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("SIMS portal starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server with a timeout of 5 seconds.
	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()

	hub.Shutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Server forced to shutdown")
	}

	registry.Close()
	powManager.Stop()
	limiters.Stop()

	logx.Info("Server gracefully stopped.")
}
