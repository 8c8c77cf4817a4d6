package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"schooldir/internal/appinfo"
	"schooldir/internal/config"
	"schooldir/internal/database"
	"schooldir/internal/handlers"
	"schooldir/internal/middleware"
	"schooldir/internal/store"
	"schooldir/internal/upload"
	"schooldir/pkg/logger"
)

func main() {
	config.LoadEnv()

	cfg, err := config.Load()
	if err != nil {
		logger.LogFatal("Config error: %v", err)
	}

	if cfg.App.StartupBanner {
		printSignature(cfg)
	}

	// Connect DB
	db, err := database.Open(cfg.Database)
	if err != nil {
		logger.LogFatal("Database error: %v", err)
	}
	defer database.Close(db)

	maintCtx, stopMaint := context.WithCancel(context.Background())
	defer stopMaint()
	go database.StartMaintenance(maintCtx, db, cfg.Database.MaintenanceInterval)

	stats := appinfo.New()
	st := store.New(db, store.Options{
		PhoneCountryCode:    cfg.Directory.PhoneCountryCode,
		MaxConcurrentWrites: cfg.Database.MaxConcurrentWrites,
		Stats:               stats,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := st.LoadStats(ctx); err != nil {
		logger.LogWarn("Could not load directory stats: %v", err)
	}
	cancel()

	uploads := upload.New(cfg.Upload.MinFiles, cfg.Upload.MaxFiles, cfg.MaxFileSizeBytes(), cfg.Upload.AllowedTypes)

	h := handlers.New(st, uploads, handlers.Options{
		Version:     cfg.App.Version,
		Environment: cfg.Server.Env,
	})

	limiter := middleware.NewRateLimiter(cfg.Security.RateLimit, cfg.TrustedProxies())
	defer limiter.Stop()

	compress, err := middleware.Compress(cfg.Server.CompressMinSize)
	if err != nil {
		logger.LogFatal("Invalid compression settings: %v", err)
	}

	finalHandler := middleware.Chain(h.Routes(),
		limiter.Middleware,
		middleware.Cors(cfg.Security.CorsOrigins),
		compress,
		middleware.RequestID,
		middleware.Logger,
		middleware.Recover,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      finalHandler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.LogServerStart(cfg.Server.Port, cfg.GetBaseUrl(), cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-serverErr:
		if ok {
			logger.LogError("Server error: %v", err)
		}
	case sig := <-quit:
		logger.LogInfo("Received %s, shutting down...", sig)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.LogError("Graceful shutdown failed: %v", err)
	}
	logger.LogSuccess("Server stopped.")
}
