package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"coachranger/internal/api"
	"coachranger/internal/config"
	"coachranger/internal/monitoring"
	"coachranger/internal/scrape"
	"coachranger/internal/storage"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Initialize Storage Layer
	pgStore, err := storage.NewPostgresStore(cfg.PostgresURL)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}
	redisStore := storage.NewRedisStore(cfg.RedisAddr)

	// Initialize Monitoring
	metrics := monitoring.NewMetrics()

	// Initialize Ingestion Pipeline
	indexFetcher := scrape.NewFetcher(time.Duration(cfg.IndexTimeout)*time.Second, "")
	detailFetcher := scrape.NewFetcher(time.Duration(cfg.DetailTimeout)*time.Second, cfg.IndexURL)
	scanner := scrape.NewIndexScanner(indexFetcher, cfg.IndexURL, cfg.DetailBaseURL)

	pipeline := scrape.NewPipeline(scanner, detailFetcher, pgStore, redisStore, metrics, logger, scrape.Options{
		Workers:       cfg.ScrapeWorkers,
		MaxPhotos:     cfg.MaxPhotos,
		DetailBaseURL: cfg.DetailBaseURL,
		SeenTTL:       time.Duration(cfg.SeenTTLHours) * time.Hour,
	})

	// Initialize API Server
	server := api.NewServer(cfg, pipeline, pgStore, redisStore, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
