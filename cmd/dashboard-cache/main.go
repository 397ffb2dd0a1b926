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

	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-dashboard-cache/internal/config"
	"github.com/goliatone/go-dashboard-cache/internal/httpapi"
	"github.com/goliatone/go-dashboard-cache/pkg/di"
)

func main() {
	settings, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: ", err)
	}

	logger := logrus.New()
	if settings.LogFormat == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(settings.Level())

	logger.WithFields(logrus.Fields{
		"api":         settings.APIBaseURL,
		"blob_driver": settings.Blob.Driver,
	}).Info("starting dashboard cache")

	startCtx, cancelStart := context.WithTimeout(context.Background(), 30*time.Second)
	container, err := di.NewContainer(startCtx, settings, di.WithLogger(logger))
	cancelStart()
	if err != nil {
		logger.WithError(err).Fatal("failed to build components")
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Addr:         settings.HTTPAddr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: settings.APITimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}, httpapi.Deps{
		Orchestrator: container.Orchestrator(),
		Filters:      container.Filters(),
		Stores:       container.Stores(),
		Stats:        container.CacheService(),
		Metrics:      container.Metrics(),
		Logger:       logger,
	})

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("http server failed")
		}
	}()

	// warm the store selector so the first page load is served from cache
	go container.Stores().Load(context.Background())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("http server forced to shutdown")
	}
	if err := container.Close(ctx); err != nil {
		logger.WithError(err).Warn("durable cache was not flushed")
	}

	logger.Info("dashboard cache stopped")
}
