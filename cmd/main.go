/*
Package main is the entry point for the chat server.

It loads configuration, initializes the global logger, opens the credential
store and the optional avatar storage, starts the chat hub and the HTTP server,
and shuts everything down in order on SIGINT or SIGTERM.
*/
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

	"livechat/internal/app/chat"
	"livechat/internal/app/db"
	"livechat/internal/app/storage"
	"livechat/internal/configs"
	"livechat/internal/handler"
	"livechat/internal/pkg/logx"
)

const (
	startupTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logx.InitGlobalLogger(cfg.IsDevelopment(), cfg.LogLevel)
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Bool("allow_guests", cfg.AllowGuests).
		Bool("avatar_storage", cfg.StorageEnabled()).
		Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startupCtx, cancelStartup := context.WithTimeout(ctx, startupTimeout)
	defer cancelStartup()

	backend, _ := db.BackendFor(cfg.DatabaseURL)
	store, err := db.Open(startupCtx, cfg.DatabaseURL, db.Options{DatabaseName: cfg.DatabaseName})
	if err != nil {
		logx.Fatal(err, "Failed to open credential store", "backend", string(backend))
	}
	logx.Info("Credential store ready", "backend", string(backend))

	deps := &handler.AppDeps{
		Config: cfg,
		Store:  store,
	}

	if cfg.StorageEnabled() {
		avatars, err := storage.NewAvatarStorage(startupCtx, storage.ServiceConfig{
			BucketName:      cfg.S3BucketName,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			logx.Fatal(err, "Failed to initialize avatar storage")
		}
		deps.Storage = avatars
	}

	hub := chat.NewHub(store)
	go hub.Run()
	deps.Hub = hub

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler.Router(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logx.Info(fmt.Sprintf("Chat server starting on http://localhost%s", serverAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal(err, "Server failed to start")
		}
	}()

	<-ctx.Done()
	logx.Info("Received shutdown signal. Starting graceful shutdown...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "HTTP server did not shut down cleanly")
	}

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logx.Error(err, "Chat hub did not shut down cleanly")
	}

	if err := store.Close(shutdownCtx); err != nil {
		logx.Error(err, "Failed to close credential store")
	}

	logx.Info("Server gracefully stopped.")
}
