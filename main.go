package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"study-notes/auth"
	"study-notes/config"
	"study-notes/db"
	"study-notes/handlers"
	appmw "study-notes/middleware"
	"study-notes/ratelimit"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file loaded", "error", err)
	}

	cfg, err := config.Load("")
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	appmw.InitLogger(cfg.LogLevel)

	if err := run(cfg); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	store, err := db.Open(connectCtx, db.Options{
		Driver:        cfg.StoreDriver,
		DSN:           cfg.DSN,
		MongoURI:      cfg.MongoURI,
		MongoDatabase: cfg.MongoDatabase,
	})
	cancel()
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	slog.Info("store ready", "driver", cfg.StoreDriver)

	revoker, limiter, closeRedis, err := sessionBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeRedis()

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.SessionTTL)
	h := handlers.New(store, tokens, revoker, cfg.CookieSecure)
	sessions := appmw.NewSessionResolver(tokens, revoker, store)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(h, sessions, limiter, cfg.CORSOrigin),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server running", "addr", "http://localhost:"+cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sessionBackends picks Redis for revocation and rate limiting when REDIS_ADDR
// is set, in-process implementations otherwise.
func sessionBackends(ctx context.Context, cfg config.Config) (auth.Revoker, ratelimit.Limiter, func(), error) {
	if cfg.RedisAddr == "" {
		limiter, err := ratelimit.NewMemory(cfg.AuthRateLimitPerMinute, time.Minute)
		if err != nil {
			return nil, nil, nil, err
		}
		return auth.NewMemoryRevoker(), limiter, func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	limiter, err := ratelimit.NewRedis(client, "studynotes:ratelimit", cfg.AuthRateLimitPerMinute, time.Minute)
	if err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	slog.Info("redis ready", "addr", cfg.RedisAddr)
	return auth.NewRedisRevoker(client), limiter, func() { client.Close() }, nil
}
