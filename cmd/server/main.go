package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/growthops/mercadoads/internal/api"
	"github.com/growthops/mercadoads/internal/automation"
	"github.com/growthops/mercadoads/internal/config"
	"github.com/growthops/mercadoads/internal/gateway"
	"github.com/growthops/mercadoads/internal/mlads"
	"github.com/growthops/mercadoads/internal/pkg/distlock"
	"github.com/growthops/mercadoads/internal/pkg/httpretry"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		log.Println("[config] DATABASE_URL env override active")
	}

	// Open Postgres
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		cancelPing()
		log.Fatalf("Failed to ping database: %v", err)
	}
	cancelPing()

	// Ensure schema before serving
	store := automation.NewStore(db)
	source := gateway.NewPostgresCredentialSource(db)
	ctx := context.Background()
	if err := store.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure engine schema: %v", err)
	}
	if err := source.EnsureSchema(ctx); err != nil {
		log.Fatalf("Failed to ensure integration schema: %v", err)
	}

	// Optional Redis for the per-workspace run lock; without it the lock
	// falls back to a Postgres advisory lock.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("[MercadoAds] redis unavailable (%v), run lock falls back to Postgres", err)
			redisClient = nil
		}
	}

	// Platform clients
	retryclient := httpretry.NewRetryClient(&http.Client{Timeout: 30 * time.Second}, 3)
	gw := gateway.NewClient(cfg.Mercado.BaseURL, retryclient, source, cfg.Mercado.ClientID, cfg.Mercado.ClientSecret)
	platform := mlads.NewClient(gw, gw, cfg.Mercado.SiteID, cfg.Mercado.AdvertiserID)

	// Engine
	newLock := func(key string) distlock.DistLock {
		return distlock.NewLock(redisClient, db, key, 10*time.Minute)
	}
	engine := automation.NewService(store, platform, cfg.Automation, newLock)

	// HTTP server
	server := api.NewServer(engine)
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	go func() {
		log.Printf("[MercadoAds] server listening on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("[MercadoAds] shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("[MercadoAds] shutdown error: %v", err)
	}
	if redisClient != nil {
		redisClient.Close()
	}
	log.Println("[MercadoAds] server stopped")
}
