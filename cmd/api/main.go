package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"rollbook.org/internal/auth"
	"rollbook.org/internal/config"
	"rollbook.org/internal/httpapi"
	"rollbook.org/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	if cfg.PostgresDSN == "" {
		log.Fatal("missing DSN: set ROLLBOOK_PG_DSN")
	}
	store, err := auth.OpenPG(cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer store.Close()

	// The claim cache is shared across replicas when redis is configured;
	// otherwise each process keeps its own in-memory copy and the claim TTL
	// bounds divergence.
	var cache auth.ClaimCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = auth.NewRedisClaimCache(client)
	} else {
		cache = auth.NewMemoryClaimCache()
	}

	issuer, err := auth.NewIssuer(store, cache,
		auth.WithSessionTTL(cfg.SessionTTL),
		auth.WithClaimTTL(cfg.ClaimTTL),
	)
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}
	gate, err := auth.NewGate(issuer, store)
	if err != nil {
		log.Fatalf("gate: %v", err)
	}
	accounts, err := auth.NewService(store, issuer, gate,
		auth.WithResetSecret(cfg.ResetSecret),
	)
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: store.DB()}, accounts, gate, version)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting rollbook-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	log.Println("Stopped")
}
