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
	"github.com/rs/cors"

	"gigmarket/auth"
	"gigmarket/bids"
	"gigmarket/config"
	"gigmarket/db"
	"gigmarket/gigs"
	"gigmarket/hire"
	"gigmarket/memstore"
	"gigmarket/middleware"
	"gigmarket/mongostore"
	"gigmarket/notify"
	"gigmarket/ratelim"
	"gigmarket/rdx"
	"gigmarket/routes"
	"gigmarket/store"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	if cfg.Store == "memory" {
		log.Println("[Store] using in-memory store")
		return memstore.New(), func() {}, nil
	}

	client, err := db.Connect(ctx, cfg.MongoURI)
	if err != nil {
		return nil, nil, err
	}
	st := mongostore.New(client, cfg.MongoDB)
	if err := st.EnsureIndexes(ctx); err != nil {
		db.Disconnect(client)
		return nil, nil, err
	}
	return st, func() { db.Disconnect(client) }, nil
}

func main() {
	cfg := config.Load()

	mode, err := hire.ParseMode(cfg.HireStrategy)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}

	startCtx, cancelStart := context.WithTimeout(context.Background(), 20*time.Second)
	st, closeStore, err := openStore(startCtx, cfg)
	if err != nil {
		log.Fatalf("❌ store: %v", err)
	}

	// Redis is optional; without it everything stays in this process.
	var (
		conn   *redis.Client
		relay  notify.Relay
		queue  hire.Queue = hire.NewMemoryQueue()
		tokens auth.TokenRegistry
	)
	if cfg.RedisAddr != "" {
		conn, err = rdx.Connect(startCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		queue = rdx.NewQueue(conn, rdx.ReconcileKey)
		tokens = rdx.NewTokens(conn)
	}

	hub := notify.NewHub()
	go hub.Run()

	runCtx, stopRun := context.WithCancel(context.Background())

	var redisRelay *notify.RedisRelay
	if conn != nil {
		redisRelay = notify.NewRedisRelay(conn, cfg.NotifyChannel)
		relay = redisRelay
	}
	dispatcher := notify.NewDispatcher(hub, relay)
	if redisRelay != nil {
		go redisRelay.Listen(runCtx, dispatcher)
	}

	coordinator := hire.NewCoordinator(st, dispatcher, queue, mode)
	coordinator.Probe(startCtx)
	cancelStart()

	reconciler := hire.NewReconciler(st, queue, dispatcher, cfg.ReconcileInterval, cfg.ReconcileGrace)
	go reconciler.Run(runCtx)

	rateLimiter := ratelim.NewRateLimiter(120, 20, 10*time.Minute)
	go rateLimiter.RunCleanup(time.Minute, runCtx.Done())

	jwt := middleware.NewJWT(cfg.JWTSecret, cfg.TokenTTL)
	if revoked, ok := tokens.(middleware.RevocationList); ok {
		jwt.Revoked = revoked
	}
	router := routes.NewRouter(routes.Deps{
		JWT:           jwt,
		RateLimiter:   rateLimiter,
		Auth:          auth.NewHandlers(auth.NewService(st, jwt, tokens), jwt, cfg.RequestTimeout),
		Gigs:          gigs.NewHandlers(gigs.NewService(st), cfg.RequestTimeout),
		Bids:          bids.NewHandlers(bids.NewGate(st), coordinator, cfg.RequestTimeout),
		Hub:           hub,
		AllowedOrigin: cfg.FrontendURL,
	})

	// apply middleware: CORS → security headers → logging → router
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler(router)

	handler := middleware.Logging(middleware.SecurityHeaders(corsHandler))

	server := &http.Server{
		Addr:              cfg.Port,
		Handler:           handler,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	server.RegisterOnShutdown(func() {
		log.Println("🛑 Shutting down notification hub...")
		stopRun()
		hub.Stop()
	})

	go func() {
		log.Printf("🚀 Server listening on %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	// wait for interrupt or SIGTERM
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Graceful shutdown failed: %v", err)
	}
	if conn != nil {
		conn.Close()
	}
	closeStore()

	log.Println("✅ Server stopped cleanly")
}
