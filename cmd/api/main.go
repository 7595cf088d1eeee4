package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hakoke/impostor/internal/config"
	"github.com/hakoke/impostor/internal/handler"
	"github.com/hakoke/impostor/internal/handler/ws"
	aiService "github.com/hakoke/impostor/internal/service/ai"
	gameService "github.com/hakoke/impostor/internal/service/game"
	"github.com/hakoke/impostor/internal/service/research"
	"github.com/hakoke/impostor/internal/storage"
	"github.com/hakoke/impostor/internal/storage/memory"
	"github.com/hakoke/impostor/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	// Pick the store: Postgres when configured, in-memory otherwise.
	var store storage.Store
	if cfg.Database.DSN != "" {
		pgStore, err := postgres.Open(cfg.Database.DSN)
		if err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		store = pgStore
		log.Println("Postgres store initialized successfully")
	} else {
		store = memory.New()
		log.Println("DATABASE_URL not set, using in-memory store")
	}

	// Initialize the generation collaborator. The game degrades to a
	// humans-only dry run without it.
	var generator aiService.Generator
	if cfg.AI.Enabled() {
		svc, err := aiService.NewService(ctx, cfg.AI)
		if err != nil {
			log.Printf("warning: failed to initialize AI service: %v", err)
			log.Println("continuing without AI participation")
		} else {
			generator = svc
			log.Println("AI service initialized successfully")
		}
	} else {
		log.Println("Ark credentials not configured, skipping AI participation")
	}

	hub := ws.NewHub()
	orchestrator := gameService.NewOrchestrator(store, hub, generator, research.Disabled{},
		cfg.Game, rand.New(rand.NewSource(time.Now().UnixNano())))

	router := handler.NewRouter(orchestrator, store, hub)

	startServer(ctx, cfg.Server, router)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Impostor backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
