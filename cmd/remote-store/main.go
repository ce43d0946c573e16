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

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remotestore"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/sequence"
)

func main() {
	logger := log.New(os.Stdout, "[remote-store] ", log.LstdFlags|log.Lmicroseconds)
	cfg, err := config.LoadRemoteStore()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	var (
		repo remotestore.Repository
		seq  events.Sequencer
	)
	if cfg.DatabaseDSN != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			logger.Fatalf("db connect: %v", err)
		}
		defer pool.Close()

		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
				logger.Fatalf("db migrate: %v", err)
			}
		}
		repo = remotestore.NewPostgresRepository(pool)
		seq = sequence.NewRepository(pool)
	} else {
		logger.Printf("DATABASE_DSN not set, keeping data in memory")
		repo = remotestore.NewMemoryRepository(nil, nil)
		seq = sequence.NewMemory()
	}

	// --- AMQP ---
	var pub remotestore.EventPublisher = events.Nop{}
	if cfg.RabbitURL != "" {
		conn := events.MustDial(cfg.RabbitURL, logger)
		defer conn.Close()

		p, err := events.NewPublisher(conn, seq)
		if err != nil {
			logger.Fatalf("start publisher: %v", err)
		}
		defer p.Close()
		pub = p
	}

	// --- HTTP ---
	h := remotestore.NewHandler(repo, pub, logger, cfg.DefaultPageSize)
	r := remotestore.NewRouter(h)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("shutdown signal: %s", sig)
	case err := <-errCh:
		logger.Printf("fatal error: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	logger.Printf("shutdown complete")
}
