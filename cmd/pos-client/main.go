package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/config"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/connectivity"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/kitchen"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/localstore"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/session"
)

// onlineHook refreshes stock whenever the store becomes reachable again.
type onlineHook struct {
	sess   *session.Session
	ctx    context.Context
	logger *log.Logger
}

func (h onlineHook) SetOnline(online bool) {
	was := h.sess.Online()
	h.sess.SetOnline(online)
	if !online || was {
		return
	}
	depleted, err := h.sess.RefreshInventory(h.ctx)
	if err != nil {
		h.logger.Printf("refresh inventory: %v", err)
		return
	}
	for _, d := range depleted {
		h.logger.Printf("cart line product=%s wants %d, store has %d", d.ProductID, d.Requested, d.Available)
	}
}

func main() {
	logger := log.New(os.Stdout, "[pos-client] ", log.LstdFlags|log.Lmicroseconds)
	cfg, err := config.LoadClient()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- local state ---
	state, err := localstore.Open(ctx, cfg.StatePath)
	if err != nil {
		logger.Fatalf("open local state: %v", err)
	}
	defer state.Close()

	// --- remote store ---
	client, err := remote.NewClient(cfg.RemoteURL, &http.Client{Timeout: cfg.RequestTimeout})
	if err != nil {
		logger.Fatalf("remote client: %v", err)
	}
	store := remote.NewHTTPStore(client, cfg.PageSize)

	sess := session.New(store, session.Options{
		Actor:          cfg.Actor,
		PageSize:       cfg.PageSize,
		RequestTimeout: cfg.RequestTimeout,
		Sync:           cfg.Sync(),
		Logger:         logger,
		Persister:      state,
	})
	defer sess.Close()

	if err := sess.Restore(ctx); err != nil {
		if !errors.Is(err, localstore.ErrDataCorruption) {
			logger.Fatalf("restore: %v", err)
		}
		logger.Printf("restore: %v", err)
	}
	logger.Printf("orders=%d awaiting sync=%d", len(sess.Orders()), sess.PendingCount())

	// --- background loops ---
	var wg sync.WaitGroup
	monitor := connectivity.NewMonitor(store, onlineHook{sess: sess, ctx: ctx, logger: logger}, cfg.ProbeInterval, cfg.RequestTimeout, logger)
	poller := kitchen.NewPoller(sess, cfg.PollInterval, cfg.RequestTimeout, logger)

	wg.Add(2)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		poller.Run(ctx)
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Printf("shutdown signal: %s", sig)

	cancel()
	wg.Wait()
	logger.Printf("shutdown complete")
}
