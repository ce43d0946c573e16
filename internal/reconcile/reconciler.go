package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

// Store is the part of the remote store the reconciler writes to.
type Store interface {
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
}

// Orders is the owner of local order state. The reconciler never edits
// orders itself; it reads a snapshot and reports outcomes back.
type Orders interface {
	Online() bool
	// OrdersToSync returns local-only and pending orders, oldest first.
	OrdersToSync() []order.Order
	// ApplySyncOutcome records the result of replaying sent.
	ApplySyncOutcome(sent order.Order, out Outcome)
	// RequeueFailed moves failed orders back to pending and returns how many.
	RequeueFailed() int
}

// Outcome is the result of replaying one order.
type Outcome struct {
	Status   order.SyncStatus
	Attempts int
	Err      error
}

type Report struct {
	Attempted int
	Synced    int
	Failed    int
	Deferred  int
}

type Config struct {
	SettleDelay    time.Duration
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		SettleDelay:    time.Second,
		MaxAttempts:    4,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     8 * time.Second,
		AttemptTimeout: 10 * time.Second,
	}
}

// Reconciler replays unsent orders against the remote store once the client
// is online again.
type Reconciler struct {
	store  Store
	orders Orders
	cfg    Config
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	passMu sync.Mutex

	mu    sync.Mutex
	timer *time.Timer
	wg    sync.WaitGroup
}

func New(store Store, orders Orders, cfg Config, logger *log.Logger) *Reconciler {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		store:  store,
		orders: orders,
		cfg:    cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// NotifyOnline schedules a replay pass after the settle delay. Repeated
// notifications within the delay collapse into one pass.
func (r *Reconciler) NotifyOnline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ctx.Err() != nil {
		return
	}
	if r.timer != nil && r.timer.Stop() {
		r.wg.Done()
	}
	r.wg.Add(1)
	var t *time.Timer
	t = time.AfterFunc(r.cfg.SettleDelay, func() {
		defer r.wg.Done()
		r.mu.Lock()
		if r.timer == t {
			r.timer = nil
		}
		r.mu.Unlock()
		if _, err := r.Run(r.ctx); err != nil {
			r.logger.Printf("sync pass: %v", err)
		}
	})
	r.timer = t
}

// NotifyOffline drops a scheduled pass that has not started yet.
func (r *Reconciler) NotifyOffline() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.timer != nil && r.timer.Stop() {
		r.wg.Done()
	}
	r.timer = nil
}

// RetryFailed re-queues failed orders and runs a pass immediately.
func (r *Reconciler) RetryFailed(ctx context.Context) (Report, error) {
	if !r.orders.Online() {
		return Report{}, fmt.Errorf("retry failed orders: %w", remote.ErrNetworkUnavailable)
	}
	n := r.orders.RequeueFailed()
	r.logger.Printf("requeued failed orders count=%d", n)
	return r.Run(ctx)
}

// Run performs one replay pass. Only one pass runs at a time; a second caller
// waits for the first to finish and then scans again.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	r.passMu.Lock()
	defer r.passMu.Unlock()

	var rep Report
	for _, o := range r.orders.OrdersToSync() {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		if !r.orders.Online() {
			r.logger.Printf("sync pass stopped: offline, remaining orders deferred")
			return rep, nil
		}

		rep.Attempted++
		out := r.replay(ctx, o)
		r.orders.ApplySyncOutcome(o, out)

		switch out.Status {
		case order.SyncSynced:
			rep.Synced++
		case order.SyncFailed:
			rep.Failed++
		default:
			rep.Deferred++
		}
		if errors.Is(out.Err, remote.ErrNetworkUnavailable) {
			r.logger.Printf("sync pass stopped: store unreachable, remaining orders deferred")
			break
		}
	}
	if rep.Attempted > 0 {
		r.logger.Printf("sync pass attempted=%d synced=%d failed=%d deferred=%d", rep.Attempted, rep.Synced, rep.Failed, rep.Deferred)
	}
	return rep, nil
}

func (r *Reconciler) replay(ctx context.Context, o order.Order) Outcome {
	attempts := 0
	op := func() (order.Order, error) {
		attempts++
		attemptCtx, cancel := context.WithTimeout(ctx, r.cfg.AttemptTimeout)
		defer cancel()

		out, err := r.store.CreateOrder(attemptCtx, o)
		if err != nil && !remote.IsRetryable(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Printf("replay order=%s attempt=%d retry_in=%s err=%v", o.ID, attempts, next, err)
		}),
	)

	switch {
	case err == nil:
		return Outcome{Status: order.SyncSynced, Attempts: attempts}
	case errors.Is(err, remote.ErrRemoteRejected):
		r.logger.Printf("replay order=%s failed after %d attempts: %v", o.ID, attempts, err)
		return Outcome{Status: order.SyncFailed, Attempts: attempts, Err: err}
	default:
		// Network unavailable or cancelled: the order keeps its current
		// status and is picked up by the next online transition.
		return Outcome{Status: o.SyncStatus, Attempts: attempts, Err: err}
	}
}

// Close cancels scheduled and running passes and waits for them to return.
func (r *Reconciler) Close() {
	r.cancel()
	r.NotifyOffline()
	r.wg.Wait()
}
