// Package session owns the POS client's state and serialises every change to
// it. User actions are applied as pure State transitions under one mutex;
// network work runs in the background and reports back through the same
// mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/localstore"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/reconcile"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

// Persister stores session snapshots. *localstore.Store implements it.
type Persister interface {
	Load(ctx context.Context) (localstore.Snapshot, bool, error)
	Save(ctx context.Context, snap localstore.Snapshot) error
	RecordSync(ctx context.Context, rec localstore.SyncRecord) error
}

type Options struct {
	Actor          string
	PageSize       int
	RequestTimeout time.Duration
	Sync           reconcile.Config
	Logger         *log.Logger
	Persister      Persister

	Now   func() time.Time
	NewID func() string
}

type Session struct {
	store   remote.Store
	persist Persister
	rec     *reconcile.Reconciler
	logger  *log.Logger

	actor    string
	pageSize int
	timeout  time.Duration
	now      func() time.Time
	newID    func() string

	mu     sync.Mutex
	state  State
	online bool

	// pushMu keeps at most one order push in flight so the remote store
	// always ends with the newest local version.
	pushMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(store remote.Store, opts Options) *Session {
	if opts.Actor == "" {
		opts.Actor = "pos"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 20
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Sync.AttemptTimeout <= 0 {
		opts.Sync.AttemptTimeout = opts.RequestTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		store:    store,
		persist:  opts.Persister,
		logger:   opts.Logger,
		actor:    opts.Actor,
		pageSize: opts.PageSize,
		timeout:  opts.RequestTimeout,
		now:      opts.Now,
		newID:    opts.NewID,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.rec = reconcile.New(store, s, opts.Sync, opts.Logger)
	return s
}

// Restore loads the persisted snapshot. A corrupted snapshot resets the
// session to the empty state, persists the reset and returns an error
// matching localstore.ErrDataCorruption.
func (s *Session) Restore(ctx context.Context) error {
	if s.persist == nil {
		return nil
	}
	snap, found, err := s.persist.Load(ctx)
	if errors.Is(err, localstore.ErrDataCorruption) {
		s.logger.Printf("local state corrupted, starting empty: %v", err)
		s.mu.Lock()
		s.state = State{}
		s.persistLocked()
		s.mu.Unlock()
		return err
	}
	if err != nil {
		return err
	}
	if !found {
		return nil
	}
	st, err := FromSnapshot(snap)
	if err != nil {
		return fmt.Errorf("%w: %v", localstore.ErrDataCorruption, err)
	}
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.logger.Printf("restored state orders=%d cart_lines=%d", len(st.Orders), st.Cart.Len())
	return nil
}

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{Ledger: s.state.Ledger, Cart: s.state.Cart, Orders: cloneOrders(s.state.Orders)}
}

func (s *Session) Cart() cart.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Cart
}

func (s *Session) Ledger() inventory.Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Ledger
}

// Orders returns every known order, oldest first.
func (s *Session) Orders() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneOrders(s.state.Orders)
}

func (s *Session) Order(id string) (order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.state.Order(id)
	if !ok {
		return order.Order{}, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	return o, nil
}

func (s *Session) Statistics() order.Statistics {
	return order.ComputeStatistics(s.Orders())
}

// apply runs fn under the mutex and commits its result when fn succeeds.
func (s *Session) apply(fn func(State) (State, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := fn(s.state)
	if err != nil {
		return err
	}
	s.state = next
	s.persistLocked()
	return nil
}

func (s *Session) AddItem(p catalog.Product, qty int, customs []catalog.Customization) (cart.LineItem, error) {
	var li cart.LineItem
	err := s.apply(func(st State) (State, error) {
		next, added, err := st.AddItem(p, qty, customs, s.now())
		li = added
		return next, err
	})
	return li, err
}

func (s *Session) RemoveItem(lineID string) error {
	return s.apply(func(st State) (State, error) { return st.RemoveItem(lineID) })
}

func (s *Session) UpdateQuantity(lineID string, qty int) error {
	return s.apply(func(st State) (State, error) { return st.UpdateQuantity(lineID, qty) })
}

func (s *Session) AddCustomization(lineID, customizationID string) error {
	return s.apply(func(st State) (State, error) { return st.AddCustomization(lineID, customizationID) })
}

func (s *Session) RemoveCustomization(lineID, customizationID string) error {
	return s.apply(func(st State) (State, error) { return st.RemoveCustomization(lineID, customizationID) })
}

func (s *Session) AbandonCart() error {
	return s.apply(func(st State) (State, error) { return st.AbandonCart() })
}

// Checkout places the cart as a new order. Offline the order is kept
// local-only; online it is pending and pushed in the background.
func (s *Session) Checkout() (order.Order, error) {
	s.mu.Lock()
	status := order.SyncLocalOnly
	if s.online {
		status = order.SyncPending
	}
	next, o, err := s.state.Checkout(s.newID(), s.actor, s.now(), status)
	if err != nil {
		s.mu.Unlock()
		return order.Order{}, err
	}
	s.state = next
	s.persistLocked()
	online := s.online
	s.mu.Unlock()

	s.logger.Printf("checkout order=%s total=%d sync=%s", o.ID, o.TotalAmount, o.SyncStatus)
	if online {
		s.goPush(o.ID, false)
	}
	return o, nil
}

// TransitionOrder moves an order through the status machine and, when
// online, sends the change to the remote store in the background.
func (s *Session) TransitionOrder(id string, next order.Status, note string) (order.Order, error) {
	s.mu.Lock()
	prev, _ := s.state.Order(id)
	st, o, err := s.state.TransitionOrder(id, next, s.actor, note, s.now())
	if err != nil {
		s.mu.Unlock()
		return order.Order{}, err
	}
	s.state = st
	s.persistLocked()
	online := s.online
	s.mu.Unlock()

	s.logger.Printf("order=%s status %s -> %s", id, prev.Status, o.Status)
	if online && o.SyncStatus == order.SyncPending {
		s.goPush(id, prev.SyncStatus == order.SyncSynced)
	}
	return o, nil
}

func (s *Session) goPush(id string, patch bool) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.push(id, patch)
	}()
}

// push sends the current version of an order once. Failures leave the order
// pending for the reconciler.
func (s *Session) push(id string, patch bool) {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	s.mu.Lock()
	o, ok := s.state.Order(id)
	online := s.online
	s.mu.Unlock()
	if !ok || !online || o.SyncStatus != order.SyncPending {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	var err error
	if patch {
		_, err = s.store.UpdateOrder(ctx, o.ID, remote.PatchFor(o))
		var se *remote.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			_, err = s.store.CreateOrder(ctx, o)
		}
	} else {
		_, err = s.store.CreateOrder(ctx, o)
	}

	out := reconcile.Outcome{Status: order.SyncSynced, Attempts: 1}
	if err != nil {
		s.logger.Printf("push order=%s: %v", o.ID, err)
		out = reconcile.Outcome{Status: order.SyncPending, Attempts: 1, Err: err}
	}
	s.ApplySyncOutcome(o, out)
}

// SetOnline records connectivity. Going online schedules a replay of unsent
// orders after the settle delay.
func (s *Session) SetOnline(online bool) {
	s.mu.Lock()
	was := s.online
	s.online = online
	s.mu.Unlock()
	if was == online {
		return
	}
	s.logger.Printf("connectivity online=%t", online)
	if online {
		s.rec.NotifyOnline()
	} else {
		s.rec.NotifyOffline()
	}
}

// Online implements reconcile.Orders.
func (s *Session) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// OrdersToSync implements reconcile.Orders.
func (s *Session) OrdersToSync() []order.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return order.BySyncStatus(s.state.Orders, order.SyncLocalOnly, order.SyncPending)
}

// ApplySyncOutcome implements reconcile.Orders.
func (s *Session) ApplySyncOutcome(sent order.Order, out reconcile.Outcome) {
	s.mu.Lock()
	s.state = s.state.ApplySyncOutcome(sent, out)
	s.persistLocked()
	s.mu.Unlock()

	if s.persist == nil {
		return
	}
	rec := localstore.SyncRecord{OrderID: sent.ID, SyncStatus: out.Status, Attempts: out.Attempts, RecordedAt: s.now()}
	if out.Err != nil {
		rec.Error = out.Err.Error()
	}
	if err := s.persist.RecordSync(s.ctx, rec); err != nil {
		s.logger.Printf("record sync order=%s: %v", sent.ID, err)
	}
}

// RequeueFailed implements reconcile.Orders.
func (s *Session) RequeueFailed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, n := s.state.RequeueFailed()
	if n > 0 {
		s.state = next
		s.persistLocked()
	}
	return n
}

// PendingCount is the number of orders not yet confirmed by the remote store.
func (s *Session) PendingCount() int {
	return len(s.OrdersToSync())
}

// SyncNow runs a replay pass immediately.
func (s *Session) SyncNow(ctx context.Context) (reconcile.Report, error) {
	if !s.Online() {
		return reconcile.Report{}, fmt.Errorf("sync: %w", remote.ErrNetworkUnavailable)
	}
	return s.rec.Run(ctx)
}

// RetryFailed re-queues failed orders and replays them.
func (s *Session) RetryFailed(ctx context.Context) (reconcile.Report, error) {
	return s.rec.RetryFailed(ctx)
}

// RefreshInventory reloads stock from the remote store, keeping the open
// cart's reservations. Cart lines the new stock cannot cover are returned.
func (s *Session) RefreshInventory(ctx context.Context) ([]inventory.DepletedLine, error) {
	if !s.Online() {
		return nil, fmt.Errorf("refresh inventory: %w", remote.ErrNetworkUnavailable)
	}
	records, err := fetchAll(ctx, s.pageSize, s.store.ListInventory)
	if err != nil {
		return nil, fmt.Errorf("refresh inventory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, depleted, err := s.state.LoadInventory(records)
	if err != nil {
		return nil, fmt.Errorf("refresh inventory: %w", err)
	}
	s.state = next
	s.persistLocked()
	if len(depleted) > 0 {
		s.logger.Printf("inventory refresh: %d cart lines exceed remote stock", len(depleted))
	}
	return depleted, nil
}

// RefreshOrders replaces the order collection with the remote one.
func (s *Session) RefreshOrders(ctx context.Context) error {
	if !s.Online() {
		return fmt.Errorf("refresh orders: %w", remote.ErrNetworkUnavailable)
	}
	orders, err := fetchAll(ctx, s.pageSize, s.store.ListOrders)
	if err != nil {
		return fmt.Errorf("refresh orders: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = s.state.ReplaceOrders(orders)
	s.persistLocked()
	return nil
}

// Products returns one page of the remote catalog.
func (s *Session) Products(ctx context.Context, q remote.Query) (remote.Page[catalog.Product], error) {
	if !s.Online() {
		return remote.Page[catalog.Product]{}, fmt.Errorf("list products: %w", remote.ErrNetworkUnavailable)
	}
	return s.store.ListProducts(ctx, q)
}

// ClearHistory drops finished, synced orders and returns how many were removed.
func (s *Session) ClearHistory() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, n := s.state.ClearHistory()
	s.state = next
	s.persistLocked()
	return n
}

// Wait blocks until background pushes have finished.
func (s *Session) Wait() { s.wg.Wait() }

func (s *Session) Close() {
	s.rec.Close()
	s.cancel()
	s.wg.Wait()
}

func (s *Session) persistLocked() {
	if s.persist == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.persist.Save(ctx, s.state.Snapshot(s.now())); err != nil {
		s.logger.Printf("persist state: %v", err)
	}
}

func fetchAll[T any](ctx context.Context, pageSize int, list func(context.Context, remote.Query) (remote.Page[T], error)) ([]T, error) {
	var out []T
	for page := 1; ; page++ {
		p, err := list(ctx, remote.Query{Page: page, Limit: pageSize})
		if err != nil {
			return nil, err
		}
		out = append(out, p.Items...)
		if !p.HasNext || len(p.Items) == 0 {
			return out, nil
		}
	}
}
