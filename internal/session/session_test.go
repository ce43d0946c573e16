package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/localstore"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/reconcile"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

var (
	burger = catalog.Product{
		ID: "burger", Name: "Burger", Price: 800, Category: "mains", IsAvailable: true,
		Customizations: []catalog.Customization{{ID: "cheese", Label: "Extra cheese", Price: 100}},
	}
	fries = catalog.Product{ID: "fries", Name: "Fries", Price: 300, Category: "sides", IsAvailable: true}
)

// fakeStore is an in-memory remote.Store that upserts orders by id.
type fakeStore struct {
	mu        sync.Mutex
	orders    map[string]order.Order
	inventory []inventory.Record
	creates   int
	patches   int
	err       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{orders: map[string]order.Order{}}
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

func (f *fakeStore) get(id string) (order.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	return o, ok
}

func (f *fakeStore) ListProducts(context.Context, remote.Query) (remote.Page[catalog.Product], error) {
	return remote.Page[catalog.Product]{Items: []catalog.Product{burger, fries}, Total: 2}, nil
}

func (f *fakeStore) ListInventory(_ context.Context, q remote.Query) (remote.Page[inventory.Record], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return remote.Page[inventory.Record]{}, f.err
	}
	return page(f.inventory, q), nil
}

func (f *fakeStore) ListOrders(_ context.Context, q remote.Query) (remote.Page[order.Order], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return remote.Page[order.Order]{}, f.err
	}
	all := make([]order.Order, 0, len(f.orders))
	for _, o := range f.orders {
		all = append(all, o.Clone())
	}
	order.SortByCreation(all)
	return page(all, q), nil
}

func (f *fakeStore) GetOrder(_ context.Context, id string) (order.Order, error) {
	o, ok := f.get(id)
	if !ok {
		return order.Order{}, &remote.StatusError{Code: http.StatusNotFound}
	}
	return o, nil
}

func (f *fakeStore) CreateOrder(_ context.Context, o order.Order) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.err != nil {
		return order.Order{}, f.err
	}
	o = o.Clone()
	o.SyncStatus = order.SyncSynced
	f.orders[o.ID] = o
	return o, nil
}

func (f *fakeStore) UpdateOrder(_ context.Context, id string, p remote.OrderPatch) (order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches++
	if f.err != nil {
		return order.Order{}, f.err
	}
	o, ok := f.orders[id]
	if !ok {
		return order.Order{}, &remote.StatusError{Code: http.StatusNotFound}
	}
	o.Status = p.Status
	o.StatusHistory = p.StatusHistory
	o.UpdatedAt = p.UpdatedAt
	f.orders[id] = o
	return o, nil
}

func page[T any](all []T, q remote.Query) remote.Page[T] {
	if q.Page <= 0 || q.Limit <= 0 {
		return remote.Page[T]{Items: all, Total: len(all)}
	}
	start := (q.Page - 1) * q.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return remote.Page[T]{Items: all[start:end], Total: len(all), HasNext: end < len(all), HasPrev: start > 0}
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func newSession(t *testing.T, store remote.Store, p Persister) *Session {
	t.Helper()
	clk := &clock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	var idMu sync.Mutex
	s := New(store, Options{
		Actor:    "pos",
		PageSize: 2,
		Sync: reconcile.Config{
			SettleDelay:    5 * time.Millisecond,
			MaxAttempts:    2,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     time.Millisecond,
		},
		Logger:    log.New(io.Discard, "", 0),
		Persister: p,
		Now:       clk.now,
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			n++
			return fmt.Sprintf("00000000-0000-0000-0000-%012d", n)
		},
	})
	t.Cleanup(s.Close)
	return s
}

func seedLedger(t *testing.T, s *Session, records ...inventory.Record) {
	t.Helper()
	l, err := inventory.NewLedger(records)
	require.NoError(t, err)
	s.mu.Lock()
	s.state.Ledger = l
	s.mu.Unlock()
}

// goOnline flips connectivity without scheduling a replay pass.
func goOnline(s *Session) {
	s.mu.Lock()
	s.online = true
	s.mu.Unlock()
}

func TestCheckoutOffline(t *testing.T) {
	store := newFakeStore()
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5}, inventory.Record{ProductID: "fries", Available: 10})

	_, err := s.AddItem(burger, 2, []catalog.Customization{{ID: "cheese"}})
	require.NoError(t, err)
	_, err = s.AddItem(fries, 1, nil)
	require.NoError(t, err)
	total := s.Cart().Total()

	o, err := s.Checkout()
	require.NoError(t, err)
	s.Wait()

	assert.True(t, s.Cart().IsEmpty())
	assert.Equal(t, total, o.TotalAmount)
	assert.Equal(t, int64(2100), o.TotalAmount)
	assert.Equal(t, order.StatusPreparing, o.Status)
	assert.Equal(t, order.SyncLocalOnly, o.SyncStatus)
	assert.True(t, o.OfflineCreated)
	require.Len(t, s.Orders(), 1)
	assert.Equal(t, 3, s.Ledger().Available("burger"), "checkout keeps stock consumed")
	assert.Zero(t, store.count())
}

func TestCheckoutOnlinePushes(t *testing.T) {
	store := newFakeStore()
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})
	goOnline(s)

	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)
	assert.Equal(t, order.SyncPending, o.SyncStatus)
	s.Wait()

	got, err := s.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SyncSynced, got.SyncStatus)
	assert.Equal(t, 1, got.SyncAttempts)
	remoteCopy, ok := store.get(o.ID)
	require.True(t, ok)
	assert.Equal(t, o.TotalAmount, remoteCopy.TotalAmount)
}

func TestCheckoutOnlineFailureStaysPending(t *testing.T) {
	store := newFakeStore()
	store.setErr(&remote.StatusError{Code: http.StatusInternalServerError})
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})
	goOnline(s)

	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)
	s.Wait()

	got, err := s.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SyncPending, got.SyncStatus)
	assert.NotEmpty(t, got.LastSyncError)
	assert.Equal(t, 1, s.PendingCount())
}

func TestCheckoutEmptyCart(t *testing.T) {
	s := newSession(t, newFakeStore(), nil)
	_, err := s.Checkout()
	require.Error(t, err)
	assert.Empty(t, s.Orders())
}

func TestOfflineOrderSyncsOnceWhenOnline(t *testing.T) {
	store := newFakeStore()
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})

	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)
	require.Equal(t, order.SyncLocalOnly, o.SyncStatus)

	s.SetOnline(true)
	require.Eventually(t, func() bool {
		got, _ := s.Order(o.ID)
		return got.SyncStatus == order.SyncSynced
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, store.count())

	s.SetOnline(false)
	s.SetOnline(true)
	time.Sleep(50 * time.Millisecond)
	rep, err := s.SyncNow(context.Background())
	require.NoError(t, err)

	assert.Zero(t, rep.Attempted)
	assert.Equal(t, 1, store.count())
}

func TestReplayMarksFailedAfterBudget(t *testing.T) {
	store := newFakeStore()
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})
	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)

	store.setErr(&remote.StatusError{Code: http.StatusServiceUnavailable})
	goOnline(s)

	rep, err := s.SyncNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	got, _ := s.Order(o.ID)
	assert.Equal(t, order.SyncFailed, got.SyncStatus)
	assert.Equal(t, 2, got.SyncAttempts)

	store.setErr(nil)
	rep, err = s.RetryFailed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Synced)
	got, _ = s.Order(o.ID)
	assert.Equal(t, order.SyncSynced, got.SyncStatus)
}

func TestTransitionOrderPatchesSyncedOrder(t *testing.T) {
	store := newFakeStore()
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})
	goOnline(s)
	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)
	s.Wait()

	updated, err := s.TransitionOrder(o.ID, order.StatusReady, "")
	require.NoError(t, err)
	assert.Equal(t, order.SyncPending, updated.SyncStatus)
	s.Wait()

	got, _ := s.Order(o.ID)
	assert.Equal(t, order.StatusReady, got.Status)
	assert.Equal(t, order.SyncSynced, got.SyncStatus)
	remoteCopy, _ := store.get(o.ID)
	assert.Equal(t, order.StatusReady, remoteCopy.Status)
	assert.Len(t, remoteCopy.StatusHistory, 2)
	assert.Equal(t, 1, store.patches)
}

func TestTransitionOrderRejected(t *testing.T) {
	s := newSession(t, newFakeStore(), nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})
	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)

	_, err = s.TransitionOrder(o.ID, order.StatusPending, "")
	require.ErrorIs(t, err, order.ErrInvalidTransition)
	got, _ := s.Order(o.ID)
	assert.Equal(t, o, got)

	_, err = s.TransitionOrder("missing", order.StatusReady, "")
	require.ErrorIs(t, err, order.ErrNotFound)
}

func TestRefreshInventoryKeepsCartReservations(t *testing.T) {
	store := newFakeStore()
	store.inventory = []inventory.Record{
		{ProductID: "burger", Available: 2},
		{ProductID: "fries", Available: 10},
		{ProductID: "soda", Available: 7},
	}
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5}, inventory.Record{ProductID: "fries", Available: 5})
	_, err := s.AddItem(burger, 3, nil)
	require.NoError(t, err)
	_, err = s.AddItem(fries, 1, nil)
	require.NoError(t, err)

	_, err = s.RefreshInventory(context.Background())
	require.ErrorIs(t, err, remote.ErrNetworkUnavailable)

	goOnline(s)
	depleted, err := s.RefreshInventory(context.Background())
	require.NoError(t, err)

	require.Len(t, depleted, 1)
	assert.Equal(t, inventory.DepletedLine{ProductID: "burger", Requested: 3, Available: 2}, depleted[0])
	l := s.Ledger()
	assert.Zero(t, l.Available("burger"))
	assert.Equal(t, 9, l.Available("fries"))
	assert.Equal(t, 7, l.Available("soda"), "second page loaded")

	lines := s.Cart().Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, 2, lines[0].Quantity, "line shrunk to the stock withheld for it")
	assert.Equal(t, int64(1600), lines[0].TotalPrice)

	require.NoError(t, s.AbandonCart())
	l = s.Ledger()
	assert.Equal(t, 2, l.Available("burger"), "abandon returns only what was withheld")
	assert.Equal(t, 10, l.Available("fries"))
}

func TestRefreshOrdersLastWriterWins(t *testing.T) {
	store := newFakeStore()
	s := newSession(t, store, nil)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})

	_, err := s.AddItem(burger, 1, nil)
	require.NoError(t, err)
	local, err := s.Checkout()
	require.NoError(t, err)

	kitchen := order.Order{
		ID: "kitchen-1", Status: order.StatusReady, SyncStatus: order.SyncSynced,
		CreatedAt: time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC),
	}
	store.orders[kitchen.ID] = kitchen

	goOnline(s)
	require.NoError(t, s.RefreshOrders(context.Background()))

	orders := s.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "kitchen-1", orders[0].ID)
	assert.Equal(t, local.ID, orders[1].ID)
	assert.Equal(t, order.SyncLocalOnly, orders[1].SyncStatus, "unsent local order kept")
}

func TestClearHistoryKeepsUnsentOrders(t *testing.T) {
	s := newSession(t, newFakeStore(), nil)
	s.mu.Lock()
	s.state.Orders = []order.Order{
		{ID: "a", Status: order.StatusDelivered, SyncStatus: order.SyncSynced},
		{ID: "b", Status: order.StatusDelivered, SyncStatus: order.SyncLocalOnly},
		{ID: "c", Status: order.StatusReady, SyncStatus: order.SyncSynced},
	}
	s.mu.Unlock()

	assert.Equal(t, 1, s.ClearHistory())
	ids := []string{}
	for _, o := range s.Orders() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []string{"b", "c"}, ids)
}

func TestPersistAndRestore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")
	ls, err := localstore.Open(ctx, path)
	require.NoError(t, err)
	defer ls.Close()

	s := newSession(t, newFakeStore(), ls)
	seedLedger(t, s, inventory.Record{ProductID: "burger", Available: 5})
	_, err = s.AddItem(burger, 2, nil)
	require.NoError(t, err)
	o, err := s.Checkout()
	require.NoError(t, err)
	_, err = s.AddItem(burger, 1, nil)
	require.NoError(t, err)

	restored := newSession(t, newFakeStore(), ls)
	require.NoError(t, restored.Restore(ctx))

	assert.Equal(t, 2, restored.Ledger().Available("burger"))
	assert.Equal(t, 1, restored.Cart().ItemCount())
	got, err := restored.Order(o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.SyncLocalOnly, got.SyncStatus)
}

type corruptPersister struct {
	saved []localstore.Snapshot
}

func (c *corruptPersister) Load(context.Context) (localstore.Snapshot, bool, error) {
	return localstore.Snapshot{}, true, fmt.Errorf("%w: unexpected end of JSON input", localstore.ErrDataCorruption)
}

func (c *corruptPersister) Save(_ context.Context, snap localstore.Snapshot) error {
	c.saved = append(c.saved, snap)
	return nil
}

func (c *corruptPersister) RecordSync(context.Context, localstore.SyncRecord) error {
	return errors.New("not supported")
}

func TestRestoreCorruptionResetsToEmpty(t *testing.T) {
	p := &corruptPersister{}
	s := newSession(t, newFakeStore(), p)

	err := s.Restore(context.Background())
	require.ErrorIs(t, err, localstore.ErrDataCorruption)

	st := s.State()
	assert.True(t, st.Cart.IsEmpty())
	assert.Empty(t, st.Orders)
	assert.Empty(t, st.Ledger.Records())
	require.Len(t, p.saved, 1, "reset is persisted")
	assert.Empty(t, p.saved[0].Orders)
}

func TestApplySyncOutcome(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	sent := order.Order{ID: "o1", Status: order.StatusPreparing, SyncStatus: order.SyncPending, CreatedAt: at, UpdatedAt: at}
	offline := fmt.Errorf("%w: connection refused", remote.ErrNetworkUnavailable)

	tests := map[string]struct {
		current order.SyncStatus
		edited  bool
		out     reconcile.Outcome
		want    order.SyncStatus
	}{
		"success marks synced": {
			current: order.SyncPending, out: reconcile.Outcome{Status: order.SyncSynced, Attempts: 1}, want: order.SyncSynced,
		},
		"success for an older version stays pending": {
			current: order.SyncPending, edited: true, out: reconcile.Outcome{Status: order.SyncSynced, Attempts: 1}, want: order.SyncPending,
		},
		"network failure leaves status": {
			current: order.SyncPending, out: reconcile.Outcome{Status: order.SyncPending, Attempts: 1, Err: offline}, want: order.SyncPending,
		},
		"late failure keeps a concurrent success": {
			current: order.SyncSynced, out: reconcile.Outcome{Status: order.SyncPending, Attempts: 1, Err: offline}, want: order.SyncSynced,
		},
		"late rejection keeps a concurrent success": {
			current: order.SyncSynced, out: reconcile.Outcome{Status: order.SyncFailed, Attempts: 1, Err: remote.ErrRemoteRejected}, want: order.SyncSynced,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cur := sent
			cur.SyncStatus = tt.current
			if tt.edited {
				cur.UpdatedAt = at.Add(time.Minute)
			}
			st := State{Orders: []order.Order{cur}}

			got, ok := st.ApplySyncOutcome(sent, tt.out).Order("o1")
			require.True(t, ok)
			assert.Equal(t, tt.want, got.SyncStatus)
		})
	}
}
