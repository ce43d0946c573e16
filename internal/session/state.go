package session

import (
	"fmt"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/localstore"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/reconcile"
)

// State is everything the POS client knows. Every method is a pure transition
// returning a new State; on error the receiver is returned unchanged.
type State struct {
	Ledger inventory.Ledger
	Cart   cart.Cart
	Orders []order.Order
}

func (s State) AddItem(p catalog.Product, qty int, customs []catalog.Customization, at time.Time) (State, cart.LineItem, error) {
	c, l, li, err := s.Cart.AddItem(s.Ledger, p, qty, customs, at)
	if err != nil {
		return s, cart.LineItem{}, err
	}
	s.Cart, s.Ledger = c, l
	return s, li, nil
}

func (s State) RemoveItem(lineID string) (State, error) {
	c, l, err := s.Cart.RemoveItem(s.Ledger, lineID)
	if err != nil {
		return s, err
	}
	s.Cart, s.Ledger = c, l
	return s, nil
}

func (s State) UpdateQuantity(lineID string, qty int) (State, error) {
	c, l, err := s.Cart.UpdateQuantity(s.Ledger, lineID, qty)
	if err != nil {
		return s, err
	}
	s.Cart, s.Ledger = c, l
	return s, nil
}

func (s State) AddCustomization(lineID, customizationID string) (State, error) {
	c, err := s.Cart.AddCustomization(lineID, customizationID)
	if err != nil {
		return s, err
	}
	s.Cart = c
	return s, nil
}

func (s State) RemoveCustomization(lineID, customizationID string) (State, error) {
	c, err := s.Cart.RemoveCustomization(lineID, customizationID)
	if err != nil {
		return s, err
	}
	s.Cart = c
	return s, nil
}

func (s State) AbandonCart() (State, error) {
	c, l, err := s.Cart.AbandonCart(s.Ledger)
	if err != nil {
		return s, err
	}
	s.Cart, s.Ledger = c, l
	return s, nil
}

// Checkout turns the cart into an order. Stock stays consumed.
func (s State) Checkout(id, actor string, at time.Time, sync order.SyncStatus) (State, order.Order, error) {
	o, err := order.NewFromCart(id, s.Cart, actor, at, sync)
	if err != nil {
		return s, order.Order{}, err
	}
	if s.orderIndex(id) >= 0 {
		return s, order.Order{}, fmt.Errorf("checkout: order %s already exists", id)
	}
	s.Cart = s.Cart.ClearAfterCheckout()
	s.Orders = append(cloneOrders(s.Orders), o)
	return s, o.Clone(), nil
}

// TransitionOrder moves an order to next. A synced order becomes pending
// until the change reaches the remote store; unsent orders keep their sync
// status because their next replay carries the new status anyway.
func (s State) TransitionOrder(id string, next order.Status, actor, note string, at time.Time) (State, order.Order, error) {
	i := s.orderIndex(id)
	if i < 0 {
		return s, order.Order{}, fmt.Errorf("%w: %s", order.ErrNotFound, id)
	}
	o, err := order.Transition(s.Orders[i], next, actor, note, at)
	if err != nil {
		return s, order.Order{}, err
	}
	if o.SyncStatus == order.SyncSynced {
		o.SyncStatus = order.SyncPending
	}
	return s.withOrder(i, o), o.Clone(), nil
}

// ApplySyncOutcome records the result of sending sent to the remote store.
// If the order changed locally while the request was in flight, a success
// only covers the older version and the order stays pending.
func (s State) ApplySyncOutcome(sent order.Order, out reconcile.Outcome) State {
	i := s.orderIndex(sent.ID)
	if i < 0 {
		return s
	}
	cur := s.Orders[i]
	// A concurrent send of the same version already landed.
	if out.Status != order.SyncSynced && cur.SyncStatus == order.SyncSynced && !cur.UpdatedAt.After(sent.UpdatedAt) {
		return s
	}
	o := cur.Clone()
	o.SyncAttempts += out.Attempts
	o.LastSyncError = ""
	if out.Err != nil {
		o.LastSyncError = out.Err.Error()
	}
	status := out.Status
	if status == order.SyncSynced && o.UpdatedAt.After(sent.UpdatedAt) {
		status = order.SyncPending
	}
	o.SyncStatus = status
	return s.withOrder(i, o)
}

// RequeueFailed marks every failed order pending again.
func (s State) RequeueFailed() (State, int) {
	n := 0
	orders := cloneOrders(s.Orders)
	for i := range orders {
		if orders[i].SyncStatus == order.SyncFailed {
			orders[i].SyncStatus = order.SyncPending
			n++
		}
	}
	if n == 0 {
		return s, 0
	}
	s.Orders = orders
	return s, n
}

// ReplaceOrders installs a remote snapshot of the order collection
// (last writer wins). Local orders that never reached the remote store are
// kept, as are local changes newer than the remote copy that are still
// waiting to be sent.
func (s State) ReplaceOrders(remote []order.Order) State {
	local := make(map[string]order.Order, len(s.Orders))
	for _, o := range s.Orders {
		local[o.ID] = o
	}

	out := make([]order.Order, 0, len(remote)+len(s.Orders))
	seen := make(map[string]struct{}, len(remote))
	for _, r := range remote {
		if r.ID == "" {
			continue
		}
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		if l, ok := local[r.ID]; ok && l.SyncStatus != order.SyncSynced && l.UpdatedAt.After(r.UpdatedAt) {
			out = append(out, l.Clone())
			continue
		}
		r = r.Clone()
		r.SyncStatus = order.SyncSynced
		r.LastSyncError = ""
		out = append(out, r)
	}
	for _, l := range s.Orders {
		if _, ok := seen[l.ID]; ok {
			continue
		}
		if l.SyncStatus != order.SyncSynced {
			out = append(out, l.Clone())
		}
	}
	order.SortByCreation(out)
	s.Orders = out
	return s
}

// LoadInventory replaces the ledger with remote records and re-applies the
// open cart's reservations on top. Lines the remote stock can no longer cover
// are reported and shrunk to what could be withheld, so the cart never holds
// more than the ledger set aside for it.
func (s State) LoadInventory(records []inventory.Record) (State, []inventory.DepletedLine, error) {
	l, err := s.Ledger.LoadFromRemote(records)
	if err != nil {
		return s, nil, err
	}
	l, granted, depleted := l.ApplyReservations(s.Cart.Reservations())
	s.Ledger = l
	s.Cart = s.Cart.ShrinkTo(granted)
	return s, depleted, nil
}

// ClearHistory drops finished orders that the remote store already has.
// Unsent orders are never dropped.
func (s State) ClearHistory() (State, int) {
	kept := make([]order.Order, 0, len(s.Orders))
	for _, o := range s.Orders {
		if order.IsFinal(o.Status) && o.SyncStatus == order.SyncSynced {
			continue
		}
		kept = append(kept, o.Clone())
	}
	removed := len(s.Orders) - len(kept)
	s.Orders = kept
	return s, removed
}

func (s State) Order(id string) (order.Order, bool) {
	i := s.orderIndex(id)
	if i < 0 {
		return order.Order{}, false
	}
	return s.Orders[i].Clone(), true
}

// Snapshot converts s into its persisted form.
func (s State) Snapshot(at time.Time) localstore.Snapshot {
	return localstore.Snapshot{
		Inventory: s.Ledger.Records(),
		Cart:      s.Cart,
		Orders:    cloneOrders(s.Orders),
		SavedAt:   at,
	}
}

// FromSnapshot rebuilds a State from its persisted form.
func FromSnapshot(snap localstore.Snapshot) (State, error) {
	l, err := inventory.NewLedger(snap.Inventory)
	if err != nil {
		return State{}, err
	}
	orders := cloneOrders(snap.Orders)
	order.SortByCreation(orders)
	return State{Ledger: l, Cart: snap.Cart, Orders: orders}, nil
}

func (s State) orderIndex(id string) int {
	for i, o := range s.Orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (s State) withOrder(i int, o order.Order) State {
	orders := cloneOrders(s.Orders)
	orders[i] = o
	s.Orders = orders
	return s
}

func cloneOrders(orders []order.Order) []order.Order {
	out := make([]order.Order, len(orders))
	for i, o := range orders {
		out[i] = o.Clone()
	}
	return out
}
