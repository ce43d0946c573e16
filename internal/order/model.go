package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/cart"
)

// StatusEntry is one row of an order's append-only status log.
type StatusEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy"`
	Notes     string    `json:"notes,omitempty"`
}

type Order struct {
	ID                  string          `json:"id"`
	DisplayID           string          `json:"orderId"`
	Items               []cart.LineItem `json:"items"`
	TotalAmount         int64           `json:"totalAmount"`
	Status              Status          `json:"status"`
	StatusHistory       []StatusEntry   `json:"statusHistory"`
	EstimatedCompletion time.Time       `json:"estimatedCompletion"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
	SyncStatus          SyncStatus      `json:"syncStatus"`
	OfflineCreated      bool            `json:"offlineCreated,omitempty"`
	SyncAttempts        int             `json:"syncAttempts,omitempty"`
	LastSyncError       string          `json:"lastSyncError,omitempty"`
}

// Clone returns a deep copy; orders handed out of the session never share
// slices with its state.
func (o Order) Clone() Order {
	cp := o
	cp.Items = make([]cart.LineItem, len(o.Items))
	for i, li := range o.Items {
		cp.Items[i] = li.Clone()
	}
	cp.StatusHistory = append([]StatusEntry(nil), o.StatusHistory...)
	return cp
}

// ItemCount is the number of units ordered.
func (o Order) ItemCount() int {
	n := 0
	for _, li := range o.Items {
		n += li.Quantity
	}
	return n
}

// DisplayIDFor derives the short id shown on tickets and the kitchen board.
func DisplayIDFor(id string) string {
	short := strings.ReplaceAll(id, "-", "")
	if len(short) > 8 {
		short = short[:8]
	}
	return "ORD-" + strings.ToUpper(short)
}

// NewFromCart builds the order produced by a checkout. Lines are deep-copied
// and the total is taken from the cart at this instant.
func NewFromCart(id string, c cart.Cart, actor string, at time.Time, sync SyncStatus) (Order, error) {
	if c.IsEmpty() {
		return Order{}, cart.ErrEmptyCart
	}
	if id == "" {
		return Order{}, fmt.Errorf("order id is required")
	}
	at = at.UTC()
	o := Order{
		ID:          id,
		DisplayID:   DisplayIDFor(id),
		Items:       c.Lines(),
		TotalAmount: c.Total(),
		Status:      StatusPreparing,
		StatusHistory: []StatusEntry{{
			Status:    StatusPreparing,
			Timestamp: at,
			UpdatedBy: actor,
			Notes:     "Order placed at checkout",
		}},
		EstimatedCompletion: EstimatedCompletion(StatusPreparing, at),
		CreatedAt:           at,
		UpdatedAt:           at,
		SyncStatus:          sync,
		OfflineCreated:      sync == SyncLocalOnly,
	}
	return o, nil
}
