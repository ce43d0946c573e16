package remote

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
)

// OrderPatch is a partial order update. Only status fields travel; line items
// are immutable once created.
type OrderPatch struct {
	Status        order.Status        `json:"status"`
	StatusHistory []order.StatusEntry `json:"statusHistory"`
	UpdatedBy     string              `json:"updatedBy,omitempty"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// PatchFor builds the patch that carries o's current status to the remote.
func PatchFor(o order.Order) OrderPatch {
	p := OrderPatch{
		Status:        o.Status,
		StatusHistory: append([]order.StatusEntry(nil), o.StatusHistory...),
		UpdatedAt:     o.UpdatedAt,
	}
	if n := len(o.StatusHistory); n > 0 {
		p.UpdatedBy = o.StatusHistory[n-1].UpdatedBy
	}
	return p
}

// Store is the remote store as seen by the client.
type Store interface {
	ListProducts(ctx context.Context, q Query) (Page[catalog.Product], error)
	ListInventory(ctx context.Context, q Query) (Page[inventory.Record], error)
	ListOrders(ctx context.Context, q Query) (Page[order.Order], error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	// CreateOrder upserts by o.ID; replaying the same order never creates a
	// second record.
	CreateOrder(ctx context.Context, o order.Order) (order.Order, error)
	UpdateOrder(ctx context.Context, id string, patch OrderPatch) (order.Order, error)
}

// HTTPStore talks to a json-server compatible remote store.
type HTTPStore struct {
	c        *Client
	pageSize int
}

func NewHTTPStore(c *Client, defaultPageSize int) *HTTPStore {
	return &HTTPStore{c: c, pageSize: defaultPageSize}
}

func (s *HTTPStore) ListProducts(ctx context.Context, q Query) (Page[catalog.Product], error) {
	return list[catalog.Product](ctx, s, "products", q)
}

func (s *HTTPStore) ListInventory(ctx context.Context, q Query) (Page[inventory.Record], error) {
	return list[inventory.Record](ctx, s, "inventory", q)
}

func (s *HTTPStore) ListOrders(ctx context.Context, q Query) (Page[order.Order], error) {
	return list[order.Order](ctx, s, "orders", q)
}

func (s *HTTPStore) GetOrder(ctx context.Context, id string) (order.Order, error) {
	var o order.Order
	_, err := s.c.Do(ctx, http.MethodGet, "orders/"+url.PathEscape(id), nil, nil, &o)
	return o, err
}

func (s *HTTPStore) CreateOrder(ctx context.Context, o order.Order) (order.Order, error) {
	var out order.Order
	_, err := s.c.Do(ctx, http.MethodPost, "orders", nil, o, &out)
	return out, err
}

func (s *HTTPStore) UpdateOrder(ctx context.Context, id string, patch OrderPatch) (order.Order, error) {
	var out order.Order
	_, err := s.c.Do(ctx, http.MethodPatch, "orders/"+url.PathEscape(id), nil, patch, &out)
	return out, err
}

// Ping asks the remote store for a single product to check that it answers.
func (s *HTTPStore) Ping(ctx context.Context) error {
	_, err := s.c.Do(ctx, http.MethodGet, "products", url.Values{"_limit": {"1"}}, nil, nil)
	return err
}

func list[T any](ctx context.Context, s *HTTPStore, path string, q Query) (Page[T], error) {
	var items []T
	resp, err := s.c.Do(ctx, http.MethodGet, path, q.Values(s.pageSize), nil, &items)
	if err != nil {
		return Page[T]{}, err
	}
	return pageFrom(items, resp.Header), nil
}
