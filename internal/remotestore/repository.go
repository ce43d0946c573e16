package remotestore

import (
	"context"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

type Repository interface {
	ListProducts(ctx context.Context, p ListParams) ([]catalog.Product, int, error)
	ListInventory(ctx context.Context, p ListParams) ([]inventory.Record, int, error)
	ListOrders(ctx context.Context, p ListParams) ([]order.Order, int, error)
	GetOrder(ctx context.Context, id string) (order.Order, error)
	// UpsertOrder creates o or replaces the stored copy if o is newer.
	UpsertOrder(ctx context.Context, o order.Order) (WriteResult, error)
	PatchOrder(ctx context.Context, id string, p remote.OrderPatch) (WriteResult, error)
}

// MemoryRepository keeps everything in process memory. It backs tests and
// the store when no database is configured.
type MemoryRepository struct {
	mu        sync.RWMutex
	products  []catalog.Product
	inventory []inventory.Record
	orders    map[string]order.Order
	now       func() time.Time
}

func NewMemoryRepository(products []catalog.Product, stock []inventory.Record) *MemoryRepository {
	r := &MemoryRepository{
		orders: map[string]order.Order{},
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, p := range products {
		r.products = append(r.products, p.Clone())
	}
	r.inventory = append(r.inventory, stock...)
	return r
}

func (r *MemoryRepository) ListProducts(_ context.Context, p ListParams) ([]catalog.Product, int, error) {
	if err := productResource.validate(p); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	page, total := productResource.apply(r.products, p)
	out := make([]catalog.Product, len(page))
	for i, pr := range page {
		out[i] = pr.Clone()
	}
	return out, total, nil
}

func (r *MemoryRepository) ListInventory(_ context.Context, p ListParams) ([]inventory.Record, int, error) {
	if err := inventoryResource.validate(p); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	page, total := inventoryResource.apply(r.inventory, p)
	return append([]inventory.Record(nil), page...), total, nil
}

func (r *MemoryRepository) ListOrders(_ context.Context, p ListParams) ([]order.Order, int, error) {
	if err := orderResource.validate(p); err != nil {
		return nil, 0, err
	}
	r.mu.RLock()
	all := make([]order.Order, 0, len(r.orders))
	for _, o := range r.orders {
		all = append(all, o.Clone())
	}
	r.mu.RUnlock()

	order.SortByCreation(all)
	page, total := orderResource.apply(all, p)
	return page, total, nil
}

func (r *MemoryRepository) GetOrder(_ context.Context, id string) (order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return order.Order{}, ErrNotFound
	}
	return o.Clone(), nil
}

func (r *MemoryRepository) UpsertOrder(_ context.Context, o order.Order) (WriteResult, error) {
	if err := validateOrder(o); err != nil {
		return WriteResult{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, found := r.orders[o.ID]
	res := mergeUpsert(existing, found, o)
	if res.Changed {
		r.orders[o.ID] = res.Order.Clone()
	}
	return res, nil
}

func (r *MemoryRepository) PatchOrder(_ context.Context, id string, p remote.OrderPatch) (WriteResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.orders[id]
	if !ok {
		return WriteResult{}, ErrNotFound
	}
	res, err := applyPatch(cur, p, r.now())
	if err != nil {
		return WriteResult{}, err
	}
	if res.Changed {
		r.orders[id] = res.Order.Clone()
	}
	return res, nil
}

// OrderCount is the number of stored orders.
func (r *MemoryRepository) OrderCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}
