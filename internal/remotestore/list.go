package remotestore

import (
	"cmp"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
)

// ListParams is a parsed list request. Limit 0 means no limit.
type ListParams struct {
	Offset  int
	Limit   int
	Filters map[string]string
	SortBy  string
	Desc    bool
	Search  string
}

// field describes one filterable and sortable attribute of T. column is the
// SQL expression the Postgres repository uses for it.
type field[T any] struct {
	column  string
	value   func(T) string
	compare func(a, b T) int
}

type resource[T any] struct {
	name   string
	fields map[string]field[T]
	// text is what full-text search matches against.
	text       func(T) string
	searchCols []string
	defaultBy  string
}

func (r resource[T]) validate(p ListParams) error {
	for k := range p.Filters {
		if _, ok := r.fields[k]; !ok {
			return fmt.Errorf("%w: %s cannot be filtered by %q", ErrInvalidQuery, r.name, k)
		}
	}
	if p.SortBy != "" {
		if _, ok := r.fields[p.SortBy]; !ok {
			return fmt.Errorf("%w: %s cannot be sorted by %q", ErrInvalidQuery, r.name, p.SortBy)
		}
	}
	if p.Offset < 0 || p.Limit < 0 {
		return fmt.Errorf("%w: negative page", ErrInvalidQuery)
	}
	return nil
}

// apply filters, searches, sorts and pages items in memory. It returns the
// page and the total before paging.
func (r resource[T]) apply(items []T, p ListParams) ([]T, int) {
	out := make([]T, 0, len(items))
	search := strings.ToLower(strings.TrimSpace(p.Search))
	for _, it := range items {
		if !r.matches(it, p.Filters) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.text(it)), search) {
			continue
		}
		out = append(out, it)
	}

	by := p.SortBy
	if by == "" {
		by = r.defaultBy
	}
	f := r.fields[by]
	sort.SliceStable(out, func(i, j int) bool {
		c := f.compare(out[i], out[j])
		if p.Desc {
			return c > 0
		}
		return c < 0
	})

	total := len(out)
	if p.Offset >= total {
		return []T{}, total
	}
	out = out[p.Offset:]
	if p.Limit > 0 && p.Limit < len(out) {
		out = out[:p.Limit]
	}
	return out, total
}

func (r resource[T]) matches(it T, filters map[string]string) bool {
	for k, want := range filters {
		if !strings.EqualFold(r.fields[k].value(it), want) {
			return false
		}
	}
	return true
}

func strField[T any](column string, get func(T) string) field[T] {
	return field[T]{
		column:  column,
		value:   get,
		compare: func(a, b T) int { return cmp.Compare(get(a), get(b)) },
	}
}

func intField[T any](column string, get func(T) int64) field[T] {
	return field[T]{
		column:  column,
		value:   func(t T) string { return strconv.FormatInt(get(t), 10) },
		compare: func(a, b T) int { return cmp.Compare(get(a), get(b)) },
	}
}

var productResource = resource[catalog.Product]{
	name: "products",
	fields: map[string]field[catalog.Product]{
		"id":       strField("id", func(p catalog.Product) string { return p.ID }),
		"name":     strField("name", func(p catalog.Product) string { return p.Name }),
		"category": strField("category", func(p catalog.Product) string { return p.Category }),
		"price":    intField("price", func(p catalog.Product) int64 { return p.Price }),
		"isAvailable": strField("is_available", func(p catalog.Product) string {
			return strconv.FormatBool(p.IsAvailable)
		}),
	},
	text: func(p catalog.Product) string {
		return p.Name + " " + p.Description + " " + p.Category
	},
	searchCols: []string{"name", "description", "category"},
	defaultBy:  "id",
}

var inventoryResource = resource[inventory.Record]{
	name: "inventory",
	fields: map[string]field[inventory.Record]{
		"id":           strField("id", func(r inventory.Record) string { return r.ID }),
		"productId":    strField("product_id", func(r inventory.Record) string { return r.ProductID }),
		"unit":         strField("unit", func(r inventory.Record) string { return r.Unit }),
		"available":    intField("available", func(r inventory.Record) int64 { return int64(r.Available) }),
		"reorderLevel": intField("reorder_level", func(r inventory.Record) int64 { return int64(r.ReorderLevel) }),
	},
	text:       func(r inventory.Record) string { return r.ProductID + " " + r.Unit },
	searchCols: []string{"product_id", "unit"},
	defaultBy:  "productId",
}

var orderResource = resource[order.Order]{
	name: "orders",
	fields: map[string]field[order.Order]{
		"id":          strField("id", func(o order.Order) string { return o.ID }),
		"orderId":     strField("body->>'orderId'", func(o order.Order) string { return o.DisplayID }),
		"status":      strField("status", func(o order.Order) string { return string(o.Status) }),
		"totalAmount": intField("total_amount", func(o order.Order) int64 { return o.TotalAmount }),
		"createdAt": intField("created_at", func(o order.Order) int64 {
			return o.CreatedAt.UnixNano()
		}),
		"updatedAt": intField("updated_at", func(o order.Order) int64 {
			return o.UpdatedAt.UnixNano()
		}),
	},
	text: func(o order.Order) string {
		var b strings.Builder
		b.WriteString(o.DisplayID)
		for _, li := range o.Items {
			b.WriteString(" ")
			b.WriteString(li.Product.Name)
		}
		return b.String()
	},
	searchCols: []string{"body->>'orderId'", "body::text"},
	defaultBy:  "createdAt",
}
