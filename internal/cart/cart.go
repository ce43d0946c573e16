package cart

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
)

var (
	ErrLineNotFound           = errors.New("cart line not found")
	ErrUnknownCustomization   = errors.New("customization not offered for product")
	ErrDuplicateCustomization = errors.New("customization already selected")
	ErrEmptyCart              = errors.New("cart is empty")
	ErrInvalidLine            = errors.New("invalid cart line")
)

// Cart is the ordered set of line items for the active session.
//
// Every operation that touches stock takes the current Ledger and returns the
// next Cart and Ledger together. On error both are returned unchanged, so a
// reservation never exists without its line and vice versa.
type Cart struct {
	lines []LineItem
}

func New() Cart { return Cart{} }

// FromLines rebuilds a cart from persisted lines.
func FromLines(lines []LineItem) (Cart, error) {
	seen := make(map[string]struct{}, len(lines))
	out := make([]LineItem, 0, len(lines))
	for _, li := range lines {
		if li.ID == "" || li.ProductID == "" || li.Quantity < 1 {
			return Cart{}, fmt.Errorf("%w: %+v", ErrInvalidLine, li)
		}
		if _, dup := seen[li.ID]; dup {
			return Cart{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidLine, li.ID)
		}
		seen[li.ID] = struct{}{}
		out = append(out, li.Clone().repriced())
	}
	return Cart{lines: out}, nil
}

// AddItem reserves qty units of the product and appends a new line.
func (c Cart) AddItem(ledger inventory.Ledger, product catalog.Product, qty int, customizations []catalog.Customization, at time.Time) (Cart, inventory.Ledger, LineItem, error) {
	if qty < 1 {
		return c, ledger, LineItem{}, inventory.ErrInvalidQuantity
	}
	selected, err := resolveCustomizations(product, customizations)
	if err != nil {
		return c, ledger, LineItem{}, err
	}

	next, err := ledger.Reserve(product.ID, qty)
	if err != nil {
		return c, ledger, LineItem{}, err
	}

	li := LineItem{
		ID:             uuid.NewString(),
		ProductID:      product.ID,
		Product:        product.Clone(),
		Quantity:       qty,
		Customizations: selected,
		AddedAt:        at.UTC(),
	}.repriced()

	return c.withLines(append(c.Lines(), li)), next, li.Clone(), nil
}

// RemoveItem drops the line and releases its reservation.
func (c Cart) RemoveItem(ledger inventory.Ledger, lineID string) (Cart, inventory.Ledger, error) {
	idx := c.index(lineID)
	if idx < 0 {
		return c, ledger, ErrLineNotFound
	}
	li := c.lines[idx]

	next, err := ledger.Release(li.ProductID, li.Quantity)
	if err != nil {
		return c, ledger, err
	}

	lines := c.Lines()
	lines = append(lines[:idx], lines[idx+1:]...)
	return c.withLines(lines), next, nil
}

// UpdateQuantity moves a line to newQty, reserving or releasing the difference.
func (c Cart) UpdateQuantity(ledger inventory.Ledger, lineID string, newQty int) (Cart, inventory.Ledger, error) {
	if newQty < 1 {
		return c, ledger, inventory.ErrInvalidQuantity
	}
	idx := c.index(lineID)
	if idx < 0 {
		return c, ledger, ErrLineNotFound
	}
	li := c.lines[idx]

	next := ledger
	var err error
	switch delta := newQty - li.Quantity; {
	case delta > 0:
		next, err = ledger.Reserve(li.ProductID, delta)
	case delta < 0:
		next, err = ledger.Release(li.ProductID, -delta)
	default:
		return c, ledger, nil
	}
	if err != nil {
		return c, ledger, err
	}

	lines := c.Lines()
	li = lines[idx]
	li.Quantity = newQty
	lines[idx] = li.repriced()
	return c.withLines(lines), next, nil
}

// AddCustomization selects one more of the product's customizations on a line.
func (c Cart) AddCustomization(lineID, customizationID string) (Cart, error) {
	idx := c.index(lineID)
	if idx < 0 {
		return c, ErrLineNotFound
	}
	lines := c.Lines()
	li := lines[idx]

	custom, ok := li.Product.Customization(customizationID)
	if !ok {
		return c, fmt.Errorf("%w: %s", ErrUnknownCustomization, customizationID)
	}
	for _, sel := range li.Customizations {
		if sel.ID == customizationID {
			return c, fmt.Errorf("%w: %s", ErrDuplicateCustomization, customizationID)
		}
	}
	li.Customizations = append(li.Customizations, custom)
	lines[idx] = li.repriced()
	return c.withLines(lines), nil
}

// RemoveCustomization deselects a customization. Removing one that is not
// selected is a no-op.
func (c Cart) RemoveCustomization(lineID, customizationID string) (Cart, error) {
	idx := c.index(lineID)
	if idx < 0 {
		return c, ErrLineNotFound
	}
	lines := c.Lines()
	li := lines[idx]

	kept := li.Customizations[:0]
	for _, sel := range li.Customizations {
		if sel.ID != customizationID {
			kept = append(kept, sel)
		}
	}
	li.Customizations = kept
	lines[idx] = li.repriced()
	return c.withLines(lines), nil
}

// ClearAfterCheckout empties the cart. The stock was sold, so nothing is
// released.
func (c Cart) ClearAfterCheckout() Cart {
	return Cart{}
}

// AbandonCart empties the cart and returns every reservation to the ledger.
func (c Cart) AbandonCart(ledger inventory.Ledger) (Cart, inventory.Ledger, error) {
	next := ledger
	for _, li := range c.lines {
		released, err := next.Release(li.ProductID, li.Quantity)
		if err != nil {
			return c, ledger, err
		}
		next = released
	}
	return Cart{}, next, nil
}

func (c Cart) Total() int64 {
	var total int64
	for _, li := range c.lines {
		total += li.TotalPrice
	}
	return total
}

// ItemCount is the number of units across all lines.
func (c Cart) ItemCount() int {
	n := 0
	for _, li := range c.lines {
		n += li.Quantity
	}
	return n
}

func (c Cart) Len() int      { return len(c.lines) }
func (c Cart) IsEmpty() bool { return len(c.lines) == 0 }

// Lines returns deep copies of the lines in insertion order.
func (c Cart) Lines() []LineItem {
	out := make([]LineItem, len(c.lines))
	for i, li := range c.lines {
		out[i] = li.Clone()
	}
	return out
}

func (c Cart) Line(lineID string) (LineItem, bool) {
	idx := c.index(lineID)
	if idx < 0 {
		return LineItem{}, false
	}
	return c.lines[idx].Clone(), true
}

// Reservations is the quantity each line is holding, in line order.
func (c Cart) Reservations() []inventory.Line {
	out := make([]inventory.Line, 0, len(c.lines))
	for _, li := range c.lines {
		out = append(out, inventory.Line{ProductID: li.ProductID, Quantity: li.Quantity})
	}
	return out
}

// ShrinkTo lowers each line to the quantity granted for it, as returned by
// Ledger.ApplyReservations for c.Reservations(). Lines granted nothing are
// dropped. The cart is returned unchanged if granted does not line up.
func (c Cart) ShrinkTo(granted []inventory.Line) Cart {
	if len(granted) != len(c.lines) {
		return c
	}
	lines := make([]LineItem, 0, len(c.lines))
	for i, li := range c.lines {
		g := granted[i]
		if g.ProductID != li.ProductID {
			return c
		}
		li = li.Clone()
		if g.Quantity < li.Quantity {
			if g.Quantity <= 0 {
				continue
			}
			li.Quantity = g.Quantity
			li = li.repriced()
		}
		lines = append(lines, li)
	}
	return c.withLines(lines)
}

// ReservedFor is the total quantity of productID held by the cart.
func (c Cart) ReservedFor(productID string) int {
	n := 0
	for _, li := range c.lines {
		if li.ProductID == productID {
			n += li.Quantity
		}
	}
	return n
}

func (c Cart) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Lines())
}

func (c *Cart) UnmarshalJSON(data []byte) error {
	var lines []LineItem
	if err := json.Unmarshal(data, &lines); err != nil {
		return err
	}
	next, err := FromLines(lines)
	if err != nil {
		return err
	}
	*c = next
	return nil
}

func (c Cart) index(lineID string) int {
	for i, li := range c.lines {
		if li.ID == lineID {
			return i
		}
	}
	return -1
}

func (c Cart) withLines(lines []LineItem) Cart {
	return Cart{lines: lines}
}

func resolveCustomizations(product catalog.Product, requested []catalog.Customization) ([]catalog.Customization, error) {
	out := make([]catalog.Customization, 0, len(requested))
	seen := make(map[string]struct{}, len(requested))
	for _, r := range requested {
		offered, ok := product.Customization(r.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownCustomization, r.ID)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCustomization, r.ID)
		}
		seen[r.ID] = struct{}{}
		out = append(out, offered)
	}
	return out, nil
}
