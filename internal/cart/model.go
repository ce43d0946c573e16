package cart

import (
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
)

// LineItem is one product entry in the cart. Product is a snapshot taken
// when the line was added; later catalog changes do not reprice it.
type LineItem struct {
	ID             string                  `json:"id"`
	ProductID      string                  `json:"productId"`
	Product        catalog.Product         `json:"product"`
	Quantity       int                     `json:"quantity"`
	Customizations []catalog.Customization `json:"customizations"`
	TotalPrice     int64                   `json:"totalPrice"`
	AddedAt        time.Time               `json:"addedAt"`
}

// UnitPrice is the price of a single unit including customizations.
func (li LineItem) UnitPrice() int64 {
	return li.Product.UnitPrice(li.Customizations)
}

// Clone returns a deep copy of the line.
func (li LineItem) Clone() LineItem {
	cp := li
	cp.Product = li.Product.Clone()
	cp.Customizations = append([]catalog.Customization{}, li.Customizations...)
	return cp
}

func (li LineItem) repriced() LineItem {
	li.TotalPrice = li.UnitPrice() * int64(li.Quantity)
	return li
}
