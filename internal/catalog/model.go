package catalog

// Customization is an optional add-on offered for a product.
type Customization struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Price int64  `json:"price"`
}

// Product is read-only reference data owned by the remote store.
type Product struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Price          int64           `json:"price"`
	Category       string          `json:"category"`
	ImageURL       string          `json:"image,omitempty"`
	IsAvailable    bool            `json:"isAvailable"`
	Customizations []Customization `json:"customizations,omitempty"`
}

func (p Product) Customization(id string) (Customization, bool) {
	for _, c := range p.Customizations {
		if c.ID == id {
			return c, true
		}
	}
	return Customization{}, false
}

// UnitPrice is the product price plus the selected customizations.
func (p Product) UnitPrice(selected []Customization) int64 {
	total := p.Price
	for _, c := range selected {
		total += c.Price
	}
	return total
}

// Clone returns a deep copy so snapshots never share the customization slice.
func (p Product) Clone() Product {
	cp := p
	if p.Customizations != nil {
		cp.Customizations = append([]Customization(nil), p.Customizations...)
	}
	return cp
}
