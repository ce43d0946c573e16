package inventory

// Record is the stock position of one product.
type Record struct {
	ID           string `json:"id,omitempty"`
	ProductID    string `json:"productId"`
	Unit         string `json:"unit,omitempty"`
	Available    int    `json:"available"`
	Reserved     int    `json:"reserved,omitempty"`
	ReorderLevel int    `json:"reorderLevel,omitempty"`
}

// Line is a product quantity pair, used when reserving or releasing in bulk.
type Line struct {
	ProductID string
	Quantity  int
}

// DepletedLine describes a request the ledger could not satisfy.
type DepletedLine struct {
	ProductID string
	Requested int
	Available int
}
