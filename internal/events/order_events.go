package events

import (
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
)

const (
	EventTypeOrderCreated       = "OrderCreated"
	EventTypeOrderStatusChanged = "OrderStatusChanged"

	orderCreatedSchema       = "pos/order.created.v1"
	orderStatusChangedSchema = "pos/order.status_changed.v1"
)

type OrderCreatedPayload struct {
	OrderID        string       `json:"orderId"`
	DisplayID      string       `json:"displayId"`
	Status         order.Status `json:"status"`
	TotalAmount    int64        `json:"totalAmount"`
	ItemCount      int          `json:"itemCount"`
	OfflineCreated bool         `json:"offlineCreated"`
	CreatedAt      time.Time    `json:"createdAt"`
}

type OrderStatusChangedPayload struct {
	OrderID   string       `json:"orderId"`
	From      order.Status `json:"from"`
	To        order.Status `json:"to"`
	UpdatedBy string       `json:"updatedBy,omitempty"`
	Notes     string       `json:"notes,omitempty"`
	ChangedAt time.Time    `json:"changedAt"`
}

func orderCreatedPayload(o order.Order) OrderCreatedPayload {
	return OrderCreatedPayload{
		OrderID:        o.ID,
		DisplayID:      o.DisplayID,
		Status:         o.Status,
		TotalAmount:    o.TotalAmount,
		ItemCount:      o.ItemCount(),
		OfflineCreated: o.OfflineCreated,
		CreatedAt:      o.CreatedAt,
	}
}

func orderStatusChangedPayload(o order.Order, from order.Status) OrderStatusChangedPayload {
	p := OrderStatusChangedPayload{
		OrderID:   o.ID,
		From:      from,
		To:        o.Status,
		ChangedAt: o.UpdatedAt,
	}
	if n := len(o.StatusHistory); n > 0 {
		last := o.StatusHistory[n-1]
		p.UpdatedBy = last.UpdatedBy
		p.Notes = last.Notes
		p.ChangedAt = last.Timestamp
	}
	return p
}
