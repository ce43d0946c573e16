package order

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Statuses lists every lifecycle state in display order.
var Statuses = []Status{
	StatusPending,
	StatusConfirmed,
	StatusPreparing,
	StatusReady,
	StatusDelivered,
	StatusCancelled,
}

var displayNames = map[Status]string{
	StatusPending:   "Pending",
	StatusConfirmed: "Confirmed",
	StatusPreparing: "Preparing",
	StatusReady:     "Ready",
	StatusDelivered: "Delivered",
	StatusCancelled: "Cancelled",
}

// ParseStatus accepts any casing; the remote store has historically sent
// upper-case values for checkout orders.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := displayNames[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

func (s Status) Valid() bool {
	_, ok := displayNames[s]
	return ok
}

func (s Status) DisplayName() string {
	if name, ok := displayNames[s]; ok {
		return name
	}
	return displayNames[StatusPending]
}

// SyncStatus tracks how far an order has travelled towards the remote store.
type SyncStatus string

const (
	// SyncLocalOnly orders were created offline and never sent.
	SyncLocalOnly SyncStatus = "local-only"
	// SyncPending orders were sent but not acknowledged.
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// NeedsReplay reports whether the reconciler should send the order on the
// next online transition.
func (s SyncStatus) NeedsReplay() bool {
	return s == SyncLocalOnly || s == SyncPending
}
