// Package remotestore is the reference remote store the POS client syncs
// with: a json-server compatible HTTP API over a Postgres or in-memory
// repository.
package remotestore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidOrder = errors.New("invalid order")
	ErrInvalidQuery = errors.New("invalid query")
)

// WriteResult describes what a create or update did to the stored order.
type WriteResult struct {
	Order    order.Order
	Created  bool
	Changed  bool
	Previous order.Status
}

// StatusChanged reports whether an existing order moved to a new status.
func (w WriteResult) StatusChanged() bool {
	return !w.Created && w.Changed && w.Previous != w.Order.Status
}

func validateOrder(o order.Order) error {
	if strings.TrimSpace(o.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidOrder)
	}
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidOrder, o.Status)
	}
	if len(o.Items) == 0 {
		return fmt.Errorf("%w: order %s has no items", ErrInvalidOrder, o.ID)
	}
	var total int64
	for _, li := range o.Items {
		if li.Quantity < 1 {
			return fmt.Errorf("%w: line %s has quantity %d", ErrInvalidOrder, li.ID, li.Quantity)
		}
		total += li.TotalPrice
	}
	if total != o.TotalAmount {
		return fmt.Errorf("%w: totalAmount %d does not match items %d", ErrInvalidOrder, o.TotalAmount, total)
	}
	if o.CreatedAt.IsZero() {
		return fmt.Errorf("%w: createdAt is required", ErrInvalidOrder)
	}
	return nil
}

// mergeUpsert decides what an upsert of in stores given the current copy.
// A copy newer than in wins, so a late replay never rolls an order back.
func mergeUpsert(existing order.Order, found bool, in order.Order) WriteResult {
	in = in.Clone()
	in.SyncStatus = order.SyncSynced
	in.SyncAttempts = 0
	in.LastSyncError = ""
	if in.DisplayID == "" {
		in.DisplayID = order.DisplayIDFor(in.ID)
	}
	if in.UpdatedAt.IsZero() {
		in.UpdatedAt = in.CreatedAt
	}

	if !found {
		return WriteResult{Order: in, Created: true, Changed: true, Previous: in.Status}
	}
	if existing.UpdatedAt.After(in.UpdatedAt) || existing.UpdatedAt.Equal(in.UpdatedAt) {
		return WriteResult{Order: existing, Previous: existing.Status}
	}
	in.CreatedAt = existing.CreatedAt
	return WriteResult{Order: in, Changed: true, Previous: existing.Status}
}

// applyPatch applies a status patch. The patch's history may carry several
// steps taken offline; each must follow the transition table.
func applyPatch(cur order.Order, p remote.OrderPatch, now time.Time) (WriteResult, error) {
	res := WriteResult{Order: cur, Previous: cur.Status}
	if !p.Status.Valid() {
		return res, fmt.Errorf("%w: %q", order.ErrUnknownStatus, p.Status)
	}
	at := p.UpdatedAt
	if at.IsZero() {
		at = now
	}
	if at.Before(cur.UpdatedAt) || p.Status == cur.Status {
		return res, nil
	}

	var next order.Order
	if len(p.StatusHistory) > len(cur.StatusHistory) {
		from := cur.Status
		for _, e := range p.StatusHistory[len(cur.StatusHistory):] {
			if !order.IsValidTransition(from, e.Status) {
				return res, &order.TransitionError{OrderID: cur.ID, From: from, To: e.Status}
			}
			from = e.Status
		}
		if from != p.Status {
			return res, fmt.Errorf("%w: history ends in %s, patch says %s", ErrInvalidOrder, from, p.Status)
		}
		next = cur.Clone()
		next.StatusHistory = append([]order.StatusEntry(nil), p.StatusHistory...)
		next.Status = p.Status
		next.UpdatedAt = at.UTC()
		next.EstimatedCompletion = order.EstimatedCompletion(p.Status, next.UpdatedAt)
	} else {
		var err error
		if next, err = order.Transition(cur, p.Status, p.UpdatedBy, "", at); err != nil {
			return res, err
		}
	}
	next.SyncStatus = order.SyncSynced
	return WriteResult{Order: next, Changed: true, Previous: cur.Status}, nil
}
