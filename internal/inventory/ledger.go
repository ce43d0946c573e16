package inventory

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrInvalidRecord     = errors.New("invalid inventory record")
)

// StockError reports which product could not be reserved. It matches
// ErrInsufficientStock with errors.Is.
type StockError struct {
	DepletedLine
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductID, e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return ErrInsufficientStock }

// Ledger is the local count of remaining stock per product.
//
// A Ledger is a value: Reserve, Release and the loaders return a new Ledger
// and never modify the receiver, so a failed operation leaves the caller's
// ledger exactly as it was.
type Ledger struct {
	records map[string]Record
}

func NewLedger(records []Record) (Ledger, error) {
	return Ledger{}.ResetAll(records)
}

// ResetAll replaces every record with the snapshot.
func (l Ledger) ResetAll(snapshot []Record) (Ledger, error) {
	next := make(map[string]Record, len(snapshot))
	for _, rec := range snapshot {
		if rec.ProductID == "" {
			return l, fmt.Errorf("%w: missing productId", ErrInvalidRecord)
		}
		if rec.Available < 0 {
			return l, fmt.Errorf("%w: %s has negative availability %d", ErrInvalidRecord, rec.ProductID, rec.Available)
		}
		if _, dup := next[rec.ProductID]; dup {
			return l, fmt.Errorf("%w: duplicate productId %s", ErrInvalidRecord, rec.ProductID)
		}
		next[rec.ProductID] = rec
	}
	return Ledger{records: next}, nil
}

// LoadFromRemote replaces the ledger with records fetched from the remote
// store. Quantities reserved by open carts are not re-applied here; the caller
// owns that decision.
func (l Ledger) LoadFromRemote(records []Record) (Ledger, error) {
	return l.ResetAll(records)
}

// Available returns the remaining quantity. Unknown products have none.
func (l Ledger) Available(productID string) int {
	return l.records[productID].Available
}

func (l Ledger) Record(productID string) (Record, bool) {
	rec, ok := l.records[productID]
	return rec, ok
}

// Records returns all records ordered by product id.
func (l Ledger) Records() []Record {
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// LowStock returns records at or below their reorder level.
func (l Ledger) LowStock() []Record {
	var out []Record
	for _, rec := range l.Records() {
		if rec.Available <= rec.ReorderLevel {
			out = append(out, rec)
		}
	}
	return out
}

// Reserve takes qty units of productID out of the available count.
func (l Ledger) Reserve(productID string, qty int) (Ledger, error) {
	if qty <= 0 {
		return l, ErrInvalidQuantity
	}
	rec, ok := l.records[productID]
	if !ok || rec.Available < qty {
		return l, &StockError{DepletedLine{ProductID: productID, Requested: qty, Available: rec.Available}}
	}
	rec.Available -= qty
	return l.with(rec), nil
}

// Release puts qty units of productID back. Releasing an unknown product
// creates its record.
func (l Ledger) Release(productID string, qty int) (Ledger, error) {
	if qty <= 0 {
		return l, ErrInvalidQuantity
	}
	rec, ok := l.records[productID]
	if !ok {
		rec = Record{ProductID: productID}
	}
	rec.Available += qty
	return l.with(rec), nil
}

// ApplyReservations withholds quantities already promised to open cart lines
// from a freshly loaded ledger. A line that no longer fits takes what is left
// and is reported as depleted; availability never goes below zero. granted
// holds what each line actually withheld, in the order of lines.
func (l Ledger) ApplyReservations(lines []Line) (next Ledger, granted []Line, depleted []DepletedLine) {
	next = l
	granted = make([]Line, len(lines))
	for i, ln := range lines {
		granted[i] = Line{ProductID: ln.ProductID}
		if ln.Quantity <= 0 {
			continue
		}
		avail := next.Available(ln.ProductID)
		take := ln.Quantity
		if avail < take {
			depleted = append(depleted, DepletedLine{ProductID: ln.ProductID, Requested: ln.Quantity, Available: avail})
			take = avail
		}
		if take == 0 {
			continue
		}
		next, _ = next.Reserve(ln.ProductID, take)
		granted[i].Quantity = take
	}
	return next, granted, depleted
}

func (l Ledger) with(rec Record) Ledger {
	next := make(map[string]Record, len(l.records)+1)
	for k, v := range l.records {
		next[k] = v
	}
	next[rec.ProductID] = rec
	return Ledger{records: next}
}
