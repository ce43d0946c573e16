// Package localstore keeps a durable snapshot of the POS session in SQLite so
// a restart resumes with the same stock, cart and orders.
package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
)

// ErrDataCorruption means the persisted snapshot could not be parsed or
// failed validation.
var ErrDataCorruption = errors.New("local state corrupted")

type Snapshot struct {
	Inventory []inventory.Record `json:"inventory"`
	Cart      cart.Cart          `json:"cart"`
	Orders    []order.Order      `json:"orders"`
	SavedAt   time.Time          `json:"savedAt"`
}

// Validate checks the parts of a snapshot that JSON decoding alone does not.
func (s Snapshot) Validate() error {
	if _, err := inventory.NewLedger(s.Inventory); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(s.Orders))
	for _, o := range s.Orders {
		if strings.TrimSpace(o.ID) == "" {
			return errors.New("order without id")
		}
		if _, dup := seen[o.ID]; dup {
			return fmt.Errorf("duplicate order %s", o.ID)
		}
		seen[o.ID] = struct{}{}
		if !o.Status.Valid() {
			return fmt.Errorf("order %s: %w: %q", o.ID, order.ErrUnknownStatus, o.Status)
		}
		switch o.SyncStatus {
		case order.SyncLocalOnly, order.SyncPending, order.SyncSynced, order.SyncFailed:
		default:
			return fmt.Errorf("order %s: unknown sync status %q", o.ID, o.SyncStatus)
		}
	}
	return nil
}

// SyncRecord is one row of the sync log.
type SyncRecord struct {
	OrderID    string
	SyncStatus order.SyncStatus
	Attempts   int
	Error      string
	RecordedAt time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite file at path and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("state path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Load returns the saved snapshot. found is false when nothing was saved yet.
// A snapshot that does not parse or validate yields ErrDataCorruption.
func (s *Store) Load(ctx context.Context) (snap Snapshot, found bool, err error) {
	var body string
	err = s.db.QueryRowContext(ctx, `SELECT body FROM pos_state WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("load state: %w", err)
	}
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		return Snapshot{}, true, fmt.Errorf("%w: %v", ErrDataCorruption, err)
	}
	if err := snap.Validate(); err != nil {
		return Snapshot{}, true, fmt.Errorf("%w: %v", ErrDataCorruption, err)
	}
	return snap, true, nil
}

func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now().UTC()
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pos_state (id, body, saved_at) VALUES (1, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET body = excluded.body, saved_at = excluded.saved_at`,
		string(body), snap.SavedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}

// Reset removes the saved snapshot.
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pos_state`); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	return nil
}

func (s *Store) RecordSync(ctx context.Context, rec SyncRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_log (order_id, sync_status, attempts, error, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		rec.OrderID, string(rec.SyncStatus), rec.Attempts, rec.Error, rec.RecordedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record sync for order %s: %w", rec.OrderID, err)
	}
	return nil
}

// SyncHistory returns the sync log of one order, oldest first.
func (s *Store) SyncHistory(ctx context.Context, orderID string) ([]SyncRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, sync_status, attempts, error, recorded_at FROM sync_log WHERE order_id = ? ORDER BY seq`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("query sync log: %w", err)
	}
	defer rows.Close()

	var out []SyncRecord
	for rows.Next() {
		var (
			rec    SyncRecord
			status string
			millis int64
		)
		if err := rows.Scan(&rec.OrderID, &status, &rec.Attempts, &rec.Error, &millis); err != nil {
			return nil, fmt.Errorf("scan sync log: %w", err)
		}
		rec.SyncStatus = order.SyncStatus(status)
		rec.RecordedAt = time.UnixMilli(millis).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}
