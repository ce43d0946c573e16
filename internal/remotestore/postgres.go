package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
// This allows us to mock the database in tests.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresRepository struct {
	pool DBPool
	now  func() time.Time
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

func (r *PostgresRepository) ListProducts(ctx context.Context, p ListParams) ([]catalog.Product, int, error) {
	const cols = `id, name, description, price, category, image_url, is_available, customizations`
	return listRows(ctx, r.pool, productResource, cols, "products", p, func(row pgx.Rows) (catalog.Product, error) {
		var (
			pr     catalog.Product
			custom []byte
		)
		if err := row.Scan(&pr.ID, &pr.Name, &pr.Description, &pr.Price, &pr.Category, &pr.ImageURL, &pr.IsAvailable, &custom); err != nil {
			return pr, err
		}
		if len(custom) > 0 {
			if err := json.Unmarshal(custom, &pr.Customizations); err != nil {
				return pr, fmt.Errorf("decode customizations of %s: %w", pr.ID, err)
			}
		}
		return pr, nil
	})
}

func (r *PostgresRepository) ListInventory(ctx context.Context, p ListParams) ([]inventory.Record, int, error) {
	const cols = `id, product_id, unit, available, reserved, reorder_level`
	return listRows(ctx, r.pool, inventoryResource, cols, "inventory", p, func(row pgx.Rows) (inventory.Record, error) {
		var rec inventory.Record
		err := row.Scan(&rec.ID, &rec.ProductID, &rec.Unit, &rec.Available, &rec.Reserved, &rec.ReorderLevel)
		return rec, err
	})
}

func (r *PostgresRepository) ListOrders(ctx context.Context, p ListParams) ([]order.Order, int, error) {
	return listRows(ctx, r.pool, orderResource, "body", "orders", p, func(row pgx.Rows) (order.Order, error) {
		var body []byte
		if err := row.Scan(&body); err != nil {
			return order.Order{}, err
		}
		return decodeOrder(body)
	})
}

func (r *PostgresRepository) GetOrder(ctx context.Context, id string) (order.Order, error) {
	o, found, err := getOrder(ctx, r.pool, id, false)
	if err != nil {
		return order.Order{}, err
	}
	if !found {
		return order.Order{}, ErrNotFound
	}
	return o, nil
}

func (r *PostgresRepository) UpsertOrder(ctx context.Context, o order.Order) (WriteResult, error) {
	if err := validateOrder(o); err != nil {
		return WriteResult{}, err
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WriteResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, found, err := getOrder(ctx, tx, o.ID, true)
	if err != nil {
		return WriteResult{}, err
	}
	res := mergeUpsert(existing, found, o)
	if res.Changed {
		if err := writeOrder(ctx, tx, res.Order); err != nil {
			return WriteResult{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return WriteResult{}, err
	}
	return res, nil
}

func (r *PostgresRepository) PatchOrder(ctx context.Context, id string, p remote.OrderPatch) (WriteResult, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return WriteResult{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	cur, found, err := getOrder(ctx, tx, id, true)
	if err != nil {
		return WriteResult{}, err
	}
	if !found {
		return WriteResult{}, ErrNotFound
	}
	res, err := applyPatch(cur, p, r.now())
	if err != nil {
		return WriteResult{}, err
	}
	if res.Changed {
		if err := writeOrder(ctx, tx, res.Order); err != nil {
			return WriteResult{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return WriteResult{}, err
	}
	return res, nil
}

func getOrder(ctx context.Context, q rowQuerier, id string, forUpdate bool) (order.Order, bool, error) {
	sql := `SELECT body FROM orders WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var body []byte
	if err := q.QueryRow(ctx, sql, id).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Order{}, false, nil
		}
		return order.Order{}, false, err
	}
	o, err := decodeOrder(body)
	return o, err == nil, err
}

func writeOrder(ctx context.Context, tx pgx.Tx, o order.Order) error {
	body, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.ID, err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO orders (id, status, total_amount, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			total_amount = EXCLUDED.total_amount,
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
	`, o.ID, string(o.Status), o.TotalAmount, body, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("write order %s: %w", o.ID, err)
	}
	return nil
}

func decodeOrder(body []byte) (order.Order, error) {
	var o order.Order
	if err := json.Unmarshal(body, &o); err != nil {
		return order.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return o, nil
}

// buildListSQL renders the count and page queries of a list request. Only
// whitelisted columns ever reach the SQL text; values travel as arguments.
func buildListSQL[T any](res resource[T], cols, table string, p ListParams) (countSQL, pageSQL string, args []any, err error) {
	if err := res.validate(p); err != nil {
		return "", "", nil, err
	}

	var where []string
	keys := make([]string, 0, len(p.Filters))
	for k := range p.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, p.Filters[k])
		where = append(where, fmt.Sprintf("lower(%s::text) = lower($%d)", res.fields[k].column, len(args)))
	}
	if s := strings.TrimSpace(p.Search); s != "" {
		args = append(args, "%"+s+"%")
		ors := make([]string, len(res.searchCols))
		for i, c := range res.searchCols {
			ors[i] = fmt.Sprintf("%s ILIKE $%d", c, len(args))
		}
		where = append(where, "("+strings.Join(ors, " OR ")+")")
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}
	countSQL = "SELECT COUNT(*) FROM " + table + clause

	by := p.SortBy
	if by == "" {
		by = res.defaultBy
	}
	dir := "ASC"
	if p.Desc {
		dir = "DESC"
	}
	pageSQL = fmt.Sprintf("SELECT %s FROM %s%s ORDER BY %s %s, id ASC", cols, table, clause, res.fields[by].column, dir)
	if p.Limit > 0 {
		pageSQL += fmt.Sprintf(" LIMIT %d", p.Limit)
	}
	if p.Offset > 0 {
		pageSQL += fmt.Sprintf(" OFFSET %d", p.Offset)
	}
	return countSQL, pageSQL, args, nil
}

func listRows[T any](ctx context.Context, pool DBPool, res resource[T], cols, table string, p ListParams, scan func(pgx.Rows) (T, error)) ([]T, int, error) {
	countSQL, pageSQL, args, err := buildListSQL(res, cols, table, p)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	rows, err := pool.Query(ctx, pageSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", table, err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", table, err)
	}
	return out, total, nil
}
