package remotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/pos-client-go/internal/remote"
)

// EventPublisher announces order changes. Publish failures never fail the
// request that caused them.
type EventPublisher interface {
	OrderCreated(ctx context.Context, o order.Order) error
	OrderStatusChanged(ctx context.Context, o order.Order, from order.Status) error
}

type Handler struct {
	repo     Repository
	pub      EventPublisher
	logger   *log.Logger
	pageSize int
}

func NewHandler(repo Repository, pub EventPublisher, logger *log.Logger, defaultPageSize int) *Handler {
	if defaultPageSize <= 0 {
		defaultPageSize = 20
	}
	return &Handler{repo: repo, pub: pub, logger: logger, pageSize: defaultPageSize}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, h.repo.ListProducts)
}

func (h *Handler) ListInventory(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, h.repo.ListInventory)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	serveList(h, w, r, h.repo.ListOrders)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.repo.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// CreateOrder upserts by id: a replay answers 200 with the stored order
// instead of creating a duplicate.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in order.Order
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	if in.Status != "" {
		st, err := order.ParseStatus(string(in.Status))
		if err != nil {
			h.writeError(w, err)
			return
		}
		in.Status = st
	}

	res, err := h.repo.UpsertOrder(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.announce(r.Context(), res)

	code := http.StatusOK
	if res.Created {
		code = http.StatusCreated
	}
	writeJSON(w, code, res.Order)
}

func (h *Handler) UpdateOrder(w http.ResponseWriter, r *http.Request) {
	var p remote.OrderPatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return
	}
	st, err := order.ParseStatus(string(p.Status))
	if err != nil {
		h.writeError(w, err)
		return
	}
	p.Status = st

	res, err := h.repo.PatchOrder(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.announce(r.Context(), res)
	writeJSON(w, http.StatusOK, res.Order)
}

func (h *Handler) announce(ctx context.Context, res WriteResult) {
	var err error
	switch {
	case res.Created:
		err = h.pub.OrderCreated(ctx, res.Order)
	case res.StatusChanged():
		err = h.pub.OrderStatusChanged(ctx, res.Order, res.Previous)
	default:
		return
	}
	if err != nil {
		h.logger.Printf("publish event for order %s: %v", res.Order.ID, err)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, ErrInvalidQuery):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, ErrInvalidOrder),
		errors.Is(err, order.ErrInvalidTransition),
		errors.Is(err, order.ErrUnknownStatus):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
	default:
		h.logger.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

type lister[T any] func(ctx context.Context, p ListParams) ([]T, int, error)

func serveList[T any](h *Handler, w http.ResponseWriter, r *http.Request, list lister[T]) {
	p, page, err := parseListParams(r.URL.Query(), h.pageSize)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, total, err := list(r.Context(), p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	if page > 0 {
		if link := linkHeader(r.URL, page, p.Limit, total); link != "" {
			w.Header().Set("Link", link)
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// parseListParams reads json-server style query parameters. Any key that is
// not a control parameter is an equality filter. page is 0 when the request
// is not paged.
func parseListParams(q url.Values, defaultLimit int) (ListParams, int, error) {
	p := ListParams{Filters: map[string]string{}}
	page := 0

	atoi := func(key string) (int, error) {
		n, err := strconv.Atoi(q.Get(key))
		if err != nil || n < 1 {
			return 0, fmt.Errorf("%w: %s must be a positive integer", ErrInvalidQuery, key)
		}
		return n, nil
	}

	var err error
	if q.Has("_limit") {
		if p.Limit, err = atoi("_limit"); err != nil {
			return p, 0, err
		}
	}
	if q.Has("_page") {
		if page, err = atoi("_page"); err != nil {
			return p, 0, err
		}
		if p.Limit == 0 {
			p.Limit = defaultLimit
		}
		p.Offset = (page - 1) * p.Limit
	}

	p.SortBy = q.Get("_sort")
	switch strings.ToLower(q.Get("_order")) {
	case "", "asc":
	case "desc":
		p.Desc = true
	default:
		return p, 0, fmt.Errorf("%w: _order must be asc or desc", ErrInvalidQuery)
	}
	p.Search = q.Get("q")

	for k, v := range q {
		if k == "q" || strings.HasPrefix(k, "_") || len(v) == 0 {
			continue
		}
		p.Filters[k] = v[0]
	}
	return p, page, nil
}

// linkHeader builds the first/prev/next/last relations for a paged response.
func linkHeader(u *url.URL, page, limit, total int) string {
	if limit <= 0 {
		return ""
	}
	last := (total + limit - 1) / limit
	if last < 1 {
		last = 1
	}
	rel := func(n int, name string) string {
		cp := *u
		q := cp.Query()
		q.Set("_page", strconv.Itoa(n))
		q.Set("_limit", strconv.Itoa(limit))
		cp.RawQuery = q.Encode()
		return fmt.Sprintf(`<%s>; rel="%s"`, cp.String(), name)
	}

	links := []string{rel(1, "first")}
	if page > 1 {
		links = append(links, rel(page-1, "prev"))
	}
	if page < last {
		links = append(links, rel(page+1, "next"))
	}
	links = append(links, rel(last, "last"))
	return strings.Join(links, ", ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
