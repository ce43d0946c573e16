package remote

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// Query is a list request against the remote store, encoded the way
// json-server reads it.
type Query struct {
	Page      int
	Limit     int
	Filters   map[string]string
	SortBy    string
	SortOrder SortOrder
	Search    string
}

// Values encodes q. A zero Limit falls back to defaultLimit when a page is
// requested.
func (q Query) Values(defaultLimit int) url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("_page", strconv.Itoa(q.Page))
		limit := q.Limit
		if limit <= 0 {
			limit = defaultLimit
		}
		if limit > 0 {
			v.Set("_limit", strconv.Itoa(limit))
		}
	} else if q.Limit > 0 {
		v.Set("_limit", strconv.Itoa(q.Limit))
	}

	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.HasPrefix(k, "_") || k == "q" {
			continue
		}
		v.Set(k, q.Filters[k])
	}

	if q.SortBy != "" {
		v.Set("_sort", q.SortBy)
		order := q.SortOrder
		if order == "" {
			order = Desc
		}
		v.Set("_order", string(order))
	}
	if s := strings.TrimSpace(q.Search); s != "" {
		v.Set("q", s)
	}
	return v
}

// Page is one page of a list response.
type Page[T any] struct {
	Items   []T
	Total   int
	HasNext bool
	HasPrev bool
}
