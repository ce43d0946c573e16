package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 512

// Client is a thin JSON client for the remote store's base URL.
type Client struct {
	BaseURL *url.URL
	HTTP    *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote base url %q: scheme and host required", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{BaseURL: u, HTTP: httpClient}, nil
}

type response struct {
	Header http.Header
	Code   int
}

// Do sends in as JSON (when non-nil) and decodes a 2xx body into out (when
// non-nil). Transport failures wrap ErrNetworkUnavailable; non-2xx answers
// are returned as *StatusError.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, in, out any) (response, error) {
	rel := &url.URL{Path: strings.TrimPrefix(path, "/")}
	if len(query) > 0 {
		rel.RawQuery = query.Encode()
	}
	u := c.BaseURL.ResolveReference(rel)

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return response{}, fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return response{}, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return response{}, fmt.Errorf("%w: %s %s: %v", ErrNetworkUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return response{Header: resp.Header, Code: resp.StatusCode}, &StatusError{
			Method: method,
			Path:   path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(msg)),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
			return response{Header: resp.Header, Code: resp.StatusCode}, fmt.Errorf("decode %s %s: %w", method, path, err)
		}
	}
	return response{Header: resp.Header, Code: resp.StatusCode}, nil
}

func pageFrom[T any](items []T, h http.Header) Page[T] {
	p := Page[T]{Items: items, Total: len(items)}
	if tc := h.Get("X-Total-Count"); tc != "" {
		if n, err := strconv.Atoi(tc); err == nil {
			p.Total = n
		}
	}
	link := h.Get("Link")
	p.HasNext = strings.Contains(link, `rel="next"`)
	p.HasPrev = strings.Contains(link, `rel="prev"`)
	return p
}
