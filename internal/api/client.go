// Package api is the typed client for the economato REST backend. It is the
// only place that knows the backend's JSON shapes.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/economato/go-order-desk/internal/orders"
	"github.com/economato/go-order-desk/internal/telemetry"
)

func init() {
	// the backend reads BigDecimal from JSON numbers
	decimal.MarshalJSONWithoutQuotes = true
}

// TokenSource supplies the bearer token when the context carries none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type tokenKey struct{}

// WithToken attaches a bearer token to ctx. It wins over the TokenSource.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

type Client struct {
	baseURL     string
	http        *http.Client
	tokens      TokenSource
	completedAs orders.Status

	Orders    *OrdersClient
	Products  *ProductsClient
	Recipes   *RecipesClient
	Allergens *AllergensClient
	Audits    *AuditsClient
	Auth      *AuthClient
	Users     *UsersClient
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http = &http.Client{Timeout: d} }
}

func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithCompletedStatus sets the status name written for a completed order.
// Reads accept both COMPLETED and CONFIRMED regardless.
func WithCompletedStatus(s orders.Status) Option {
	return func(c *Client) {
		if s != "" {
			c.completedAs = s
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 15 * time.Second},
		completedAs: orders.StatusConfirmed,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Orders = &OrdersClient{c: c}
	c.Products = &ProductsClient{c: c}
	c.Recipes = &RecipesClient{c: c}
	c.Allergens = &AllergensClient{c: c}
	c.Audits = &AuditsClient{c: c}
	c.Auth = &AuthClient{c: c}
	c.Users = &UsersClient{c: c}
	return c
}

// wireStatus maps a domain status to the name the backend stores.
func (c *Client) wireStatus(s orders.Status) orders.Status {
	if s.Normalize() == orders.StatusCompleted {
		return c.completedAs
	}
	return s.Normalize()
}

func (c *Client) token(ctx context.Context) (string, error) {
	if t := tokenFrom(ctx); t != "" {
		return t, nil
	}
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	telemetry.Inject(ctx, req.Header)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	tok, err := c.token(ctx)
	if err != nil {
		return fmt.Errorf("token: %w", err)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return newHTTPError(method, path, resp.StatusCode, raw)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, path, err)
	}
	return nil
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("size", fmt.Sprint(size))
	return q
}
