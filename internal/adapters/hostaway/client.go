// Package hostaway fetches guest reviews from the property-management API.
package hostaway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"reviews_dashboard/internal/adapters/upstream"
	"reviews_dashboard/internal/domain"
)

const (
	Name = "hostaway"

	// refreshMargin renews the token this long before it actually expires.
	refreshMargin   = 60 * time.Second
	defaultTokenTTL = time.Hour
	defaultPageSize = 100
	authTimeout     = 15 * time.Second
)

var ErrBadPayload = errors.New("hostaway: unexpected payload")

type Client struct {
	base      string
	accountID string
	apiKey    string
	pageSize  int
	http      *upstream.Client
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	refresh   singleflight.Group
}

type Option func(*Client)

// WithClock injects the time source used for token expiry.
func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

func WithHTTP(h *upstream.Client) Option { return func(c *Client) { c.http = h } }

func New(base, accountID, apiKey string, opts ...Option) *Client {
	c := &Client{
		base:      strings.TrimRight(base, "/"),
		accountID: strings.TrimSpace(accountID),
		apiKey:    strings.TrimSpace(apiKey),
		pageSize:  defaultPageSize,
		now:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = upstream.New(Name, 10*time.Second, 5)
	}
	return c
}

func (c *Client) Name() string { return Name }

// Configured reports whether credentials are present.
func (c *Client) Configured() bool { return c.accountID != "" && c.apiKey != "" }

/********** token cache **********/

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns the cached bearer token, authenticating when it is absent
// or inside the refresh margin. Concurrent callers share one refresh that
// outlives any single caller's cancellation.
func (c *Client) Token(ctx context.Context) (string, error) {
	if tok, ok := c.cached(); ok {
		return tok, nil
	}
	ch := c.refresh.DoChan("token", func() (any, error) {
		if tok, ok := c.cached(); ok {
			return tok, nil
		}
		actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), authTimeout)
		defer cancel()
		return c.authenticate(actx)
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Before(c.expiresAt.Add(-refreshMargin)) {
		return "", false
	}
	return c.token, true
}

func (c *Client) invalidate(tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == tok {
		c.token = ""
		c.expiresAt = time.Time{}
	}
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.accountID},
		"client_secret": {c.apiKey},
		"scope":         {"general"},
	}
	var tr tokenResponse
	err := c.http.Do(ctx, "accessTokens", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/accessTokens", strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	}, &tr)
	if err != nil {
		return "", fmt.Errorf("hostaway auth: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("hostaway auth: %w: empty access_token", ErrBadPayload)
	}
	ttl := time.Duration(tr.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}

	c.mu.Lock()
	c.token = tr.AccessToken
	c.expiresAt = c.now().Add(ttl)
	c.mu.Unlock()
	return tr.AccessToken, nil
}

/********** reviews **********/

// FetchReviews returns one page of raw review records. A rejected token
// is dropped and the call retried once with a fresh one.
func (c *Client) FetchReviews(ctx context.Context, _ domain.FetchScope) ([]map[string]any, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("hostaway: %w", upstream.ErrUnauthorized)
	}
	out, tok, err := c.fetchPage(ctx)
	if errors.Is(err, upstream.ErrUnauthorized) {
		c.invalidate(tok)
		out, _, err = c.fetchPage(ctx)
	}
	return out, err
}

func (c *Client) fetchPage(ctx context.Context) ([]map[string]any, string, error) {
	tok, err := c.Token(ctx)
	if err != nil {
		return nil, "", err
	}
	u := c.base + "/reviews?" + url.Values{
		"limit":  {strconv.Itoa(c.pageSize)},
		"offset": {"0"},
	}.Encode()

	var raw json.RawMessage
	err = c.http.Do(ctx, "reviews", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Cache-Control", "no-cache")
		return req, nil
	}, &raw)
	if err != nil {
		return nil, tok, fmt.Errorf("hostaway reviews: %w", err)
	}
	recs, err := decodeReviews(raw)
	return recs, tok, err
}

type envelope struct {
	Status  string           `json:"status"`
	Message string           `json:"message"`
	Result  []map[string]any `json:"result"`
}

// decodeReviews accepts {status, result: [...]} or a bare array.
func decodeReviews(raw json.RawMessage) ([]map[string]any, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return []map[string]any{}, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var arr []map[string]any
		if err := json.Unmarshal(raw, &arr); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
		}
		return arr, nil
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	if env.Status != "" && !strings.EqualFold(env.Status, "success") {
		return nil, fmt.Errorf("%w: status %q %s", ErrBadPayload, env.Status, env.Message)
	}
	if env.Result == nil {
		return []map[string]any{}, nil
	}
	return env.Result, nil
}
