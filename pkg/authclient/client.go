// Package authclient is the Go client for the token lifecycle endpoints. It
// wraps an *http.Client so callers never handle 401s themselves: an expired
// access token is refreshed once, behind a coalescing group, and the original
// request is replayed with the new token.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired means the refresh token itself was rejected. The stored
// pair has been cleared and the user has to log in interactively again.
var ErrSessionExpired = errors.New("authclient: session expired")

// TokenPair is the client-side view of an issued session.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenStore holds the current token pair. Implementations must be safe for
// concurrent use.
type TokenStore interface {
	Get() (TokenPair, bool)
	Set(pair TokenPair)
	Clear()
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu   sync.RWMutex
	pair TokenPair
	ok   bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Get() (TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pair, s.ok
}

func (s *MemoryStore) Set(pair TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = pair
	s.ok = true
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pair = TokenPair{}
	s.ok = false
}

// Client issues authenticated requests against the API.
type Client struct {
	http    *http.Client
	baseURL string
	store   TokenStore
	group   singleflight.Group

	// OnSessionExpired, if set, runs once per refresh failure so the caller
	// can prompt for an interactive login.
	OnSessionExpired func()
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Client talking to the API at baseURL.
func New(baseURL string, store TokenStore, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends the request with the current access token. On a 401 it refreshes
// the token pair exactly once and replays the request; a request that still
// fails after the retry is returned as-is. Requests with a body must be
// replayable (http.NewRequest sets GetBody for common body types).
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	pair, ok := c.store.Get()
	if !ok {
		return nil, ErrSessionExpired
	}

	res, err := c.send(req, pair.AccessToken)
	if err != nil {
		return nil, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}

	// One refresh, one replay. Concurrent 401s coalesce onto a single
	// refresh call; everyone retries with the pair it produced.
	io.Copy(io.Discard, res.Body)
	res.Body.Close()

	fresh, err := c.refresh(req.Context(), pair.RefreshToken)
	if err != nil {
		return nil, err
	}

	return c.send(req, fresh.AccessToken)
}

func (c *Client) send(req *http.Request, accessToken string) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("authclient: replay request body: %w", err)
		}
		clone.Body = body
	}
	clone.Header.Set("Authorization", "Bearer "+accessToken)
	return c.http.Do(clone)
}

// refresh exchanges the refresh token for a new pair. The singleflight key is
// the presented token so a rotated-away pair never piggybacks on a stale call.
func (c *Client) refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	v, err, _ := c.group.Do(refreshToken, func() (interface{}, error) {
		// Another caller may have refreshed already while we waited.
		if current, ok := c.store.Get(); ok && current.RefreshToken != refreshToken {
			return current, nil
		}
		return c.callRefresh(ctx, refreshToken)
	})
	if err != nil {
		return TokenPair{}, err
	}
	return v.(TokenPair), nil
}

func (c *Client) callRefresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return TokenPair{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/refresh", bytes.NewReader(payload))
	if err != nil {
		return TokenPair{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return TokenPair{}, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		c.store.Clear()
		if c.OnSessionExpired != nil {
			c.OnSessionExpired()
		}
		return TokenPair{}, ErrSessionExpired
	}

	var envelope struct {
		Data struct {
			AccessToken  string `json:"access_token"`
			RefreshToken string `json:"refresh_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil {
		return TokenPair{}, fmt.Errorf("authclient: decode refresh response: %w", err)
	}
	if envelope.Data.AccessToken == "" || envelope.Data.RefreshToken == "" {
		return TokenPair{}, errors.New("authclient: refresh response missing tokens")
	}

	pair := TokenPair{
		AccessToken:  envelope.Data.AccessToken,
		RefreshToken: envelope.Data.RefreshToken,
	}
	c.store.Set(pair)
	return pair, nil
}
