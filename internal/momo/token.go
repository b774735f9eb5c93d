package momo

import (
	"context"
	"sync"
	"time"
)

// expirySkew treats a token as expired this long before its real expiry so an
// in-flight call never presents a token that dies mid-request.
const expirySkew = 60 * time.Second

// Token is an OAuth-style bearer token owned by exactly one adapter.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Valid reports whether the token can still be presented, honoring the
// safety skew.
func (t Token) Valid(now time.Time) bool {
	return t.AccessToken != "" && now.Before(t.ExpiresAt.Add(-expirySkew))
}

// TokenSource caches one bearer token and refreshes it lazily through the
// supplied fetch function. Refresh is serialized with a mutex so concurrent
// calls racing past an expired-token check trigger a single authentication
// round trip.
type TokenSource struct {
	mu    sync.Mutex
	token Token
	fetch func(ctx context.Context) (Token, error)
}

// NewTokenSource creates a token source around a fetch function.
func NewTokenSource(fetch func(ctx context.Context) (Token, error)) *TokenSource {
	return &TokenSource{fetch: fetch}
}

// Get returns a valid token, refreshing through fetch when the cached one is
// absent or inside the expiry skew.
func (s *TokenSource) Get(ctx context.Context) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token.Valid(time.Now()) {
		return s.token, nil
	}

	token, err := s.fetch(ctx)
	if err != nil {
		return Token{}, err
	}
	s.token = token
	return token, nil
}

// Refresh forces a new token regardless of the cached one's validity.
func (s *TokenSource) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	s.token = token
	return nil
}

// Invalidate discards the cached token so the next Get refreshes.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	s.token = Token{}
	s.mu.Unlock()
}
