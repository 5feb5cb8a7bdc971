package passwork

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// Tokens is a Passwork access/refresh token pair.
type Tokens struct {
	AccessToken          string    `json:"accessToken" bson:"access_token"`
	RefreshToken         string    `json:"refreshToken,omitempty" bson:"refresh_token,omitempty"`
	AccessTokenExpiresAt time.Time `json:"accessTokenExpiredAt,omitempty" bson:"access_token_expires_at,omitempty"`
}

// TokenStore persists the token pair after each refresh, so a rotated refresh
// token survives the process.
type TokenStore interface {
	Load(ctx context.Context) (*Tokens, error)
	Save(ctx context.Context, tokens Tokens) error
}

// tokenSource is the oauth2.TokenSource behind the client transport. It only
// hands out the current pair; refreshing is driven by the client on 401s.
type tokenSource struct {
	mu     sync.RWMutex
	tokens Tokens
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.tokens.AccessToken == "" {
		return nil, ErrNoTokens
	}
	return &oauth2.Token{
		AccessToken:  s.tokens.AccessToken,
		RefreshToken: s.tokens.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.tokens.AccessTokenExpiresAt,
	}, nil
}

func (s *tokenSource) get() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

func (s *tokenSource) set(tokens Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = tokens
}
