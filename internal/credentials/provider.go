package credentials

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sdr-go/internal/sdr"
)

// ErrNoToken is returned when no token has been stored yet.
var ErrNoToken = fmt.Errorf("no token stored, run `sdr login`: %w", sdr.ErrUnauthorized)

// Refresher obtains a new token, typically by logging in again.
type Refresher func(ctx context.Context) (string, error)

// Provider implements sdr.TokenProvider on top of a FileStore. A token that
// is known to have expired is refreshed before use when a Refresher is set.
type Provider struct {
	store   *FileStore
	refresh Refresher
	clock   sdr.Clock
	logger  sdr.Logger

	mu     sync.Mutex
	token  string
	loaded bool
}

// NewProvider creates a Provider. refresh may be nil.
func NewProvider(store *FileStore, refresh Refresher, clock sdr.Clock, logger sdr.Logger) *Provider {
	return &Provider{
		store:   store,
		refresh: refresh,
		clock:   clock,
		logger:  logger,
	}
}

// CurrentToken returns the cached or stored token.
func (p *Provider) CurrentToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.loaded {
		token, err := p.store.Load()
		if err != nil {
			return "", err
		}
		p.token = token
		p.loaded = true
	}

	if p.token != "" && p.refresh != nil {
		if exp, ok := Expiry(p.token); ok && !p.clock.Now().Before(exp) {
			p.logger.Info("stored token has expired, refreshing", "expired_at", exp)
			return p.refreshLocked(ctx)
		}
	}

	if p.token == "" {
		if p.refresh == nil {
			return "", ErrNoToken
		}
		return p.refreshLocked(ctx)
	}
	return p.token, nil
}

// RefreshToken obtains, stores and returns a new token. When the token held
// now differs from rejected, another request already refreshed it and that
// token is returned as is.
func (p *Provider) RefreshToken(ctx context.Context, rejected string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loaded && p.token != "" && p.token != rejected {
		p.logger.Debug("token already refreshed by a concurrent request")
		return p.token, nil
	}
	return p.refreshLocked(ctx)
}

// Save stores a token obtained outside the provider, e.g. by `sdr login`.
func (p *Provider) Save(token string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Save(token); err != nil {
		return err
	}
	p.token = token
	p.loaded = true
	return nil
}

func (p *Provider) refreshLocked(ctx context.Context) (string, error) {
	if p.refresh == nil {
		return "", fmt.Errorf("cannot refresh token: %w", sdr.ErrUnauthorized)
	}
	token, err := p.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("refreshing token: %w", err)
	}
	if err := p.store.Save(token); err != nil {
		return "", err
	}
	p.token = token
	p.loaded = true
	p.logger.Info("token refreshed", "path", p.store.Path())
	return token, nil
}

// Expiry reads the exp claim of a JWT without verifying its signature.
// ok is false for opaque tokens and tokens without an expiry.
func Expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Compile-time check that Provider implements sdr.TokenProvider interface
var _ sdr.TokenProvider = (*Provider)(nil)
