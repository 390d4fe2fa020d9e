// Package session holds the in-memory authentication state shared by every fetcher.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/patrickmn/go-cache"
	"github.com/segmentio/ksuid"
)

const (
	sessionKey = "session"
	// expirySkew is subtracted from a JWT's exp so a token is never sent right as it lapses.
	expirySkew = 30 * time.Second
)

// ErrTokenExpired is returned by SetSession for a JWT whose expiry has already passed.
var ErrTokenExpired = errors.New("token already expired")

// Profile is the user profile returned after login.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

type entry struct {
	id      string
	token   string
	profile Profile
}

// Guard owns the session. Only SetSession, ClearSession and Revoke mutate it.
type Guard struct {
	mu    sync.RWMutex
	cache *cache.Cache
	now   func() time.Time
}

// NewGuard creates an empty, unauthenticated guard.
func NewGuard() *Guard {
	return &Guard{
		cache: cache.New(cache.NoExpiration, time.Minute),
		now:   time.Now,
	}
}

func (g *Guard) current() (entry, bool) {
	v, found := g.cache.Get(sessionKey)
	if !found {
		return entry{}, false
	}
	e := v.(entry)
	if e.token == "" {
		return entry{}, false
	}
	return e, true
}

// HasValidToken reports whether a non-empty, unexpired token is held.
func (g *Guard) HasValidToken() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.current()
	return ok
}

// RequireSession returns the current token or apperr.ErrAuthRequired.
func (g *Guard) RequireSession() (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.current()
	if !ok {
		return "", apperr.ErrAuthRequired
	}
	return e.token, nil
}

// Profile returns the profile of the current session.
func (g *Guard) Profile() (Profile, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, ok := g.current()
	if !ok {
		return Profile{}, false
	}
	return e.profile, true
}

// ID returns the correlation ID of the current session, or "" when unauthenticated.
func (g *Guard) ID() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	e, _ := g.current()
	return e.id
}

// SetSession stores token and profile together. On error the previous session is left untouched.
func (g *Guard) SetSession(token string, profile Profile) error {
	if token == "" {
		return fmt.Errorf("set session: %w", apperr.ErrAuthRequired)
	}
	ttl := cache.NoExpiration
	if expiry, ok := expirationFromToken(token); ok {
		ttl = expiry.Sub(g.now()) - expirySkew
		if ttl <= 0 {
			return fmt.Errorf("set session: %w", ErrTokenExpired)
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Set(sessionKey, entry{
		id:      ksuid.New().String(),
		token:   token,
		profile: profile,
	}, ttl)
	return nil
}

// ClearSession drops the token and profile. It always returns apperr.ErrAuthRequired
// so callers can propagate it directly.
func (g *Guard) ClearSession() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cache.Delete(sessionKey)
	return apperr.ErrAuthRequired
}

// Revoke clears the session only if token is still the current one, so a late
// authorization failure for an old token cannot end a newer session.
func (g *Guard) Revoke(token string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e, ok := g.current(); ok && e.token == token {
		g.cache.Delete(sessionKey)
	}
	return apperr.ErrAuthRequired
}

// expirationFromToken reads the exp claim without verifying the signature.
// Opaque tokens and JWTs without exp report ok=false.
func expirationFromToken(tokenString string) (time.Time, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
