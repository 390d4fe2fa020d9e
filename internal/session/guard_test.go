package session

import (
	"sync"
	"testing"
	"time"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestGuardStartsEmpty(t *testing.T) {
	g := NewGuard()
	assert.False(t, g.HasValidToken())

	token, err := g.RequireSession()
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.Empty(t, token)

	_, ok := g.Profile()
	assert.False(t, ok)
	assert.Empty(t, g.ID())
}

func TestGuardSetAndClear(t *testing.T) {
	g := NewGuard()
	require.NoError(t, g.SetSession("tok123", Profile{Name: "Ana"}))

	assert.True(t, g.HasValidToken())
	token, err := g.RequireSession()
	require.NoError(t, err)
	assert.Equal(t, "tok123", token)
	profile, ok := g.Profile()
	require.True(t, ok)
	assert.Equal(t, "Ana", profile.Name)
	assert.NotEmpty(t, g.ID())

	err = g.ClearSession()
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.False(t, g.HasValidToken())
	_, ok = g.Profile()
	assert.False(t, ok)
}

func TestGuardSetSessionRejectsEmptyToken(t *testing.T) {
	g := NewGuard()
	require.NoError(t, g.SetSession("tok123", Profile{Name: "Ana"}))

	err := g.SetSession("", Profile{Name: "Bia"})
	require.Error(t, err)

	profile, ok := g.Profile()
	require.True(t, ok)
	assert.Equal(t, "Ana", profile.Name, "failed set must leave the previous session intact")
}

func TestGuardRevokeOnlyMatchingToken(t *testing.T) {
	g := NewGuard()
	require.NoError(t, g.SetSession("new-token", Profile{Name: "Ana"}))

	err := g.Revoke("old-token")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.True(t, g.HasValidToken())

	err = g.Revoke("new-token")
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
	assert.False(t, g.HasValidToken())
}

func TestGuardJWTExpiry(t *testing.T) {
	g := NewGuard()

	expired := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(-time.Minute).Unix()})
	err := g.SetSession(expired, Profile{Name: "Ana"})
	require.ErrorIs(t, err, ErrTokenExpired)
	assert.False(t, g.HasValidToken())

	valid := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, g.SetSession(valid, Profile{Name: "Ana"}))
	assert.True(t, g.HasValidToken())

	noExp := signedToken(t, jwt.MapClaims{"sub": "ana"})
	require.NoError(t, g.SetSession(noExp, Profile{Name: "Ana"}))
	assert.True(t, g.HasValidToken())
}

func TestGuardSessionLapses(t *testing.T) {
	g := NewGuard()
	// exp has second resolution, so leave enough headroom past the skew.
	short := signedToken(t, jwt.MapClaims{"exp": time.Now().Add(expirySkew + 2*time.Second).Unix()})
	require.NoError(t, g.SetSession(short, Profile{Name: "Ana"}))
	require.True(t, g.HasValidToken())

	require.Eventually(t, func() bool {
		return !g.HasValidToken()
	}, 5*time.Second, 50*time.Millisecond)

	_, err := g.RequireSession()
	assert.ErrorIs(t, err, apperr.ErrAuthRequired)
}

func TestGuardConcurrentAccess(t *testing.T) {
	g := NewGuard()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = g.SetSession("tok", Profile{Name: "Ana"})
		}()
		go func() {
			defer wg.Done()
			if token, err := g.RequireSession(); err == nil {
				assert.Equal(t, "tok", token)
			}
			if profile, ok := g.Profile(); ok {
				assert.Equal(t, "Ana", profile.Name)
			}
			_ = g.ClearSession()
		}()
	}
	wg.Wait()
}
