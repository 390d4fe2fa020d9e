package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	restClient, err := rest.NewClient(srv.URL, srv.Client(), rest.RetryPolicy{}, zerolog.Nop())
	require.NoError(t, err)
	client, err := NewClient(restClient)
	require.NoError(t, err)
	return client
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantToken string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "token string",
			status:    http.StatusOK,
			body:      `{"status":"success","data":"tok123"}`,
			wantToken: "tok123",
		},
		{
			name:      "token object",
			status:    http.StatusOK,
			body:      `{"status":"success","data":{"token":"tok456"}}`,
			wantToken: "tok456",
		},
		{
			name:   "service error envelope",
			status: http.StatusOK,
			body:   `{"status":"error","message":"Credenciais inválidas"}`,
			check: func(t *testing.T, err error) {
				var rejected *apperr.RejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, "Credenciais inválidas", rejected.Message)
			},
		},
		{
			name:   "401 with error envelope",
			status: http.StatusUnauthorized,
			body:   `{"status":"error","message":"wrong password"}`,
			check: func(t *testing.T, err error) {
				var rejected *apperr.RejectedError
				require.ErrorAs(t, err, &rejected)
				assert.Equal(t, "wrong password", rejected.Message)
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"status":"error","message":"db down"}`,
			check: func(t *testing.T, err error) {
				var status *rest.StatusError
				require.ErrorAs(t, err, &status)
				assert.NotErrorIs(t, err, apperr.ErrRejected)
			},
		},
		{
			name:   "missing token",
			status: http.StatusOK,
			body:   `{"status":"success","data":null}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, rest.ErrMalformedResponse)
			},
		},
		{
			name:   "unknown status",
			status: http.StatusOK,
			body:   `{"status":"pending"}`,
			check: func(t *testing.T, err error) {
				require.ErrorIs(t, err, rest.ErrMalformedResponse)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/auth/login", r.URL.Path)
				var req LoginRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, LoginRequest{Email: "a@b.com", Password: "x"}, req)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			token, err := client.Login(context.Background(), "a@b.com", "x")
			if tt.check != nil {
				tt.check(t, err)
				assert.Empty(t, token)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, token)
		})
	}
}

func TestGetProfile(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/profile", r.URL.Path)
		assert.Equal(t, "Bearer tok123", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"status":"success","data":{"name":"Ana","email":"a@b.com"}}`))
	})

	profile, err := client.GetProfile(context.Background(), "tok123")
	require.NoError(t, err)
	assert.Equal(t, "Ana", profile.Name)
	assert.Equal(t, "a@b.com", profile.Email)
}

func TestGetProfileFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		target error
	}{
		{"error envelope", http.StatusOK, `{"status":"error","message":"no profile"}`, apperr.ErrRejected},
		{"missing name", http.StatusOK, `{"status":"success","data":{"email":"a@b.com"}}`, rest.ErrMalformedResponse},
		{"bad data", http.StatusOK, `{"status":"success","data":[1,2]}`, rest.ErrMalformedResponse},
		{"unauthorized without envelope", http.StatusUnauthorized, ``, rest.ErrUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			profile, err := client.GetProfile(context.Background(), "tok123")
			require.ErrorIs(t, err, tt.target)
			assert.Nil(t, profile)
		})
	}
}
