package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	verr := NewValidationError("vehicles")
	verr.AddAt(2, "latitude", "out of range")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"auth required", ErrAuthRequired, KindAuthRequired},
		{"wrapped auth required", fmt.Errorf("fetch vehicles: %w", ErrAuthRequired), KindAuthRequired},
		{"busy", ErrBusy, KindBusy},
		{"validation", verr, KindValidation},
		{"wrapped validation", fmt.Errorf("fetch: %w", verr), KindValidation},
		{"rejected", &RejectedError{Op: "login", Message: "bad password"}, KindRejected},
		{"service unavailable", ErrServiceUnavailable, KindServiceUnavailable},
		{"unknown error", errors.New("boom"), KindServiceUnavailable},
		{"canceled", fmt.Errorf("wait: %w", context.Canceled), KindCanceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestValidationError(t *testing.T) {
	verr := NewValidationError("credentials")
	assert.False(t, verr.HasErrors())

	verr.Add("email", "invalid email")
	verr.Add("email", "second message")
	verr.Add("password", "required")
	require.True(t, verr.HasErrors())

	assert.Equal(t, map[string]string{
		"email":    "invalid email",
		"password": "required",
	}, verr.FieldMessages())
	assert.Equal(t, "invalid credentials: email: invalid email; email: second message; password: required", verr.Error())
	assert.ErrorIs(t, verr, ErrValidation)
	assert.NotErrorIs(t, verr, ErrAuthRequired)

	var target *ValidationError
	require.ErrorAs(t, fmt.Errorf("wrapped: %w", verr), &target)
	assert.Len(t, target.Fields, 3)
}

func TestValidationErrorWithCause(t *testing.T) {
	cause := errors.New("unexpected token")
	verr := &ValidationError{Source: "vehicles", Err: cause}
	assert.True(t, verr.HasErrors())
	assert.ErrorIs(t, verr, cause)
	assert.ErrorIs(t, verr, ErrValidation)
	assert.Equal(t, "invalid vehicles: unexpected token", verr.Error())
}
