// Package auth runs the two-step login: credentials for a token, then the token for a profile.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
	"github.com/DIMO-Network/fleet-sync/internal/metrics"
	"github.com/DIMO-Network/fleet-sync/internal/session"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog"
)

// Flow states.
const (
	StateIdle            = "idle"
	StateSubmitting      = "submitting"
	StateProfileFetching = "profile_fetching"
	StateAuthenticated   = "authenticated"
	StateFailed          = "failed"
)

const (
	eventSubmit        = "submit"
	eventTokenIssued   = "token_issued"
	eventProfileLoaded = "profile_loaded"
	eventFail          = "fail"
)

// IdentityService is the remote login capability.
type IdentityService interface {
	Login(ctx context.Context, email, password string) (string, error)
	GetProfile(ctx context.Context, token string) (*session.Profile, error)
}

// SessionStore receives the established session.
type SessionStore interface {
	SetSession(token string, profile session.Profile) error
}

// Flow is the authentication state machine. Only one submission runs at a time.
type Flow struct {
	machine  *fsm.FSM
	identity IdentityService
	sessions SessionStore
	logger   *zerolog.Logger

	mu      sync.Mutex
	message string
}

// NewFlow creates a Flow in the idle state.
func NewFlow(identity IdentityService, sessions SessionStore, logger zerolog.Logger) (*Flow, error) {
	if identity == nil {
		return nil, fmt.Errorf("identity service is nil")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session store is nil")
	}
	f := &Flow{
		identity: identity,
		sessions: sessions,
		logger:   &logger,
	}
	f.machine = fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventSubmit, Src: []string{StateIdle, StateFailed, StateAuthenticated}, Dst: StateSubmitting},
			{Name: eventTokenIssued, Src: []string{StateSubmitting}, Dst: StateProfileFetching},
			{Name: eventProfileLoaded, Src: []string{StateProfileFetching}, Dst: StateAuthenticated},
			{Name: eventFail, Src: []string{StateSubmitting, StateProfileFetching}, Dst: StateFailed},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				f.logger.Debug().Str("from", e.Src).Str("to", e.Dst).Str("event", e.Event).Msg("auth state changed")
			},
		},
	)
	return f, nil
}

// State returns the current state name.
func (f *Flow) State() string {
	return f.machine.Current()
}

// Message returns the service-provided message of the last failure, if any.
func (f *Flow) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.message
}

// Submit validates creds, logs in, fetches the profile and establishes the session.
// Login and profile calls are strictly sequential; the token is only kept if both succeed.
func (f *Flow) Submit(ctx context.Context, creds Credentials) (*session.Profile, error) {
	creds.Email = strings.TrimSpace(creds.Email)
	if err := creds.Validate(); err != nil {
		metrics.LoginTotal.WithLabelValues(apperr.KindValidation.String()).Inc()
		return nil, err
	}

	// Transitions use a context that outlives the caller so a canceled submit still lands in Failed.
	fsmCtx := context.WithoutCancel(ctx)
	if err := f.machine.Event(fsmCtx, eventSubmit); err != nil {
		var invalid fsm.InvalidEventError
		if errors.As(err, &invalid) {
			metrics.LoginTotal.WithLabelValues(apperr.KindBusy.String()).Inc()
			return nil, apperr.ErrBusy
		}
		return nil, fmt.Errorf("failed to start login: %w", err)
	}
	f.setMessage("")

	token, err := f.identity.Login(ctx, creds.Email, creds.Password)
	if err != nil {
		return nil, f.fail(fsmCtx, "login", err)
	}
	if err := f.machine.Event(fsmCtx, eventTokenIssued); err != nil {
		return nil, f.fail(fsmCtx, "login", err)
	}

	profile, err := f.identity.GetProfile(ctx, token)
	if err != nil {
		return nil, f.fail(fsmCtx, "profile", err)
	}
	if err := f.sessions.SetSession(token, *profile); err != nil {
		return nil, f.fail(fsmCtx, "profile", err)
	}
	if err := f.machine.Event(fsmCtx, eventProfileLoaded); err != nil {
		return nil, fmt.Errorf("failed to finish login: %w", err)
	}

	metrics.LoginTotal.WithLabelValues("ok").Inc()
	metrics.SessionActive.Set(1)
	f.logger.Info().Str("user", profile.Name).Msg("user authenticated")
	return profile, nil
}

// fail moves the machine to Failed and maps err onto the taxonomy.
func (f *Flow) fail(ctx context.Context, op string, err error) error {
	if fsmErr := f.machine.Event(ctx, eventFail); fsmErr != nil {
		f.logger.Error().Err(fsmErr).Msg("failed to record auth failure")
	}

	mapped := mapError(op, err)
	var rejected *apperr.RejectedError
	if errors.As(mapped, &rejected) {
		f.setMessage(rejected.Message)
	}
	metrics.LoginTotal.WithLabelValues(apperr.KindOf(mapped).String()).Inc()
	f.logger.Warn().Err(err).Str("step", op).Msg("authentication failed")
	return mapped
}

func (f *Flow) setMessage(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = message
}

func mapError(op string, err error) error {
	switch {
	case errors.Is(err, apperr.ErrRejected):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrServiceUnavailable, err)
	case errors.Is(err, rest.ErrUnauthorized):
		return &apperr.RejectedError{Op: op, Message: "access denied"}
	case errors.Is(err, session.ErrTokenExpired):
		return &apperr.RejectedError{Op: op, Message: "session token already expired"}
	case errors.Is(err, rest.ErrMalformedResponse):
		return &apperr.ValidationError{Source: op + " response", Err: err}
	default:
		return fmt.Errorf("%s: %w: %w", op, apperr.ErrServiceUnavailable, err)
	}
}
