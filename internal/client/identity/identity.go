// Package identity provides functionality to interact with the fleet API's auth endpoints.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
	"github.com/DIMO-Network/fleet-sync/internal/client/rest"
	"github.com/DIMO-Network/fleet-sync/internal/session"
)

const (
	loginPath   = "auth/login"
	profilePath = "auth/profile"
)

// Client exchanges credentials for a token and a token for a profile.
type Client struct {
	rest *rest.Client
}

// NewClient creates a new identity Client.
func NewClient(restClient *rest.Client) (*Client, error) {
	if restClient == nil {
		return nil, fmt.Errorf("REST client is nil")
	}
	return &Client{rest: restClient}, nil
}

// Login exchanges credentials for a session token. A refusal by the service is
// returned as *apperr.RejectedError carrying the service message.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var resp envelope
	err := c.rest.Post(ctx, "", LoginRequest{Email: email, Password: password}, &resp, loginPath)
	if err != nil {
		return "", rejectedOr("login", err)
	}
	if err := checkStatus("login", resp); err != nil {
		return "", err
	}

	var token string
	if err := json.Unmarshal(resp.Data, &token); err != nil || token == "" {
		// Some deployments wrap the token in an object.
		var tokenResponse struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(resp.Data, &tokenResponse); err != nil || tokenResponse.Token == "" {
			return "", fmt.Errorf("%w: login response has no token", rest.ErrMalformedResponse)
		}
		token = tokenResponse.Token
	}
	return token, nil
}

// GetProfile fetches the profile of the user owning token.
func (c *Client) GetProfile(ctx context.Context, token string) (*session.Profile, error) {
	var resp envelope
	if err := c.rest.Get(ctx, token, &resp, profilePath); err != nil {
		return nil, rejectedOr("profile", err)
	}
	if err := checkStatus("profile", resp); err != nil {
		return nil, err
	}

	var profile ProfileResponse
	if err := json.Unmarshal(resp.Data, &profile); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal profile: %w", rest.ErrMalformedResponse, err)
	}
	if profile.Name == nil {
		return nil, fmt.Errorf("%w: profile has no name", rest.ErrMalformedResponse)
	}
	return &session.Profile{Name: *profile.Name, Email: profile.Email}, nil
}

func checkStatus(op string, resp envelope) error {
	switch resp.Status {
	case statusSuccess:
		return nil
	case statusError:
		return &apperr.RejectedError{Op: op, Message: resp.Message}
	default:
		return fmt.Errorf("%w: unknown %s status %q", rest.ErrMalformedResponse, op, resp.Status)
	}
}

// rejectedOr turns a 4xx response carrying an error envelope into a RejectedError.
func rejectedOr(op string, err error) error {
	body, ok := rest.ResponseBody(err)
	if !ok {
		return fmt.Errorf("failed to call %s: %w", op, err)
	}
	var status *rest.StatusError
	if errors.As(err, &status) && status.Code >= 500 {
		return fmt.Errorf("failed to call %s: %w", op, err)
	}
	var resp envelope
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil || resp.Status != statusError || resp.Message == "" {
		return fmt.Errorf("failed to call %s: %w", op, err)
	}
	return &apperr.RejectedError{Op: op, Message: resp.Message}
}
