package identity

import "encoding/json"

const (
	statusSuccess = "success"
	statusError   = "error"
)

// LoginRequest is the body of the login endpoint.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// envelope is the {status, data | message} wrapper used by the auth endpoints.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ProfileResponse is the profile payload carried in the envelope's data field.
type ProfileResponse struct {
	Name  *string `json:"name"`
	Email string  `json:"email"`
}
