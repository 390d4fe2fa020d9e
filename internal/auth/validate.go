package auth

import (
	"net/mail"
	"strings"

	"github.com/DIMO-Network/fleet-sync/internal/apperr"
)

const (
	msgRequired     = "required"
	msgInvalidEmail = "invalid email"
)

// Credentials are the user's login form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks the credentials locally. It returns nil or a
// *apperr.ValidationError with one entry per invalid field.
func (c Credentials) Validate() error {
	verr := apperr.NewValidationError("credentials")

	email := strings.TrimSpace(c.Email)
	switch {
	case email == "":
		verr.Add("email", msgRequired)
	case !wellFormedEmail(email):
		verr.Add("email", msgInvalidEmail)
	}
	if c.Password == "" {
		verr.Add("password", msgRequired)
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// wellFormedEmail accepts a bare addr-spec with a dotted domain; display names are rejected.
func wellFormedEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}
