package identity

import (
	"errors"
	"fmt"

	"github.com/geocoder89/authservice/internal/domain/user"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailRequired      = errors.New("email is required")
)

// WrongProviderError is returned when a password login targets an account
// bound to another provider.
type WrongProviderError struct {
	Provider user.Provider
}

func (e *WrongProviderError) Error() string {
	return fmt.Sprintf("account is bound to %s, please login using %s", e.Provider, e.Provider)
}

// MissingEmailError is returned for providers known to omit the email address.
type MissingEmailError struct {
	Provider user.Provider
	Guidance string
}

func (e *MissingEmailError) Error() string {
	return e.Guidance
}
