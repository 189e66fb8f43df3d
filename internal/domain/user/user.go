package user

import (
	"errors"
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin Role = "ADMIN"
	RoleUser  Role = "USER"
)

// Provider is the authentication method currently bound to an account.
type Provider string

const (
	ProviderEmail  Provider = "EMAIL"
	ProviderGoogle Provider = "GOOGLE"
	ProviderGitHub Provider = "GITHUB"
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already used")

	ErrUnknownRole     = errors.New("unknown role")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownStatus   = errors.New("unknown status")
)

type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // never expose hash in JSON
	Role         Role       `json:"role"`
	Provider     Provider   `json:"provider"`
	Status       Status     `json:"status"`
	Avatar       string     `json:"avatar,omitempty"`
	LastLogin    *time.Time `json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// HasPassword reports whether a local password hash is stored. The hash is
// advisory: federated accounts may still carry a stale one.
func (u User) HasPassword() bool {
	return u.PasswordHash != ""
}

func (u User) IsActive() bool {
	return u.Status == StatusActive
}

// ParseRole maps a case-insensitive role name onto a known Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", ErrUnknownRole
	}
}

// ParseProvider accepts OAuth2 registration ids ("github") as well as
// stored values ("GITHUB").
func ParseProvider(s string) (Provider, error) {
	switch Provider(strings.ToUpper(strings.TrimSpace(s))) {
	case ProviderEmail:
		return ProviderEmail, nil
	case ProviderGoogle:
		return ProviderGoogle, nil
	case ProviderGitHub:
		return ProviderGitHub, nil
	default:
		return "", ErrUnknownProvider
	}
}

func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusActive:
		return StatusActive, nil
	case StatusSuspended:
		return StatusSuspended, nil
	default:
		return "", ErrUnknownStatus
	}
}

func (p Provider) IsFederated() bool {
	return p == ProviderGoogle || p == ProviderGitHub
}

// RegistrationID is the lower-case provider name used in OAuth2 URLs.
func (p Provider) RegistrationID() string {
	return strings.ToLower(string(p))
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE SUSPENDED active suspended"`
}
