// Package account implements email/password registration, login and
// password change on top of the identity reconciler and the token codec.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/identity"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("authservice/account")

// UserStore adds the narrow writes used after a credential check, so a
// concurrent status change or provider switch is never overwritten.
type UserStore interface {
	identity.UserStore
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, hash string, at time.Time) error
}

type CredentialResolver interface {
	ResolveCredentials(ctx context.Context, email, password string) (user.User, error)
}

type TokenIssuer interface {
	IssueFor(u user.User) (string, error)
}

type Metrics interface {
	AuthOutcome(operation, outcome string)
}

type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
	ClientIP        string
}

type LoginInput struct {
	Email    string
	Password string
	ClientIP string
}

type ChangePasswordInput struct {
	Email           string
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
	ClientIP        string
}

type AuthResponse struct {
	Token    string        `json:"token"`
	Email    string        `json:"email"`
	Role     user.Role     `json:"role"`
	Provider user.Provider `json:"provider"`
}

type Service struct {
	users   UserStore
	creds   CredentialResolver
	hasher  security.PasswordHasher
	tokens  TokenIssuer
	audit   *audit.Recorder
	metrics Metrics
	log     *slog.Logger
	now     func() time.Time
}

func NewService(
	users UserStore,
	creds CredentialResolver,
	hasher security.PasswordHasher,
	tokens TokenIssuer,
	recorder *audit.Recorder,
	metrics Metrics,
	log *slog.Logger,
) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:   users,
		creds:   creds,
		hasher:  hasher,
		tokens:  tokens,
		audit:   recorder,
		metrics: metrics,
		log:     log,
		now:     time.Now,
	}
}

// Register checks, in order: email free, passwords match, role known.
// Nothing is written unless all three pass.
func (s *Service) Register(ctx context.Context, in RegisterInput) (resp AuthResponse, err error) {
	ctx, span := tracer.Start(ctx, "account.Register")
	defer func() { s.finish(span, "register", err) }()

	_, err = s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return AuthResponse{}, ErrEmailInUse
	case !errors.Is(err, user.ErrNotFound):
		return AuthResponse{}, fmt.Errorf("lookup user: %w", err)
	}

	if in.Password != in.ConfirmPassword {
		return AuthResponse{}, ErrPasswordMismatch
	}

	role, err := user.ParseRole(in.Role)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("%w: %q", ErrInvalidRole, in.Role)
	}

	if security.CheckLength(in.Password) != nil {
		return AuthResponse{}, ErrPasswordTooLong
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	created, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Role:         role,
		Provider:     user.ProviderEmail,
		Status:       user.StatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			return AuthResponse{}, ErrEmailInUse
		}
		return AuthResponse{}, fmt.Errorf("create user: %w", err)
	}

	resp, err = s.respond(created)
	if err != nil {
		return AuthResponse{}, err
	}

	s.audit.Record(ctx, activity.New(created.ID, created.Email, activity.ActionUserRegister, in.ClientIP, "User registered."))
	s.log.InfoContext(ctx, "user registered", "user_id", created.ID, "role", created.Role)

	return resp, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (resp AuthResponse, err error) {
	ctx, span := tracer.Start(ctx, "account.Login")
	defer func() { s.finish(span, "login", err) }()

	u, err := s.creds.ResolveCredentials(ctx, in.Email, in.Password)
	if err != nil {
		return AuthResponse{}, err
	}

	resp, err = s.respond(u)
	if err != nil {
		return AuthResponse{}, err
	}

	if err = s.users.TouchLastLogin(ctx, u.ID, s.now().UTC()); err != nil {
		return AuthResponse{}, fmt.Errorf("record last login: %w", err)
	}

	s.audit.Record(ctx, activity.New(u.ID, u.Email, activity.ActionUserLogin, in.ClientIP, "User logged in successfully."))

	return resp, nil
}

// ChangePassword re-verifies the current password before replacing the hash.
func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) (err error) {
	ctx, span := tracer.Start(ctx, "account.ChangePassword")
	defer func() { s.finish(span, "change_password", err) }()

	if in.NewPassword != in.ConfirmPassword {
		return ErrPasswordMismatch
	}

	if security.CheckLength(in.NewPassword) != nil {
		return ErrPasswordTooLong
	}

	u, err := s.creds.ResolveCredentials(ctx, in.Email, in.CurrentPassword)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err = s.users.UpdatePassword(ctx, u.ID, hash, s.now().UTC()); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.audit.Record(ctx, activity.New(u.ID, u.Email, activity.ActionPasswordChange, in.ClientIP, "Password changed."))

	return nil
}

func (s *Service) respond(u user.User) (AuthResponse, error) {
	// status is reported, not enforced
	if !u.IsActive() {
		s.log.Warn("issuing token for inactive user", "user_id", u.ID, "status", u.Status)
	}

	token, err := s.tokens.IssueFor(u)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("issue token: %w", err)
	}

	return AuthResponse{
		Token:    token,
		Email:    u.Email,
		Role:     u.Role,
		Provider: u.Provider,
	}, nil
}

func (s *Service) finish(span trace.Span, operation string, err error) {
	outcome := Outcome(err)
	span.SetAttributes(attribute.String("auth.outcome", outcome))

	if err != nil && outcome == "error" {
		span.RecordError(err)
		span.SetStatus(codes.Error, operation)
	}
	span.End()

	if s.metrics != nil {
		s.metrics.AuthOutcome(operation, outcome)
	}
}

// Outcome classifies an account or identity error as a metric label.
func Outcome(err error) string {
	var wrong *identity.WrongProviderError

	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrEmailInUse):
		return "email_in_use"
	case errors.Is(err, ErrPasswordMismatch):
		return "password_mismatch"
	case errors.Is(err, ErrInvalidRole):
		return "invalid_role"
	case errors.Is(err, ErrPasswordTooLong):
		return "password_too_long"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.As(err, &wrong):
		return "wrong_provider"
	default:
		return "error"
	}
}
