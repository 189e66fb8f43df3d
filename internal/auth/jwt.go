package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/golang-jwt/jwt/v5"
)

// MinSecretBytes is the HS256 key floor (256 bits).
const MinSecretBytes = 32

var (
	ErrSecretEncoding   = errors.New("jwt secret is not valid base64")
	ErrSecretTooShort   = fmt.Errorf("jwt secret must decode to at least %d bytes", MinSecretBytes)
	ErrInvalidTTL       = errors.New("token ttl must be positive")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
	ErrMalformed        = errors.New("malformed token")
)

// Claims is the decoded, verified content of a token.
type Claims struct {
	Subject   string
	Role      user.Role
	Provider  user.Provider
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// wire format: {"sub","role","provider","iat","exp"}
type tokenClaims struct {
	Role     string `json:"role"`
	Provider string `json:"provider"`
	jwt.RegisteredClaims
}

type Codec struct {
	key    []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

type Option func(*Codec)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// DecodeSecret turns the configured base64 secret into signing key bytes.
func DecodeSecret(secretB64 string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(secretB64))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSecretEncoding, err)
	}

	if len(key) < MinSecretBytes {
		return nil, ErrSecretTooShort
	}

	return key, nil
}

func NewCodec(secretB64 string, ttl time.Duration, opts ...Option) (*Codec, error) {
	key, err := DecodeSecret(secretB64)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}

	c := &Codec{
		key: key,
		ttl: ttl,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)

	return c, nil
}

func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// IssueFor signs a token for u with the codec's default ttl.
func (c *Codec) IssueFor(u user.User) (string, error) {
	return c.Issue(u.Email, u.Role, u.Provider, c.ttl)
}

func (c *Codec) Issue(subject string, role user.Role, provider user.Provider, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", ErrInvalidTTL
	}

	now := c.now().UTC()

	claims := tokenClaims{
		Role:     string(role),
		Provider: string(provider),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.key)
}

// Validate verifies the signature before looking at any claim, then expiry.
func (c *Codec) Validate(raw string) (Claims, error) {
	// header and payload must at least decode; anything failing after this
	// point and before claim checks is a signature problem.
	if _, _, err := c.parser.ParseUnverified(raw, &tokenClaims{}); err != nil {
		return Claims{}, ErrMalformed
	}

	var tc tokenClaims

	_, err := c.parser.ParseWithClaims(raw, &tc, func(t *jwt.Token) (interface{}, error) {
		// Enforce HS256
		_, ok := t.Method.(*jwt.SigningMethodHMAC)

		if !ok {
			return nil, errors.New("unexpected signing method")
		}
		return c.key, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable),
			errors.Is(err, jwt.ErrTokenMalformed):
			return Claims{}, ErrInvalidSignature
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		default:
			return Claims{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	out := Claims{
		Subject:  tc.Subject,
		Role:     user.Role(tc.Role),
		Provider: user.Provider(tc.Provider),
	}
	if tc.IssuedAt != nil {
		out.IssuedAt = tc.IssuedAt.Time
	}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}

	return out, nil
}

// IsValidFor reports whether raw is a valid, unexpired token for expectedSubject.
func (c *Codec) IsValidFor(raw, expectedSubject string) bool {
	claims, err := c.Validate(raw)
	if err != nil {
		return false
	}

	return claims.Subject != "" && claims.Subject == expectedSubject
}
