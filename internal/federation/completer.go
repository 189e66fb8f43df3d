package federation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"

	"github.com/geocoder89/authservice/internal/actorctx"
	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/identity"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GenericFailure is shown when sign-in fails for a reason the user cannot fix.
const GenericFailure = "Authentication failed. Please try again."

// RedirectConfig holds the two frontend targets of a completed handshake.
type RedirectConfig struct {
	// BaseURI receives ?error=<message>.
	BaseURI string
	// AuthorizedRedirectURI receives ?token=<jwt>.
	AuthorizedRedirectURI string
}

type Resolver interface {
	ResolveFederated(ctx context.Context, p identity.Principal) (user.User, error)
}

type TokenIssuer interface {
	IssueFor(u user.User) (string, error)
}

type Metrics interface {
	AuthOutcome(operation, outcome string)
}

// Completer turns an authenticated provider identity into a redirect that
// carries either a session token or an error message.
type Completer struct {
	resolver Resolver
	tokens   TokenIssuer
	redirect RedirectConfig
	audit    *audit.Recorder
	metrics  Metrics
	log      *slog.Logger
}

func NewCompleter(resolver Resolver, tokens TokenIssuer, redirect RedirectConfig, recorder *audit.Recorder, metrics Metrics, log *slog.Logger) *Completer {
	if log == nil {
		log = slog.Default()
	}

	return &Completer{
		resolver: resolver,
		tokens:   tokens,
		redirect: redirect,
		audit:    recorder,
		metrics:  metrics,
		log:      log,
	}
}

// Complete never returns an empty target, not even when a collaborator panics.
func (c *Completer) Complete(ctx context.Context, p identity.Principal) (target string) {
	ctx, span := otel.Tracer("authservice/federation").Start(ctx, "federation.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("auth.provider", string(p.Provider)))

	defer func() {
		if r := recover(); r != nil {
			span.SetStatus(codes.Error, "panic")
			c.log.ErrorContext(ctx, "oauth2 completion panicked",
				"provider", p.Provider,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			c.count("error")
			target = c.Fail(GenericFailure)
		}
	}()

	u, err := c.resolver.ResolveFederated(ctx, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve federated identity")

		var missing *identity.MissingEmailError
		if errors.As(err, &missing) {
			c.log.InfoContext(ctx, "oauth2 sign-in without email", "provider", missing.Provider)
			c.count("missing_email")
			return c.Fail(missing.Guidance)
		}

		c.log.ErrorContext(ctx, "oauth2 completion failed", "provider", p.Provider, "err", err)
		c.count("error")
		return c.Fail(GenericFailure)
	}

	if !u.IsActive() {
		c.log.WarnContext(ctx, "issuing token for inactive user", "user_id", u.ID, "status", u.Status)
	}

	token, err := c.tokens.IssueFor(u)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "issue token")
		c.log.ErrorContext(ctx, "oauth2 token issue failed", "user_id", u.ID, "err", err)
		c.count("error")
		return c.Fail(GenericFailure)
	}

	c.audit.Record(ctx, activity.New(
		u.ID,
		u.Email,
		activity.ActionOAuth2Login,
		actorctx.ClientIPFrom(ctx),
		"User logged in via "+string(p.Provider)+".",
	))
	c.count("success")

	return withQuery(c.redirect.AuthorizedRedirectURI, "token", token)
}

// Fail builds the error redirect for failures before or during completion.
func (c *Completer) Fail(reason string) string {
	if reason == "" {
		reason = GenericFailure
	}
	return withQuery(c.redirect.BaseURI, "error", reason)
}

func (c *Completer) count(outcome string) {
	if c.metrics != nil {
		c.metrics.AuthOutcome("oauth2", outcome)
	}
}

// withQuery appends key=value to target, keeping any query it already has.
func withQuery(target, key, value string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target + "?" + url.Values{key: {value}}.Encode()
	}

	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()

	return u.String()
}
