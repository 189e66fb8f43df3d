package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/authservice/internal/federation"
	"github.com/geocoder89/authservice/internal/identity"
	"github.com/gin-gonic/gin"
)

type ProviderLookup interface {
	Lookup(registrationID string) (federation.Provider, error)
}

type OAuth2Completer interface {
	Complete(ctx context.Context, p identity.Principal) string
	Fail(reason string) string
}

type OAuth2Handler struct {
	providers ProviderLookup
	states    federation.StateStore
	completer OAuth2Completer
	log       *slog.Logger
	timeout   time.Duration
}

func NewOAuth2Handler(providers ProviderLookup, states federation.StateStore, completer OAuth2Completer, log *slog.Logger) *OAuth2Handler {
	if log == nil {
		log = slog.Default()
	}

	return &OAuth2Handler{
		providers: providers,
		states:    states,
		completer: completer,
		log:       log,
		timeout:   10 * time.Second,
	}
}

// GET /oauth2/authorize/:provider
func (h *OAuth2Handler) Authorize(ctx *gin.Context) {
	provider, err := h.providers.Lookup(ctx.Param("provider"))
	if err != nil {
		RespondNotFound(ctx, "Unknown OAuth2 provider")
		return
	}

	state := federation.NewState()

	if err := h.states.Save(ctx.Request.Context(), state, provider.ID().RegistrationID()); err != nil {
		h.log.ErrorContext(ctx.Request.Context(), "oauth2 state save failed", "provider", provider.ID(), "err", err)
		RespondInternal(ctx, "Could not start sign-in")
		return
	}

	ctx.Redirect(http.StatusFound, provider.AuthCodeURL(state))
}

// GET /login/oauth2/code/:provider
//
// Every outcome, including failures, is a redirect to the SPA.
func (h *OAuth2Handler) Callback(ctx *gin.Context) {
	registrationID := ctx.Param("provider")

	if reason := ctx.Query("error"); reason != "" {
		h.log.InfoContext(ctx.Request.Context(), "oauth2 provider returned error",
			"provider", registrationID,
			"error", reason,
		)
		ctx.Redirect(http.StatusFound, h.completer.Fail(federation.GenericFailure))
		return
	}

	provider, err := h.providers.Lookup(registrationID)
	if err != nil {
		ctx.Redirect(http.StatusFound, h.completer.Fail(federation.GenericFailure))
		return
	}

	cctx, cancel := context.WithTimeout(ctx.Request.Context(), h.timeout)
	defer cancel()

	stored, err := h.states.Consume(cctx, ctx.Query("state"))
	if err != nil || stored != provider.ID().RegistrationID() {
		if err != nil && !errors.Is(err, federation.ErrStateNotFound) {
			h.log.ErrorContext(cctx, "oauth2 state lookup failed", "err", err)
		}
		h.log.WarnContext(cctx, "oauth2 state rejected", "provider", registrationID)
		ctx.Redirect(http.StatusFound, h.completer.Fail(federation.GenericFailure))
		return
	}

	code := ctx.Query("code")
	if code == "" {
		ctx.Redirect(http.StatusFound, h.completer.Fail(federation.GenericFailure))
		return
	}

	principal, err := provider.Exchange(cctx, code)
	if err != nil {
		h.log.WarnContext(cctx, "oauth2 code exchange failed", "provider", registrationID, "err", err)
		ctx.Redirect(http.StatusFound, h.completer.Fail(federation.GenericFailure))
		return
	}

	ctx.Redirect(http.StatusFound, h.completer.Complete(cctx, principal))
}
