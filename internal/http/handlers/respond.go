package handlers

import (
	"errors"
	"net/http"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/geocoder89/authservice/internal/identity"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	if id := ctx.GetString(middlewares.CtxRequestID); id != "" {
		return id
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondUnauthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

func RespondForbidden(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusForbidden, "forbidden", message, nil)
}

func RespondNotFound(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusNotFound, "not_found", message, nil)
}

func RespondConflict(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusConflict, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

// RespondAccountError maps account and identity failures onto the API
// envelope. Anything unrecognised is a 500 with a fixed message.
func RespondAccountError(ctx *gin.Context, err error) {
	var wrongProvider *identity.WrongProviderError

	switch {
	case errors.Is(err, account.ErrEmailInUse):
		RespondConflict(ctx, "email_in_use", "Email address already in use.")
	case errors.Is(err, account.ErrPasswordMismatch):
		RespondError(ctx, http.StatusBadRequest, "password_mismatch", "Passwords do not match", nil)
	case errors.Is(err, account.ErrInvalidRole):
		RespondError(ctx, http.StatusBadRequest, "invalid_role", "Invalid role specified", nil)
	case errors.Is(err, account.ErrPasswordTooLong):
		RespondError(ctx, http.StatusBadRequest, "password_too_long", "Password must be at most 72 bytes", nil)
	case errors.Is(err, identity.ErrInvalidCredentials):
		RespondUnauthorized(ctx, "invalid_credentials", "Invalid email or password")
	case errors.As(err, &wrongProvider):
		RespondUnauthorized(ctx, "wrong_provider", "Please login using "+string(wrongProvider.Provider))
	case errors.Is(err, account.ErrUserNotFound):
		RespondNotFound(ctx, "User not found")
	default:
		RespondInternal(ctx, "Something went wrong")
	}
}
