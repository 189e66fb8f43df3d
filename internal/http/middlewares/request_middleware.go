package middlewares

import (
	"log/slog"
	"time"

	"github.com/geocoder89/authservice/internal/actorctx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const requestIDHeader = "X-Request-Id"

// RequestID echoes or mints X-Request-Id and carries the client address on
// the request context for audit records.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Set(CtxRequestID, id)

		reqCtx := actorctx.WithClientIP(ctx.Request.Context(), ctx.ClientIP())
		ctx.Request = ctx.Request.WithContext(reqCtx)

		ctx.Next()
	}
}

func RequestLogger(log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(ctx *gin.Context) {
		start := time.Now()

		route := ctx.FullPath()
		if route == "" {
			route = ctx.Request.URL.Path // fallback (e.g. 404)
		}

		method := ctx.Request.Method

		ctx.Next()

		lat := time.Since(start)
		status := ctx.Writer.Status()

		logAttrs := []any{
			"method", method,
			"route", route,
			"status", status,
			"latency_ms", lat.Milliseconds(),
			"request_id", ctx.GetString(CtxRequestID),
			"client_ip", ctx.ClientIP(),
		}

		if subject := ctx.GetString(CtxSubject); subject != "" {
			logAttrs = append(logAttrs, "subject", subject)
		}

		if status >= 500 {
			log.ErrorContext(ctx.Request.Context(), "http_request", logAttrs...)
			return
		}

		log.InfoContext(ctx.Request.Context(), "http_request", logAttrs...)
	}
}
