// Package actorctx carries the authenticated subject and the caller's
// address on a request context so services below the HTTP layer can audit
// without importing gin.
package actorctx

import "context"

type ctxKey string

const (
	keySubject  ctxKey = "subject"
	keyClientIP ctxKey = "client_ip"
)

func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, keySubject, subject)
}

func SubjectFrom(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keySubject).(string)

	return v, ok && v != ""
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIPFrom returns "" when no address was recorded.
func ClientIPFrom(ctx context.Context) string {
	v, _ := ctx.Value(keyClientIP).(string)
	return v
}
