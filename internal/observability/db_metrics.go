package observability

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var dbTracer = otel.Tracer("authservice/db")

// ObserveDB times fn under op and wraps it in a client span. A lookup that
// finds nothing is a "miss", not an error. A nil *Prom still traces.
func (p *Prom) ObserveDB(ctx context.Context, op string, fn func() error) error {
	_, span := dbTracer.Start(ctx, "db."+op)
	span.SetAttributes(attribute.String("db.system", "postgresql"), attribute.String("db.operation", op))
	defer span.End()

	start := time.Now()
	err := fn()

	status := "ok"
	switch {
	case err == nil:
	case isMiss(err):
		status = "miss"
	default:
		status = "error"
		class := classifyDBErr(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, class)
		if p != nil {
			p.DbErrorsTotal.WithLabelValues(op, class).Inc()
		}
	}

	if p != nil {
		p.DbQueryDuration.WithLabelValues(op, status).Observe(time.Since(start).Seconds())
	}
	return err
}

func isMiss(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, user.ErrNotFound)
}

func classifyDBErr(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return "unique_violation"
		case "40001":
			return "serialization_failure"
		case "40P01":
			return "deadlock"
		case "57014":
			return "query_canceled"
		default:
			return "pg_" + pgErr.Code
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "dial"):
		return "connection"
	default:
		return "unknown"
	}
}
