package observability

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestClassifyDBErr(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}, "unique_violation"},
		{fmt.Errorf("insert: %w", &pgconn.PgError{Code: "40P01"}), "deadlock"},
		{&pgconn.PgError{Code: "42P01"}, "pg_42P01"},
		{context.Canceled, "canceled"},
		{fmt.Errorf("query: %w", context.DeadlineExceeded), "timeout"},
		{errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), "connection"},
		{errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		if got := classifyDBErr(tt.err); got != tt.want {
			t.Fatalf("classifyDBErr(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestObserveDB(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm(reg)
	ctx := context.Background()

	_ = p.ObserveDB(ctx, "users.get_by_email", func() error { return nil })
	_ = p.ObserveDB(ctx, "users.get_by_email", func() error { return user.ErrNotFound })
	err := p.ObserveDB(ctx, "users.create", func() error { return &pgconn.PgError{Code: "23505"} })

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		t.Fatalf("expected the original error back, got %v", err)
	}

	var m dto.Metric
	if err := p.DbErrorsTotal.WithLabelValues("users.create", "unique_violation").Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if m.GetCounter().GetValue() != 1 {
		t.Fatalf("expected one unique violation, got %v", m.GetCounter().GetValue())
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "authservice_db_errors_total" && len(f.GetMetric()) != 1 {
			t.Fatalf("a miss must not count as an error, got %d series", len(f.GetMetric()))
		}
	}

	var nilProm *Prom
	if err := nilProm.ObserveDB(ctx, "users.ping", func() error { return nil }); err != nil {
		t.Fatalf("nil prom: %v", err)
	}
}
