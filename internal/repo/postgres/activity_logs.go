package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ActivityLogsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewActivityLogsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ActivityLogsRepo {
	return &ActivityLogsRepo{pool: pool, prom: prom}
}

// Create is idempotent on id so a redelivered queue item is stored once.
func (r *ActivityLogsRepo) Create(ctx context.Context, l activity.Log) error {
	if err := l.Validate(); err != nil {
		return err
	}

	return r.prom.ObserveDB(ctx, "activity_logs.create", func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO activity_logs (id, user_id, email, action, ip_address, details, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING`,
			l.ID, l.UserID, l.Email, l.Action, l.IPAddress, l.Details, l.Timestamp,
		)
		return err
	})
}

// List returns newest first.
func (r *ActivityLogsRepo) List(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error) {
	query := `SELECT id, user_id, email, action, ip_address, details, created_at FROM activity_logs`

	var conds []string
	var args []any
	argsPosition := 1

	if filter.UserID != "" {
		conds = append(conds, fmt.Sprintf("user_id = $%d", argsPosition))
		args = append(args, filter.UserID)
		argsPosition++
	}

	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC OFFSET $%d", argsPosition)
	args = append(args, filter.Offset)
	argsPosition++

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argsPosition)
		args = append(args, filter.Limit)
	}

	out := []activity.Log{}

	err := r.prom.ObserveDB(ctx, "activity_logs.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var l activity.Log
			if err := rows.Scan(&l.ID, &l.UserID, &l.Email, &l.Action, &l.IPAddress, &l.Details, &l.Timestamp); err != nil {
				return err
			}
			out = append(out, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}

	return out, nil
}
