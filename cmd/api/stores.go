package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/db"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/repo/memory"
	"github.com/geocoder89/authservice/internal/repo/postgres"
)

type userStore interface {
	account.UserStore
	UpdateStatus(ctx context.Context, id string, status user.Status) (user.User, error)
	List(ctx context.Context, limit, offset int) ([]user.User, error)
	Ping(ctx context.Context) error
}

type logStore interface {
	audit.LogWriter
	List(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error)
}

type stores struct {
	users userStore
	logs  logStore
	close func()
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, nil, err
	}

	log := observability.NewLogger(cfg.Env)
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, log, nil
}

// openStores picks the storage driver. The memory driver loses everything on
// exit and is meant for local runs.
func openStores(ctx context.Context, cfg config.Config, prom *observability.Prom, log *slog.Logger) (stores, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn("using in-memory store, data is not persisted")
		return stores{
			users: memory.NewUsersRepo(),
			logs:  memory.NewActivityLogsRepo(),
			close: func() {},
		}, nil
	}

	pool, err := db.NewPool(ctx, cfg.DBURL, 10)
	if err != nil {
		return stores{}, fmt.Errorf("db connect: %w", err)
	}

	return stores{
		users: postgres.NewUsersRepo(pool, prom),
		logs:  postgres.NewActivityLogsRepo(pool, prom),
		close: pool.Close,
	}, nil
}
