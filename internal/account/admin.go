package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
)

type UserDirectory interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context, limit, offset int) ([]user.User, error)
	UpdateStatus(ctx context.Context, id string, status user.Status) (user.User, error)
}

type LogReader interface {
	List(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error)
}

// Directory serves the read side of accounts plus the admin status switch.
type Directory struct {
	users UserDirectory
	logs  LogReader
	audit *audit.Recorder
	log   *slog.Logger
}

func NewDirectory(users UserDirectory, logs LogReader, recorder *audit.Recorder, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{users: users, logs: logs, audit: recorder, log: log}
}

// Me resolves a token subject to its user.
func (d *Directory) Me(ctx context.Context, email string) (user.User, error) {
	u, err := d.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("lookup user: %w", err)
	}
	return u, nil
}

func (d *Directory) ListUsers(ctx context.Context, limit, offset int) ([]user.User, error) {
	return d.users.List(ctx, limit, offset)
}

func (d *Directory) ListLogs(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error) {
	return d.logs.List(ctx, filter)
}

// UpdateStatus switches a user between ACTIVE and SUSPENDED. actor is the
// admin's email, recorded in the audit details.
func (d *Directory) UpdateStatus(ctx context.Context, id string, status user.Status, actor, clientIP string) (user.User, error) {
	updated, err := d.users.UpdateStatus(ctx, id, status)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("update status: %w", err)
	}

	d.log.InfoContext(ctx, "user status changed", "user_id", updated.ID, "status", updated.Status, "by", actor)
	d.audit.Record(ctx, activity.New(
		updated.ID,
		updated.Email,
		activity.ActionUserStatusChange,
		clientIP,
		fmt.Sprintf("Status set to %s by %s.", updated.Status, actor),
	))

	return updated, nil
}
