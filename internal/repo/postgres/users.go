package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const usersEmailKey = "users_email_key"

const userColumns = `id, email, password_hash, role, provider, status, avatar, last_login, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(ctx context.Context, op string, fn func() error) error {
	return r.prom.ObserveDB(ctx, op, fn)
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User

	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.PasswordHash,
		&u.Role,
		&u.Provider,
		&u.Status,
		&u.Avatar,
		&u.LastLogin,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, user.ErrNotFound
	}

	return u, err
}

func isEmailTaken(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == usersEmailKey
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (u user.User, err error) {
	err = r.observe(ctx, "users.get_by_email", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		if errors.Is(err, user.ErrNotFound) {
			// a miss is not a db error
			return nil
		}
		return err
	})
	if err == nil && u.ID == "" {
		err = user.ErrNotFound
	}
	return u, err
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (u user.User, err error) {
	err = r.observe(ctx, "users.get_by_id", func() error {
		u, err = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return err
	})
	if err == nil && u.ID == "" {
		err = user.ErrNotFound
	}
	return u, err
}

// Create inserts u. A duplicate email is reported as user.ErrEmailTaken.
func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe(ctx, "users.create", func() error {
		created, err := scanUser(r.pool.QueryRow(ctx, `
			INSERT INTO users (id, email, password_hash, role, provider, status, avatar, last_login, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING `+userColumns,
			u.ID, u.Email, u.PasswordHash, u.Role, u.Provider, u.Status, u.Avatar, u.LastLogin, u.CreatedAt, u.UpdatedAt,
		))
		if err == nil {
			u = created
		}
		return err
	})

	if err != nil {
		if isEmailTaken(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) Update(ctx context.Context, u user.User) (user.User, error) {
	var updated user.User

	err := r.observe(ctx, "users.update", func() error {
		var err error
		updated, err = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET email = $2, password_hash = $3, role = $4, provider = $5, status = $6,
			    avatar = $7, last_login = $8, updated_at = now()
			WHERE id = $1
			RETURNING `+userColumns,
			u.ID, u.Email, u.PasswordHash, u.Role, u.Provider, u.Status, u.Avatar, u.LastLogin,
		))
		return err
	})

	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, user.ErrNotFound):
		return user.User{}, user.ErrNotFound
	case isEmailTaken(err):
		return user.User{}, user.ErrEmailTaken
	default:
		return user.User{}, fmt.Errorf("update user: %w", err)
	}
}

func (r *UsersRepo) UpdateStatus(ctx context.Context, id string, status user.Status) (user.User, error) {
	var updated user.User

	err := r.observe(ctx, "users.update_status", func() error {
		var err error
		updated, err = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users SET status = $2, updated_at = now()
			WHERE id = $1
			RETURNING `+userColumns,
			id, status,
		))
		return err
	})
	if err != nil {
		return user.User{}, err
	}

	return updated, nil
}

// TouchLastLogin stamps last_login without rewriting the rest of the row.
func (r *UsersRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.exec(ctx, "users.touch_last_login",
		`UPDATE users SET last_login = $2, updated_at = $2 WHERE id = $1`, id, at)
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, hash string, at time.Time) error {
	return r.exec(ctx, "users.update_password",
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`, id, hash, at)
}

// exec runs a single-row UPDATE and reports user.ErrNotFound when nothing matched.
func (r *UsersRepo) exec(ctx context.Context, op, query string, args ...any) error {
	return r.observe(ctx, op, func() error {
		tag, err := r.pool.Exec(ctx, query, args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return user.ErrNotFound
		}
		return nil
	})
}

// List returns users oldest first. limit <= 0 means no limit.
func (r *UsersRepo) List(ctx context.Context, limit, offset int) ([]user.User, error) {
	var out []user.User

	err := r.observe(ctx, "users.list", func() error {
		query := `SELECT ` + userColumns + ` FROM users ORDER BY created_at ASC, id ASC OFFSET $1`
		args := []any{offset}
		if limit > 0 {
			query += ` LIMIT $2`
			args = append(args, limit)
		}

		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			u, err := scanUser(rows)
			if err != nil {
				return err
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	if out == nil {
		out = []user.User{}
	}
	return out, nil
}

func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}
