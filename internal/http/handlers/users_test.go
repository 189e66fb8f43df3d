package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/http/handlers"
	"github.com/geocoder89/authservice/internal/http/middlewares"
)

func TestMeHandler(t *testing.T) {
	dir := &fakeDirectory{
		meFn: func(ctx context.Context, email string) (user.User, error) {
			if email != "a@x.com" {
				return user.User{}, account.ErrUserNotFound
			}
			return user.User{ID: "u1", Email: email, PasswordHash: "secret", Role: user.RoleUser, Provider: user.ProviderEmail, Status: user.StatusActive}, nil
		},
	}
	h := handlers.NewUsersHandler(dir)

	r := setupRouter(http.MethodGet, "/api/users/me", h.Me, withSubject("a@x.com", user.RoleUser))
	w := doJSON(r, http.MethodGet, "/api/users/me", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if body["email"] != "a@x.com" || body["provider"] != "EMAIL" {
		t.Fatalf("unexpected body: %v", body)
	}
	for k := range body {
		if k == "passwordHash" || k == "PasswordHash" {
			t.Fatalf("password hash leaked in response")
		}
	}

	r = setupRouter(http.MethodGet, "/api/users/me", h.Me, withSubject("gone@x.com", user.RoleUser))
	w = doJSON(r, http.MethodGet, "/api/users/me", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for deleted subject, got %d", w.Code)
	}
}

func TestAdminListUsers(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantStatus int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantStatus: http.StatusOK, wantLimit: 50, wantOffset: 0},
		{name: "explicit page", query: "?limit=10&offset=20", wantStatus: http.StatusOK, wantLimit: 10, wantOffset: 20},
		{name: "limit too large", query: "?limit=1000", wantStatus: http.StatusBadRequest},
		{name: "limit not a number", query: "?limit=ten", wantStatus: http.StatusBadRequest},
		{name: "negative offset", query: "?offset=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotLimit, gotOffset int
			dir := &fakeDirectory{
				listUsersFn: func(ctx context.Context, limit, offset int) ([]user.User, error) {
					gotLimit, gotOffset = limit, offset
					return []user.User{{ID: "u1", Email: "a@x.com"}}, nil
				},
			}

			r := setupRouter(http.MethodGet, "/api/admin/users", handlers.NewAdminHandler(dir).ListUsers)
			w := doJSON(r, http.MethodGet, "/api/admin/users"+tt.query, "")

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d, body=%s", tt.wantStatus, w.Code, w.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if gotLimit != tt.wantLimit || gotOffset != tt.wantOffset {
				t.Fatalf("page: got %d/%d want %d/%d", gotLimit, gotOffset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}

func TestAdminUpdateStatus(t *testing.T) {
	var gotActor string
	var gotStatus user.Status
	dir := &fakeDirectory{
		updateStatusFn: func(ctx context.Context, id string, status user.Status, actor, clientIP string) (user.User, error) {
			if id != "u1" {
				return user.User{}, account.ErrUserNotFound
			}
			gotActor, gotStatus = actor, status
			return user.User{ID: id, Status: status}, nil
		},
	}
	h := handlers.NewAdminHandler(dir)
	r := setupRouter(http.MethodPut, "/api/admin/users/:id/status", h.UpdateStatus,
		middlewares.RequestID(),
		withSubject("admin@x.com", user.RoleAdmin),
	)

	w := doJSON(r, http.MethodPut, "/api/admin/users/u1/status", `{"status":"suspended"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d, body=%s", w.Code, w.Body.String())
	}
	if gotActor != "admin@x.com" || gotStatus != user.StatusSuspended {
		t.Fatalf("got actor=%q status=%q", gotActor, gotStatus)
	}

	w = doJSON(r, http.MethodPut, "/api/admin/users/u1/status", `{"status":"DELETED"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", w.Code)
	}

	w = doJSON(r, http.MethodPut, "/api/admin/users/u2/status", `{"status":"ACTIVE"}`)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestAdminListLogs(t *testing.T) {
	var got activity.ListFilter
	dir := &fakeDirectory{
		listLogsFn: func(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error) {
			got = filter
			return []activity.Log{{ID: "l1", Action: activity.ActionUserLogin}}, nil
		},
	}

	r := setupRouter(http.MethodGet, "/api/admin/logs", handlers.NewAdminHandler(dir).ListLogs)
	w := doJSON(r, http.MethodGet, "/api/admin/logs?userId=u1&limit=5", "")

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if got.UserID != "u1" || got.Limit != 5 || got.Offset != 0 {
		t.Fatalf("unexpected filter: %+v", got)
	}

	failing := &fakeDirectory{
		listLogsFn: func(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error) {
			return nil, errors.New("db down")
		},
	}
	r = setupRouter(http.MethodGet, "/api/admin/logs", handlers.NewAdminHandler(failing).ListLogs)
	w = doJSON(r, http.MethodGet, "/api/admin/logs", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}
