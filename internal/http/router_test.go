package http_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/federation"
	apphttp "github.com/geocoder89/authservice/internal/http"
	"github.com/geocoder89/authservice/internal/http/handlers"
	"github.com/geocoder89/authservice/internal/identity"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/repo/memory"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type stubProvider struct {
	id    user.Provider
	email string
}

func (p stubProvider) ID() user.Provider { return p.id }

func (p stubProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (p stubProvider) Exchange(ctx context.Context, code string) (identity.Principal, error) {
	return identity.Principal{Provider: p.id, Email: p.email}, nil
}

type testApp struct {
	router *gin.Engine
	users  *memory.UsersRepo
	logs   *memory.ActivityLogsRepo
}

func newTestApp(t *testing.T) testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := auth.NewCodec(base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")), time.Hour)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}

	users := memory.NewUsersRepo()
	logs := memory.NewActivityLogsRepo()
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	recorder := audit.NewRecorder(audit.NewStoreSink(logs), logger)

	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	reconciler := identity.NewReconciler(users, hasher, logger)
	completer := federation.NewCompleter(reconciler, codec, federation.RedirectConfig{
		BaseURI:               "https://app.test/login",
		AuthorizedRedirectURI: "https://app.test/oauth2/redirect",
	}, recorder, prom, logger)

	router := apphttp.NewRouter(apphttp.Deps{
		Log:          logger,
		Env:          "test",
		Prom:         prom,
		Gatherer:     reg,
		CORSOrigins:  []string{"https://app.test"},
		MaxBodyBytes: 1 << 20,
		Tokens:       codec,
		Accounts:     account.NewService(users, reconciler, hasher, codec, recorder, prom, logger),
		Directory:    account.NewDirectory(users, logs, recorder, logger),
		Providers:    federation.NewRegistry(stubProvider{id: user.ProviderGitHub, email: "fed@x.com"}),
		States:       federation.NewMemoryStateStore(time.Minute),
		Completer:    completer,
		Checks: map[string]handlers.Check{
			"users": users.Ping,
		},
	})

	return testApp{router: router, users: users, logs: logs}
}

func (a testApp) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeAuth(t *testing.T, w *httptest.ResponseRecorder) account.AuthResponse {
	t.Helper()

	var resp account.AuthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode auth response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func TestRouter_RegisterLoginMe(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"a@x.com","password":"p1","confirmPassword":"p1","role":"USER"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d body=%s", w.Code, w.Body.String())
	}
	registered := decodeAuth(t, w)
	if registered.Email != "a@x.com" || registered.Role != user.RoleUser || registered.Provider != user.ProviderEmail {
		t.Fatalf("unexpected register response: %+v", registered)
	}

	w = app.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"a@x.com","password":"p1","confirmPassword":"p1","role":"USER"}`)
	if w.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", w.Code)
	}

	w = app.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"a@x.com","password":"p1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	token := decodeAuth(t, w).Token

	w = app.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"a@x.com","password":"nope"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/users/me", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"email":"a@x.com"`) {
		t.Fatalf("me: unexpected body %s", w.Body.String())
	}

	w = app.do(t, http.MethodGet, "/api/users/me", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("me without token: expected 401, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/api/admin/users", token, "")
	if w.Code != http.StatusForbidden {
		t.Fatalf("admin as user: expected 403, got %d", w.Code)
	}
}

func TestRouter_PasswordMismatchLeavesNoRecord(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"b@x.com","password":"p1","confirmPassword":"p2","role":"USER"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	if _, err := app.users.GetByEmail(context.Background(), "b@x.com"); err == nil {
		t.Fatalf("expected no user to be stored")
	}
}

func TestRouter_MultibytePasswordOverLimitIs400(t *testing.T) {
	app := newTestApp(t)
	long := strings.Repeat("é", 40)

	w := app.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"m@x.com","password":"`+long+`","confirmPassword":"`+long+`","role":"USER"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body=%s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"password_too_long"`) {
		t.Fatalf("expected password_too_long code, got %s", w.Body.String())
	}

	if _, err := app.users.GetByEmail(context.Background(), "m@x.com"); err == nil {
		t.Fatalf("expected no user to be stored")
	}
}

func TestRouter_AdminFlow(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"admin@x.com","password":"p1","confirmPassword":"p1","role":"ADMIN"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register admin: expected 201, got %d", w.Code)
	}
	adminToken := decodeAuth(t, w).Token

	w = app.do(t, http.MethodPost, "/api/auth/register", "",
		`{"email":"a@x.com","password":"p1","confirmPassword":"p1","role":"USER"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("register user: expected 201, got %d", w.Code)
	}

	target, err := app.users.GetByEmail(context.Background(), "a@x.com")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}

	w = app.do(t, http.MethodPut, "/api/admin/users/"+target.ID+"/status", adminToken, `{"status":"SUSPENDED"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("suspend: expected 200, got %d body=%s", w.Code, w.Body.String())
	}

	w = app.do(t, http.MethodGet, "/api/admin/logs?userId="+target.ID, adminToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("logs: expected 200, got %d", w.Code)
	}

	var page struct {
		Items []activity.Log `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatalf("decode logs: %v", err)
	}

	actions := map[activity.Action]bool{}
	for _, l := range page.Items {
		actions[l.Action] = true
	}
	if !actions[activity.ActionUserRegister] || !actions[activity.ActionUserStatusChange] {
		t.Fatalf("expected register and status change entries, got %+v", page.Items)
	}
}

func TestRouter_OAuth2GitHubFirstLogin(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/oauth2/authorize/github", "", "")
	if w.Code != http.StatusFound {
		t.Fatalf("authorize: expected 302, got %d", w.Code)
	}

	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad location: %v", err)
	}

	w = app.do(t, http.MethodGet, "/login/oauth2/code/github?code=c&state="+url.QueryEscape(loc.Query().Get("state")), "", "")
	if w.Code != http.StatusFound {
		t.Fatalf("callback: expected 302, got %d", w.Code)
	}

	done, err := url.Parse(w.Header().Get("Location"))
	if err != nil {
		t.Fatalf("bad redirect: %v", err)
	}
	if done.Path != "/oauth2/redirect" || done.Query().Get("token") == "" {
		t.Fatalf("expected token redirect, got %s", done)
	}

	u, err := app.users.GetByEmail(context.Background(), "fed@x.com")
	if err != nil {
		t.Fatalf("expected user to be provisioned: %v", err)
	}
	if u.Provider != user.ProviderGitHub || u.Role != user.RoleUser {
		t.Fatalf("unexpected provisioned user: %+v", u)
	}

	w = app.do(t, http.MethodPost, "/api/auth/login", "", `{"email":"fed@x.com","password":"anything"}`)
	if w.Code != http.StatusUnauthorized || !strings.Contains(w.Body.String(), "Please login using GITHUB") {
		t.Fatalf("expected wrong provider, got %d %s", w.Code, w.Body.String())
	}
}

func TestRouter_Plumbing(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("email=a"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	app.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}

	w = app.do(t, http.MethodGet, "/readyz", "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}

	// one request has been counted by the time /metrics is scraped
	w = app.do(t, http.MethodGet, "/metrics", "", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "authservice_http_requests_total") {
		t.Fatalf("expected prometheus exposition, got %d", w.Code)
	}
}
