package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/domain/activity"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/federation"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/geocoder89/authservice/internal/identity"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAccounts struct {
	registerFn       func(ctx context.Context, in account.RegisterInput) (account.AuthResponse, error)
	loginFn          func(ctx context.Context, in account.LoginInput) (account.AuthResponse, error)
	changePasswordFn func(ctx context.Context, in account.ChangePasswordInput) error
}

func (f *fakeAccounts) Register(ctx context.Context, in account.RegisterInput) (account.AuthResponse, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, in)
	}
	return account.AuthResponse{}, nil
}

func (f *fakeAccounts) Login(ctx context.Context, in account.LoginInput) (account.AuthResponse, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, in)
	}
	return account.AuthResponse{}, nil
}

func (f *fakeAccounts) ChangePassword(ctx context.Context, in account.ChangePasswordInput) error {
	if f.changePasswordFn != nil {
		return f.changePasswordFn(ctx, in)
	}
	return nil
}

type fakeDirectory struct {
	meFn           func(ctx context.Context, email string) (user.User, error)
	listUsersFn    func(ctx context.Context, limit, offset int) ([]user.User, error)
	listLogsFn     func(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error)
	updateStatusFn func(ctx context.Context, id string, status user.Status, actor, clientIP string) (user.User, error)
}

func (f *fakeDirectory) Me(ctx context.Context, email string) (user.User, error) {
	if f.meFn != nil {
		return f.meFn(ctx, email)
	}
	return user.User{}, nil
}

func (f *fakeDirectory) ListUsers(ctx context.Context, limit, offset int) ([]user.User, error) {
	if f.listUsersFn != nil {
		return f.listUsersFn(ctx, limit, offset)
	}
	return nil, nil
}

func (f *fakeDirectory) ListLogs(ctx context.Context, filter activity.ListFilter) ([]activity.Log, error) {
	if f.listLogsFn != nil {
		return f.listLogsFn(ctx, filter)
	}
	return nil, nil
}

func (f *fakeDirectory) UpdateStatus(ctx context.Context, id string, status user.Status, actor, clientIP string) (user.User, error) {
	if f.updateStatusFn != nil {
		return f.updateStatusFn(ctx, id, status, actor, clientIP)
	}
	return user.User{}, nil
}

type fakeProvider struct {
	id         user.Provider
	exchangeFn func(ctx context.Context, code string) (identity.Principal, error)
}

func (p *fakeProvider) ID() user.Provider { return p.id }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + state
}

func (p *fakeProvider) Exchange(ctx context.Context, code string) (identity.Principal, error) {
	if p.exchangeFn != nil {
		return p.exchangeFn(ctx, code)
	}
	return identity.Principal{Provider: p.id, Email: "fed@x.com"}, nil
}

type fakeCompleter struct {
	completed []identity.Principal
}

func (c *fakeCompleter) Complete(ctx context.Context, p identity.Principal) string {
	c.completed = append(c.completed, p)
	return "https://app.test/oauth2/redirect?token=t"
}

func (c *fakeCompleter) Fail(reason string) string {
	return "https://app.test/login?error=" + url.QueryEscape(reason)
}

var _ federation.Provider = (*fakeProvider)(nil)

// small helper function which returns the gin engine to mount one handler per test
func setupRouter(method, path string, h gin.HandlerFunc, mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	chain := append(mw, h)
	r.Handle(method, path, chain...)

	return r
}

// withSubject stands in for RequireAuth.
func withSubject(subject string, role user.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middlewares.CtxSubject, subject)
		c.Set(middlewares.CtxRole, role)
		c.Next()
	}
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
