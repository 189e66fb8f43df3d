package middlewares_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/authservice/internal/actorctx"
	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeValidator struct {
	validateFn func(raw string) (auth.Claims, error)
}

func (f *fakeValidator) Validate(raw string) (auth.Claims, error) {
	return f.validateFn(raw)
}

func tokensFor(claims map[string]auth.Claims) *fakeValidator {
	return &fakeValidator{validateFn: func(raw string) (auth.Claims, error) {
		if raw == "expired" {
			return auth.Claims{}, auth.ErrExpired
		}
		c, ok := claims[raw]
		if !ok {
			return auth.Claims{}, auth.ErrInvalidSignature
		}
		return c, nil
	}}
}

func TestRequireAuth(t *testing.T) {
	m := middlewares.NewAuthMiddleware(tokensFor(map[string]auth.Claims{
		"good": {Subject: "a@x.com", Role: user.RoleUser, Provider: user.ProviderEmail},
	}))

	var seenSubject string
	r := gin.New()
	r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
		seenSubject, _ = actorctx.SubjectFrom(c.Request.Context())
		subject, _ := middlewares.SubjectFromContext(c)
		c.String(http.StatusOK, subject)
	})

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK, wantBody: "a@x.com"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "Missing or invalid Authorization header"},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "tampered", header: "Bearer forged", wantStatus: http.StatusUnauthorized, wantBody: "Invalid access token"},
		{name: "expired", header: "Bearer expired", wantStatus: http.StatusUnauthorized, wantBody: "Access token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, w.Code)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Fatalf("expected body to contain %q, got %s", tt.wantBody, w.Body.String())
			}
		})
	}

	if seenSubject != "a@x.com" {
		t.Fatalf("expected subject on request context, got %q", seenSubject)
	}
}

func TestRequireRole(t *testing.T) {
	m := middlewares.NewAuthMiddleware(tokensFor(map[string]auth.Claims{
		"admin": {Subject: "admin@x.com", Role: user.RoleAdmin, Provider: user.ProviderEmail},
		"user":  {Subject: "a@x.com", Role: user.RoleUser, Provider: user.ProviderEmail},
	}))

	r := gin.New()
	r.GET("/admin", m.RequireAuth(), m.RequireRole(user.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	for token, want := range map[string]int{
		"admin": http.StatusNoContent,
		"user":  http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != want {
			t.Fatalf("%s: expected %d, got %d", token, want, w.Code)
		}
	}

	// RequireRole without RequireAuth has no identity to check
	bare := gin.New()
	bare.GET("/admin", m.RequireRole(user.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	w := httptest.NewRecorder()
	bare.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	var ip string
	r := gin.New()
	r.Use(middlewares.RequestID())
	r.GET("/", func(c *gin.Context) {
		ip = actorctx.ClientIPFrom(c.Request.Context())
		c.String(http.StatusOK, c.GetString(middlewares.CtxRequestID))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "req-1" || w.Body.String() != "req-1" {
		t.Fatalf("expected request id to be echoed, got header=%q body=%q", w.Header().Get("X-Request-Id"), w.Body.String())
	}
	if ip != "192.0.2.1" {
		t.Fatalf("expected client ip on request context, got %q", ip)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.RequireJSON())
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		method      string
		contentType string
		want        int
	}{
		{http.MethodPost, "application/json", http.StatusNoContent},
		{http.MethodPost, "application/json; charset=utf-8", http.StatusNoContent},
		{http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{http.MethodPost, "", http.StatusUnsupportedMediaType},
		{http.MethodGet, "", http.StatusNoContent},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, "/x", strings.NewReader("{}"))
		if tt.contentType != "" {
			req.Header.Set("Content-Type", tt.contentType)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.want {
			t.Fatalf("%s %q: expected %d, got %d", tt.method, tt.contentType, tt.want, w.Code)
		}
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.CORSMiddleware([]string{"https://app.test/"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodOptions, "/x", nil)
	req.Header.Set("Origin", "https://app.test")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected preflight 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "https://app.test" {
		t.Fatalf("expected allowed origin, got %q", w.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Fatalf("unexpected CORS header for foreign origin")
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(middlewares.SecurityHeaders(true))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if w.Header().Get(h) == "" {
			t.Fatalf("missing header %s", h)
		}
	}
}
