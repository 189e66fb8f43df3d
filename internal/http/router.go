package http

import (
	"log/slog"

	"github.com/geocoder89/authservice/internal/domain/user"
	"github.com/geocoder89/authservice/internal/federation"
	"github.com/geocoder89/authservice/internal/http/handlers"
	"github.com/geocoder89/authservice/internal/http/middlewares"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// Deps is everything the router mounts. Providers may be nil, which leaves
// the OAuth2 routes unmounted.
type Deps struct {
	Log          *slog.Logger
	Env          string
	ServiceName  string
	Prom         *observability.Prom
	Gatherer     prometheus.Gatherer
	CORSOrigins  []string
	MaxBodyBytes int64

	Tokens    middlewares.TokenValidator
	Accounts  handlers.AccountService
	Directory handlers.UserDirectory

	Providers handlers.ProviderLookup
	States    federation.StateStore
	Completer handlers.OAuth2Completer

	Checks map[string]handlers.Check
}

func NewRouter(d Deps) *gin.Engine {
	if d.Env != "dev" && d.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if d.ServiceName != "" {
		r.Use(otelgin.Middleware(d.ServiceName))
	}
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders(d.Env == "prod"))
	r.Use(middlewares.CORSMiddleware(d.CORSOrigins))
	r.Use(middlewares.MaxBodyBytes(d.MaxBodyBytes))

	// health
	health := handlers.NewHealthHandler(d.Checks)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens)

	authHandler := handlers.NewAuthHandler(d.Accounts)
	usersHandler := handlers.NewUsersHandler(d.Directory)
	adminHandler := handlers.NewAdminHandler(d.Directory)

	api := r.Group("/api", middlewares.RequireJSON())
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/change-password", authMW.RequireAuth(), authHandler.ChangePassword)

		api.GET("/users/me", authMW.RequireAuth(), usersHandler.Me)

		admin := api.Group("/admin", authMW.RequireAuth(), authMW.RequireRole(user.RoleAdmin))
		admin.GET("/users", adminHandler.ListUsers)
		admin.PUT("/users/:id/status", adminHandler.UpdateStatus)
		admin.GET("/logs", adminHandler.ListLogs)
	}

	if d.Providers != nil && d.States != nil && d.Completer != nil {
		oauth2Handler := handlers.NewOAuth2Handler(d.Providers, d.States, d.Completer, d.Log)
		r.GET("/oauth2/authorize/:provider", oauth2Handler.Authorize)
		r.GET("/login/oauth2/code/:provider", oauth2Handler.Callback)
	}

	return r
}
