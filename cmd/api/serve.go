package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/authservice/internal/account"
	"github.com/geocoder89/authservice/internal/audit"
	"github.com/geocoder89/authservice/internal/auth"
	"github.com/geocoder89/authservice/internal/config"
	"github.com/geocoder89/authservice/internal/db"
	"github.com/geocoder89/authservice/internal/federation"
	httpx "github.com/geocoder89/authservice/internal/http"
	"github.com/geocoder89/authservice/internal/http/handlers"
	"github.com/geocoder89/authservice/internal/identity"
	"github.com/geocoder89/authservice/internal/observability"
	"github.com/geocoder89/authservice/internal/queue/redisclient"
	"github.com/geocoder89/authservice/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var runMigrations bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, log)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&runMigrations, "migrate", false, "apply pending migrations before serving")
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if cfg.OTELEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, cfg.Tracer(cfg.OTELServiceName))
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := config.WithTimeout(5 * time.Second)
			defer cancel()
			_ = shutdown(sctx)
		}()
	}

	prom := observability.NewProm(prometheus.DefaultRegisterer)

	if runMigrations && cfg.StoreDriver == config.StoreDriverPostgres {
		if err := db.Migrate(cfg.DBURL, "up"); err != nil {
			return err
		}
		log.Info("migrations applied")
	}

	st, err := openStores(ctx, cfg, prom, log)
	if err != nil {
		return err
	}
	defer st.close()

	checks := map[string]handlers.Check{"store": st.users.Ping}

	var rc *redisclient.Client
	if cfg.RedisAddr != "" {
		rc, err = redisclient.Connect(ctx, redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		checks["redis"] = rc.Ping
	}

	hasher := security.NewBcryptHasher(cfg.BcryptCost)

	codec, err := auth.NewCodec(cfg.JWTSecret, cfg.JWTAccessTTL)
	if err != nil {
		return fmt.Errorf("jwt codec: %w", err)
	}

	recorder := audit.NewRecorder(newAuditSink(cfg, st, rc, log), log)

	if err := db.EnsureAdminUser(ctx, st.users, hasher, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	reconciler := identity.NewReconciler(st.users, hasher, log)

	deps := httpx.Deps{
		Log:          log,
		Env:          cfg.Env,
		ServiceName:  cfg.OTELServiceName,
		Prom:         prom,
		Gatherer:     prometheus.DefaultGatherer,
		CORSOrigins:  cfg.CORSAllowedOrigins,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Tokens:       codec,
		Accounts:     account.NewService(st.users, reconciler, hasher, codec, recorder, prom, log),
		Directory:    account.NewDirectory(st.users, st.logs, recorder, log),
		Checks:       checks,
	}

	registry := newProviderRegistry(ctx, cfg)
	if enabled := registry.Enabled(); len(enabled) > 0 {
		deps.Providers = registry
		deps.Completer = federation.NewCompleter(reconciler, codec, federation.RedirectConfig{
			BaseURI:               cfg.OAuth2BaseURI,
			AuthorizedRedirectURI: cfg.OAuth2AuthorizedRedirectURI,
		}, recorder, prom, log)

		if rc != nil {
			deps.States = federation.NewRedisStateStore(rc.Raw(), cfg.OAuth2StateTTL)
		} else {
			log.Warn("oauth2 state kept in process memory; run a single replica or set REDIS_ADDR")
			deps.States = federation.NewMemoryStateStore(cfg.OAuth2StateTTL)
		}
		log.Info("oauth2 providers enabled", "providers", enabled)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           httpx.NewRouter(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "audit", cfg.AuditMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
		return err
	}

	log.Info("shutdown complete")
	return nil
}

// newAuditSink picks direct inserts or the redis queue drained by the worker.
// Both sit behind the circuit breaker.
func newAuditSink(cfg config.Config, st stores, rc *redisclient.Client, log *slog.Logger) audit.Sink {
	var inner audit.Sink = audit.NewStoreSink(st.logs)

	if cfg.AuditMode == config.AuditModeQueue && rc != nil {
		inner = audit.NewQueue(rc.Raw(), cfg.AuditQueueKey)
		log.Info("audit records queued", "key", cfg.AuditQueueKey)
	}

	return audit.NewProtectedSink(inner, audit.ProtectedSinkConfig{})
}

func newProviderRegistry(ctx context.Context, cfg config.Config) *federation.Registry {
	var providers []federation.Provider

	if cfg.GoogleEnabled() {
		providers = append(providers, federation.NewGoogleProvider(ctx, federation.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.CallbackURL("google"),
		}))
	}

	if cfg.GitHubEnabled() {
		providers = append(providers, federation.NewGitHubProvider(federation.GitHubConfig{
			ClientID:     cfg.GitHubClientID,
			ClientSecret: cfg.GitHubClientSecret,
			RedirectURL:  cfg.CallbackURL("github"),
		}))
	}

	return federation.NewRegistry(providers...)
}
