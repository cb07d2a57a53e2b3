package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	httptransport "github.com/spec-kit/taskboard/internal/api/http"
	"github.com/spec-kit/taskboard/internal/api/http/handlers"
	"github.com/spec-kit/taskboard/internal/auth"
	"github.com/spec-kit/taskboard/internal/authz"
	"github.com/spec-kit/taskboard/internal/backend"
	"github.com/spec-kit/taskboard/internal/config"
	"github.com/spec-kit/taskboard/internal/domain"
	"github.com/spec-kit/taskboard/internal/events"
	"github.com/spec-kit/taskboard/internal/observability"
	"github.com/spec-kit/taskboard/internal/persistence"
	"github.com/spec-kit/taskboard/internal/repository"
	"github.com/spec-kit/taskboard/internal/service"
	"github.com/spec-kit/taskboard/internal/session"
	"github.com/spec-kit/taskboard/internal/tokenstore"
	"github.com/spec-kit/taskboard/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if !pg.Enabled() {
		logger.Fatal("POSTGRES_DSN is required for users, tasks and the persistent token store")
	}

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	var cookieSurface tokenstore.Backend = tokenstore.NewMemoryBackend()
	if redis.Enabled() {
		cookieSurface = tokenstore.NewRedisBackend(redis.Client, cfg.Redis.KeyPrefix)
	}
	store := tokenstore.New(cookieSurface, tokenstore.NewPostgresBackend(pool), logger, tokenstore.Options{
		AccessTTL:  cfg.Auth.AccessTTL(),
		RefreshTTL: cfg.Auth.RefreshTTL(),
	})

	dispatcher := events.NewInMemoryDispatcher()
	notificationService := service.NewNotificationService(dispatcher, logger, metrics, cfg.Notification)
	taskService := service.NewTaskService(service.TaskDependencies{
		TaskRepo:   repository.NewTaskRepository(pool),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	var sweeper *worker.OverdueSweeper
	if cfg.Tasks.PersistOverdue {
		sweeper = worker.NewOverdueSweeper(taskService, cfg.Tasks.SweepInterval(), logger)
	}
	worker.Start(ctx, notificationService, sweeper)

	authn, tokenMgr := buildAuthenticator(ctx, cfg, pool, logger)

	var verifier authz.Verifier
	if cfg.Auth.EdgeVerify {
		verifier = tokenMgr
	} else {
		logger.Warn("AUTH_EDGE_VERIFY disabled; edge gate trusts unverified token claims")
	}

	sessions := session.NewManager(store, authn, dispatcher, logger)
	go sessions.Initialize(ctx)

	routes := buildRouteTable(cfg.Routes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}, sessions),
		Session: handlers.NewSessionHandler(sessions, routes,
			rate.NewLimiter(rate.Limit(cfg.RateLimit.LoginRPS), cfg.RateLimit.LoginBurst),
			handlers.CookieOptions{
				Secure:     cfg.App.SecureCookies,
				AccessTTL:  cfg.Auth.AccessTTL(),
				RefreshTTL: cfg.Auth.RefreshTTL(),
			}, logger),
		Pages: handlers.NewPagesHandler(sessions, routes),
		Tasks: handlers.NewTasksHandler(taskService, sessions),
		Guard: httptransport.NewGuard(routes, sessions, metrics, ""),
		Gate: httptransport.EdgeGate(httptransport.GateConfig{
			Routes:   routes,
			Verifier: verifier,
			Tokens:   store,
			Metrics:  metrics,
			Logger:   logger,
		}),
		Metrics:   adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})),
		LoginPath: routes.LoginPath,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

// buildAuthenticator picks the remote auth API when AUTH_BACKEND_URL is set
// and the local Postgres-backed service otherwise. The returned token manager
// verifies signatures at the edge.
func buildAuthenticator(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *zap.Logger) (session.Authenticator, *auth.TokenManager) {
	if cfg.Auth.BackendURL != "" {
		logger.Info("using remote auth backend", zap.String("url", cfg.Auth.BackendURL))
		return backend.NewClient(cfg.Auth.BackendURL, cfg.Auth.BackendTimeout(), logger),
			auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL(), cfg.Auth.RefreshTTL())
	}

	authService := service.NewAuthService(cfg.Auth, repository.NewUserRepository(pool))
	seedAdmin(ctx, cfg.Auth, authService, logger)
	return authService, authService.TokenManager()
}

func seedAdmin(ctx context.Context, cfg config.AuthConfig, authService *service.AuthService, logger *zap.Logger) {
	if cfg.SeedAdminEmail == "" || cfg.SeedAdminPassword == "" {
		return
	}
	_, err := authService.CreateUser(ctx, domain.User{
		Email: cfg.SeedAdminEmail,
		Name:  "Administrator",
		Role:  domain.RoleAdmin,
	}, cfg.SeedAdminPassword)
	switch {
	case errors.Is(err, service.ErrEmailTaken):
		// The configured password stays authoritative across restarts.
		if err := authService.ResetPassword(ctx, cfg.SeedAdminEmail, cfg.SeedAdminPassword); err != nil {
			logger.Error("failed to sync seed admin password", zap.Error(err))
			return
		}
		logger.Debug("seed admin already present")
	case err != nil:
		logger.Error("failed to seed admin", zap.Error(err))
	default:
		logger.Info("seeded admin user", zap.String("email", cfg.SeedAdminEmail))
	}
}

func buildRouteTable(cfg config.RoutesConfig) authz.RouteTable {
	routes := authz.DefaultRouteTable()
	routes.Public = append(routes.Public, cfg.Public...)
	if len(cfg.StaffPrefixes) > 0 {
		routes.StaffPrefixes = cfg.StaffPrefixes
	}
	if len(cfg.ManagerPrefixes) > 0 {
		routes.ManagerPrefixes = cfg.ManagerPrefixes
	}
	if cfg.LoginPath != "" {
		routes.LoginPath = cfg.LoginPath
	}
	return routes
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
