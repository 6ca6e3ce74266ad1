package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/warden/internal/auth"
	"github.com/BradenHooton/warden/internal/background"
	"github.com/BradenHooton/warden/internal/config"
	"github.com/BradenHooton/warden/internal/database"
	"github.com/BradenHooton/warden/internal/handlers"
	"github.com/BradenHooton/warden/internal/hooks"
	middlewareCustom "github.com/BradenHooton/warden/internal/middleware"
	"github.com/BradenHooton/warden/internal/models"
	"github.com/BradenHooton/warden/internal/repositories"
	"github.com/BradenHooton/warden/internal/routes"
	"github.com/BradenHooton/warden/internal/services"
	pkgauth "github.com/BradenHooton/warden/pkg/auth"
	pkglogger "github.com/BradenHooton/warden/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// healthChecker reports whether the account store backend is reachable
type healthChecker func(ctx context.Context) error

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Auth.StoreBackend),
		slog.String("hasher", cfg.Auth.PasswordHasher))

	// Initialize account store
	store, health, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Error("failed to open account store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	verifier := newVerifier(cfg)

	// Hooks shared by every client context
	dispatcher := hooks.NewDispatcher()
	lockout := services.NewLockoutPolicy(store, cfg.Auth.MaxFailedLogins, logger)
	lockout.Register(dispatcher)

	eventLogger := pkglogger.NewEventLogger(logger)
	for _, event := range []models.AuthEvent{models.BeforeLogin, models.LoggedIn, models.BadLogin} {
		dispatcher.Register(event, eventLogger.Observer(event))
	}

	accountService := services.NewAccountService(store, verifier, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureBootstrapAccount(ctx, accountService, cfg.Auth.AccountKind, logger); err != nil {
		logger.Error("failed to ensure bootstrap account", slog.Any("error", err))
	}
	cancel()

	// Client contexts, one session each
	registry := auth.NewContextRegistry(func(session *services.Session) *services.AuthSessionManager {
		return services.NewAuthSessionManager(session, store, verifier, dispatcher, logger, cfg.Auth.AccountKind)
	}, cfg.Session.IdleTimeout, logger)

	contextTokens := auth.NewContextTokenManager(cfg.Session.Secret, cfg.Session.CookieMaxAge)
	contextConfig := auth.ContextMiddlewareConfig{
		Cookie: auth.CookieConfig{
			Secure:   cfg.Server.Env == "production",
			SameSite: "strict",
		},
		CookieMaxAge: int(cfg.Session.CookieMaxAge.Seconds()),
		Logger:       logger,
	}

	reaper := background.NewContextReaper(registry, logger, cfg.Session.CleanupInterval)

	// Timing delay for auth security
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelay:   cfg.Auth.TimingDelayBase,
		RandomDelay: cfg.Auth.TimingDelayRandom,
	})

	authHandler := handlers.NewAuthHandler(accountService, timingDelay, logger, cfg.Auth.AccountKind)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecureLogger(logger, cfg.Server.Env))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	routes.RegisterRoutes(router, authHandler, contextTokens, registry, contextConfig,
		middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.Auth.LoginRateLimitPerMinute})

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")
		if err := health(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unhealthy","store":"down"}`))
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy","store":"up"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	go reaper.Start(reaperCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	reaperCancel()
	reaper.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// openStore builds the configured AccountStore backend
func openStore(cfg *config.Config, logger *slog.Logger) (services.AccountStore, healthChecker, func(), error) {
	switch cfg.Auth.StoreBackend {
	case config.StorePostgres:
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}

		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}

		return repositories.NewAccountRepository(db), db.HealthCheck, db.Close, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, nil, fmt.Errorf("unable to ping redis: %w", err)
		}
		logger.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))

		check := func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return repositories.NewRedisAccountRepository(rdb, cfg.Redis.KeyPrefix), check, func() { _ = rdb.Close() }, nil

	default:
		logger.Warn("using in-memory account store; accounts are lost on restart")
		check := func(context.Context) error { return nil }
		return repositories.NewMemoryAccountRepository(), check, func() {}, nil
	}
}

func newVerifier(cfg *config.Config) pkgauth.CredentialVerifier {
	if cfg.Auth.PasswordHasher == config.HasherArgon2 {
		return pkgauth.NewArgon2Verifier(pkgauth.DefaultArgon2Params())
	}
	return pkgauth.NewBcryptVerifier(cfg.Auth.BcryptCost)
}

// ensureBootstrapAccount creates the first account if BOOTSTRAP_LOGIN and
// BOOTSTRAP_PASSWORD are set, so that someone can log in and provision others.
func ensureBootstrapAccount(ctx context.Context, accounts *services.AccountService, kind string, logger *slog.Logger) error {
	login := os.Getenv("BOOTSTRAP_LOGIN")
	password := os.Getenv("BOOTSTRAP_PASSWORD")

	if login == "" || password == "" {
		logger.Info("no BOOTSTRAP_LOGIN or BOOTSTRAP_PASSWORD set, skipping bootstrap account")
		return nil
	}

	_, err := accounts.Register(ctx, kind, login, password, "Bootstrap")
	if errors.Is(err, models.ErrDuplicateLoginIdentifier) {
		logger.Info("bootstrap account already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create bootstrap account: %w", err)
	}

	logger.Info("bootstrap account created")
	return nil
}
