// Package main is the entrypoint for the TimeCapsule API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/timecapsule/timecapsule/internal/auth"
	"github.com/timecapsule/timecapsule/internal/cache"
	"github.com/timecapsule/timecapsule/internal/config"
	"github.com/timecapsule/timecapsule/internal/handler"
	"github.com/timecapsule/timecapsule/internal/metrics"
	"github.com/timecapsule/timecapsule/internal/middleware"
	"github.com/timecapsule/timecapsule/internal/notify"
	"github.com/timecapsule/timecapsule/internal/repository"
	"github.com/timecapsule/timecapsule/internal/server"
	"github.com/timecapsule/timecapsule/internal/service"
	"github.com/timecapsule/timecapsule/internal/storage"
)

// mediaBackend is a media store that can report its health.
type mediaBackend interface {
	storage.Store
	Ping(ctx context.Context) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := initLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// Database
	repo, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		return errors.New("database unavailable")
	}
	defer repo.Close()
	logger.Info("connected to database")

	if cfg.DBAutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("database migrations applied")
	}

	// Cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL, cache.Options{
		PoolSize:     cfg.RedisPoolSize,
		MinIdleConns: cfg.RedisMinIdleConns,
	})
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		return errors.New("redis unavailable")
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Media storage
	media, err := newMediaBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("media storage: %w", err)
	}
	logger.Info("media storage ready", "backend", cfg.StorageBackend)

	// Services
	recorder := metrics.NewInMemory()

	hasher, err := auth.NewPasswordHasher(auth.DefaultParams)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	logger.Info("session tokens configured", "issuer", cfg.JWTIssuer, "ttl", tokens.TTL())

	accountService := service.NewAccountService(repo, hasher, tokens, logger, recorder)
	capsuleService := service.NewCapsuleService(repo, media, logger, recorder)

	// Handlers
	deps := routerDeps{
		base:     handler.New(),
		health:   handler.NewHealthHandler(logger, repo, cacheClient, media),
		metrics:  handler.NewMetricsHandler(recorder),
		accounts: handler.NewAuthHandler(accountService, logger),
		capsules: handler.NewCapsuleHandler(capsuleService, storage.NewUploader(media), logger),
		tokens:   tokens,
		limiter:  cacheClient,
		recorder: recorder,
	}
	r := setupRouter(deps, cfg, logger)

	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	if cfg.UnlockSweepEnabled {
		sweeper := notify.NewSweeper(repo, notify.NewPublisher(cacheClient), cfg.UnlockSweepInterval, logger, recorder)
		if err := sweeper.Start(); err != nil {
			return fmt.Errorf("unlock sweeper: %w", err)
		}
		srv.OnShutdown("unlock-sweeper", sweeper.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"storage", cfg.StorageBackend,
	)

	return srv.Run(ctx)
}

// newMediaBackend builds the configured media store.
func newMediaBackend(ctx context.Context, cfg *config.Config) (mediaBackend, error) {
	switch cfg.StorageBackend {
	case config.StorageMinio:
		client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
			Secure: cfg.MinioUseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("minio client: %w", err)
		}
		return storage.NewMinioStore(ctx, client, cfg.MinioBucket)
	default:
		return storage.NewLocalStore(cfg.UploadDir)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", "timecapsule")
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	base     *handler.Handler
	health   *handler.HealthHandler
	metrics  *handler.MetricsHandler
	accounts *handler.AuthHandler
	capsules *handler.CapsuleHandler
	tokens   middleware.TokenVerifier
	limiter  middleware.RateLimiter
	recorder metrics.Recorder
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Public endpoints
	r.Get("/", d.base.Hello)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)

	rateLimitCfg := middleware.RateLimitConfig{
		Logger:       logger,
		Limiter:      d.limiter,
		Metrics:      d.recorder,
		APIEnabled:   cfg.RateLimitAPIEnabled,
		APIPerMinute: cfg.RateLimitAPIPerMinute,
		APIBurst:     cfg.RateLimitAPIBurst,
		LoginEnabled: cfg.RateLimitLoginEnabled,
		LoginRPS:     cfg.RateLimitLoginRPS,
		LoginBurst:   cfg.RateLimitLoginBurst,
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.RateLimitIP(rateLimitCfg))
		r.Post("/register", d.accounts.Register)
		r.Post("/login", d.accounts.Login)
	})

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(middleware.AuthConfig{Logger: logger, Verifier: d.tokens}))
		r.Use(middleware.RateLimitUser(rateLimitCfg))

		r.Route("/capsule", func(r chi.Router) {
			r.Get("/", d.capsules.List)
			r.Post("/", d.capsules.Create)
			r.Get("/{id}", d.capsules.Get)
			r.Patch("/{id}", d.capsules.Update)
			r.Delete("/{id}", d.capsules.Delete)
		})
		r.Get("/uploads/{name}", d.capsules.Media)
	})

	r.NotFound(d.base.NotFound)
	r.MethodNotAllowed(d.base.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		if username := parsed.User.Username(); username != "" {
			parsed.User = url.User(username)
		} else {
			parsed.User = url.User("redacted")
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
