package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yourorg/communityhub/internal/featureflags"
	"github.com/yourorg/communityhub/internal/handler"
	"github.com/yourorg/communityhub/internal/infrastructure/logger"
	"github.com/yourorg/communityhub/internal/infrastructure/platform"
	redisinfra "github.com/yourorg/communityhub/internal/infrastructure/redis"
	"github.com/yourorg/communityhub/internal/observability/metrics"
	"github.com/yourorg/communityhub/internal/observability/tracing"
	"github.com/yourorg/communityhub/internal/reliability/retry"
	"github.com/yourorg/communityhub/internal/repository"
	"github.com/yourorg/communityhub/internal/security"
	"github.com/yourorg/communityhub/internal/security/audit"
	"github.com/yourorg/communityhub/internal/security/auth"
	"github.com/yourorg/communityhub/internal/security/middleware"
	"github.com/yourorg/communityhub/internal/security/ratelimit"
	"github.com/yourorg/communityhub/internal/service"
	"github.com/yourorg/communityhub/pkg/config"
	"github.com/yourorg/communityhub/pkg/database"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting CommunityHub server", slog.String("environment", cfg.Environment))

	// 3. Initialize tracing (no-op unless an OTLP endpoint is configured)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, log, "communityhub", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer shutdownTracing(context.Background())

	// 4. Connect to Postgres, retrying while it comes up
	var pool *database.ConnectionPool
	err = retry.Do(ctx, retry.DefaultConfig(), log, "postgres connect", func(ctx context.Context) error {
		var dialErr error
		pool, dialErr = database.NewConnectionPool(ctx, &database.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			Database: cfg.DBName,
			SSLMode:  cfg.DBSSLMode,
		}, log)
		return dialErr
	})
	if err != nil {
		log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	db := pool.GetDB()

	// 5. Initialize Redis (optional — skipped when no URL is configured)
	var redisClient *redisinfra.Client
	if cfg.RedisURL != "" {
		redisClient, err = redisinfra.NewClient(cfg.RedisURL)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
	}

	// 6. Initialize repositories
	userRepo := repository.NewPostgresUserRepository(db, log)
	templateRepo := repository.NewPostgresTemplateRepository(db, log)
	applicationRepo := repository.NewPostgresApplicationRepository(db, log)

	// 7. Initialize services
	permService := security.NewPermissionService(log)
	auditLogger := audit.NewLogger(log)

	var roleSyncService *service.RoleSyncService
	if cfg.PlatformBaseURL != "" {
		platformClient := platform.NewClient(cfg.PlatformBaseURL, cfg.PlatformAPIKey, nil)
		var syncCache service.SyncCache
		if redisClient != nil {
			syncCache = redisClient
		}
		roleSyncService = service.NewRoleSyncService(platformClient, userRepo, syncCache, log)
	} else {
		log.Warn("platform integration not configured, role sync disabled")
	}

	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "communityhub")
	applicationService := service.NewApplicationService(userRepo, templateRepo, applicationRepo, permService, log)
	authService := service.NewAuthService(userRepo, roleSyncService, tokenManager, log)
	userService := service.NewUserService(userRepo, permService, auditLogger, log)

	// 8. Initialize handlers
	loginHandler := handler.NewLoginHandler(authService, log)
	submitHandler := handler.NewSubmitHandler(applicationService, log)
	listApplicationsHandler := handler.NewListApplicationsHandler(applicationService, log)
	getApplicationHandler := handler.NewGetApplicationHandler(applicationService, log)
	reviewHandler := handler.NewReviewHandler(applicationService, log)
	interviewHandler := handler.NewInterviewHandler(applicationService, log)
	queueHandler := handler.NewQueueHandler(applicationService, log)
	templatesHandler := handler.NewTemplatesHandler(applicationService, log)
	getUserHandler := handler.NewGetUserHandler(userService, log)
	assignRoleHandler := handler.NewAssignRoleHandler(userService, log)
	departmentHandler := handler.NewChangeDepartmentHandler(userService, log)
	banHandler := handler.NewBanHandler(userService, log)
	deleteUserHandler := handler.NewDeleteUserHandler(userService, log)
	syncRoleHandler := handler.NewSyncRoleHandler(userService, roleSyncService, log)
	healthHandler := handler.NewHealthHandler(db, redisClient, log)

	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)

	// 9. Setup HTTP routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/auth/login", loginHandler)
	mux.Handle("POST /api/applications", submitHandler)
	mux.Handle("GET /api/applications", listApplicationsHandler)
	mux.Handle("GET /api/applications/{id}", getApplicationHandler)
	mux.Handle("POST /api/applications/{id}/review", reviewHandler)
	mux.Handle("POST /api/applications/{id}/interview", interviewHandler)
	mux.Handle("GET /api/departments/{department}/queue", queueHandler)
	mux.Handle("GET /api/departments/{department}/templates", templatesHandler)
	mux.Handle("GET /api/users/{id}", getUserHandler)
	mux.Handle("POST /api/users/{id}/role", assignRoleHandler)
	mux.Handle("POST /api/users/{id}/department", departmentHandler)
	mux.Handle("POST /api/users/{id}/ban", banHandler)
	mux.Handle("DELETE /api/users/{id}", deleteUserHandler)
	mux.Handle("POST /api/users/{id}/sync-role", syncRoleHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> JWT -> rate limit -> audit -> CORS -> mux.
	// JWT runs first so the limiter and audit log can key by the signed-in
	// user.
	strictLogin := featureflags.Enabled("strict_login_ratelimit")
	rootHandler := withRequestID(
		middleware.JWTMiddleware(tokenManager, log)(
			middleware.RateLimitMiddleware(rateLimiter, strictLogin, log)(
				middleware.AuditMiddleware(auditLogger)(handlerWithCORS),
			),
		),
		log,
	)
	rootHandler = metrics.HTTPMetricsMiddleware(rootHandler)
	rootHandler = otelhttp.NewHandler(rootHandler, "communityhub")

	// 10. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.String("rate_limit_window", "1m"),
		slog.Bool("role_sync", roleSyncService != nil),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	rateLimiter.Stop()
	log.Info("server stopped")
}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := audit.WithRequestID(r.Context(), reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
