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
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/softstore/internal/handler"
	"github.com/yourorg/softstore/internal/infrastructure/logger"
	"github.com/yourorg/softstore/internal/infrastructure/redis"
	"github.com/yourorg/softstore/internal/notification"
	"github.com/yourorg/softstore/internal/observability/metrics"
	"github.com/yourorg/softstore/internal/observability/tracing"
	"github.com/yourorg/softstore/internal/repository"
	"github.com/yourorg/softstore/internal/security/audit"
	"github.com/yourorg/softstore/internal/security/auth"
	"github.com/yourorg/softstore/internal/security/middleware"
	"github.com/yourorg/softstore/internal/security/ratelimit"
	"github.com/yourorg/softstore/internal/service"
	"github.com/yourorg/softstore/internal/worker"
	"github.com/yourorg/softstore/pkg/config"
	"github.com/yourorg/softstore/pkg/database"
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
	log.Info("starting softstore server", slog.String("environment", cfg.Environment))

	// 3. Initialize tracing (no-op without an OTLP endpoint configured)
	shutdownTracing, err := tracing.Init(context.Background(), log, "softstore", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize Redis client
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Initialize Postgres pool
	dbPool, err := database.NewConnectionPool(context.Background(), &database.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}, log)
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	db := dbPool.GetDB()

	// 6. Initialize repositories
	productRepo := repository.NewPostgresProductRepository(db, log)
	keyRepo := repository.NewPostgresKeyRepository(db, log)
	companyRepo := repository.NewPostgresCompanyRepository(db, log)
	userRepo := repository.NewPostgresUserRepository(db, log)
	revocations := repository.NewRedisRevocationStore(redisClient, log)

	// 7. Initialize services
	tokenManager := auth.NewTokenManager(cfg.JWTSecret, "softstore", cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	mailSender := notification.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUsername, cfg.SMTPPassword, log)

	catalogService := service.NewCatalogService(productRepo, companyRepo, log)
	orderService := service.NewOrderService(productRepo, keyRepo, mailSender, log)
	authService := service.NewAuthService(userRepo, tokenManager, revocations, log)

	// 8. Initialize handlers
	catalogHandler := handler.NewCatalogHandler(catalogService, log)
	orderHandler := handler.NewOrderHandler(orderService, log)
	authHandler := handler.NewAuthHandler(authService, log)
	healthHandler := handler.NewHealthHandler(dbPool, redisClient, log)

	// 8a. Security components
	rateLimiter := ratelimit.NewLimiter(cfg.OrderRateLimit, cfg.OrderRateWindow)
	auditLogger := audit.NewLogger(log)

	// 9. Routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", catalogHandler.ListProducts)
	mux.HandleFunc("GET /api/products/search", catalogHandler.SearchProducts)
	mux.HandleFunc("GET /api/products/{slug}", catalogHandler.GetProductBySlug)
	mux.HandleFunc("GET /api/companies/{id}", catalogHandler.GetCompany)
	mux.HandleFunc("GET /api/companies/{id}/products", catalogHandler.ListProductsByCompany)
	mux.HandleFunc("GET /api/tags/{name}/products", catalogHandler.ListProductsByTag)
	mux.HandleFunc("GET /api/tags/counts", catalogHandler.ListTagCounts)
	mux.HandleFunc("GET /api/operating-systems/counts", catalogHandler.ListOperatingSystemCounts)

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/token", authHandler.Token)
	mux.HandleFunc("POST /api/auth/verify", authHandler.Verify)
	mux.HandleFunc("POST /api/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/auth/revoke", authHandler.Revoke)
	mux.HandleFunc("GET /api/viewer", authHandler.Viewer)
	mux.HandleFunc("PUT /api/viewer", authHandler.UpdateViewer)

	mux.HandleFunc("POST /api/orders", orderHandler.Create)

	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)
	mux.Handle("/metrics", promhttp.Handler())

	// CORS honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain: request ID -> metrics -> JWT -> rate limit -> audit -> content type -> CORS -> mux
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(authService, auditLogger, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuditMiddleware(auditLogger)(
						middleware.ValidateJSONContentType(log)(handlerWithCORS),
					),
				),
			),
		),
		log,
	)

	// 10. Background inventory worker
	inventoryWorker := worker.NewInventoryWorker(keyRepo, log, cfg.InventoryInterval, cfg.LowStockThreshold)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go inventoryWorker.Start(ctx)

	// 11. HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      otelhttp.NewHandler(rootHandler, "softstore.http"),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("auth", "jwt"),
		slog.Int("order_rate_limit", cfg.OrderRateLimit),
	)

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

	cancel() // Stop inventory worker
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
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
