package router

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"app/internal/api/v1/handler"
	"app/internal/config"
	"app/internal/middleware"
	"app/internal/pubsub"
	"app/internal/ratelimit"
	"app/internal/repository"
	"app/internal/service"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// New builds the full application: DB pool, limiter, repositories, services,
// handlers, and the Huma API over a Chi router.
func New(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (http.Handler, *pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsnFor(cfg))
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("Database connection successful")

	// Rate limit windows live in Redis when configured, so limits hold
	// across instances; otherwise each instance keeps its own windows.
	var limiterStore ratelimit.Store
	if cfg.RateLimitRedisURL != "" {
		redisStore, err := ratelimit.NewRedisStore(ctx, cfg.RateLimitRedisURL)
		if err != nil {
			return nil, nil, err
		}
		limiterStore = redisStore
		logger.Info().Msg("Rate limiter using shared Redis store")
	} else {
		limiterStore = ratelimit.NewMemoryStore(time.Minute)
		logger.Info().Msg("Rate limiter using per-instance memory store")
	}
	limiter := ratelimit.New(limiterStore, logger)

	// Best-effort analytics; a missing project simply disables events.
	var analytics pubsub.Publisher
	if cfg.GCPProjectID != "" {
		publisher, err := pubsub.NewPublisher(ctx, cfg.GCPProjectID)
		if err != nil {
			logger.Warn().Err(err).Msg("Analytics publisher unavailable, continuing without usage events")
		} else {
			analytics = publisher
		}
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	// Repositories & services & handlers
	creditRepo := repository.NewCreditRepo(pool)
	previewRepo := repository.NewPreviewRepo(pool)
	propertyRepo := repository.NewPropertyCacheRepo(pool)

	creditSvc := service.NewCreditService(creditRepo, cfg.SignupCredits, logger)
	previewSvc := service.NewPreviewService(previewRepo, creditRepo, cfg.FreePreviewDailyCap, logger)
	cacheSvc := service.NewPropertyCacheService(propertyRepo, logger)
	cacheSvc.StartSweep(ctx, cfg.CacheSweepEvery)

	resolver := service.NewGeocodeResolver([]service.GeocodeProvider{
		service.NewNominatimClient(cfg.NominatimBaseURL, logger),
		service.NewGeoapifyClient(cfg.GeoapifyBaseURL, cfg.GeoapifyAPIKey, logger),
	}, logger)
	market := service.NewMarketDataChain([]service.MarketDataProvider{
		service.NewMashvisorClient(cfg.MashvisorBaseURL, cfg.MashvisorAPIKey, logger),
		service.NewAirbticsClient(cfg.AirbticsBaseURL, cfg.AirbticsAPIKey, logger),
	}, logger)

	analysisSvc := service.NewAnalysisService(
		limiter, creditSvc, previewSvc, cacheSvc,
		resolver, market,
		analytics, cfg.AnalyticsTopic,
		map[string]time.Duration{
			"mashvisor": cfg.MashvisorCacheTTL,
			"airbtics":  cfg.AirbticsCacheTTL,
		},
		logger,
	)
	authSvc := service.NewAuthService(
		&service.LogEmailSender{Logger: logger},
		creditSvc,
		cfg.SessionJWTSecret, cfg.MagicLinkTTL, cfg.SessionTTL, cfg.MagicLinkBaseURL,
		logger,
	)
	paymentSvc := service.NewPaymentService(cfg, creditSvc, logger)

	analysisHandler := handler.NewAnalysisHandler(analysisSvc, validate, logger)
	creditHandler := handler.NewCreditHandler(creditSvc, limiter, validate, logger)
	authHandler := handler.NewAuthHandler(authSvc, limiter, logger)
	billingHandler := handler.NewBillingHandler(paymentSvc, limiter, logger)

	authMw := middleware.AuthMiddleware(cfg.SessionJWTSecret, logger)
	optionalAuthMw := middleware.OptionalAuthMiddleware(cfg.SessionJWTSecret, logger)
	adminMw := middleware.AdminMiddleware(cfg.AdminAPIKey, logger)

	chiRouter := chi.NewRouter()
	chiRouter.Use(middleware.NetworkIDMiddleware)

	// Apply auth middleware based on path
	chiRouter.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			switch {
			// Open endpoints: docs, health, sign-in, and the webhook
			// (verified by its Stripe signature instead).
			case path == "/openapi.json" || path == "/docs" || path == "/schemas" ||
				path == "/healthz" || strings.HasPrefix(path, "/auth/") ||
				path == "/billing/webhook":
				next.ServeHTTP(w, r)
			case path == "/credits/add":
				adminMw(next).ServeHTTP(w, r)
			case path == "/analyze":
				optionalAuthMw(next).ServeHTTP(w, r)
			default:
				authMw(next).ServeHTTP(w, r)
			}
		})
	})

	version := os.Getenv("GIT_COMMIT_SHA")
	if version == "" {
		version = "development"
	}
	humaConfig := huma.DefaultConfig("Property Analysis API v1", version)
	humaConfig.Info.Description = "Metered property investment analysis"

	api := humachi.New(chiRouter, humaConfig)
	registerRoutes(api, analysisHandler, creditHandler, authHandler, billingHandler, logger)

	// Raw mount: Stripe signature verification needs the unread body.
	chiRouter.Post("/billing/webhook", billingHandler.StripeWebhook)

	// Mount the API under /v1 and redirect root-level requests there.
	mux := http.NewServeMux()
	mux.Handle("/v1/", http.StripPrefix("/v1", chiRouter))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/v1/") {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/v1"+r.URL.Path, http.StatusMovedPermanently)
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Admin-Key", "Stripe-Signature"},
		AllowCredentials: cfg.CORSAllowedOrigin != "*",
	})

	logger.Info().Str("version", version).Msg("Huma API initialized for /v1")
	return middleware.LoggerMiddleware(c.Handler(mux)), pool, nil
}

func registerRoutes(
	api huma.API,
	analysisHandler *handler.AnalysisHandler,
	creditHandler *handler.CreditHandler,
	authHandler *handler.AuthHandler,
	billingHandler *handler.BillingHandler,
	logger zerolog.Logger,
) {
	huma.Register(api, huma.Operation{
		OperationID: "analyzeProperty",
		Method:      "POST",
		Path:        "/analyze",
		Summary:     "Analyze a property",
		Description: "Runs the metered analysis pipeline: rate limit, credit or free preview, cache, geocoding, market data",
		Tags:        []string{"analysis"},
	}, analysisHandler.Analyze)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      "GET",
		Path:        "/healthz",
		Summary:     "Health check",
		Tags:        []string{"meta"},
	}, analysisHandler.Health)

	huma.Register(api, huma.Operation{
		OperationID: "getBalance",
		Method:      "GET",
		Path:        "/credits",
		Summary:     "Get credit balance",
		Description: "Returns the authenticated account's credit balance",
		Tags:        []string{"credits"},
	}, creditHandler.GetBalance)

	huma.Register(api, huma.Operation{
		OperationID: "listTransactions",
		Method:      "GET",
		Path:        "/credits/transactions",
		Summary:     "List credit transactions",
		Description: "Returns the authenticated account's newest audit records",
		Tags:        []string{"credits"},
	}, creditHandler.ListTransactions)

	huma.Register(api, huma.Operation{
		OperationID: "addCredits",
		Method:      "POST",
		Path:        "/credits/add",
		Summary:     "Add credits to an account",
		Description: "Privileged purchase-fulfillment endpoint, requires the admin API key",
		Tags:        []string{"credits"},
	}, creditHandler.AddCredits)

	huma.Register(api, huma.Operation{
		OperationID: "requestMagicLink",
		Method:      "POST",
		Path:        "/auth/magic-link",
		Summary:     "Request a sign-in link",
		Tags:        []string{"auth"},
	}, authHandler.RequestMagicLink)

	huma.Register(api, huma.Operation{
		OperationID: "verifyMagicLink",
		Method:      "POST",
		Path:        "/auth/verify",
		Summary:     "Verify a sign-in link",
		Description: "Exchanges a one-time magic-link token for a session token",
		Tags:        []string{"auth"},
	}, authHandler.VerifyMagicLink)

	huma.Register(api, huma.Operation{
		OperationID: "createCheckout",
		Method:      "POST",
		Path:        "/billing/checkout",
		Summary:     "Buy a credit pack",
		Description: "Creates a hosted checkout session for a credit package",
		Tags:        []string{"billing"},
	}, billingHandler.CreateCheckout)

	logger.Info().Msg("All operations registered successfully")
}

// dsnFor adjusts the connection string for the environment: local
// development disables SSL, pooled production connections prefer the simple
// query protocol.
func dsnFor(cfg *config.Config) string {
	dsn := cfg.DBConnectionString
	if cfg.Environment == "development" && !strings.Contains(dsn, "sslmode") {
		dsn += separatorFor(dsn) + "sslmode=disable"
	}
	if cfg.Environment != "development" && !strings.Contains(dsn, "prefer_simple_protocol") {
		dsn += separatorFor(dsn) + "prefer_simple_protocol=true"
	}
	return dsn
}

func separatorFor(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return "&"
		}
		return "?"
	}
	return " "
}
