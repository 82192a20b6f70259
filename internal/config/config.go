package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Local & deployment secrets (fill up for local development)
	DBConnectionString string `envconfig:"DB_CONNECTION_STRING" required:"true"`
	SessionJWTSecret   string `envconfig:"SESSION_JWT_SECRET" required:"true"`
	AdminAPIKey        string `envconfig:"ADMIN_API_KEY" required:"true"`
	Environment        string `envconfig:"ENV" default:"development"`
	Port               string `envconfig:"PORT" default:"8080"`
	CORSAllowedOrigin  string `envconfig:"CORS_ALLOWED_ORIGIN" default:"*"`

	// Rate limiting. When RATE_LIMIT_REDIS_URL is empty the limiter keeps
	// per-instance in-memory windows, which is acceptable for abuse damping.
	RateLimitRedisURL string `envconfig:"RATE_LIMIT_REDIS_URL"`

	// Free preview abuse guard
	FreePreviewDailyCap int `envconfig:"FREE_PREVIEW_DAILY_CAP" default:"75"`

	// Property cache. The Mashvisor TTL mirrors the provider's data reuse
	// license window; do not raise it without checking the contract.
	MashvisorCacheTTL time.Duration `envconfig:"MASHVISOR_CACHE_TTL" default:"60m"`
	AirbticsCacheTTL  time.Duration `envconfig:"AIRBTICS_CACHE_TTL" default:"60m"`
	CacheSweepEvery   time.Duration `envconfig:"CACHE_SWEEP_EVERY" default:"15m"`

	// Geocoding providers
	NominatimBaseURL string `envconfig:"NOMINATIM_BASE_URL" default:"https://nominatim.openstreetmap.org"`
	GeoapifyBaseURL  string `envconfig:"GEOAPIFY_BASE_URL" default:"https://api.geoapify.com"`
	GeoapifyAPIKey   string `envconfig:"GEOAPIFY_API_KEY"`

	// Market data providers
	MashvisorBaseURL string `envconfig:"MASHVISOR_BASE_URL" default:"https://api.mashvisor.com/v1.1/client"`
	MashvisorAPIKey  string `envconfig:"MASHVISOR_API_KEY"`
	AirbticsBaseURL  string `envconfig:"AIRBTICS_BASE_URL" default:"https://api.airbtics.com/v1"`
	AirbticsAPIKey   string `envconfig:"AIRBTICS_API_KEY"`

	// Magic link auth
	MagicLinkTTL     time.Duration `envconfig:"MAGIC_LINK_TTL" default:"15m"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	MagicLinkBaseURL string        `envconfig:"MAGIC_LINK_BASE_URL" default:"http://localhost:3000/auth/verify"`

	// New accounts start with this many analysis credits.
	SignupCredits int `envconfig:"SIGNUP_CREDITS" default:"3"`

	// Stripe (purchase fulfillment for credit packages)
	StripeSecretKey     string `envconfig:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `envconfig:"STRIPE_WEBHOOK_SECRET"`
	StripePriceStarter  string `envconfig:"STRIPE_PRICE_STARTER"`
	StripePricePro      string `envconfig:"STRIPE_PRICE_PRO"`
	CreditPackStarter   int    `envconfig:"CREDIT_PACK_STARTER" default:"10"`
	CreditPackPro       int    `envconfig:"CREDIT_PACK_PRO" default:"50"`
	CheckoutSuccessURL  string `envconfig:"CHECKOUT_SUCCESS_URL" default:"http://localhost:3000/billing/success"`
	CheckoutCancelURL   string `envconfig:"CHECKOUT_CANCEL_URL" default:"http://localhost:3000/billing/cancel"`

	// Usage analytics (best-effort, optional)
	GCPProjectID       string `envconfig:"GCP_PROJECT_ID"`
	AnalyticsTopic     string `envconfig:"ANALYTICS_TOPIC" default:"analysis-events"`
	PubSubEmulatorHost string `envconfig:"PUBSUB_EMULATOR_HOST"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
