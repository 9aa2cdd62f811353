package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Env  string
	Port int

	DatabaseURL string

	JWTSecret        string
	JWTRefreshSecret string

	OpenAIAPIKey string
	OpenAIModel  string

	StripeSecretKey       string
	StripeWebhookSecret   string
	StripeBasicPriceID    string
	StripeProPriceID      string
	StripeEnterprisePrice string

	FrontendURL string
	CORSOrigins []string

	TrialDurationHours int
	ChatRateLimitMax   int

	AdminEmail    string
	AdminPassword string

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	port, _ := strconv.Atoi(getEnv("PORT", "4000"))

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	refreshSecret := getEnv("JWT_REFRESH_SECRET", "")
	if refreshSecret == "" {
		return nil, fmt.Errorf("JWT_REFRESH_SECRET is required")
	}

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	stripeKey := getEnv("STRIPE_SECRET_KEY", "")
	if stripeKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}

	webhookSecret := getEnv("STRIPE_WEBHOOK_SECRET", "")
	if webhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}

	openaiKey := getEnv("OPENAI_API_KEY", "")
	if openaiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	trialHours, _ := strconv.Atoi(getEnv("TRIAL_DURATION_HOURS", "24"))
	chatLimit, _ := strconv.Atoi(getEnv("CHAT_RATE_LIMIT_MAX", "20"))

	origins := strings.Split(getEnv("CORS_ORIGINS", "http://localhost:19006,http://localhost:5173"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return &Config{
		Env:                   getEnv("APP_ENV", "development"),
		Port:                  port,
		DatabaseURL:           dbURL,
		JWTSecret:             jwtSecret,
		JWTRefreshSecret:      refreshSecret,
		OpenAIAPIKey:          openaiKey,
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-3.5-turbo"),
		StripeSecretKey:       stripeKey,
		StripeWebhookSecret:   webhookSecret,
		StripeBasicPriceID:    getEnv("STRIPE_BASIC_PRICE_ID", "price_basic_test"),
		StripeProPriceID:      getEnv("STRIPE_PRO_PRICE_ID", "price_pro_test"),
		StripeEnterprisePrice: getEnv("STRIPE_ENTERPRISE_PRICE_ID", "price_enterprise_test"),
		FrontendURL:           getEnv("FRONTEND_URL", "http://localhost:19006"),
		CORSOrigins:           origins,
		TrialDurationHours:    trialHours,
		ChatRateLimitMax:      chatLimit,
		AdminEmail:            getEnv("ADMIN_EMAIL", "admin@zynx.app"),
		AdminPassword:         getEnv("ADMIN_PASSWORD", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
	}, nil
}

// IsDevelopment reports whether the app runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// PriceIDFor returns the Stripe price ID configured for a plan.
func (c *Config) PriceIDFor(plan string) string {
	switch plan {
	case "basic":
		return c.StripeBasicPriceID
	case "pro":
		return c.StripeProPriceID
	case "enterprise":
		return c.StripeEnterprisePrice
	}
	return ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
