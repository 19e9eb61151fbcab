// Package config provides configuration loading and validation for the API server.
// It uses koanf to merge environment variables with optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the API server.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Site identity, used in gateway metadata and license emails
	SiteURL             string `koanf:"site_url"`
	SiteName            string `koanf:"site_name"`
	CheckoutCallbackURL string `koanf:"checkout_callback_url"`

	// Storage. Both are optional; in-memory stores are used when unset.
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// Authentication
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // set only while rotating
	NonceSecret       string `koanf:"nonce_secret"`

	// Paystack
	PaystackPublicKey string `koanf:"paystack_public_key"`
	PaystackSecretKey string `koanf:"paystack_secret_key"`
	PaystackBaseURL   string `koanf:"paystack_base_url"`

	// Flutterwave
	FlutterwavePublicKey   string `koanf:"flutterwave_public_key"`
	FlutterwaveSecretKey   string `koanf:"flutterwave_secret_key"`
	FlutterwaveWebhookHash string `koanf:"flutterwave_webhook_hash"` // Defaults to the secret key
	FlutterwaveBaseURL     string `koanf:"flutterwave_base_url"`

	// Stripe
	StripeAPIKey        string `koanf:"stripe_api_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`

	// Pricing
	PriceMonthly   float64 `koanf:"price_monthly"`
	PriceYearly    float64 `koanf:"price_yearly"`
	Currency       string  `koanf:"currency"`
	FreeSceneLimit int     `koanf:"free_scene_limit"` // 0 disables the free-tier scene cap

	// SMTP for license emails. Emails are logged instead when SMTPHost is empty.
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUsername string `koanf:"smtp_username"`
	SMTPPassword string `koanf:"smtp_password"`
	SMTPFrom     string `koanf:"smtp_from"`

	// Tracing
	TracingEnabled      bool    `koanf:"tracing_enabled"`
	TracingExporter     string  `koanf:"tracing_exporter"`
	OTLPEndpoint        string  `koanf:"otlp_endpoint"`
	TracingSampleRate   float64 `koanf:"tracing_sample_rate"`
	TracingInsecureMode bool    `koanf:"tracing_insecure"`

	// Webhook rate limit, requests per minute per client IP
	WebhookRateLimit int `koanf:"webhook_rate_limit"`
}

// Configuration validation errors.
var (
	ErrMissingJWTSecret   = errors.New("JWT_SECRET is required")
	ErrMissingSiteURL     = errors.New("SITE_URL is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidCurrency    = errors.New("CURRENCY must be one of NGN, USD, GHS, KES, ZAR")
	ErrNegativePrice      = errors.New("PRICE_MONTHLY and PRICE_YEARLY must not be negative")
	ErrNegativeSceneLimit = errors.New("FREE_SCENE_LIMIT must not be negative")
	ErrInvalidSampleRate  = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort               = 8080
	DefaultEnv                = "development"
	DefaultSiteName           = "PhantomViews"
	DefaultCurrency           = "NGN"
	DefaultFreeSceneLimit     = 3
	DefaultPaystackBaseURL    = "https://api.paystack.co"
	DefaultFlutterwaveBaseURL = "https://api.flutterwave.com"
	DefaultSMTPPort           = 587
	DefaultTracingExporter    = "otlp-http"
	DefaultTracingSampleRate  = 0.1
	DefaultWebhookRateLimit   = 120
)

// SupportedCurrencies lists the currencies accepted by the checkout flow.
var SupportedCurrencies = []string{"NGN", "USD", "GHS", "KES", "ZAR"}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefaultMulti([]string{"PHANTOMVIEWS_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	smtpPort, err := getEnvIntOrDefault("SMTP_PORT", k.Int("smtp_port"), DefaultSMTPPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	webhookRateLimit, err := getEnvIntOrDefault("WEBHOOK_RATE_LIMIT", k.Int("webhook_rate_limit"), DefaultWebhookRateLimit)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	// The free scene limit may legitimately be 0, so presence is checked rather than value.
	freeSceneLimit := DefaultFreeSceneLimit
	if k.Exists("free_scene_limit") {
		freeSceneLimit = k.Int("free_scene_limit")
	}
	if val := os.Getenv("FREE_SCENE_LIMIT"); val != "" {
		i, convErr := strconv.Atoi(val)
		if convErr != nil {
			loadErrs = append(loadErrs, fmt.Errorf("FREE_SCENE_LIMIT must be a valid integer: %w", convErr))
		} else {
			freeSceneLimit = i
		}
	}

	priceMonthly, err := getEnvFloatOrDefault("PRICE_MONTHLY", k.Float64("price_monthly"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	priceYearly, err := getEnvFloatOrDefault("PRICE_YEARLY", k.Float64("price_yearly"), 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	sampleRate, err := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:                   port,
		Env:                    getEnvOrDefaultMulti([]string{"PHANTOMVIEWS_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		SiteURL:                strings.TrimRight(getEnvOrKoanf("SITE_URL", k, "site_url"), "/"),
		SiteName:               getEnvOrDefault("SITE_NAME", k.String("site_name"), DefaultSiteName),
		CheckoutCallbackURL:    getEnvOrKoanf("CHECKOUT_CALLBACK_URL", k, "checkout_callback_url"),
		DatabaseURL:            getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:               getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:              getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:      getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		NonceSecret:            getEnvOrKoanf("NONCE_SECRET", k, "nonce_secret"),
		PaystackPublicKey:      getEnvOrKoanf("PAYSTACK_PUBLIC_KEY", k, "paystack_public_key"),
		PaystackSecretKey:      getEnvOrKoanf("PAYSTACK_SECRET_KEY", k, "paystack_secret_key"),
		PaystackBaseURL:        getEnvOrDefault("PAYSTACK_BASE_URL", k.String("paystack_base_url"), DefaultPaystackBaseURL),
		FlutterwavePublicKey:   getEnvOrKoanf("FLUTTERWAVE_PUBLIC_KEY", k, "flutterwave_public_key"),
		FlutterwaveSecretKey:   getEnvOrKoanf("FLUTTERWAVE_SECRET_KEY", k, "flutterwave_secret_key"),
		FlutterwaveWebhookHash: getEnvOrKoanf("FLUTTERWAVE_WEBHOOK_HASH", k, "flutterwave_webhook_hash"),
		FlutterwaveBaseURL:     getEnvOrDefault("FLUTTERWAVE_BASE_URL", k.String("flutterwave_base_url"), DefaultFlutterwaveBaseURL),
		StripeAPIKey:           getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret:    getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		PriceMonthly:           priceMonthly,
		PriceYearly:            priceYearly,
		Currency:               strings.ToUpper(getEnvOrDefault("CURRENCY", k.String("currency"), DefaultCurrency)),
		FreeSceneLimit:         freeSceneLimit,
		SMTPHost:               getEnvOrKoanf("SMTP_HOST", k, "smtp_host"),
		SMTPPort:               smtpPort,
		SMTPUsername:           getEnvOrKoanf("SMTP_USERNAME", k, "smtp_username"),
		SMTPPassword:           getEnvOrKoanf("SMTP_PASSWORD", k, "smtp_password"),
		SMTPFrom:               getEnvOrKoanf("SMTP_FROM", k, "smtp_from"),
		TracingEnabled:         getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:        getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		OTLPEndpoint:           getEnvOrKoanf("OTEL_EXPORTER_OTLP_ENDPOINT", k, "otlp_endpoint"),
		TracingSampleRate:      sampleRate,
		TracingInsecureMode:    getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
		WebhookRateLimit:       webhookRateLimit,
	}

	if cfg.NonceSecret == "" {
		cfg.NonceSecret = cfg.JWTSecret
	}
	if cfg.FlutterwaveWebhookHash == "" {
		cfg.FlutterwaveWebhookHash = cfg.FlutterwaveSecretKey
	}

	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvBoolOrKoanf parses common truthy/falsy spellings from env, falling back to koanf.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present and sane.
// Gateway keys are optional here; checkout reports an unconfigured gateway per request.
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.SiteURL == "" {
		errs = append(errs, ErrMissingSiteURL)
	}
	if !IsSupportedCurrency(c.Currency) {
		errs = append(errs, ErrInvalidCurrency)
	}
	if c.PriceMonthly < 0 || c.PriceYearly < 0 {
		errs = append(errs, ErrNegativePrice)
	}
	if c.FreeSceneLimit < 0 {
		errs = append(errs, ErrNegativeSceneLimit)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}

	return errs
}

// IsSupportedCurrency reports whether code is one of SupportedCurrencies.
func IsSupportedCurrency(code string) bool {
	for _, c := range SupportedCurrencies {
		if c == code {
			return true
		}
	}
	return false
}

// CallbackURL returns the URL gateways redirect to after checkout,
// defaulting to the site URL.
func (c *Config) CallbackURL() string {
	if c.CheckoutCallbackURL != "" {
		return c.CheckoutCallbackURL
	}
	return c.SiteURL
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                     fmt.Sprintf("%d", c.Port),
		"env":                      c.Env,
		"site_url":                 c.SiteURL,
		"site_name":                c.SiteName,
		"database_url":             maskDatabaseURL(c.DatabaseURL),
		"redis_url":                maskDatabaseURL(c.RedisURL),
		"jwt_secret":               maskSecret(c.JWTSecret),
		"jwt_previous_secret":      maskSecret(c.JWTPreviousSecret),
		"paystack_public_key":      maskGatewayKey(c.PaystackPublicKey),
		"paystack_secret_key":      maskGatewayKey(c.PaystackSecretKey),
		"flutterwave_public_key":   maskGatewayKey(c.FlutterwavePublicKey),
		"flutterwave_secret_key":   maskGatewayKey(c.FlutterwaveSecretKey),
		"flutterwave_webhook_hash": maskSecret(c.FlutterwaveWebhookHash),
		"stripe_api_key":           maskGatewayKey(c.StripeAPIKey),
		"stripe_webhook_secret":    maskSecret(c.StripeWebhookSecret),
		"price_monthly":            strconv.FormatFloat(c.PriceMonthly, 'f', 2, 64),
		"price_yearly":             strconv.FormatFloat(c.PriceYearly, 'f', 2, 64),
		"currency":                 c.Currency,
		"free_scene_limit":         fmt.Sprintf("%d", c.FreeSceneLimit),
		"smtp_host":                c.SMTPHost,
		"smtp_password":            maskSecret(c.SMTPPassword),
		"tracing_enabled":          fmt.Sprintf("%t", c.TracingEnabled),
		"webhook_rate_limit":       fmt.Sprintf("%d", c.WebhookRateLimit),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskGatewayKey masks a gateway API key, preserving the prefix.
// Paystack and Stripe use sk_live_/sk_test_, Flutterwave uses FLWSECK_TEST-.
func maskGatewayKey(s string) string {
	if s == "" {
		return "<not set>"
	}

	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}
	if i := strings.Index(s, "-"); i > 0 && strings.HasPrefix(s, "FLW") {
		return s[:i+1] + "****"
	}

	return maskSecret(s)
}

// maskDatabaseURL masks the password in a connection URL.
// Works for postgres://, postgresql:// and redis:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
