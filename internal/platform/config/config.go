package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second

	defaultAuthMode      = "firebase"
	defaultAuthRoleClaim = "role"

	defaultGatewayMode    = "simulated"
	defaultGatewayLatency = 1500 * time.Millisecond

	defaultOrderTopic = "order-events"
	defaultCartTopic  = "cart-events"

	defaultUploadURLTTL = 15 * time.Minute

	defaultFreeShippingThreshold = 7500
	defaultDiscountThreshold     = 10000
	defaultDiscountRatePercent   = 10
	defaultTaxRatePercent        = 8
	defaultCODFee                = 599
	defaultCODMinimum            = 1000
	defaultCODMaximum            = 50000
	defaultStandardRate          = 895
	defaultExpressRate           = 1499
	defaultOvernightRate         = 2499
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Auth      AuthConfig
	PSP       PSPConfig
	Events    EventsConfig
	Media     MediaConfig
	Pricing   PricingConfig
	Features  FeatureFlags
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// AuthConfig selects and parameterises the bearer-token verifier.
// Mode is "firebase" in deployed environments and "local" for
// HS256-signed tokens in development.
type AuthConfig struct {
	Mode        string
	RoleClaim   string
	LocalSecret string
	LocalIssuer string
}

// PSPConfig collects payment gateway settings. Mode selects between the
// Stripe provider and the simulated gateway used outside production.
type PSPConfig struct {
	Mode             string
	StripeAPIKey     string
	SimulatedLatency time.Duration
}

// EventsConfig names the Pub/Sub topics the API publishes to.
type EventsConfig struct {
	ProjectID  string
	OrderTopic string
	CartTopic  string
}

// MediaConfig configures the product image bucket and signed upload URLs.
type MediaConfig struct {
	Bucket        string
	SignerEmail   string
	SignerKeyFile string
	UploadURLTTL  time.Duration
	PublicBaseURL string
}

// PricingConfig holds the monetary knobs of the quote calculator. All
// amounts are minor units; rates are whole percentages.
type PricingConfig struct {
	FreeShippingThreshold int64
	DiscountThreshold     int64
	DiscountRatePercent   int64
	TaxRatePercent        int64
	CODFee                int64
	CODMinimum            int64
	CODMaximum            int64
	StandardRate          int64
	ExpressRate           int64
	OvernightRate         int64
}

// FeatureFlags toggle optional behaviour without redeploying.
type FeatureFlags struct {
	EnableGiftMessages bool
	EnableMediaUploads bool
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e == nil || len(e.fields) == 0 {
		return "config: validation failed"
	}
	fields := append([]string(nil), e.fields...)
	sort.Strings(fields)
	return fmt.Sprintf("config: missing or invalid fields: %s", strings.Join(fields, ", "))
}

// Fields returns the names of the offending configuration fields.
func (e *ValidationError) Fields() []string {
	if e == nil {
		return nil
	}
	return append([]string(nil), e.fields...)
}

// SecretResolver resolves secret:// references into secret material.
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(ctx context.Context, ref string) (string, error)

// ResolveSecret implements SecretResolver.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// SecretError wraps a failure to resolve a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("config: resolving secret %s: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying resolution error.
func (e *SecretError) Unwrap() error {
	return e.Err
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// Option adjusts how Load assembles the configuration.
type Option func(*loaderOptions)

// WithEnvFile overrides the dotenv file consulted for defaults.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit values that take precedence over the environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables os.LookupEnv lookups, useful in tests.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// Load assembles the application configuration by combining defaults,
// .env overrides, environment variables, and secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "API_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "API_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "API_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "API_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "API_FIRESTORE_EMULATOR_HOST", ""),
		},
		Auth: AuthConfig{
			Mode:        strings.ToLower(stringWithDefault(lookup, "API_AUTH_MODE", defaultAuthMode)),
			RoleClaim:   stringWithDefault(lookup, "API_AUTH_ROLE_CLAIM", defaultAuthRoleClaim),
			LocalSecret: stringWithDefault(lookup, "API_AUTH_LOCAL_SECRET", ""),
			LocalIssuer: stringWithDefault(lookup, "API_AUTH_LOCAL_ISSUER", ""),
		},
		PSP: PSPConfig{
			Mode:             strings.ToLower(stringWithDefault(lookup, "API_PSP_MODE", defaultGatewayMode)),
			StripeAPIKey:     stringWithDefault(lookup, "API_PSP_STRIPE_API_KEY", ""),
			SimulatedLatency: durationWithDefault(lookup, "API_PSP_SIMULATED_LATENCY", defaultGatewayLatency),
		},
		Events: EventsConfig{
			ProjectID:  stringWithDefault(lookup, "API_EVENTS_PROJECT_ID", ""),
			OrderTopic: stringWithDefault(lookup, "API_EVENTS_ORDER_TOPIC", defaultOrderTopic),
			CartTopic:  stringWithDefault(lookup, "API_EVENTS_CART_TOPIC", defaultCartTopic),
		},
		Media: MediaConfig{
			Bucket:        stringWithDefault(lookup, "API_MEDIA_BUCKET", ""),
			SignerEmail:   stringWithDefault(lookup, "API_MEDIA_SIGNER_EMAIL", ""),
			SignerKeyFile: stringWithDefault(lookup, "API_MEDIA_SIGNER_KEY_FILE", ""),
			UploadURLTTL:  durationWithDefault(lookup, "API_MEDIA_UPLOAD_URL_TTL", defaultUploadURLTTL),
			PublicBaseURL: stringWithDefault(lookup, "API_MEDIA_PUBLIC_BASE_URL", ""),
		},
		Pricing: PricingConfig{
			FreeShippingThreshold: amountWithDefault(lookup, "API_PRICING_FREE_SHIPPING_THRESHOLD", defaultFreeShippingThreshold),
			DiscountThreshold:     amountWithDefault(lookup, "API_PRICING_DISCOUNT_THRESHOLD", defaultDiscountThreshold),
			DiscountRatePercent:   amountWithDefault(lookup, "API_PRICING_DISCOUNT_RATE_PERCENT", defaultDiscountRatePercent),
			TaxRatePercent:        amountWithDefault(lookup, "API_PRICING_TAX_RATE_PERCENT", defaultTaxRatePercent),
			CODFee:                amountWithDefault(lookup, "API_PRICING_COD_FEE", defaultCODFee),
			CODMinimum:            amountWithDefault(lookup, "API_PRICING_COD_MINIMUM", defaultCODMinimum),
			CODMaximum:            amountWithDefault(lookup, "API_PRICING_COD_MAXIMUM", defaultCODMaximum),
			StandardRate:          amountWithDefault(lookup, "API_PRICING_STANDARD_RATE", defaultStandardRate),
			ExpressRate:           amountWithDefault(lookup, "API_PRICING_EXPRESS_RATE", defaultExpressRate),
			OvernightRate:         amountWithDefault(lookup, "API_PRICING_OVERNIGHT_RATE", defaultOvernightRate),
		},
		Features: FeatureFlags{
			EnableGiftMessages: boolWithDefault(lookup, "API_FEATURE_GIFT_MESSAGES", true),
			EnableMediaUploads: boolWithDefault(lookup, "API_FEATURE_MEDIA_UPLOADS", true),
		},
	}

	// Firestore and Pub/Sub projects default to the Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Events.ProjectID == "" {
		cfg.Events.ProjectID = cfg.Firebase.ProjectID
	}

	// Resolve values that reference Secret Manager.
	secretFields := []struct {
		name  string
		field *string
	}{
		{"PSP.StripeAPIKey", &cfg.PSP.StripeAPIKey},
		{"Auth.LocalSecret", &cfg.Auth.LocalSecret},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" {
		invalid = append(invalid, "Firestore.ProjectID")
	}
	switch cfg.Auth.Mode {
	case "firebase":
		if cfg.Firebase.ProjectID == "" {
			invalid = append(invalid, "Firebase.ProjectID")
		}
	case "local":
		if cfg.Auth.LocalSecret == "" {
			invalid = append(invalid, "Auth.LocalSecret")
		}
	default:
		invalid = append(invalid, "Auth.Mode")
	}
	switch cfg.PSP.Mode {
	case "stripe":
		if cfg.PSP.StripeAPIKey == "" {
			invalid = append(invalid, "PSP.StripeAPIKey")
		}
	case "simulated":
	default:
		invalid = append(invalid, "PSP.Mode")
	}

	p := cfg.Pricing
	if p.FreeShippingThreshold < 0 || p.DiscountThreshold < 0 {
		invalid = append(invalid, "Pricing.Thresholds")
	}
	if p.TaxRatePercent < 0 || p.TaxRatePercent > 100 {
		invalid = append(invalid, "Pricing.TaxRatePercent")
	}
	if p.DiscountRatePercent < 0 || p.DiscountRatePercent > 100 {
		invalid = append(invalid, "Pricing.DiscountRatePercent")
	}
	if p.CODMinimum < 0 || p.CODMaximum <= p.CODMinimum {
		invalid = append(invalid, "Pricing.CODBounds")
	}
	if p.StandardRate < 0 || p.ExpressRate < 0 || p.OvernightRate < 0 || p.CODFee < 0 {
		invalid = append(invalid, "Pricing.Rates")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func amountWithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
