package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App    AppConfig
	DB     DBConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Vendor VendorConfig
	State  StateConfig
	Crypto CryptoConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit for AWS-ready posture.
	// Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// VendorConfig configures the delegated third-party OAuth integration.
// These values are passed into the integration facade at construction and
// never read from ambient state inside core logic.
type VendorConfig struct {
	Provider     string
	ClientID     string
	ClientSecret string
	RedirectURI  string

	// Scopes is space-separated in env, split on load.
	Scopes []string

	AuthURL     string
	TokenURL    string
	RevokeURL   string
	UserInfoURL string
	APIBaseURL  string

	// WebhookSecret is the shared secret for inbound event signatures.
	WebhookSecret string

	// HTTPTimeout bounds every vendor call. Vendor endpoints can hang;
	// unbounded waits are not acceptable.
	HTTPTimeout time.Duration
}

// StateConfig controls the OAuth state codec.
type StateConfig struct {
	// Secret signs state values (HMAC). Required.
	Secret string
	// MaxAge bounds replay: states older than this are rejected.
	MaxAge time.Duration
}

// CryptoConfig holds the at-rest encryption key for stored vendor credentials.
// Tokens are secrets; they never hit the database in plaintext.
type CryptoConfig struct {
	// CredentialKey is base64-encoded, decodes to exactly 32 bytes (AES-256).
	CredentialKey string
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Vendor.Provider = strings.TrimSpace(os.Getenv("VENDOR_PROVIDER"))
	c.Vendor.ClientID = strings.TrimSpace(os.Getenv("VENDOR_CLIENT_ID"))
	c.Vendor.ClientSecret = os.Getenv("VENDOR_CLIENT_SECRET")
	c.Vendor.RedirectURI = strings.TrimSpace(os.Getenv("VENDOR_REDIRECT_URI"))
	c.Vendor.Scopes = strings.Fields(os.Getenv("VENDOR_SCOPES"))
	c.Vendor.AuthURL = strings.TrimSpace(os.Getenv("VENDOR_AUTH_URL"))
	c.Vendor.TokenURL = strings.TrimSpace(os.Getenv("VENDOR_TOKEN_URL"))
	c.Vendor.RevokeURL = strings.TrimSpace(os.Getenv("VENDOR_REVOKE_URL"))
	c.Vendor.UserInfoURL = strings.TrimSpace(os.Getenv("VENDOR_USERINFO_URL"))
	c.Vendor.APIBaseURL = strings.TrimSpace(os.Getenv("VENDOR_API_BASE_URL"))
	c.Vendor.WebhookSecret = os.Getenv("VENDOR_WEBHOOK_SECRET")
	c.Vendor.HTTPTimeout = mustDuration("VENDOR_HTTP_TIMEOUT")

	c.State.Secret = os.Getenv("OAUTH_STATE_SECRET")
	c.State.MaxAge = mustDuration("OAUTH_STATE_MAX_AGE")

	c.Crypto.CredentialKey = strings.TrimSpace(os.Getenv("CREDENTIAL_ENC_KEY"))

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}
	if c.Auth.AccessTokenTTL <= 0 {
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Vendor.Provider == "" {
		// Default provider label; credentials and accounts key on (tenant, provider).
		c.Vendor.Provider = "vendor"
	}
	if c.Vendor.ClientID == "" {
		errs = append(errs, errors.New("VENDOR_CLIENT_ID is required"))
	}
	if c.Vendor.ClientSecret == "" {
		errs = append(errs, errors.New("VENDOR_CLIENT_SECRET is required"))
	}
	if c.Vendor.RedirectURI == "" {
		errs = append(errs, errors.New("VENDOR_REDIRECT_URI is required"))
	}
	if c.Vendor.AuthURL == "" {
		errs = append(errs, errors.New("VENDOR_AUTH_URL is required"))
	}
	if c.Vendor.TokenURL == "" {
		errs = append(errs, errors.New("VENDOR_TOKEN_URL is required"))
	}
	if c.Vendor.APIBaseURL == "" {
		errs = append(errs, errors.New("VENDOR_API_BASE_URL is required"))
	}
	if c.IsProduction() && c.Vendor.WebhookSecret == "" {
		errs = append(errs, errors.New("VENDOR_WEBHOOK_SECRET is required in production"))
	}
	if c.Vendor.HTTPTimeout <= 0 {
		c.Vendor.HTTPTimeout = 15 * time.Second
	}

	if c.State.Secret == "" {
		errs = append(errs, errors.New("OAUTH_STATE_SECRET is required"))
	}
	if c.State.MaxAge <= 0 {
		// Bounds replay of intercepted state values.
		c.State.MaxAge = 10 * time.Minute
	}

	if c.Crypto.CredentialKey == "" {
		errs = append(errs, errors.New("CREDENTIAL_ENC_KEY is required"))
	} else if key, err := base64.StdEncoding.DecodeString(c.Crypto.CredentialKey); err != nil {
		errs = append(errs, errors.New("CREDENTIAL_ENC_KEY must be base64"))
	} else if len(key) != 32 {
		errs = append(errs, fmt.Errorf("CREDENTIAL_ENC_KEY must decode to 32 bytes, got %d", len(key)))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// CredentialKeyBytes returns the decoded at-rest encryption key.
// Validate() guarantees decodability; callers may ignore the error after Load.
func (c Config) CredentialKeyBytes() ([]byte, error) {
	return base64.StdEncoding.DecodeString(c.Crypto.CredentialKey)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
