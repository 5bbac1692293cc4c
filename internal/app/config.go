package app

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/florianilch/photofeed/internal/observability"
	"github.com/florianilch/photofeed/internal/oauth"
	"github.com/florianilch/photofeed/internal/profile"
	"github.com/florianilch/photofeed/internal/secretstore"
	"github.com/florianilch/photofeed/internal/server"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// SecretStorageType represents the different storage backends supported for the access token.
type SecretStorageType string

const (
	SecretStorageTypeFile    SecretStorageType = "file"
	SecretStorageTypeEnv     SecretStorageType = "env"
	SecretStorageTypeKeyring SecretStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogFormat         = LogFormatText
	DefaultConfigTelemetryExporter = observability.ExporterNone
	DefaultConfigServerHost        = "127.0.0.1"
	DefaultConfigServerPort        = 4000
	DefaultConfigShutdownTimeout   = 5 * time.Second
	DefaultConfigAPIBaseURL        = "https://api.unsplash.com"
	DefaultConfigAPITimeout        = 30 * time.Second
	DefaultConfigAPIRatePerHour    = 50
	DefaultConfigAPIRateBurst      = 10
	DefaultConfigOAuthRedirectURI  = oauth.NativeRedirectURI
	DefaultConfigAuthStorage       = SecretStorageTypeFile
	DefaultConfigAuthEnvPrefix     = "UNSPLASH_"
	DefaultConfigAuthKeyring       = "photofeed"
)

// ErrOAuthNotConfigured is returned by operations that need a registered OAuth client.
var ErrOAuthNotConfigured = errors.New("oauth.client_id is not configured")

// TelemetryConfig holds log export configuration.
type TelemetryConfig struct {
	Exporter observability.Exporter `json:"exporter" validate:"oneof=none stdout otlp-http otlp-grpc"`
	Endpoint string                 `json:"endpoint,omitempty" validate:"omitempty,url"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Host string `json:"host" validate:"hostname_rfc1123|ip"`
	Port uint16 `json:"port"` // Port range 0-65535 handled by uint16 type
}

// ShutdownConfig holds shutdown behavior configuration.
type ShutdownConfig struct {
	// Timeout for graceful shutdown.
	Timeout time.Duration `json:"timeout"`
}

// APIConfig holds photo API configuration.
type APIConfig struct {
	BaseURL string        `json:"base_url" validate:"required,url"`
	Timeout time.Duration `json:"timeout" validate:"gte=0"`
	// RateLimitPerHour throttles outbound requests. Unset uses the default,
	// a negative value disables throttling.
	RateLimitPerHour int `json:"rate_limit_per_hour"`
	RateBurst        int `json:"rate_burst" validate:"gte=0"`
}

// OAuthConfig holds the OAuth2 client registration.
type OAuthConfig struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURI  string   `json:"redirect_uri" validate:"required"`
	Scopes       []string `json:"scopes" validate:"min=1,dive,required"`
	CallbackPath string   `json:"callback_path" validate:"required,startswith=/"`

	// Endpoint overrides; empty uses the photo API provider.
	AuthURL  string `json:"auth_url,omitempty" validate:"omitempty,url"`
	TokenURL string `json:"token_url,omitempty" validate:"omitempty,url"`
}

// AuthConfig describes where the access token is kept.
type AuthConfig struct {
	Storage SecretStorageType `json:"storage" validate:"required,oneof=file env keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	Dir            string `json:"dir,omitempty"`             // For file storage: directory holding one file per secret
	EnvPrefix      string `json:"env_prefix,omitempty"`      // For env storage: variable name prefix
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service name
}

// NewSecretStore creates the SecretStore selected by the configuration.
func (a *AuthConfig) NewSecretStore() (secretstore.SecretStore, error) {
	switch a.Storage {
	case SecretStorageTypeFile:
		return secretstore.NewFileStore(a.Dir)
	case SecretStorageTypeEnv:
		return secretstore.NewEnvStore(a.EnvPrefix)
	case SecretStorageTypeKeyring:
		return secretstore.NewKeyringStore(a.KeyringService)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", a.Storage)
	}
}

// ProfileConfig holds profile cache configuration.
type ProfileConfig struct {
	AvatarCacheSize int `json:"avatar_cache_size" validate:"gte=0"`
}

// Config holds the application's configuration.
type Config struct {
	// LogLevel for logging output (defaults to Info if unset).
	LogLevel  slog.Level      `json:"log_level"`
	LogFormat LogFormat       `json:"log_format" validate:"oneof=text json"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Server    ServerConfig    `json:"server"`
	Shutdown  ShutdownConfig  `json:"shutdown"`
	API       APIConfig       `json:"api"`
	OAuth     OAuthConfig     `json:"oauth"`
	Auth      AuthConfig      `json:"auth"`
	Profile   ProfileConfig   `json:"profile"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Telemetry.Exporter == "" {
		c.Telemetry.Exporter = DefaultConfigTelemetryExporter
	}
	if c.Server.Host == "" {
		c.Server.Host = DefaultConfigServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultConfigServerPort
	}
	if c.Shutdown.Timeout == 0 {
		c.Shutdown.Timeout = DefaultConfigShutdownTimeout
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultConfigAPITimeout
	}
	if c.API.RateLimitPerHour == 0 {
		c.API.RateLimitPerHour = DefaultConfigAPIRatePerHour
	}
	if c.API.RateBurst == 0 {
		c.API.RateBurst = DefaultConfigAPIRateBurst
	}
	if c.OAuth.RedirectURI == "" {
		c.OAuth.RedirectURI = DefaultConfigOAuthRedirectURI
	}
	if len(c.OAuth.Scopes) == 0 {
		c.OAuth.Scopes = append([]string(nil), oauth.DefaultScopes...)
	}
	if c.OAuth.CallbackPath == "" {
		c.OAuth.CallbackPath = server.DefaultCallbackPath
	}
	if c.Auth.Storage == "" {
		c.Auth.Storage = DefaultConfigAuthStorage
	}
	if c.Profile.AvatarCacheSize == 0 {
		c.Profile.AvatarCacheSize = profile.DefaultAvatarCacheSize
	}

	// Dynamic defaults based on storage type
	switch c.Auth.Storage {
	case SecretStorageTypeFile:
		if c.Auth.Dir == "" {
			configDir, err := os.UserConfigDir()
			if err != nil {
				return fmt.Errorf("auth.dir required (auto-detect failed: %w)", err)
			}
			c.Auth.Dir = filepath.Join(configDir, "photofeed")
		}
	case SecretStorageTypeEnv:
		if c.Auth.EnvPrefix == "" {
			c.Auth.EnvPrefix = DefaultConfigAuthEnvPrefix
		}
	case SecretStorageTypeKeyring:
		if c.Auth.KeyringService == "" {
			c.Auth.KeyringService = DefaultConfigAuthKeyring
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Auth.Storage {
	case SecretStorageTypeFile:
		if c.Auth.Dir == "" {
			return errors.New("auth.dir required for file storage")
		}
	case SecretStorageTypeEnv:
		if c.Auth.EnvPrefix == "" {
			return errors.New("auth.env_prefix required for env storage")
		}
	case SecretStorageTypeKeyring:
		if c.Auth.KeyringService == "" {
			return errors.New("auth.keyring_service required for keyring storage")
		}
	}

	return nil
}

// CallbackURL is the address of the server's OAuth callback, the value
// oauth.redirect_uri needs for a browser login through `serve`.
func (c *Config) CallbackURL() string {
	host := net.JoinHostPort(c.Server.Host, strconv.FormatUint(uint64(c.Server.Port), 10))
	return "http://" + host + c.OAuth.CallbackPath
}

// RedirectsToServer reports whether the provider's redirect reaches the
// server's callback. Loopback names are interchangeable.
func (c *Config) RedirectsToServer() bool {
	u, err := url.Parse(c.OAuth.RedirectURI)
	if err != nil || u.Scheme != "http" {
		return false
	}
	if u.Port() != strconv.FormatUint(uint64(c.Server.Port), 10) || u.Path != c.OAuth.CallbackPath {
		return false
	}
	return u.Hostname() == c.Server.Host || (isLoopback(u.Hostname()) && isLoopback(c.Server.Host))
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
