// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/fitsync/internal/domain/model"
)

// ErrMissingTokens is returned by WithPersistedTokens when neither the state
// database nor the environment supplies an access/refresh token pair.
var ErrMissingTokens = errors.New("ACCESS_TOKEN and REFRESH_TOKEN are required when no persisted tokens exist")

// Config holds the application configuration. It is built once at startup
// and never mutated afterwards.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	ClientID     string
	ClientSecret string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	CallbackURL  string
	Units        string

	StatePath    string
	SecretKey    []byte // nil when STATE_SECRET_KEY is unset.
	PollPause    time.Duration
	ListenAddr   string
	LogLevel     slog.Level
	APIBaseURL   string
	TokenURL     string
	OTLPEndpoint string

	// TokensFromState is true when the token fields came from the state
	// database rather than the environment.
	TokensFromState bool
}

// Load reads configuration from environment variables and returns a validated Config.
// CLIENT_ID, CLIENT_SECRET, DB_HOST and DB_NAME are required. Token variables
// (ACCESS_TOKEN, REFRESH_TOKEN, EXPIRES_AT) are only seeds: persisted values
// take precedence, see WithPersistedTokens.
func Load() (*Config, error) {
	cfg := &Config{
		DBHost:       os.Getenv("DB_HOST"),
		DBPort:       8086,
		DBUser:       os.Getenv("DB_USER"),
		DBPassword:   os.Getenv("DB_PASSWORD"),
		DBName:       os.Getenv("DB_NAME"),
		ClientID:     os.Getenv("CLIENT_ID"),
		ClientSecret: os.Getenv("CLIENT_SECRET"),
		AccessToken:  os.Getenv("ACCESS_TOKEN"),
		RefreshToken: os.Getenv("REFRESH_TOKEN"),
		CallbackURL:  os.Getenv("CALLBACK_URL"),
		Units:        "it_IT",
		PollPause:    30 * time.Second,
		ListenAddr:   "127.0.0.1:8080",
		LogLevel:     slog.LevelInfo,
		APIBaseURL:   "https://api.fitbit.com",
		TokenURL:     "https://api.fitbit.com/oauth2/token",
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var missing []string
	for name, v := range map[string]string{
		"CLIENT_ID":     cfg.ClientID,
		"CLIENT_SECRET": cfg.ClientSecret,
		"DB_HOST":       cfg.DBHost,
		"DB_NAME":       cfg.DBName,
	} {
		if v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if v, ok := os.LookupEnv("DB_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("DB_PORT has invalid port %q", v)
		}
		cfg.DBPort = port
	}

	if v, ok := os.LookupEnv("EXPIRES_AT"); ok && v != "" {
		expiresAt, err := parseExpiry(v)
		if err != nil {
			return nil, fmt.Errorf("EXPIRES_AT has invalid value %q: %w", v, err)
		}
		cfg.ExpiresAt = expiresAt
	}

	if v, ok := os.LookupEnv("UNITS"); ok && v != "" {
		cfg.Units = v
	}

	configPath := "."
	if v, ok := os.LookupEnv("CONFIG_PATH"); ok && v != "" {
		configPath = v
	}
	cfg.StatePath = filepath.Join(configPath, "state.db")

	if v, ok := os.LookupEnv("STATE_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil || len(key) != 32 {
			return nil, errors.New("STATE_SECRET_KEY must be 64 hex characters")
		}
		cfg.SecretKey = key
	}

	if v, ok := os.LookupEnv("POLL_PAUSE"); ok && v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("POLL_PAUSE has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("POLL_PAUSE must not be negative, got %q", v)
		}
		cfg.PollPause = parsed
	}

	if v, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		cfg.ListenAddr = v
	}

	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return nil, fmt.Errorf("LOG_LEVEL has invalid level %q: %w", v, err)
		}
	}

	if v, ok := os.LookupEnv("API_BASE_URL"); ok && v != "" {
		cfg.APIBaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := os.LookupEnv("TOKEN_URL"); ok && v != "" {
		cfg.TokenURL = v
	}

	return cfg, nil
}

// WithPersistedTokens returns a copy of c whose token fields are replaced by
// the persisted set when it is complete. Environment values remain the seed
// otherwise. It fails when no complete token pair is available from either source.
func (c *Config) WithPersistedTokens(persisted model.TokenSet) (*Config, error) {
	merged := *c
	if persisted.Complete() {
		merged.AccessToken = persisted.AccessToken
		merged.RefreshToken = persisted.RefreshToken
		merged.ExpiresAt = persisted.ExpiresAt
		merged.TokensFromState = true
	}

	if merged.AccessToken == "" || merged.RefreshToken == "" {
		return nil, ErrMissingTokens
	}
	return &merged, nil
}

// Credentials returns the OAuth2 registration and token pair as a domain value.
func (c *Config) Credentials() model.Credentials {
	return model.Credentials{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
}

// Tokens returns the token subset of the configuration.
func (c *Config) Tokens() model.TokenSet {
	return model.TokenSet{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		ExpiresAt:    c.ExpiresAt,
	}
}

// DBAddr returns the InfluxDB HTTP address.
func (c *Config) DBAddr() string {
	return fmt.Sprintf("http://%s:%d", c.DBHost, c.DBPort)
}

// parseExpiry accepts Unix seconds or an RFC 3339 timestamp.
func parseExpiry(v string) (time.Time, error) {
	if secs, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, v)
}
