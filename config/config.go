package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix     = "SCOUT_"
	envConfigFile = "SCOUT_CONFIG"
)

// ServerConfig хранит параметры API сервера сессий.
type ServerConfig struct {
	LogLevel     string `koanf:"log_level"`
	ServerPort   int    `koanf:"server_port"`
	DatabaseURL  string `koanf:"database_url"`
	JWTSecretKey string `koanf:"jwt_secret_key"`
	AutoMigrate  bool   `koanf:"auto_migrate"`

	// Origins allowed to call the API from a browser.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// The Blue Alliance key stays on the server; browsers go through the proxy.
	TBAAPIKey  string `koanf:"tba_api_key"`
	TBABaseURL string `koanf:"tba_base_url"`

	R2AccountID       string `koanf:"r2_account_id"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2PublicBaseURL   string `koanf:"r2_public_base_url"`
}

// R2Configured reports whether every export archive setting is present.
func (c *ServerConfig) R2Configured() bool {
	return c.R2AccountID != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" &&
		c.R2BucketName != "" && c.R2PublicBaseURL != ""
}

// ClientConfig holds the settings of the scouting workspace (CLI).
type ClientConfig struct {
	LogLevel       string        `koanf:"log_level"`
	APIURL         string        `koanf:"api_url"`
	AccessToken    string        `koanf:"access_token"`
	StatboticsURL  string        `koanf:"statbotics_url"`
	TBAProxyURL    string        `koanf:"tba_proxy_url"`
	LocalStorePath string        `koanf:"local_store_path"`
	Debounce       time.Duration `koanf:"debounce"`
	HTTPTimeout    time.Duration `koanf:"http_timeout"`
}

func defaultServer() ServerConfig {
	return ServerConfig{
		LogLevel:           "info",
		ServerPort:         8080,
		CORSAllowedOrigins: []string{"*"},
		TBABaseURL:         "https://www.thebluealliance.com/api/v3",
	}
}

func defaultClient() ClientConfig {
	return ClientConfig{
		LogLevel:       "warn",
		APIURL:         "http://localhost:8080",
		StatboticsURL:  "https://api.statbotics.io",
		LocalStorePath: "alliance-board.sqlite",
		Debounce:       time.Second,
		HTTPTimeout:    15 * time.Second,
	}
}

// LoadServer layers defaults, the optional YAML file named by SCOUT_CONFIG and
// SCOUT_* environment variables (a .env file is read first if present).
func LoadServer(_ context.Context) (*ServerConfig, error) {
	cfg := defaultServer()
	if err := load(&cfg); err != nil {
		return nil, err
	}

	// Переменные без префикса, которые использовались раньше.
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.JWTSecretKey == "" {
		cfg.JWTSecretKey = os.Getenv("JWT_SECRET_KEY")
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("SCOUT_DATABASE_URL environment variable is not set")
	}
	if cfg.JWTSecretKey == "" {
		return nil, errors.New("SCOUT_JWT_SECRET_KEY environment variable is not set")
	}
	if cfg.ServerPort <= 0 || cfg.ServerPort > 65535 {
		return nil, fmt.Errorf("server_port must be between 1 and 65535, got %d", cfg.ServerPort)
	}
	return &cfg, nil
}

// LoadClient loads the workspace settings the same way as LoadServer.
func LoadClient(_ context.Context) (*ClientConfig, error) {
	cfg := defaultClient()
	if err := load(&cfg); err != nil {
		return nil, err
	}

	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.APIURL == "" {
		return nil, errors.New("api_url must not be empty")
	}
	if cfg.TBAProxyURL == "" {
		cfg.TBAProxyURL = cfg.APIURL + "/proxy/tba"
	}
	if cfg.Debounce <= 0 {
		return nil, fmt.Errorf("debounce must be positive, got %s", cfg.Debounce)
	}
	return &cfg, nil
}

func load(target interface{}) error {
	// .env is optional
	_ = godotenv.Load()

	k := koanf.New(".")
	if path := os.Getenv(envConfigFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if err := k.UnmarshalWithConf("", target, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("failed to decode config: %w", err)
	}
	return nil
}

// LogLevel maps a log_level setting to a slog level; unknown values mean info.
func LogLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
