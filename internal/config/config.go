package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

// ConfigPathEnv は設定ファイルのパスを指定する環境変数名。
const ConfigPathEnv = "HABITVOTE_CONFIG"

// MinJWTSecretLength はJWT署名鍵の最小バイト数。
const MinJWTSecretLength = 16

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseDriver string `toml:"database_driver" env:"DATABASE_DRIVER"`
	DatabaseURL    string `toml:"database_url" env:"DATABASE_URL"`

	// Auth
	JWTSecret string        `toml:"jwt_secret" env:"JWT_SECRET"`
	JWTIssuer string        `toml:"jwt_issuer" env:"JWT_ISSUER"`
	TokenTTL  time.Duration `toml:"token_ttl" env:"TOKEN_TTL"`

	// Vote
	DayBoundaryTZ  string `toml:"day_boundary_tz" env:"DAY_BOUNDARY_TZ"`
	NotesMaxLength int    `toml:"notes_max_length" env:"NOTES_MAX_LENGTH"`

	// Rate Limit (req/min)
	RateLimitGeneral int `toml:"rate_limit_general" env:"RATE_LIMIT_GENERAL"`
	RateLimitWrite   int `toml:"rate_limit_write" env:"RATE_LIMIT_WRITE"`

	// Server
	ServerPort        string `toml:"server_port" env:"SERVER_PORT"`
	CORSAllowedOrigin string `toml:"cors_allowed_origin" env:"CORS_ALLOWED_ORIGIN"`

	// Logging
	LogLevel string `toml:"log_level" env:"LOG_LEVEL"`

	// DayBoundaryTZ を解決したロケーション。Validateで設定される。
	Location *time.Location `toml:"-" env:"-"`
}

// Default は既定値を設定したConfigを返す。
func Default() *Config {
	return &Config{
		DatabaseDriver:    "postgres",
		JWTIssuer:         "habitvote",
		TokenTTL:          7 * 24 * time.Hour,
		DayBoundaryTZ:     "UTC",
		NotesMaxLength:    1000,
		RateLimitGeneral:  120,
		RateLimitWrite:    30,
		ServerPort:        "8080",
		CORSAllowedOrigin: "http://localhost:3000",
		LogLevel:          "info",
	}
}

// Load は既定値、設定ファイル、環境変数の順に設定を重ねて読み込む。
// pathが空の場合はHABITVOTE_CONFIGを参照し、それも空なら設定ファイルは読まない。
// 必須項目が未設定の場合や値が不正な場合はエラーを返す。
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	if path != "" {
		if err := cfg.readFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys in config file %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate は設定値を検証し、DayBoundaryTZからLocationを解決する。
func (c *Config) Validate() error {
	var errs []error
	var missing []string

	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required settings are not set: %v", missing))
	}

	if c.JWTSecret != "" && len(c.JWTSecret) < MinJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretLength))
	}

	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER: %q", c.DatabaseDriver))
	}

	loc, err := time.LoadLocation(c.DayBoundaryTZ)
	if err != nil {
		errs = append(errs, fmt.Errorf("invalid DAY_BOUNDARY_TZ %q: %w", c.DayBoundaryTZ, err))
	} else {
		c.Location = loc
	}

	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("TOKEN_TTL must be positive: %s", c.TokenTTL))
	}
	if c.NotesMaxLength <= 0 {
		errs = append(errs, fmt.Errorf("NOTES_MAX_LENGTH must be positive: %d", c.NotesMaxLength))
	}
	if c.RateLimitGeneral <= 0 || c.RateLimitWrite <= 0 {
		errs = append(errs, fmt.Errorf("rate limits must be positive: general=%d write=%d", c.RateLimitGeneral, c.RateLimitWrite))
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unsupported LOG_LEVEL: %q", c.LogLevel))
	}

	return errors.Join(errs...)
}
