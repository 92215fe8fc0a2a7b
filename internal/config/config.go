package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

const (
	DefaultConfigPath   = "config.toml"
	DefaultHTTPAddr     = ":8080"
	DefaultJWTExpiresIn = "24h"
	DefaultPGHost       = "127.0.0.1"
	DefaultPGPort       = 5432
	DefaultPGUser       = "postgres"
	DefaultPGDatabase   = "botdock"
	DefaultPGSSLMode    = "disable"
	DefaultBlobBucket   = "botdock"
	DefaultVisionModel  = "gpt-4o"

	DefaultMaxFileTextChars  = 15000
	DefaultDedupTTLSeconds   = 60
	DefaultPresignTTLSeconds = 300
)

type Config struct {
	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Admin    AdminConfig    `toml:"admin"`
	Auth     AuthConfig     `toml:"auth"`
	Postgres PostgresConfig `toml:"postgres"`
	Blob     BlobConfig     `toml:"blob"`
	Pipeline PipelineConfig `toml:"pipeline"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr" validate:"required"`
}

type AdminConfig struct {
	Username     string `toml:"username"`
	PasswordHash string `toml:"password_hash"`
}

type AuthConfig struct {
	JWTSecret    string `toml:"jwt_secret"`
	JWTExpiresIn string `toml:"jwt_expires_in"`
}

// JWTExpiry parses the configured token lifetime, falling back to the
// default on malformed input.
func (c AuthConfig) JWTExpiry() time.Duration {
	d, err := time.ParseDuration(c.JWTExpiresIn)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultJWTExpiresIn)
	}
	return d
}

type PostgresConfig struct {
	Host     string `toml:"host" validate:"required"`
	Port     int    `toml:"port" validate:"gt=0"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database" validate:"required"`
	SSLMode  string `toml:"sslmode"`
}

// DSN returns the keyword/value connection string for pgx.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the connection URL form used by the migration driver.
func (c PostgresConfig) URL(scheme string) string {
	return fmt.Sprintf(
		"%s://%s:%s@%s:%d/%s?sslmode=%s",
		scheme, c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode,
	)
}

// BlobConfig points at the external blob storage service used for
// attachment handoff to vision-capable backends.
type BlobConfig struct {
	BaseURL string `toml:"base_url"`
	Bucket  string `toml:"bucket"`
	Token   string `toml:"token"`
}

// PipelineConfig carries the tunables of the inbound message pipeline.
// Values load from the [pipeline] TOML table and may be overridden from
// the environment (PIPELINE_* variables).
type PipelineConfig struct {
	MaxFileTextChars   int    `toml:"max_file_text_chars" envconfig:"MAX_FILE_TEXT_CHARS" validate:"gt=0"`
	DedupTTLSeconds    int    `toml:"dedup_ttl_seconds" envconfig:"DEDUP_TTL_SECONDS" validate:"gt=0"`
	PresignTTLSeconds  int    `toml:"presign_ttl_seconds" envconfig:"PRESIGN_TTL_SECONDS" validate:"gt=0"`
	DefaultVisionModel string `toml:"default_vision_model" envconfig:"DEFAULT_VISION_MODEL" validate:"required"`
}

// DedupTTL returns the dedup entry lifetime.
func (c PipelineConfig) DedupTTL() time.Duration {
	return time.Duration(c.DedupTTLSeconds) * time.Second
}

// PresignTTL returns the lifetime of presigned attachment URLs.
func (c PipelineConfig) PresignTTL() time.Duration {
	return time.Duration(c.PresignTTLSeconds) * time.Second
}

// Load reads the TOML config at path (DefaultConfigPath when empty),
// applies PIPELINE_* environment overrides, and validates the result.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Admin: AdminConfig{
			Username: "admin",
		},
		Auth: AuthConfig{
			JWTExpiresIn: DefaultJWTExpiresIn,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Blob: BlobConfig{
			Bucket: DefaultBlobBucket,
		},
		Pipeline: PipelineConfig{
			MaxFileTextChars:   DefaultMaxFileTextChars,
			DedupTTLSeconds:    DefaultDedupTTLSeconds,
			PresignTTLSeconds:  DefaultPresignTTLSeconds,
			DefaultVisionModel: DefaultVisionModel,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return cfg, err
		}
	} else if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	if err := envconfig.Process("pipeline", &cfg.Pipeline); err != nil {
		return cfg, fmt.Errorf("pipeline env overrides: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}
