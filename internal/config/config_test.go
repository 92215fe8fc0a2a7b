package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/botdock/botdock/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != config.DefaultHTTPAddr {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, config.DefaultHTTPAddr)
	}
	if cfg.Pipeline.MaxFileTextChars != config.DefaultMaxFileTextChars {
		t.Errorf("Pipeline.MaxFileTextChars = %d, want %d", cfg.Pipeline.MaxFileTextChars, config.DefaultMaxFileTextChars)
	}
	if got := cfg.Pipeline.DedupTTL(); got != 60*time.Second {
		t.Errorf("Pipeline.DedupTTL() = %v, want 60s", got)
	}
	if got := cfg.Pipeline.PresignTTL(); got != 5*time.Minute {
		t.Errorf("Pipeline.PresignTTL() = %v, want 5m", got)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[server]
addr = ":9090"

[pipeline]
max_file_text_chars = 2000
dedup_ttl_seconds = 10
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want :9090", cfg.Server.Addr)
	}
	if cfg.Pipeline.MaxFileTextChars != 2000 {
		t.Errorf("Pipeline.MaxFileTextChars = %d, want 2000", cfg.Pipeline.MaxFileTextChars)
	}
	if got := cfg.Pipeline.DedupTTL(); got != 10*time.Second {
		t.Errorf("Pipeline.DedupTTL() = %v, want 10s", got)
	}
	if cfg.Pipeline.DefaultVisionModel != config.DefaultVisionModel {
		t.Errorf("Pipeline.DefaultVisionModel = %q, want default", cfg.Pipeline.DefaultVisionModel)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("PIPELINE_DEDUP_TTL_SECONDS", "120")
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := cfg.Pipeline.DedupTTL(); got != 2*time.Minute {
		t.Errorf("Pipeline.DedupTTL() = %v, want 2m", got)
	}
}

func TestPostgresConfig_DSN(t *testing.T) {
	t.Parallel()
	pg := config.PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "botdock", SSLMode: "disable"}
	want := "host=db port=5432 user=u password=p dbname=botdock sslmode=disable"
	if got := pg.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
