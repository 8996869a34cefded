package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("AURORA_JWT_SECRET", "s3cret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":3000" {
		t.Errorf("listen addr %q", cfg.ListenAddr)
	}
	if cfg.DBDriver != "sqlite" || cfg.DBDSN != "aurora.db" {
		t.Errorf("db defaults %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.Model != "claude-sonnet-4-20250514" || cfg.MaxTokens != 4096 {
		t.Errorf("model defaults %q %d", cfg.Model, cfg.MaxTokens)
	}
	if cfg.EmbedDims != 768 || cfg.EmbedModel != "text-embedding-3-small" {
		t.Errorf("embed defaults %d %q", cfg.EmbedDims, cfg.EmbedModel)
	}
	if cfg.HistoryWindow != 20 || cfg.MemoryTopK != 3 {
		t.Errorf("context defaults %d %d", cfg.HistoryWindow, cfg.MemoryTopK)
	}
}

func TestLoadMissingSecret(t *testing.T) {
	t.Setenv("AURORA_JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Error("missing jwt secret should fail validation")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aurora.yaml")
	body := `
listen_addr: ":4000"
db_driver: postgres
db_dsn: "postgres://localhost/aurora"
jwt_secret: from-file
history_window: 12
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":4000" {
		t.Errorf("listen addr %q", cfg.ListenAddr)
	}
	if cfg.DBDriver != "postgres" || cfg.DBDSN != "postgres://localhost/aurora" {
		t.Errorf("db settings %q %q", cfg.DBDriver, cfg.DBDSN)
	}
	if cfg.JWTSecret != "from-file" {
		t.Errorf("jwt secret %q", cfg.JWTSecret)
	}
	if cfg.HistoryWindow != 12 {
		t.Errorf("history window %d", cfg.HistoryWindow)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aurora.yaml")
	body := `
listen_addr: ":4000"
jwt_secret: from-file
memory_top_k: 5
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}
	t.Setenv("AURORA_LISTEN_ADDR", ":5000")
	t.Setenv("AURORA_JWT_SECRET", "from-env")
	t.Setenv("AURORA_MEMORY_TOP_K", "7")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":5000" {
		t.Errorf("listen addr %q, env should win", cfg.ListenAddr)
	}
	if cfg.JWTSecret != "from-env" {
		t.Errorf("jwt secret %q, env should win", cfg.JWTSecret)
	}
	if cfg.MemoryTopK != 7 {
		t.Errorf("memory top k %d, env should win", cfg.MemoryTopK)
	}
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("AURORA_JWT_SECRET", "s3cret")
	t.Setenv("AURORA_DB_DRIVER", "oracle")

	if _, err := Load(""); err == nil {
		t.Error("unknown db driver should fail validation")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing config file should fail")
	}
}

func TestIntOrFallsBackOnGarbage(t *testing.T) {
	t.Setenv("AURORA_TEST_INT", "not-a-number")
	if got := intOr("AURORA_TEST_INT", 9); got != 9 {
		t.Errorf("got %d, want the fallback", got)
	}
	t.Setenv("AURORA_TEST_INT", "42")
	if got := intOr("AURORA_TEST_INT", 9); got != 42 {
		t.Errorf("got %d, want the parsed value", got)
	}
}
