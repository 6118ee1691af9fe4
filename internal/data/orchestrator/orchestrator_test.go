// File path: internal/data/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nicodishanthj/rfpassist/internal/llm"
	"github.com/nicodishanthj/rfpassist/internal/sharepoint"
)

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"RFP_CONFIG_FILE", "RFP_STORAGE_DIR", "DATABASE_URL", "RFP_DATABASE_PATH",
		"RFP_KB_DIR", "RFP_KB_MAX_CHARS", "RFP_HOUSE_RULES", "RFP_MAX_UPLOAD_BYTES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("LoadConfig defaults mismatch: %#v", cfg)
	}
	if cfg.MaxUploadBytes != 32<<20 || cfg.KBMaxChars != 16000 {
		t.Fatalf("unexpected limits: %#v", cfg)
	}
}

func TestLoadConfigFileThenEnvironment(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "rfp.yaml")
	yamlDoc := "storage_dir: /srv/rfp/storage\ndatabase_path: sqlite:///./file.db\nkb_dir: kb\nkb_max_chars: 8000\nhouse_rules: Be brief.\n"
	if err := os.WriteFile(path, []byte(yamlDoc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RFP_CONFIG_FILE", path)
	t.Setenv("RFP_KB_DIR", "/srv/kb")
	t.Setenv("DATABASE_URL", "sqlite:///./env.db")
	t.Setenv("RFP_MAX_UPLOAD_BYTES", "1024")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.StorageDir != "/srv/rfp/storage" {
		t.Errorf("StorageDir = %q", cfg.StorageDir)
	}
	if cfg.DatabasePath != "./env.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.KBDir != "/srv/kb" {
		t.Errorf("KBDir = %q", cfg.KBDir)
	}
	if cfg.KBMaxChars != 8000 || cfg.HouseRules != "Be brief." || cfg.MaxUploadBytes != 1024 {
		t.Errorf("unexpected config: %#v", cfg)
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("RFP_KB_MAX_CHARS", "lots")
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected parse error")
	}
	clearConfigEnv(t)
	t.Setenv("RFP_CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadConfig(); err == nil {
		t.Fatalf("expected missing file error")
	}
}

func TestNewWiresWorkflow(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SQLITE_CONFIG_FILE", "")
	dir := t.TempDir()
	cfg := Config{
		StorageDir:   filepath.Join(dir, "storage"),
		DatabasePath: filepath.Join(dir, "rfp.db"),
		KBDir:        filepath.Join(dir, "kb"),
	}
	orch, err := New(context.Background(), cfg,
		WithProvider(llm.NewProvider(llm.Config{})),
		WithRemote(sharepoint.NewClient(sharepoint.Config{})))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = orch.Close() })

	if orch.Store() == nil || orch.Workflow() == nil || orch.Provider() == nil {
		t.Fatalf("expected wired components")
	}
	if orch.Config().MaxUploadBytes != defaultMaxUploadBytes {
		t.Fatalf("defaults not applied: %#v", orch.Config())
	}
	if _, err := os.Stat(cfg.StorageDir); err != nil {
		t.Fatalf("storage dir not created: %v", err)
	}
	runs, err := orch.Workflow().ListRuns(context.Background())
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty run list: %v %v", runs, err)
	}
}

func TestCloseNil(t *testing.T) {
	var orch *Orchestrator
	if err := orch.Close(); err != nil {
		t.Fatalf("Close on nil: %v", err)
	}
}
