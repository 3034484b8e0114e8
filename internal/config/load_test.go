package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	origDir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(origDir); err != nil {
			t.Fatalf("restore wd: %v", err)
		}
	})

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Global.LogLevel != "info" || cfg.Global.LogFormat != "json" {
		t.Fatalf("log defaults = %s/%s", cfg.Global.LogLevel, cfg.Global.LogFormat)
	}
	if cfg.Global.OperationTimeout != 30*time.Minute {
		t.Fatalf("timeout = %s", cfg.Global.OperationTimeout)
	}
	if cfg.Global.LockDir == "" {
		t.Fatal("lock dir default missing")
	}
	if cfg.Library.UploadsRoot != "./uploads" {
		t.Fatalf("uploads root = %s", cfg.Library.UploadsRoot)
	}
	if want := filepath.Join("./uploads", ".picpilot"); cfg.Library.MetadataDir != want {
		t.Fatalf("metadata dir = %s, want %s", cfg.Library.MetadataDir, want)
	}
	if !cfg.Backup.Enabled || cfg.Backup.RetentionDays != 30 || cfg.Backup.Compression != "none" {
		t.Fatalf("backup defaults = %+v", cfg.Backup)
	}
	if cfg.Serving.Strategy != "disabled" {
		t.Fatalf("serving strategy = %s", cfg.Serving.Strategy)
	}
	if cfg.References.RetryCount != 3 || cfg.References.RetryBackoff != 5*time.Second {
		t.Fatalf("reference defaults = %+v", cfg.References)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "picpilot.yaml")
	content := `
global:
  log_level: debug
  log_format: console
library:
  uploads_root: /srv/uploads
  metadata_dir: /srv/meta
backup:
  enabled: false
  retention_days: 7
  compression: zstd
serving:
  strategy: negotiate
sweep:
  window_start: "02:00"
  window_end: "04:00"
  timezone: UTC
`
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Global.LogLevel != "debug" || cfg.Global.LogFormat != "console" {
		t.Fatalf("log config = %s/%s", cfg.Global.LogLevel, cfg.Global.LogFormat)
	}
	if cfg.Library.UploadsRoot != "/srv/uploads" || cfg.Library.MetadataDir != "/srv/meta" {
		t.Fatalf("library = %+v", cfg.Library)
	}
	if cfg.Backup.Enabled || cfg.Backup.RetentionDays != 7 || cfg.Backup.Compression != "zstd" {
		t.Fatalf("backup = %+v", cfg.Backup)
	}
	if cfg.Serving.Strategy != "negotiate" {
		t.Fatalf("serving = %+v", cfg.Serving)
	}
	if cfg.Sweep.WindowStart != "02:00" || cfg.Sweep.WindowEnd != "04:00" || cfg.Sweep.Timezone != "UTC" {
		t.Fatalf("sweep = %+v", cfg.Sweep)
	}
}

func TestLoadExpandsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "picpilot.yaml")
	content := `
mirror:
  access_key: ${PICPILOT_TEST_ACCESS}
references:
  webhook_url: https://host.example/replace
  headers:
    Authorization: Bearer ${PICPILOT_TEST_TOKEN}
`
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("PICPILOT_TEST_ACCESS", "ak-123")
	t.Setenv("PICPILOT_TEST_TOKEN", "tok-456")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mirror.AccessKey != "ak-123" {
		t.Fatalf("access key = %s", cfg.Mirror.AccessKey)
	}
	if cfg.References.Headers["Authorization"] != "Bearer tok-456" {
		t.Fatalf("header = %s", cfg.References.Headers["Authorization"])
	}
}
