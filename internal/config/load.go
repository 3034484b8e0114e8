package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PICPILOT"

// Load reads configuration from a file, env vars, and defaults.
func Load(path string) (*Config, error) {
	vp := viper.New()
	vp.SetEnvPrefix(envPrefix)
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	setDefaults(vp)

	resolved := resolveConfigPath(path)
	if resolved != "" {
		vp.SetConfigFile(resolved)
		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := vp.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	expandEnv(&cfg)
	applyPostLoadDefaults(&cfg)
	return &cfg, nil
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if envPath := os.Getenv("PICPILOT_CONFIG"); envPath != "" {
		return envPath
	}

	candidates := []string{
		"picpilot.yaml",
		"picpilot.yml",
		"picpilot.toml",
		"picpilot.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}

	configDir, err := os.UserConfigDir()
	if err == nil {
		base := filepath.Join(configDir, "picpilot")
		for _, c := range candidates {
			p := filepath.Join(base, c)
			if _, err := os.Stat(p); err == nil {
				return p
			}
		}
	}

	return ""
}

func setDefaults(vp *viper.Viper) {
	vp.SetDefault("global.log_level", "info")
	vp.SetDefault("global.log_format", "json")
	vp.SetDefault("global.operation_timeout", "30m")
	vp.SetDefault("library.uploads_root", "./uploads")
	vp.SetDefault("library.public_base_url", "")
	vp.SetDefault("backup.enabled", true)
	vp.SetDefault("backup.retention_days", 30)
	vp.SetDefault("backup.compression", "none")
	vp.SetDefault("serving.strategy", "disabled")
	vp.SetDefault("references.retry_count", 3)
	vp.SetDefault("references.retry_backoff", "5s")
	vp.SetDefault("sweep.timezone", "")
}

func applyPostLoadDefaults(cfg *Config) {
	if cfg.Global.OperationTimeout == 0 {
		cfg.Global.OperationTimeout = 30 * time.Minute
	}
	if cfg.Global.LockDir == "" {
		cfg.Global.LockDir = filepath.Join(os.TempDir(), "picpilot-locks")
	}
	if cfg.Library.MetadataDir == "" {
		cfg.Library.MetadataDir = filepath.Join(cfg.Library.UploadsRoot, ".picpilot")
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 30
	}
	if cfg.References.RetryBackoff == 0 {
		cfg.References.RetryBackoff = 5 * time.Second
	}
}

func expandEnv(cfg *Config) {
	cfg.Mirror.AccessKey = os.ExpandEnv(cfg.Mirror.AccessKey)
	cfg.Mirror.SecretKey = os.ExpandEnv(cfg.Mirror.SecretKey)
	cfg.Mirror.SessionToken = os.ExpandEnv(cfg.Mirror.SessionToken)
	cfg.Mirror.EncryptionKey = os.ExpandEnv(cfg.Mirror.EncryptionKey)
	cfg.References.WebhookURL = os.ExpandEnv(cfg.References.WebhookURL)
	for k, v := range cfg.References.Headers {
		cfg.References.Headers[k] = os.ExpandEnv(v)
	}
}
