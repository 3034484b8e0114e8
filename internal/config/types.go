package config

import "time"

// Config is the root configuration schema.
type Config struct {
	Global     GlobalConfig     `mapstructure:"global"`
	Library    LibraryConfig    `mapstructure:"library"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Serving    ServingConfig    `mapstructure:"serving"`
	Mirror     MirrorConfig     `mapstructure:"mirror"`
	References ReferencesConfig `mapstructure:"references"`
	Sweep      SweepConfig      `mapstructure:"sweep"`
}

type GlobalConfig struct {
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"` // json or console
	LockDir          string        `mapstructure:"lock_dir"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout"`
}

// LibraryConfig locates the media library this subsystem protects.
type LibraryConfig struct {
	UploadsRoot   string `mapstructure:"uploads_root"`
	MetadataDir   string `mapstructure:"metadata_dir"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type BackupConfig struct {
	Enabled       bool   `mapstructure:"enabled"`        // operator opt-in for same-format recompression backups
	RetentionDays int    `mapstructure:"retention_days"` // user/conversion kinds only
	Compression   string `mapstructure:"compression"`    // none, gzip, zstd
}

type ServingConfig struct {
	Strategy string `mapstructure:"strategy"` // disabled, pull, negotiate
}

// MirrorConfig enables a best-effort off-host copy of every backup directory.
type MirrorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKey       string `mapstructure:"access_key"`
	SecretKey       string `mapstructure:"secret_key"`
	SessionToken    string `mapstructure:"session_token"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	Prefix          string `mapstructure:"prefix"`
	EncryptionKey   string `mapstructure:"encryption_key"` // base64 or hex, 32 bytes
	TLSInsecureSkip bool   `mapstructure:"tls_insecure_skip"`
}

// ReferencesConfig points at the host endpoint that rewrites stored content
// references when a restore changes an attachment's public address.
type ReferencesConfig struct {
	WebhookURL   string            `mapstructure:"webhook_url"`
	Headers      map[string]string `mapstructure:"headers"`
	RetryCount   int               `mapstructure:"retry_count"`
	RetryBackoff time.Duration     `mapstructure:"retry_backoff"`
}

type SweepConfig struct {
	WindowStart string `mapstructure:"window_start"` // HH:MM local time
	WindowEnd   string `mapstructure:"window_end"`
	Timezone    string `mapstructure:"timezone"`
}
