package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/picpilot/picpilot/internal/app"
	"github.com/picpilot/picpilot/internal/config"
	"github.com/picpilot/picpilot/internal/logging"
	"github.com/picpilot/picpilot/internal/media"
	"github.com/picpilot/picpilot/internal/version"
)

type rootFlags struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

type overrideFlags struct {
	UploadsRoot     string
	MetadataDir     string
	BaseURL         string
	LockDir         string
	BackupEnabled   string
	ServingStrategy string
	Compression     string
	RetentionDays   int
}

func main() {
	root := &rootFlags{}
	overrides := &overrideFlags{}

	rootCmd := &cobra.Command{
		Use:   "picpilot",
		Short: "Media transformation backup and restore utility",
	}

	rootCmd.PersistentFlags().StringVar(&root.ConfigPath, "config", "", "Path to config file (yaml/toml/json)")
	rootCmd.PersistentFlags().StringVar(&root.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&root.LogFormat, "log-format", "", "Log format (json, console)")

	rootCmd.PersistentFlags().StringVar(&overrides.UploadsRoot, "uploads-root", "", "Media library uploads root")
	rootCmd.PersistentFlags().StringVar(&overrides.MetadataDir, "metadata-dir", "", "Attachment metadata directory")
	rootCmd.PersistentFlags().StringVar(&overrides.BaseURL, "base-url", "", "Public base URL of the uploads root")
	rootCmd.PersistentFlags().StringVar(&overrides.LockDir, "lock-dir", "", "Directory for per-attachment lock files")
	rootCmd.PersistentFlags().StringVar(&overrides.BackupEnabled, "backup-enabled", "", "Back up recompression operations (true/false)")
	rootCmd.PersistentFlags().StringVar(&overrides.ServingStrategy, "serving-strategy", "", "Serving strategy (disabled, pull, negotiate)")
	rootCmd.PersistentFlags().StringVar(&overrides.Compression, "compression", "", "At-rest backup compression (none/gzip/zstd)")
	rootCmd.PersistentFlags().IntVar(&overrides.RetentionDays, "retention-days", 0, "Retention in days for expiring backup kinds")

	rootCmd.AddCommand(newBackupCmd(root, overrides))
	rootCmd.AddCommand(newRestoreCmd(root, overrides))
	rootCmd.AddCommand(newPreviewCmd(root, overrides))
	rootCmd.AddCommand(newListCmd(root, overrides))
	rootCmd.AddCommand(newSweepCmd(root, overrides))
	rootCmd.AddCommand(newDeleteBackupsCmd(root, overrides))
	rootCmd.AddCommand(newRegisterCmd(root, overrides))
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newBackupCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var id int64
	var op string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup before a transformation",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 || op == "" {
				return fmt.Errorf("--id and --operation are required")
			}
			svc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			created, err := svc.Backup(ctx, id, op)
			if err != nil {
				return err
			}
			if created {
				logger.Info().Int64("attachment", id).Str("operation", op).Msg("backup completed")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Attachment id")
	cmd.Flags().StringVar(&op, "operation", "", "Transformation about to run (convert_to_webp, compress_jpeg, ...)")
	return cmd
}

func newRestoreCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var id int64
	var hint string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore an attachment from its backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 {
				return fmt.Errorf("--id is required")
			}
			svc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			if dryRun {
				preview, err := svc.Preview(ctx, id, hint)
				if err != nil {
					return err
				}
				return printJSON(preview)
			}

			res, err := svc.Restore(ctx, id, hint)
			if err != nil {
				return err
			}
			if err := printJSON(res); err != nil {
				return err
			}
			if !res.OK {
				return fmt.Errorf("restore failed: %s", res.Error)
			}
			logger.Info().Int64("attachment", id).Msg("restore completed")
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Attachment id")
	cmd.Flags().StringVar(&hint, "kind", "", "Preferred backup kind (user, conversion, serving, legacy)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the restore plan without touching files")
	return cmd
}

func newPreviewCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var id int64
	var hint string

	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show what a restore would do",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 {
				return fmt.Errorf("--id is required")
			}
			svc, cfg, _, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			preview, err := svc.Preview(ctx, id, hint)
			if err != nil {
				return err
			}
			return printJSON(preview)
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Attachment id")
	cmd.Flags().StringVar(&hint, "kind", "", "Preferred backup kind (user, conversion, serving, legacy)")
	return cmd
}

func newListCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, _, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			entries, err := svc.List(ctx)
			if err != nil {
				return err
			}
			for _, e := range entries {
				fmt.Printf("%s\t%d\t%d\t%d\t%s\n", e.Kind, e.AttachmentID, e.SizeBytes, e.Files, e.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func newSweepCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			removed, err := svc.Sweep(ctx)
			if err != nil {
				return err
			}
			logger.Info().Int("removed", removed).Msg("sweep completed")
			return nil
		},
	}
}

func newDeleteBackupsCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var id int64

	cmd := &cobra.Command{
		Use:   "delete-backups",
		Short: "Delete every backup of one attachment",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 {
				return fmt.Errorf("--id is required")
			}
			svc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			if err := svc.DeleteBackups(ctx, id); err != nil {
				return err
			}
			logger.Info().Int64("attachment", id).Msg("backups deleted")
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Attachment id")
	return cmd
}

func newRegisterCmd(root *rootFlags, overrides *overrideFlags) *cobra.Command {
	var id int64
	var file string
	var mime string
	var sizes []string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register an attachment record for an existing file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if id == 0 || file == "" {
				return fmt.Errorf("--id and --file are required")
			}
			svc, cfg, logger, err := buildApp(root, overrides)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Global.OperationTimeout)
			defer cancel()

			if mime == "" {
				mime = media.MimeForExt(path.Ext(file))
			}
			if mime == "" {
				return fmt.Errorf("cannot infer MIME type of %s, pass --mime", file)
			}
			variants, err := parseSizes(sizes)
			if err != nil {
				return err
			}

			lib, ok := svc.Media.(*media.FileStore)
			if !ok {
				return fmt.Errorf("attachment registration needs the file-backed metadata store")
			}
			if err := lib.Register(ctx, media.Record{ID: id, File: file, Mime: mime, Variants: variants}); err != nil {
				return err
			}
			if len(variants) > 0 {
				if _, err := lib.RegenerateVariants(ctx, id, file); err != nil {
					return err
				}
			}
			logger.Info().Int64("attachment", id).Str("file", file).Msg("attachment registered")
			return nil
		},
	}
	cmd.Flags().Int64Var(&id, "id", 0, "Attachment id")
	cmd.Flags().StringVar(&file, "file", "", "Main file path relative to the uploads root")
	cmd.Flags().StringVar(&mime, "mime", "", "MIME type (inferred from the extension when empty)")
	cmd.Flags().StringSliceVar(&sizes, "size", nil, "Thumbnail size as name=WxH (repeatable)")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("picpilot %s (commit %s, built %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}

func buildApp(root *rootFlags, overrides *overrideFlags) (*app.App, *config.Config, zerolog.Logger, error) {
	cfg, err := loadConfig(root, overrides)
	if err != nil {
		return nil, nil, zerolog.Nop(), err
	}
	logger := logging.Configure(cfg.Global.LogLevel, cfg.Global.LogFormat)
	svc, err := app.New(cfg, logger)
	if err != nil {
		return nil, nil, logger, err
	}
	return svc, cfg, logger, nil
}

func parseSizes(specs []string) (map[string]media.Variant, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make(map[string]media.Variant, len(specs))
	for _, s := range specs {
		name, dims, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid size %q, expected name=WxH", s)
		}
		ws, hs, ok := strings.Cut(dims, "x")
		if !ok {
			return nil, fmt.Errorf("invalid size %q, expected name=WxH", s)
		}
		w, err := strconv.Atoi(ws)
		if err != nil {
			return nil, fmt.Errorf("invalid width in %q: %w", s, err)
		}
		h, err := strconv.Atoi(hs)
		if err != nil {
			return nil, fmt.Errorf("invalid height in %q: %w", s, err)
		}
		out[name] = media.Variant{Width: w, Height: h}
	}
	return out, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func loadConfig(root *rootFlags, overrides *overrideFlags) (*config.Config, error) {
	cfg, err := config.Load(root.ConfigPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, root, overrides)
	return cfg, nil
}

func applyOverrides(cfg *config.Config, root *rootFlags, overrides *overrideFlags) {
	if root.LogLevel != "" {
		cfg.Global.LogLevel = root.LogLevel
	}
	if root.LogFormat != "" {
		cfg.Global.LogFormat = root.LogFormat
	}

	if overrides.UploadsRoot != "" {
		cfg.Library.UploadsRoot = overrides.UploadsRoot
	}
	if overrides.MetadataDir != "" {
		cfg.Library.MetadataDir = overrides.MetadataDir
	}
	if overrides.BaseURL != "" {
		cfg.Library.PublicBaseURL = overrides.BaseURL
	}
	if overrides.LockDir != "" {
		cfg.Global.LockDir = overrides.LockDir
	}
	if overrides.BackupEnabled != "" {
		cfg.Backup.Enabled = strings.EqualFold(overrides.BackupEnabled, "true") || overrides.BackupEnabled == "1"
	}
	if overrides.ServingStrategy != "" {
		cfg.Serving.Strategy = strings.ToLower(overrides.ServingStrategy)
	}
	if overrides.Compression != "" {
		cfg.Backup.Compression = strings.ToLower(overrides.Compression)
	}
	if overrides.RetentionDays > 0 {
		cfg.Backup.RetentionDays = overrides.RetentionDays
	}

	cfg.Serving.Strategy = strings.ToLower(cfg.Serving.Strategy)
	cfg.Backup.Compression = strings.ToLower(cfg.Backup.Compression)
}
