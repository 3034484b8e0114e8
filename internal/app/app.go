package app

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/compress"
	"github.com/picpilot/picpilot/internal/config"
	"github.com/picpilot/picpilot/internal/lock"
	"github.com/picpilot/picpilot/internal/media"
	"github.com/picpilot/picpilot/internal/mirror"
	"github.com/picpilot/picpilot/internal/refupdate"
	"github.com/picpilot/picpilot/internal/restore"
	"github.com/picpilot/picpilot/internal/sweep"
)

// App wires the backup writer, restore coordinator, and retention sweeper
// over one media library.
type App struct {
	Cfg     *config.Config
	Log     zerolog.Logger
	Media   media.Store
	Backups *backup.Store
	Writer  *backup.Writer
	Coord   *restore.Coordinator
	Sweeper *sweep.Sweeper
}

func New(cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := compress.Validate(cfg.Backup.Compression); err != nil {
		return nil, err
	}

	store := backup.NewStore(cfg.Library.UploadsRoot, log)
	lib := media.NewFileStore(cfg.Library.UploadsRoot, cfg.Library.MetadataDir, cfg.Library.PublicBaseURL, log)
	settings := media.StaticSettings{
		Backups:  cfg.Backup.Enabled,
		Strategy: media.ServingStrategy(cfg.Serving.Strategy),
	}

	mir, err := mirror.FromConfig(cfg.Mirror, log)
	if err != nil {
		return nil, err
	}

	writer := backup.NewWriter(store, lib, settings, cfg.Library.UploadsRoot, cfg.Backup.Compression, mir, log)
	deps := restore.Deps{
		Backups:     store,
		Media:       lib,
		Refs:        refupdate.FromConfig(cfg.References, log),
		UploadsRoot: cfg.Library.UploadsRoot,
		Log:         log,
	}
	coord := restore.NewCoordinator(deps, restore.NewHandlers(deps), cfg.Global.LockDir)
	sweeper := sweep.New(store, mir, cfg.Backup.RetentionDays, cfg.Sweep.WindowStart, cfg.Sweep.WindowEnd, cfg.Sweep.Timezone, log)

	return &App{
		Cfg:     cfg,
		Log:     log,
		Media:   lib,
		Backups: store,
		Writer:  writer,
		Coord:   coord,
		Sweeper: sweeper,
	}, nil
}

// Backup creates a backup for the operation if one is required, reporting
// whether a backup was written. Callers decide how to react to a failure:
// abort for mandatory conversion backups, proceed with a warning for
// optional recompression backups.
func (a *App) Backup(ctx context.Context, id int64, op string) (bool, error) {
	if !a.Writer.ShouldBackup(op) {
		a.Log.Info().Int64("attachment", id).Str("operation", op).Msg("backup not required")
		return false, nil
	}
	guard, err := lock.Acquire(a.Cfg.Global.LockDir, id)
	if err != nil {
		return false, err
	}
	defer guard.Release()
	if err := a.Writer.CreateBackup(ctx, id, op); err != nil {
		return false, err
	}
	return true, nil
}

func (a *App) Restore(ctx context.Context, id int64, hintName string) (restore.Result, error) {
	hint, err := parseHint(hintName)
	if err != nil {
		return restore.Result{}, err
	}
	return a.Coord.Restore(ctx, id, hint), nil
}

func (a *App) Preview(ctx context.Context, id int64, hintName string) (restore.PreviewResult, error) {
	hint, err := parseHint(hintName)
	if err != nil {
		return restore.PreviewResult{}, err
	}
	return a.Coord.Preview(ctx, id, hint), nil
}

func (a *App) List(context.Context) ([]backup.Entry, error) {
	return a.Backups.List()
}

func (a *App) Sweep(ctx context.Context) (int, error) {
	return a.Sweeper.Run(ctx)
}

func (a *App) DeleteBackups(ctx context.Context, id int64) error {
	return a.Sweeper.DeleteAll(ctx, id)
}

func parseHint(name string) (*backup.Kind, error) {
	if name == "" {
		return nil, nil
	}
	kind, err := backup.ParseKind(name)
	if err != nil {
		return nil, err
	}
	return &kind, nil
}
