package restore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/media"
	"github.com/picpilot/picpilot/internal/util"
)

// compressionUndo copies the backed-up bytes over the current file at its
// current path. Same format, same address: no reference rewrite is needed.
// It also serves serving-original restores, which have the same copy-back
// shape sourced from the serving manifest.
type compressionUndo struct {
	deps  Deps
	name  string
	op    Operation
	kinds []backup.Kind // searched in order
}

func newCompressionUndo(deps Deps) *compressionUndo {
	return &compressionUndo{
		deps: deps,
		name: "compression-undo",
		op:   OpRestoreUncompressed,
		// The unscoped legacy layout is a transitional fallback.
		kinds: []backup.Kind{backup.KindUser, backup.KindLegacy},
	}
}

func newServingUndo(deps Deps) *compressionUndo {
	return &compressionUndo{
		deps:  deps,
		name:  "serving-original",
		op:    OpRestoreServingOriginal,
		kinds: []backup.Kind{backup.KindServing},
	}
}

func (h *compressionUndo) Name() string { return h.name }

func (h *compressionUndo) CanHandle(op Operation) bool { return op == h.op }

func (h *compressionUndo) manifest(backups map[backup.Kind]*backup.Manifest) *backup.Manifest {
	for _, kind := range h.kinds {
		if m := backups[kind]; m != nil {
			return m
		}
	}
	return nil
}

func (h *compressionUndo) Steps(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) ([]string, error) {
	m := h.manifest(backups)
	if m == nil {
		return nil, fmt.Errorf("%w: %s backup for attachment %d", backup.ErrNotFound, h.kinds[0], id)
	}
	cur, err := h.deps.Media.AttachedFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("Copy backed-up original over %s", cur),
		fmt.Sprintf("Restore %d backed-up thumbnail(s)", len(m.Thumbnails)),
		"Regenerate thumbnails from the restored file",
		"Clear optimization metadata",
	}, nil
}

func (h *compressionUndo) Execute(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) Result {
	ctx = media.WithoutAutoTransform(ctx)
	log := h.deps.Log.With().Int64("attachment", id).Str("handler", h.name).Logger()

	m := h.manifest(backups)
	if m == nil {
		return Failure(fmt.Errorf("%w: %s backup for attachment %d", backup.ErrNotFound, h.kinds[0], id))
	}

	curRel, err := h.deps.Media.AttachedFile(ctx, id)
	if err != nil {
		return Failure(err)
	}
	curAbs := h.deps.abs(curRel)

	src := h.deps.Backups.FilePath(m, m.Main.StoredFile)
	if err := backup.RestoreFile(src, curAbs, m.Compression); err != nil {
		return Failure(fmt.Errorf("restore main file: %w", err))
	}

	restored := 0
	for name, t := range m.Thumbnails {
		dst := h.deps.abs(util.StripResizedSuffix(t.OriginalPath))
		if err := backup.RestoreFile(h.deps.Backups.FilePath(m, t.StoredFile), dst, m.Compression); err != nil {
			log.Warn().Err(err).Str("size", name).Bool("was_copied", t.Copied).Msg("thumbnail restore failed")
			continue
		}
		restored++
	}

	if _, err := h.deps.Media.RegenerateVariants(ctx, id, curRel); err != nil {
		log.Warn().Err(err).Msg("thumbnail regeneration incomplete")
	}

	if err := h.deps.Media.DeleteMeta(ctx, id, media.MetaOptimized); err != nil {
		log.Debug().Err(err).Msg("could not clear optimization metadata")
	}

	return Success(map[string]string{
		"restored_file":       curRel,
		"backup_kind":         string(m.Kind),
		"thumbnails_restored": strconv.Itoa(restored),
	})
}
