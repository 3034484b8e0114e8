package restore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/lock"
	"github.com/picpilot/picpilot/internal/media"
)

// Coordinator orchestrates classification, handler selection, execution, and
// bookkeeping for restores.
type Coordinator struct {
	Deps
	Handlers []Handler
	LockDir  string
}

func NewCoordinator(deps Deps, handlers []Handler, lockDir string) *Coordinator {
	return &Coordinator{Deps: deps, Handlers: handlers, LockDir: lockDir}
}

// Restore undoes the most relevant past transformation of the attachment.
// Every fault, including panics from handler execution, is converted into a
// failed Result; nothing escapes to the caller as an unhandled error.
func (c *Coordinator) Restore(ctx context.Context, id int64, hint *backup.Kind) (res Result) {
	logger := c.Log.With().Int64("attachment", id).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("restore fault")
			res = Failure(fmt.Errorf("unexpected fault: %v", r))
		}
	}()

	guard, err := lock.Acquire(c.LockDir, id)
	if err != nil {
		return Failure(err)
	}
	defer guard.Release()

	backups := c.Backups.LoadAll(id)
	currentMime, err := c.Media.MimeType(ctx, id)
	if err != nil {
		return Failure(err)
	}

	op := Detect(currentMime, backups, hint)
	if op == OpNone {
		return Failure(fmt.Errorf("%w: nothing to restore for attachment %d", ErrUnclassifiable, id))
	}
	h := c.handlerFor(op)
	if h == nil {
		return Failure(fmt.Errorf("%w: %s", ErrNoHandler, op))
	}

	// A restore must never re-trigger the transformation pipeline that
	// created the backup in the first place.
	ctx = media.WithoutAutoTransform(ctx)

	res = h.Execute(ctx, id, backups)
	if !res.OK {
		logger.Warn().Str("operation", op.String()).Str("error", res.Error).Msg("restore failed")
		return res
	}

	restoreID := uuid.NewString()
	_ = c.Media.SetMeta(ctx, id, media.MetaRestoredAt, time.Now().UTC().Format(time.RFC3339))
	_ = c.Media.SetMeta(ctx, id, media.MetaRestoredVia, op.String())
	_ = c.Media.SetMeta(ctx, id, media.MetaRestoreID, restoreID)
	res.Details["operation"] = op.String()
	res.Details["restore_id"] = restoreID
	logger.Info().Str("operation", op.String()).Str("restore_id", restoreID).Msg("restore completed")
	return res
}

// PreviewResult describes what a restore would do, without touching files.
type PreviewResult struct {
	CanRestore bool     `json:"can_restore"`
	Operation  string   `json:"operation,omitempty"`
	Steps      []string `json:"steps,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// Preview is the dry-run counterpart of Restore.
func (c *Coordinator) Preview(ctx context.Context, id int64, hint *backup.Kind) PreviewResult {
	backups := c.Backups.LoadAll(id)
	currentMime, err := c.Media.MimeType(ctx, id)
	if err != nil {
		return PreviewResult{Error: err.Error()}
	}
	op := Detect(currentMime, backups, hint)
	if op == OpNone {
		return PreviewResult{Error: "nothing to restore"}
	}
	h := c.handlerFor(op)
	if h == nil {
		return PreviewResult{Error: fmt.Sprintf("no handler for %s", op)}
	}
	steps, err := h.Steps(ctx, id, backups)
	if err != nil {
		return PreviewResult{Error: err.Error()}
	}
	return PreviewResult{CanRestore: true, Operation: op.String(), Steps: steps}
}

func (c *Coordinator) handlerFor(op Operation) Handler {
	for _, h := range c.Handlers {
		if h.CanHandle(op) {
			return h
		}
	}
	return nil
}
