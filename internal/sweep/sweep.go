package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/mirror"
	"github.com/picpilot/picpilot/internal/util"
)

// Sweeper removes user and conversion backups past the retention window.
// Serving originals never expire; the legacy unscoped layout is read-only and
// left to the operator.
type Sweeper struct {
	Backups       *backup.Store
	Mirror        *mirror.Mirror
	RetentionDays int
	WindowStart   string
	WindowEnd     string
	Timezone      string
	Log           zerolog.Logger
}

func New(store *backup.Store, mir *mirror.Mirror, retentionDays int, windowStart, windowEnd, tz string, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		Backups:       store,
		Mirror:        mir,
		RetentionDays: retentionDays,
		WindowStart:   windowStart,
		WindowEnd:     windowEnd,
		Timezone:      tz,
		Log:           log,
	}
}

// Run deletes every expired backup and reports how many were removed. It
// refuses to run outside the configured maintenance window.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	ok, err := util.InWindow(time.Now(), s.WindowStart, s.WindowEnd, s.Timezone)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("current time is outside the configured sweep window")
	}

	entries, err := s.Backups.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().AddDate(0, 0, -s.RetentionDays)
	removed := 0
	for _, e := range entries {
		select {
		case <-ctx.Done():
			return removed, ctx.Err()
		default:
		}
		if !e.Kind.Expires() || !e.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.Backups.Delete(e.Kind, e.AttachmentID); err != nil {
			s.Log.Warn().Err(err).Int64("attachment", e.AttachmentID).Str("kind", string(e.Kind)).Msg("sweep delete failed")
			continue
		}
		if err := s.Mirror.Remove(ctx, string(e.Kind), e.AttachmentID); err != nil {
			s.Log.Warn().Err(err).Int64("attachment", e.AttachmentID).Str("kind", string(e.Kind)).Msg("mirror cleanup failed")
		}
		removed++
	}
	s.Log.Info().Int("removed", removed).Msg("sweep completed")
	return removed, nil
}

// DeleteAll cascades removal of every backup kind, used when the attachment
// itself is deleted or the operator discards its backups.
func (s *Sweeper) DeleteAll(ctx context.Context, id int64) error {
	var firstErr error
	for _, kind := range backup.Kinds {
		if err := s.Backups.Delete(kind, id); err != nil && firstErr == nil {
			firstErr = err
		}
		if kind == backup.KindLegacy {
			continue // legacy backups were never mirrored
		}
		if err := s.Mirror.Remove(ctx, string(kind), id); err != nil {
			s.Log.Warn().Err(err).Int64("attachment", id).Str("kind", string(kind)).Msg("mirror cleanup failed")
		}
	}
	return firstErr
}
