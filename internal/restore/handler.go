package restore

import (
	"context"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/media"
	"github.com/picpilot/picpilot/internal/refupdate"
)

// Handler is one undo procedure. Steps describes what Execute would do and is
// used for dry-run previews only.
type Handler interface {
	Name() string
	CanHandle(op Operation) bool
	Steps(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) ([]string, error)
	Execute(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) Result
}

// Deps is the capability set shared by all handlers.
type Deps struct {
	Backups     *backup.Store
	Media       media.Store
	Refs        refupdate.Updater
	UploadsRoot string
	Log         zerolog.Logger
}

func (d Deps) abs(rel string) string {
	return filepath.Join(d.UploadsRoot, filepath.FromSlash(rel))
}

// NewHandlers builds the ordered handler list consulted by the coordinator.
// The order is fixed at startup; there is no runtime registration.
func NewHandlers(deps Deps) []Handler {
	png := newPNGFromJPEG(deps)
	webp := newOriginalFromWebP(deps)
	return []Handler{
		newChainUndo(deps),
		png,
		webp,
		newCompressionUndo(deps),
		newServingUndo(deps),
	}
}
