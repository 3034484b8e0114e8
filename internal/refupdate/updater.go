package refupdate

import "context"

// Updater rewrites every stored reference to an attachment's old public
// address after a restore changed it. The host owns the actual rewrite and
// cache invalidation; this subsystem only reports the address pair.
type Updater interface {
	ReplaceAddress(ctx context.Context, attachmentID int64, oldURL, newURL string) error
}

// Noop is used when no host endpoint is configured (stand-alone libraries).
type Noop struct{}

func (Noop) ReplaceAddress(context.Context, int64, string, string) error { return nil }
