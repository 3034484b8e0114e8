package media

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when no attachment exists for the given id.
var ErrNotFound = errors.New("attachment not found")

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

// Attachment metadata keys maintained alongside the host's records.
const (
	MetaPriorMime   = "prior_mime" // pre-conversion MIME recorded by the upload pipeline
	MetaOptimized   = "optimized"  // compression/optimization bookkeeping
	MetaChain       = "conversion_chain"
	MetaRestoredAt  = "restored_at"
	MetaRestoredVia = "restored_via"
	MetaRestoreID   = "restore_id"
)

// ExtForMime maps a supported image MIME type to its file extension (with dot).
func ExtForMime(mime string) string {
	switch mime {
	case MimePNG:
		return ".png"
	case MimeJPEG:
		return ".jpg"
	case MimeWebP:
		return ".webp"
	default:
		return ""
	}
}

// MimeForExt is the inverse of ExtForMime.
func MimeForExt(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return MimePNG
	case ".jpg", ".jpeg":
		return MimeJPEG
	case ".webp":
		return MimeWebP
	default:
		return ""
	}
}

// Variant is one derived thumbnail of an attachment. File is the basename,
// relative to the main file's directory.
type Variant struct {
	File   string `json:"file"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Mime   string `json:"mime_type,omitempty"`
}

// Store is the narrow surface this subsystem consumes from the host
// attachment system. Paths are relative to the uploads root, slash-separated.
type Store interface {
	AttachedFile(ctx context.Context, id int64) (string, error)
	SetAttachedFile(ctx context.Context, id int64, rel string) error
	MimeType(ctx context.Context, id int64) (string, error)
	SetMimeType(ctx context.Context, id int64, mime string) error
	Variants(ctx context.Context, id int64) (map[string]Variant, error)

	// RegenerateVariants re-derives every registered size from the file at rel.
	// Sizes whose backing file fails to materialize are dropped from metadata.
	RegenerateVariants(ctx context.Context, id int64, rel string) (map[string]Variant, error)

	PublicAddress(ctx context.Context, id int64) (string, error)

	Meta(ctx context.Context, id int64, key string) (string, error)
	SetMeta(ctx context.Context, id int64, key, value string) error
	DeleteMeta(ctx context.Context, id int64, key string) error
}

// ServingStrategy is how originals are kept for runtime format negotiation.
type ServingStrategy string

const (
	ServingDisabled  ServingStrategy = "disabled"
	ServingPull      ServingStrategy = "pull"
	ServingNegotiate ServingStrategy = "negotiate"
)

// KeepsOriginal reports whether the strategy needs an original on disk.
func (s ServingStrategy) KeepsOriginal() bool {
	switch s {
	case ServingPull, ServingNegotiate:
		return true
	default:
		return false
	}
}

// Settings is the operator preference surface consumed from the host.
type Settings interface {
	BackupEnabled() bool
	ServingStrategy() ServingStrategy
}

// StaticSettings satisfies Settings from plain config values.
type StaticSettings struct {
	Backups  bool
	Strategy ServingStrategy
}

func (s StaticSettings) BackupEnabled() bool             { return s.Backups }
func (s StaticSettings) ServingStrategy() ServingStrategy { return s.Strategy }

type ctxKey int

const suppressKey ctxKey = iota

// WithoutAutoTransform marks the context so upload-processing hooks skip the
// transformation pipeline while a restore is rewriting files.
func WithoutAutoTransform(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey, true)
}

// AutoTransformDisabled reports whether WithoutAutoTransform was applied.
func AutoTransformDisabled(ctx context.Context) bool {
	v, _ := ctx.Value(suppressKey).(bool)
	return v
}
