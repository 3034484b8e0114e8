package backup

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/imaging"
	"github.com/picpilot/picpilot/internal/media"
	"github.com/picpilot/picpilot/internal/mirror"
	"github.com/picpilot/picpilot/internal/version"
)

// Transformation operation types, as named by callers (upload pipeline,
// bulk optimizer, CLI).
const (
	OpConvertPNGToJPEG = "convert_png_to_jpeg"
	OpConvertToWebP    = "convert_to_webp"
	OpConvertFromWebP  = "convert_from_webp"
	OpCompressJPEG     = "compress_jpeg"
	OpCompressPNG      = "compress_png"
	OpCompressWebP     = "compress_webp"
	OpServingPrep      = "serving_prep"
)

type opClass int

const (
	classUnknown opClass = iota
	classFormatChange
	classRecompress
	classServing
)

func classifyOperation(op string) opClass {
	switch op {
	case OpConvertPNGToJPEG, OpConvertToWebP, OpConvertFromWebP:
		return classFormatChange
	case OpCompressJPEG, OpCompressPNG, OpCompressWebP:
		return classRecompress
	case OpServingPrep:
		return classServing
	default:
		return classUnknown
	}
}

// KindForOperation resolves which backup kind an operation produces.
func KindForOperation(op string) Kind {
	switch classifyOperation(op) {
	case classFormatChange:
		return KindConversion
	case classServing:
		return KindServing
	default:
		return KindUser
	}
}

// Writer decides whether an operation needs a backup and creates typed
// backups with manifests before the transformation runs.
type Writer struct {
	Store       *Store
	Media       media.Store
	Settings    media.Settings
	UploadsRoot string
	Compression string
	Mirror      *mirror.Mirror
	Log         zerolog.Logger

	mu   sync.Mutex
	done map[string]bool
}

func NewWriter(store *Store, m media.Store, settings media.Settings, uploadsRoot, compression string, mir *mirror.Mirror, log zerolog.Logger) *Writer {
	return &Writer{
		Store:       store,
		Media:       m,
		Settings:    settings,
		UploadsRoot: uploadsRoot,
		Compression: compression,
		Mirror:      mir,
		Log:         log,
		done:        map[string]bool{},
	}
}

// ShouldBackup reports whether the operation requires a backup. Format
// changes always do: they are destructive to the byte stream and usually
// rewrite public addresses, so skipping the backup would make restoration
// impossible by construction.
func (w *Writer) ShouldBackup(op string) bool {
	switch classifyOperation(op) {
	case classFormatChange:
		return true
	case classRecompress:
		return w.Settings.BackupEnabled()
	case classServing:
		return w.Settings.ServingStrategy().KeepsOriginal()
	default:
		return w.Settings.BackupEnabled()
	}
}

// CreateBackup copies the attachment's main file and thumbnails into a
// kind-scoped directory and writes the manifest last. A second call for the
// same (attachment, kind) within one logical session is a no-op.
func (w *Writer) CreateBackup(ctx context.Context, id int64, op string) error {
	kind := KindForOperation(op)
	key := string(kind) + "/" + strconv.FormatInt(id, 10)

	w.mu.Lock()
	if w.done[key] {
		w.mu.Unlock()
		w.Log.Debug().Int64("attachment", id).Str("kind", string(kind)).Msg("backup already created this session")
		return nil
	}
	w.mu.Unlock()

	rel, err := w.Media.AttachedFile(ctx, id)
	if err != nil {
		return err
	}
	mime, err := w.Media.MimeType(ctx, id)
	if err != nil {
		return err
	}
	variants, err := w.Media.Variants(ctx, id)
	if err != nil {
		return err
	}

	srcAbs := filepath.Join(w.UploadsRoot, filepath.FromSlash(rel))
	info, err := os.Stat(srcAbs)
	if err != nil {
		return fmt.Errorf("attachment %d main file: %w", id, err)
	}

	// A format change stacked on an earlier conversion becomes a chain; the
	// earliest original's bytes must be carried out of the directory before
	// the overwrite removes them.
	var chain *ConversionDetail
	var chainFile string
	if kind == KindConversion {
		if prev, err := w.Store.Load(KindConversion, id); err == nil {
			chain, chainFile, err = w.preserveChain(prev, mime)
			if err != nil {
				w.Log.Warn().Err(err).Int64("attachment", id).Msg("conversion chain not preserved")
				chain = nil
			}
		}
	}
	if chainFile != "" {
		defer os.Remove(chainFile)
	}

	dir := w.Store.Dir(kind, id)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear previous backup: %w", err)
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}

	mainStored := StoredName("main"+path.Ext(rel), w.Compression)
	if err := writeStored(srcAbs, filepath.Join(dir, mainStored), w.Compression); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("copy main file: %w", err)
	}

	main := MainRecord{
		StoredFile:   mainStored,
		OriginalPath: rel,
		OriginalSize: info.Size(),
		OriginalMime: mime,
	}
	switch op {
	case OpConvertPNGToJPEG:
		main.ConvertedFromPNG = true
	case OpConvertToWebP:
		main.ConvertedToWebP = true
	}
	if mime == media.MimePNG {
		alpha, err := imaging.HasAlpha(srcAbs)
		if err != nil {
			w.Log.Warn().Err(err).Int64("attachment", id).Msg("alpha scan failed")
		} else {
			main.HasAlpha = alpha
		}
	}
	if mime == media.MimeWebP {
		if prior, err := w.Media.Meta(ctx, id, media.MetaPriorMime); err == nil && prior != "" {
			main.PriorMime = prior
		}
	}

	thumbs := make(map[string]ThumbRecord, len(variants))
	failed := 0
	for name, v := range variants {
		stored := StoredName("thumb-"+name+path.Ext(v.File), w.Compression)
		rec := ThumbRecord{
			StoredFile:   stored,
			OriginalPath: path.Join(path.Dir(rel), v.File),
			Copied:       true,
		}
		srcThumb := filepath.Join(filepath.Dir(srcAbs), v.File)
		if err := writeStored(srcThumb, filepath.Join(dir, stored), w.Compression); err != nil {
			rec.Copied = false
			failed++
			w.Log.Warn().Err(err).Int64("attachment", id).Str("size", name).Msg("thumbnail copy failed")
		}
		thumbs[name] = rec
	}

	if chain != nil {
		origStored := StoredName("original"+media.ExtForMime(chain.Original.OriginalMime), w.Compression)
		if err := writeStored(chainFile, filepath.Join(dir, origStored), w.Compression); err != nil {
			w.Log.Warn().Err(err).Int64("attachment", id).Msg("conversion chain original not copied")
			chain = nil
		} else {
			chain.Original.StoredFile = origStored
		}
	}

	m := &Manifest{
		Kind:         kind,
		AttachmentID: id,
		CreatedAt:    time.Now().UTC(),
		Compression:  w.Compression,
		ToolVersion:  version.Version,
		Main:         main,
		Thumbnails:   thumbs,
		Chain:        chain,
	}
	if err := w.Store.Save(m); err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("write manifest: %w", err)
	}

	if err := w.Mirror.Upload(ctx, string(kind), id, dir); err != nil {
		w.Log.Warn().Err(err).Int64("attachment", id).Msg("mirror upload failed")
	}

	w.mu.Lock()
	w.done[key] = true
	w.mu.Unlock()

	w.Log.Info().
		Int64("attachment", id).
		Str("kind", string(kind)).
		Str("operation", op).
		Int("thumbnails", len(thumbs)).
		Int("thumbnail_failures", failed).
		Msg("backup created")
	return nil
}

// Reset clears the session guard so a new logical request may back up again.
func (w *Writer) Reset() {
	w.mu.Lock()
	w.done = map[string]bool{}
	w.mu.Unlock()
}

func (w *Writer) preserveChain(prev *Manifest, currentMime string) (*ConversionDetail, string, error) {
	orig := prev.Main
	var steps []ConversionStep
	if prev.Chain != nil {
		orig = prev.Chain.Original
		steps = append(steps, prev.Chain.Steps...)
	}
	steps = append(steps, ConversionStep{From: prev.Main.OriginalMime, To: currentMime, At: prev.CreatedAt})

	tmp, err := os.CreateTemp("", "picpilot-chain-*")
	if err != nil {
		return nil, "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, "", err
	}
	src := w.Store.FilePath(prev, orig.StoredFile)
	if err := RestoreFile(src, tmp.Name(), prev.Compression); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, "", err
	}
	return &ConversionDetail{Original: orig, Steps: steps}, tmp.Name(), nil
}
