package restore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/media"
	"github.com/picpilot/picpilot/internal/util"
)

// conversionUndo reverses one format change: it puts the backed-up original
// back at its recorded path, removes the converted representation, and
// propagates the address change. The PNG-from-JPEG and original-from-WebP
// handlers share this shape and differ only in the accepted source formats.
type conversionUndo struct {
	deps        Deps
	name        string
	op          Operation
	sourceMimes []string
}

func newPNGFromJPEG(deps Deps) *conversionUndo {
	return &conversionUndo{
		deps:        deps,
		name:        "png-from-jpeg",
		op:          OpRestorePNGFromJPEG,
		sourceMimes: []string{media.MimePNG},
	}
}

func newOriginalFromWebP(deps Deps) *conversionUndo {
	return &conversionUndo{
		deps:        deps,
		name:        "original-from-webp",
		op:          OpRestoreOriginalFromWebP,
		sourceMimes: []string{media.MimePNG, media.MimeJPEG},
	}
}

func (h *conversionUndo) Name() string { return h.name }

func (h *conversionUndo) CanHandle(op Operation) bool { return op == h.op }

func (h *conversionUndo) Steps(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) ([]string, error) {
	m := backups[backup.KindConversion]
	if m == nil {
		return nil, fmt.Errorf("%w: conversion backup for attachment %d", backup.ErrNotFound, id)
	}
	target := util.StripResizedSuffix(m.Main.OriginalPath)
	cur, err := h.deps.Media.AttachedFile(ctx, id)
	if err != nil {
		return nil, err
	}
	return []string{
		fmt.Sprintf("Copy backed-up original to %s", target),
		fmt.Sprintf("Restore %d backed-up thumbnail(s)", len(m.Thumbnails)),
		fmt.Sprintf("Delete converted file %s and its thumbnails", cur),
		fmt.Sprintf("Set MIME type to %s and regenerate thumbnails", m.Main.OriginalMime),
		"Update stored content references if the public address changed",
	}, nil
}

func (h *conversionUndo) Execute(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) Result {
	m := backups[backup.KindConversion]
	if m == nil {
		return Failure(fmt.Errorf("%w: conversion backup for attachment %d", backup.ErrNotFound, id))
	}
	if !slices.Contains(h.sourceMimes, m.Main.OriginalMime) {
		return Failuref("conversion backup for attachment %d has original %s, expected %s",
			id, m.Main.OriginalMime, strings.Join(h.sourceMimes, " or "))
	}
	return restoreConversion(ctx, h.deps, id, m, m.Main, m.Thumbnails)
}

// restoreConversion is the shared execution core for direct and chained
// conversion undos. No destructive step runs until the replacement main file
// is already in place.
func restoreConversion(ctx context.Context, deps Deps, id int64, m *backup.Manifest, rec backup.MainRecord, thumbs map[string]backup.ThumbRecord) Result {
	ctx = media.WithoutAutoTransform(ctx)
	log := deps.Log.With().Int64("attachment", id).Logger()

	target := util.StripResizedSuffix(rec.OriginalPath)
	targetAbs := deps.abs(target)

	curRel, err := deps.Media.AttachedFile(ctx, id)
	if err != nil {
		return Failure(err)
	}
	curAbs := deps.abs(curRel)
	curVariants, err := deps.Media.Variants(ctx, id)
	if err != nil {
		return Failure(err)
	}
	oldURL, err := deps.Media.PublicAddress(ctx, id)
	if err != nil {
		return Failure(err)
	}

	src := deps.Backups.FilePath(m, rec.StoredFile)
	if err := backup.RestoreFile(src, targetAbs, m.Compression); err != nil {
		return Failure(fmt.Errorf("restore main file: %w", err))
	}

	restoredPaths := map[string]bool{targetAbs: true}
	restored := 0
	for name, t := range thumbs {
		dst := deps.abs(util.StripResizedSuffix(t.OriginalPath))
		if err := backup.RestoreFile(deps.Backups.FilePath(m, t.StoredFile), dst, m.Compression); err != nil {
			log.Warn().Err(err).Str("size", name).Msg("thumbnail restore failed")
			continue
		}
		restoredPaths[dst] = true
		restored++
	}

	// Replacement files are in place; remove the converted representation.
	if curAbs != targetAbs {
		if err := os.Remove(curAbs); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Msg("could not delete converted main file")
		}
	}
	for name, v := range curVariants {
		p := filepath.Join(filepath.Dir(curAbs), v.File)
		if restoredPaths[p] {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("size", name).Msg("could not delete converted thumbnail")
		}
	}

	if err := deps.Media.SetAttachedFile(ctx, id, target); err != nil {
		return Failure(err)
	}
	if err := deps.Media.SetMimeType(ctx, id, rec.OriginalMime); err != nil {
		return Failure(err)
	}

	if _, err := deps.Media.RegenerateVariants(ctx, id, target); err != nil {
		log.Warn().Err(err).Msg("thumbnail regeneration incomplete")
	}

	if err := deps.Media.DeleteMeta(ctx, id, media.MetaOptimized); err != nil {
		log.Debug().Err(err).Msg("could not clear optimization metadata")
	}

	details := map[string]string{
		"restored_file":       target,
		"mime_type":           rec.OriginalMime,
		"thumbnails_restored": strconv.Itoa(restored),
	}

	newURL, err := deps.Media.PublicAddress(ctx, id)
	if err != nil {
		log.Warn().Err(err).Msg("could not resolve new public address")
	}
	details["old_url"] = oldURL
	details["new_url"] = newURL
	if newURL != "" && oldURL != newURL {
		if err := deps.Refs.ReplaceAddress(ctx, id, oldURL, newURL); err != nil {
			log.Warn().Err(err).Str("old_url", oldURL).Str("new_url", newURL).Msg("reference update failed")
			details["reference_update"] = "failed"
		}
	}

	return Success(details)
}
