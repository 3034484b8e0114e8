package restore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/picpilot/picpilot/internal/backup"
	"github.com/picpilot/picpilot/internal/media"
)

// chainUndo reverses a sequence of stacked format changes in one step. It
// resolves the earliest recorded original and restores straight to it,
// skipping intermediate formats, then clears the chain tracking. Without
// chain metadata it degenerates to a direct conversion undo.
type chainUndo struct {
	deps Deps
}

func newChainUndo(deps Deps) *chainUndo {
	return &chainUndo{deps: deps}
}

func (h *chainUndo) Name() string { return "conversion-chain-undo" }

func (h *chainUndo) CanHandle(op Operation) bool { return op == OpRestoreChain }

func (h *chainUndo) resolve(backups map[backup.Kind]*backup.Manifest, id int64) (*backup.Manifest, backup.MainRecord, map[string]backup.ThumbRecord, error) {
	m := backups[backup.KindConversion]
	if m == nil {
		return nil, backup.MainRecord{}, nil, fmt.Errorf("%w: conversion backup for attachment %d", backup.ErrNotFound, id)
	}
	if m.Chain == nil {
		return m, m.Main, m.Thumbnails, nil
	}
	// The manifest's thumbnails belong to an intermediate format, not the
	// earliest original; regeneration covers the sizes after the restore.
	return m, m.Chain.Original, nil, nil
}

func (h *chainUndo) Steps(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) ([]string, error) {
	m, rec, _, err := h.resolve(backups, id)
	if err != nil {
		return nil, err
	}
	cur, err := h.deps.Media.AttachedFile(ctx, id)
	if err != nil {
		return nil, err
	}
	steps := []string{
		fmt.Sprintf("Restore earliest original (%s) recorded across %d conversion step(s)", rec.OriginalMime, chainLength(m)),
		fmt.Sprintf("Delete converted file %s and its thumbnails", cur),
		"Regenerate thumbnails from the restored original",
		"Update stored content references if the public address changed",
		"Clear conversion chain tracking",
	}
	return steps, nil
}

func (h *chainUndo) Execute(ctx context.Context, id int64, backups map[backup.Kind]*backup.Manifest) Result {
	m, rec, thumbs, err := h.resolve(backups, id)
	if err != nil {
		return Failure(err)
	}

	res := restoreConversion(ctx, h.deps, id, m, rec, thumbs)
	if !res.OK {
		return res
	}

	if m.Chain != nil {
		res.Details["chain_steps"] = strconv.Itoa(len(m.Chain.Steps))
		m.Chain = nil
		if err := h.deps.Backups.Save(m); err != nil {
			h.deps.Log.Warn().Err(err).Int64("attachment", id).Msg("could not clear conversion chain from manifest")
		}
	}
	if err := h.deps.Media.DeleteMeta(ctx, id, media.MetaChain); err != nil {
		h.deps.Log.Debug().Err(err).Int64("attachment", id).Msg("could not clear chain metadata")
	}
	return res
}

func chainLength(m *backup.Manifest) int {
	if m.Chain == nil {
		return 1
	}
	return len(m.Chain.Steps) + 1
}
