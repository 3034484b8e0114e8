package sweep

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/backup"
)

func seed(t *testing.T, s *backup.Store, kind backup.Kind, id int64, age time.Duration) {
	t.Helper()
	dir := s.Dir(kind, id)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "main.jpg"), []byte("bytes"), 0o640); err != nil {
		t.Fatalf("write main: %v", err)
	}
	m := &backup.Manifest{
		Kind:         kind,
		AttachmentID: id,
		CreatedAt:    time.Now().UTC().Add(-age),
		Main:         backup.MainRecord{StoredFile: "main.jpg", OriginalPath: "photo.jpg", OriginalMime: "image/jpeg"},
	}
	if err := s.Save(m); err != nil {
		t.Fatalf("save: %v", err)
	}
}

func TestRunRemovesExpired(t *testing.T) {
	store := backup.NewStore(t.TempDir(), zerolog.Nop())
	const day = 24 * time.Hour

	seed(t, store, backup.KindUser, 1, 40*day)       // expired
	seed(t, store, backup.KindConversion, 2, 35*day) // expired
	seed(t, store, backup.KindUser, 3, 5*day)        // fresh
	seed(t, store, backup.KindServing, 4, 90*day)    // never expires
	seed(t, store, backup.KindLegacy, 5, 90*day)     // left to the operator

	s := New(store, nil, 30, "", "", "", zerolog.Nop())
	removed, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	for _, c := range []struct {
		kind backup.Kind
		id   int64
		gone bool
	}{
		{backup.KindUser, 1, true},
		{backup.KindConversion, 2, true},
		{backup.KindUser, 3, false},
		{backup.KindServing, 4, false},
		{backup.KindLegacy, 5, false},
	} {
		_, err := store.Load(c.kind, c.id)
		if c.gone && err == nil {
			t.Fatalf("%s/%d survived the sweep", c.kind, c.id)
		}
		if !c.gone && err != nil {
			t.Fatalf("%s/%d was removed: %v", c.kind, c.id, err)
		}
	}
}

func TestRunRespectsWindow(t *testing.T) {
	store := backup.NewStore(t.TempDir(), zerolog.Nop())

	// A window the current minute can never be inside.
	now := time.Now()
	start := now.Add(2 * time.Hour).Format("15:04")
	end := now.Add(3 * time.Hour).Format("15:04")

	s := New(store, nil, 30, start, end, "", zerolog.Nop())
	if _, err := s.Run(context.Background()); err == nil {
		t.Fatal("expected an error outside the sweep window")
	}
}

func TestDeleteAll(t *testing.T) {
	store := backup.NewStore(t.TempDir(), zerolog.Nop())
	seed(t, store, backup.KindUser, 7, time.Hour)
	seed(t, store, backup.KindConversion, 7, time.Hour)
	seed(t, store, backup.KindServing, 7, time.Hour)
	seed(t, store, backup.KindLegacy, 7, time.Hour)

	s := New(store, nil, 30, "", "", "", zerolog.Nop())
	if err := s.DeleteAll(context.Background(), 7); err != nil {
		t.Fatalf("delete all: %v", err)
	}
	if entries, err := store.List(); err != nil || len(entries) != 0 {
		t.Fatalf("entries after delete = %d (%v)", len(entries), err)
	}
}
