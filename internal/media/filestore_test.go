package media

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	root := t.TempDir()
	return NewFileStore(root, filepath.Join(root, ".picpilot"), "https://example.com/uploads/", zerolog.Nop()), root
}

func writeSquarePNG(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 120, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, _ := newTestFileStore(t)
	ctx := context.Background()

	err := s.Register(ctx, Record{
		ID:   7,
		File: "2026/08/photo.png",
		Mime: MimePNG,
		Meta: map[string]string{MetaPriorMime: MimeJPEG},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	rel, err := s.AttachedFile(ctx, 7)
	if err != nil || rel != "2026/08/photo.png" {
		t.Fatalf("attached file = %s (%v)", rel, err)
	}
	mime, err := s.MimeType(ctx, 7)
	if err != nil || mime != MimePNG {
		t.Fatalf("mime = %s (%v)", mime, err)
	}
	prior, err := s.Meta(ctx, 7, MetaPriorMime)
	if err != nil || prior != MimeJPEG {
		t.Fatalf("prior mime = %s (%v)", prior, err)
	}

	if err := s.SetMeta(ctx, 7, MetaOptimized, "1"); err != nil {
		t.Fatalf("set meta: %v", err)
	}
	if err := s.DeleteMeta(ctx, 7, MetaOptimized); err != nil {
		t.Fatalf("delete meta: %v", err)
	}
	if v, _ := s.Meta(ctx, 7, MetaOptimized); v != "" {
		t.Fatalf("meta not deleted: %q", v)
	}

	url, err := s.PublicAddress(ctx, 7)
	if err != nil || url != "https://example.com/uploads/2026/08/photo.png" {
		t.Fatalf("public address = %s (%v)", url, err)
	}
}

func TestFileStoreNotFound(t *testing.T) {
	s, _ := newTestFileStore(t)
	if _, err := s.AttachedFile(context.Background(), 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegenerateVariants(t *testing.T) {
	s, root := newTestFileStore(t)
	ctx := context.Background()

	writeSquarePNG(t, filepath.Join(root, "2026", "08", "photo.png"))
	err := s.Register(ctx, Record{
		ID:   8,
		File: "2026/08/photo.png",
		Mime: MimePNG,
		Variants: map[string]Variant{
			"medium": {File: "photo-stale.png", Width: 12, Height: 8},
		},
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	out, err := s.RegenerateVariants(ctx, 8, "2026/08/photo.png")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	v, ok := out["medium"]
	if !ok {
		t.Fatal("medium variant dropped")
	}
	if v.File != "photo-12x8.png" {
		t.Fatalf("variant file = %s", v.File)
	}
	if _, err := os.Stat(filepath.Join(root, "2026", "08", "photo-12x8.png")); err != nil {
		t.Fatalf("thumbnail not written: %v", err)
	}

	// Persisted, not just returned.
	stored, err := s.Variants(ctx, 8)
	if err != nil {
		t.Fatalf("variants: %v", err)
	}
	if stored["medium"].File != "photo-12x8.png" {
		t.Fatalf("stored variant = %+v", stored["medium"])
	}
}
