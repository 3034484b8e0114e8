package backup

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/media"
)

// fakeStore is an in-memory media.Store for exercising the writer without a
// full metadata layer.
type fakeStore struct {
	file     string
	mime     string
	variants map[string]media.Variant
	meta     map[string]string
}

func (f *fakeStore) AttachedFile(context.Context, int64) (string, error) { return f.file, nil }
func (f *fakeStore) SetAttachedFile(_ context.Context, _ int64, rel string) error {
	f.file = rel
	return nil
}
func (f *fakeStore) MimeType(context.Context, int64) (string, error) { return f.mime, nil }
func (f *fakeStore) SetMimeType(_ context.Context, _ int64, mime string) error {
	f.mime = mime
	return nil
}
func (f *fakeStore) Variants(context.Context, int64) (map[string]media.Variant, error) {
	return f.variants, nil
}
func (f *fakeStore) RegenerateVariants(context.Context, int64, string) (map[string]media.Variant, error) {
	return f.variants, nil
}
func (f *fakeStore) PublicAddress(context.Context, int64) (string, error) {
	return "https://example.com/" + f.file, nil
}
func (f *fakeStore) Meta(_ context.Context, _ int64, key string) (string, error) {
	return f.meta[key], nil
}
func (f *fakeStore) SetMeta(_ context.Context, _ int64, key, value string) error {
	if f.meta == nil {
		f.meta = map[string]string{}
	}
	f.meta[key] = value
	return nil
}
func (f *fakeStore) DeleteMeta(_ context.Context, _ int64, key string) error {
	delete(f.meta, key)
	return nil
}

func writeTestPNG(t *testing.T, path string, alpha bool) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	if alpha {
		img.Set(4, 4, color.NRGBA{R: 0, G: 0, B: 0, A: 0})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o640); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestShouldBackup(t *testing.T) {
	cases := []struct {
		op       string
		enabled  bool
		strategy media.ServingStrategy
		want     bool
	}{
		{OpConvertToWebP, false, media.ServingDisabled, true},
		{OpConvertPNGToJPEG, false, media.ServingDisabled, true},
		{OpConvertFromWebP, false, media.ServingDisabled, true},
		{OpCompressJPEG, true, media.ServingDisabled, true},
		{OpCompressJPEG, false, media.ServingDisabled, false},
		{OpCompressPNG, false, media.ServingDisabled, false},
		{OpServingPrep, false, media.ServingDisabled, false},
		{OpServingPrep, false, media.ServingNegotiate, true},
		{OpServingPrep, false, media.ServingPull, true},
		{"mystery_operation", true, media.ServingDisabled, true},
		{"mystery_operation", false, media.ServingDisabled, false},
	}
	for _, c := range cases {
		w := &Writer{Settings: media.StaticSettings{Backups: c.enabled, Strategy: c.strategy}}
		if got := w.ShouldBackup(c.op); got != c.want {
			t.Fatalf("ShouldBackup(%s, enabled=%v, strategy=%s) = %v, want %v",
				c.op, c.enabled, c.strategy, got, c.want)
		}
	}
}

func TestKindForOperation(t *testing.T) {
	if got := KindForOperation(OpConvertToWebP); got != KindConversion {
		t.Fatalf("conversion op -> %s", got)
	}
	if got := KindForOperation(OpCompressJPEG); got != KindUser {
		t.Fatalf("compress op -> %s", got)
	}
	if got := KindForOperation(OpServingPrep); got != KindServing {
		t.Fatalf("serving op -> %s", got)
	}
	if got := KindForOperation("mystery_operation"); got != KindUser {
		t.Fatalf("unknown op -> %s", got)
	}
}

func TestCreateBackup(t *testing.T) {
	root := t.TempDir()
	writeTestPNG(t, filepath.Join(root, "2026", "08", "photo.png"), true)
	if err := os.WriteFile(filepath.Join(root, "2026", "08", "photo-300x200.png"), []byte("thumb"), 0o640); err != nil {
		t.Fatalf("write thumb: %v", err)
	}

	store := NewStore(root, zerolog.Nop())
	lib := &fakeStore{
		file: "2026/08/photo.png",
		mime: media.MimePNG,
		variants: map[string]media.Variant{
			"medium":  {File: "photo-300x200.png", Width: 300, Height: 200},
			"missing": {File: "photo-10x10.png", Width: 10, Height: 10},
		},
	}
	w := NewWriter(store, lib, media.StaticSettings{Backups: true}, root, "none", nil, zerolog.Nop())

	if err := w.CreateBackup(context.Background(), 42, OpConvertPNGToJPEG); err != nil {
		t.Fatalf("create backup: %v", err)
	}

	m, err := store.Load(KindConversion, 42)
	if err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	if m.Main.StoredFile != "main.png" || m.Main.OriginalPath != "2026/08/photo.png" {
		t.Fatalf("main record = %+v", m.Main)
	}
	if m.Main.OriginalMime != media.MimePNG || !m.Main.ConvertedFromPNG {
		t.Fatalf("main flags = %+v", m.Main)
	}
	if !m.Main.HasAlpha {
		t.Fatal("alpha scan missed the transparent pixel")
	}
	if !m.Thumbnails["medium"].Copied {
		t.Fatal("medium thumbnail should have copied")
	}
	// A thumbnail whose source is missing is recorded but flagged.
	if m.Thumbnails["missing"].Copied {
		t.Fatal("missing thumbnail marked as copied")
	}
	if _, err := os.Stat(store.FilePath(m, m.Thumbnails["medium"].StoredFile)); err != nil {
		t.Fatalf("stored thumbnail: %v", err)
	}
}

func TestCreateBackupSessionGuard(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "photo.jpg")
	if err := os.WriteFile(src, []byte("first bytes"), 0o640); err != nil {
		t.Fatalf("write src: %v", err)
	}

	store := NewStore(root, zerolog.Nop())
	lib := &fakeStore{file: "photo.jpg", mime: media.MimeJPEG}
	w := NewWriter(store, lib, media.StaticSettings{Backups: true}, root, "none", nil, zerolog.Nop())

	if err := w.CreateBackup(context.Background(), 1, OpCompressJPEG); err != nil {
		t.Fatalf("first backup: %v", err)
	}
	if err := os.WriteFile(src, []byte("compressed bytes"), 0o640); err != nil {
		t.Fatalf("rewrite src: %v", err)
	}
	// Within one session the second call must not overwrite the backup.
	if err := w.CreateBackup(context.Background(), 1, OpCompressJPEG); err != nil {
		t.Fatalf("second backup: %v", err)
	}
	m, err := store.Load(KindUser, 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := os.ReadFile(store.FilePath(m, m.Main.StoredFile))
	if err != nil {
		t.Fatalf("read stored: %v", err)
	}
	if string(got) != "first bytes" {
		t.Fatalf("stored bytes = %q, session guard failed", got)
	}

	// A new session may replace the backup.
	w.Reset()
	if err := w.CreateBackup(context.Background(), 1, OpCompressJPEG); err != nil {
		t.Fatalf("post-reset backup: %v", err)
	}
	got, err = os.ReadFile(store.FilePath(m, m.Main.StoredFile))
	if err != nil {
		t.Fatalf("read stored: %v", err)
	}
	if string(got) != "compressed bytes" {
		t.Fatalf("stored bytes after reset = %q", got)
	}
}

func TestCreateBackupPreservesChain(t *testing.T) {
	root := t.TempDir()
	pngPath := filepath.Join(root, "2026", "08", "photo.png")
	writeTestPNG(t, pngPath, false)
	pngBytes, err := os.ReadFile(pngPath)
	if err != nil {
		t.Fatalf("read png: %v", err)
	}

	store := NewStore(root, zerolog.Nop())
	lib := &fakeStore{file: "2026/08/photo.png", mime: media.MimePNG}
	w := NewWriter(store, lib, media.StaticSettings{Backups: true}, root, "none", nil, zerolog.Nop())

	if err := w.CreateBackup(context.Background(), 9, OpConvertPNGToJPEG); err != nil {
		t.Fatalf("first conversion backup: %v", err)
	}

	// Simulate the conversion, then stack a second format change on top.
	jpgPath := filepath.Join(root, "2026", "08", "photo.jpg")
	if err := os.WriteFile(jpgPath, []byte("jpeg bytes"), 0o640); err != nil {
		t.Fatalf("write jpg: %v", err)
	}
	lib.file = "2026/08/photo.jpg"
	lib.mime = media.MimeJPEG

	w.Reset()
	if err := w.CreateBackup(context.Background(), 9, OpConvertToWebP); err != nil {
		t.Fatalf("second conversion backup: %v", err)
	}

	m, err := store.Load(KindConversion, 9)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Main.OriginalMime != media.MimeJPEG || !m.Main.ConvertedToWebP {
		t.Fatalf("main record = %+v", m.Main)
	}
	if m.Chain == nil {
		t.Fatal("chain not preserved")
	}
	if m.Chain.Original.OriginalMime != media.MimePNG {
		t.Fatalf("chain original mime = %s", m.Chain.Original.OriginalMime)
	}
	if len(m.Chain.Steps) != 1 || m.Chain.Steps[0].From != media.MimePNG || m.Chain.Steps[0].To != media.MimeJPEG {
		t.Fatalf("chain steps = %+v", m.Chain.Steps)
	}
	stored, err := os.ReadFile(store.FilePath(m, m.Chain.Original.StoredFile))
	if err != nil {
		t.Fatalf("read chained original: %v", err)
	}
	if !bytes.Equal(stored, pngBytes) {
		t.Fatal("chained original bytes differ from the first backup")
	}
}
