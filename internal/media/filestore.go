package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/picpilot/picpilot/internal/imaging"
	"github.com/picpilot/picpilot/internal/util"
)

// Record is the on-disk metadata document for one attachment.
type Record struct {
	ID       int64              `json:"id"`
	File     string             `json:"file"` // relative to uploads root
	Mime     string             `json:"mime_type"`
	Variants map[string]Variant `json:"variants,omitempty"`
	Meta     map[string]string  `json:"meta,omitempty"`
}

// FileStore implements Store on top of one JSON document per attachment,
// letting the CLI operate a library without a running host system.
type FileStore struct {
	UploadsRoot string
	Dir         string
	BaseURL     string
	Log         zerolog.Logger

	mu sync.Mutex
}

func NewFileStore(uploadsRoot, metadataDir, baseURL string, log zerolog.Logger) *FileStore {
	return &FileStore{
		UploadsRoot: uploadsRoot,
		Dir:         metadataDir,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		Log:         log,
	}
}

func (s *FileStore) recordPath(id int64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("%d.json", id))
}

func (s *FileStore) load(id int64) (*Record, error) {
	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
		}
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode attachment %d: %w", id, err)
	}
	return &rec, nil
}

func (s *FileStore) save(rec *Record) error {
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return fmt.Errorf("create metadata dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.recordPath(rec.ID), data, 0o640)
}

// Register creates or replaces an attachment record.
func (s *FileStore) Register(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(&rec)
}

func (s *FileStore) AttachedFile(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return "", err
	}
	return rec.File, nil
}

func (s *FileStore) SetAttachedFile(_ context.Context, id int64, rel string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return err
	}
	rec.File = rel
	return s.save(rec)
}

func (s *FileStore) MimeType(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return "", err
	}
	return rec.Mime, nil
}

func (s *FileStore) SetMimeType(_ context.Context, id int64, mime string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return err
	}
	rec.Mime = mime
	return s.save(rec)
}

func (s *FileStore) Variants(_ context.Context, id int64) (map[string]Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Variant, len(rec.Variants))
	for name, v := range rec.Variants {
		out[name] = v
	}
	return out, nil
}

// RegenerateVariants re-derives every registered size from the file at rel.
// A size whose thumbnail cannot be decoded or encoded (webp targets, for
// example) is dropped from metadata rather than left dangling.
func (s *FileStore) RegenerateVariants(_ context.Context, id int64, rel string) (map[string]Variant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return nil, err
	}

	abs := filepath.Join(s.UploadsRoot, filepath.FromSlash(rel))
	img, _, err := imaging.Decode(abs)
	if err != nil {
		return nil, fmt.Errorf("regenerate variants for %d: %w", id, err)
	}

	mime := MimeForExt(path.Ext(rel))
	out := make(map[string]Variant, len(rec.Variants))
	for name, v := range rec.Variants {
		thumbName := util.ThumbFileName(path.Base(rel), v.Width, v.Height)
		thumbAbs := filepath.Join(filepath.Dir(abs), thumbName)
		scaled := imaging.Scale(img, v.Width, v.Height)
		if err := imaging.Encode(thumbAbs, scaled); err != nil {
			s.Log.Warn().Err(err).Int64("attachment", id).Str("size", name).Msg("dropping variant")
			continue
		}
		if _, err := os.Stat(thumbAbs); err != nil {
			continue
		}
		out[name] = Variant{File: thumbName, Width: v.Width, Height: v.Height, Mime: mime}
	}
	rec.Variants = out
	if err := s.save(rec); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) PublicAddress(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return "", err
	}
	return s.BaseURL + "/" + path.Clean(filepath.ToSlash(rec.File)), nil
}

func (s *FileStore) Meta(_ context.Context, id int64, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return "", err
	}
	return rec.Meta[key], nil
}

func (s *FileStore) SetMeta(_ context.Context, id int64, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return err
	}
	if rec.Meta == nil {
		rec.Meta = map[string]string{}
	}
	rec.Meta[key] = value
	return s.save(rec)
}

func (s *FileStore) DeleteMeta(_ context.Context, id int64, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.load(id)
	if err != nil {
		return err
	}
	delete(rec.Meta, key)
	return s.save(rec)
}
