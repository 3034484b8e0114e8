package backup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// DirName is the backup tree root under the uploads root.
const DirName = "pic-pilot-backups"

// ErrNotFound means no valid backup exists for the requested (kind, id). A
// manifest is valid only if its directory, the manifest file, and the declared
// main backup file all exist.
var ErrNotFound = errors.New("backup not found")

// Store reads and writes kind-scoped backup directories and their manifests.
type Store struct {
	Root string
	Log  zerolog.Logger
}

func NewStore(uploadsRoot string, log zerolog.Logger) *Store {
	return &Store{Root: filepath.Join(uploadsRoot, DirName), Log: log}
}

// Dir returns the backup directory for (kind, id). The legacy layout has no
// kind segment.
func (s *Store) Dir(kind Kind, id int64) string {
	if kind == KindLegacy {
		return filepath.Join(s.Root, strconv.FormatInt(id, 10))
	}
	return filepath.Join(s.Root, string(kind), strconv.FormatInt(id, 10))
}

// FilePath locates a stored file inside a manifest's directory.
func (s *Store) FilePath(m *Manifest, stored string) string {
	return filepath.Join(s.Dir(m.Kind, m.AttachmentID), stored)
}

// Load reads and validates the manifest for (kind, id).
func (s *Store) Load(kind Kind, id int64) (*Manifest, error) {
	dir := s.Dir(kind, id)
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s/%d", ErrNotFound, kind, id)
		}
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s/%d: %w", kind, id, err)
	}
	if m.Kind == "" {
		m.Kind = kind
	}
	m.AttachmentID = id
	if m.Main.StoredFile == "" {
		return nil, fmt.Errorf("%w: manifest %s/%d has no main record", ErrNotFound, kind, id)
	}
	if _, err := os.Stat(filepath.Join(dir, m.Main.StoredFile)); err != nil {
		return nil, fmt.Errorf("%w: main backup file missing for %s/%d", ErrNotFound, kind, id)
	}
	return &m, nil
}

// LoadAll gathers every valid backup for an attachment, one lookup per kind.
func (s *Store) LoadAll(id int64) map[Kind]*Manifest {
	out := map[Kind]*Manifest{}
	for _, kind := range Kinds {
		m, err := s.Load(kind, id)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				s.Log.Warn().Err(err).Int64("attachment", id).Str("kind", string(kind)).Msg("skipping unreadable backup")
			}
			continue
		}
		out[kind] = m
	}
	return out
}

// Save writes the manifest into its directory. Callers copy files first and
// save last, so a crash mid-copy never leaves a manifest pointing at missing
// files.
func (s *Store) Save(m *Manifest) error {
	dir := s.Dir(m.Kind, m.AttachmentID)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o640)
}

// Delete removes the whole backup directory for (kind, id).
func (s *Store) Delete(kind Kind, id int64) error {
	return os.RemoveAll(s.Dir(kind, id))
}

// Entry summarizes one backup directory for listings.
type Entry struct {
	Kind         Kind
	AttachmentID int64
	CreatedAt    time.Time
	SizeBytes    int64
	Files        int
}

// List walks the backup root and summarizes every valid backup.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	appendEntry := func(kind Kind, id int64) {
		m, err := s.Load(kind, id)
		if err != nil {
			return
		}
		e := Entry{Kind: kind, AttachmentID: id, CreatedAt: m.CreatedAt}
		dir := s.Dir(kind, id)
		items, err := os.ReadDir(dir)
		if err != nil {
			return
		}
		for _, item := range items {
			info, err := item.Info()
			if err != nil || item.IsDir() {
				continue
			}
			e.Files++
			e.SizeBytes += info.Size()
		}
		entries = append(entries, e)
	}

	top, err := os.ReadDir(s.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, d := range top {
		if !d.IsDir() {
			continue
		}
		if id, err := strconv.ParseInt(d.Name(), 10, 64); err == nil {
			appendEntry(KindLegacy, id)
			continue
		}
		kind, err := ParseKind(d.Name())
		if err != nil {
			continue
		}
		sub, err := os.ReadDir(filepath.Join(s.Root, d.Name()))
		if err != nil {
			continue
		}
		for _, a := range sub {
			if id, err := strconv.ParseInt(a.Name(), 10, 64); err == nil {
				appendEntry(kind, id)
			}
		}
	}
	return entries, nil
}
