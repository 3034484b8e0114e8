package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/picpilot/picpilot/internal/compress"
)

// StoredName appends the codec suffix to a stored filename.
func StoredName(base, codec string) string {
	return base + compress.Ext(codec)
}

// writeStored copies src into the backup tree, compressing per codec.
func writeStored(src, dst, codec string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return err
	}
	w, err := compress.WrapWriter(codec, out)
	if err != nil {
		_ = out.Close()
		return err
	}
	if _, err := io.Copy(w, in); err != nil {
		_ = out.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// RestoreFile copies a stored backup file to dst, decompressing per codec and
// creating parent directories. The copy goes through a temp file in the target
// directory and renames into place, so a crash never leaves a truncated dst.
func RestoreFile(src, dst, codec string) error {
	in, err := os.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: stored file %s", ErrNotFound, filepath.Base(src))
		}
		return err
	}
	defer in.Close()

	r, err := compress.WrapReader(codec, in)
	if err != nil {
		return err
	}
	defer r.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".picpilot-restore-*")
	if err != nil {
		return fmt.Errorf("target directory not writable: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o640); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}
