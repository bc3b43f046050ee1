package region

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marmos91/regionstore/internal/logger"
)

// ExternalPath returns the sidecar path used for an oversized payload in the
// given slot. It returns "" when the file has no region coordinate.
func (f *File) ExternalPath(slot int) string {
	if !f.hasPos {
		return ""
	}
	return filepath.Join(f.dir, externalFileName(f.opts.Chunk(f.pos, slot), f.opts.Extension))
}

// stageExternal writes compressed bytes next to the slot's sidecar and
// returns the temporary path. The sidecar itself is untouched until
// commitExternal renames the staged file over it.
func (f *File) stageExternal(slot int, compressed []byte) (string, error) {
	tmp := f.ExternalPath(slot) + ".tmp"

	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("write external payload: %w", err)
	}
	if f.opts.SyncWrites {
		if err := syncPath(tmp); err != nil {
			_ = os.Remove(tmp)
			return "", fmt.Errorf("sync external payload: %w", err)
		}
	}
	return tmp, nil
}

// commitExternal moves a staged payload into the slot's sidecar.
func (f *File) commitExternal(slot int, tmp string) error {
	path := f.ExternalPath(slot)
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename external payload: %w", err)
	}
	logger.Debug("External payload written", logger.KeyPath, path, logger.KeySlot, slot)
	return nil
}

// discardStaged removes a staged payload that will not be committed.
func discardStaged(tmp string) {
	if tmp == "" {
		return
	}
	if err := os.Remove(tmp); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove staged external payload", logger.KeyPath, tmp, logger.KeyError, err)
	}
}

func (f *File) readExternal(slot int) ([]byte, error) {
	path := f.ExternalPath(slot)
	if path == "" {
		return nil, f.corruptPayload(slot, "external payload flag set but file has no region coordinate")
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, f.corruptPayload(slot, "external payload %s is missing", filepath.Base(path))
	}
	if err != nil {
		return nil, fmt.Errorf("read external payload: %w", err)
	}
	return data, nil
}

// removeExternal deletes a sidecar that no header entry references any more.
func (f *File) removeExternal(slot int) {
	path := f.ExternalPath(slot)
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("Failed to remove external payload", logger.KeyPath, path, logger.KeyError, err)
	}
}

func syncPath(path string) error {
	fh, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	err = syncHandle(fh)
	if cerr := fh.Close(); err == nil {
		err = cerr
	}
	return err
}
