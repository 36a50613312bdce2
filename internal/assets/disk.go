package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore keeps every asset as one file in a flat directory. The file name
// is the asset id; there is no sidecar metadata.
//
// Writes go to a hidden temp file in the same directory and are renamed into
// place, so a failed upload never leaves a partial file under its id.
// Lookups and removals go through os.Root and cannot escape the directory.
type DiskStore struct {
	dir   string
	namer Namer
}

// NewDiskStore returns a store rooted at dir. A nil namer means timestamp ids.
func NewDiskStore(dir string, namer Namer) *DiskStore {
	if namer == nil {
		namer = TimestampNamer{}
	}
	return &DiskStore{dir: dir, namer: namer}
}

// Dir returns the backing directory.
func (s *DiskStore) Dir() string { return s.dir }

func (s *DiskStore) Initialize(ctx context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	info, err := os.Stat(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, s.dir)
	}
	return nil
}

func (s *DiskStore) Put(ctx context.Context, payload []byte, originalName string) (Asset, error) {
	if len(payload) == 0 {
		return Asset{}, ErrNoPayload
	}
	id := s.namer.Name(originalName)
	if err := ValidateID(id); err != nil {
		return Asset{}, fmt.Errorf("%w: generated %w", ErrWriteFailed, err)
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return Asset{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	tmpName := tmp.Name()
	fail := func(err error) (Asset, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return Asset{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	if _, err := tmp.Write(payload); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, id)); err != nil {
		_ = os.Remove(tmpName)
		return Asset{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return newAsset(id, int64(len(payload))), nil
}

func (s *DiskStore) List(ctx context.Context) ([]Asset, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	out := make([]Asset, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempPrefix) {
			continue
		}
		var size int64
		if info, err := e.Info(); err == nil {
			size = info.Size()
		} else if errors.Is(err, fs.ErrNotExist) {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, newAsset(name, size))
	}
	return out, nil
}

func (s *DiskStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = root.Close() }()

	info, err := root.Lstat(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if info.IsDir() {
		return ErrNotFound
	}
	if err := root.Remove(id); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (s *DiskStore) Open(ctx context.Context, id string) (*Blob, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	root, err := os.OpenRoot(s.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer func() { _ = root.Close() }()

	f, err := root.Open(id)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &Blob{Body: f, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// SweepTemp removes temp files older than maxAge left behind by uploads that
// died between create and rename. It returns how many were removed.
func (s *DiskStore) SweepTemp(ctx context.Context, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, e := range entries {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if e.IsDir() || !strings.HasPrefix(e.Name(), tempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}
