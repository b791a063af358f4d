// internal/repository/file/snapshot_file.go
package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"p2p-lending/internal/domain"
	"p2p-lending/internal/repository"
	"p2p-lending/internal/util"
)

// SnapshotBackend stores the snapshot as one JSON document on disk.
// Writes go to a temporary file in the same directory that is renamed over the document,
// so readers always see either the old or the new snapshot in full.
// The exclusion it provides is per process; run a single writer process per document.
type SnapshotBackend struct {
	path string
	mu   sync.Mutex
}

// NewSnapshotBackend creates a backend for the document at path, creating its directory.
func NewSnapshotBackend(path string) (repository.SnapshotBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("file snapshot backend: empty path")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("file snapshot backend: failed to create directory %s: %w", dir, err)
		}
	}
	return &SnapshotBackend{path: path}, nil
}

// Read parses the document, returning util.ErrNotFound when it does not exist.
func (b *SnapshotBackend) Read(ctx context.Context) (*domain.Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot %s: %w", b.path, err)
	}
	snap, err := repository.DecodeSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", b.path, err)
	}
	return snap, nil
}

// Update reads the document, applies fn and replaces the document with the result.
func (b *SnapshotBackend) Update(ctx context.Context, fn repository.UpdateFunc) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.Read(ctx)
	if err != nil && !errors.Is(err, util.ErrNotFound) {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := repository.EncodeSnapshot(next)
	if err != nil {
		return err
	}
	return b.replace(data)
}

func (b *SnapshotBackend) replace(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temporary snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync temporary snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temporary snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		return fmt.Errorf("failed to replace snapshot %s: %w", b.path, err)
	}
	return nil
}

// Close is a no-op; the document is closed after every write.
func (b *SnapshotBackend) Close() error {
	return nil
}
