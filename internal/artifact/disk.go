package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// DiskStore writes artifacts under Dir/<runID>/<name>.
type DiskStore struct {
	Dir string
}

var _ Store = (*DiskStore)(nil)

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact: disk directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("artifact: create %s: %w", dir, err)
	}
	return &DiskStore{Dir: dir}, nil
}

func (s *DiskStore) file(runID, name string) (string, error) {
	runID, name, err := cleanKey(runID, name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Dir, runID, filepath.FromSlash(name)), nil
}

func (s *DiskStore) Put(ctx context.Context, runID, name string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.file(runID, name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("artifact: mkdir: %w", err)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("artifact: write %s: %w", name, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("artifact: rename %s: %w", name, err)
	}
	return nil
}

func (s *DiskStore) Get(_ context.Context, runID, name string) ([]byte, error) {
	p, err := s.file(runID, name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: read %s: %w", name, err)
	}
	return data, nil
}

func (s *DiskStore) List(_ context.Context, runID string) ([]string, error) {
	runID, _, err := cleanKey(runID, "x")
	if err != nil {
		return nil, err
	}
	root := filepath.Join(s.Dir, runID)
	var out []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) == ".tmp" {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("artifact: list %s: %w", runID, err)
	}
	sort.Strings(out)
	return out, nil
}

// GetURL returns a file:// URL for the artifact.
func (s *DiskStore) GetURL(_ context.Context, runID, name string) (string, error) {
	p, err := s.file(runID, name)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(abs); err != nil {
		return "", ErrNotFound
	}
	return "file://" + filepath.ToSlash(abs), nil
}
