package archive

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// Options bound an extraction.
type Options struct {
	// MaxBytes caps the compressed archive size. Zero disables the check.
	MaxBytes int64
	// MaxExpandedBytes caps the total uncompressed size. Zero means ten
	// times MaxBytes.
	MaxExpandedBytes int64
	// TempDir is the parent of the workspace directory; "" uses os.TempDir.
	TempDir string
	Logger  *slog.Logger
}

func (o Options) expandedLimit() int64 {
	if o.MaxExpandedBytes > 0 {
		return o.MaxExpandedBytes
	}
	if o.MaxBytes > 0 {
		return o.MaxBytes * 10
	}
	return 0
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Workspace is a temporary directory holding one extracted archive. It is
// owned by a single run and must be closed when the run ends.
type Workspace struct {
	root string
	tree FileTree
	once sync.Once
	err  error
}

// Root returns the workspace directory.
func (w *Workspace) Root() string { return w.root }

// Tree returns the extracted file listing.
func (w *Workspace) Tree() FileTree { return w.tree }

// Close removes the workspace directory. It is safe to call more than once.
func (w *Workspace) Close() error {
	w.once.Do(func() {
		w.err = os.RemoveAll(w.root)
	})
	return w.err
}

// ExtractFile reads the archive at path and extracts it. The size limit is
// checked against the file's stat before it is read.
func ExtractFile(ctx context.Context, filename string, opts Options) (*Workspace, error) {
	info, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("archive: stat %s: %w", filename, err)
	}
	if opts.MaxBytes > 0 && info.Size() > opts.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %s, limit is %s",
			ErrSizeExceeded, filepath.Base(filename), humanBytes(info.Size()), humanBytes(opts.MaxBytes))
	}
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", filename, err)
	}
	return Extract(ctx, filepath.Base(filename), data, opts)
}

// Extract unpacks data into a fresh temporary directory. The container is
// identified by its magic bytes, falling back to the declared name. Every
// entry path is validated before anything is written; an entry that would
// land outside the root fails the whole extraction with ErrUnsafeArchive.
func Extract(ctx context.Context, name string, data []byte, opts Options) (*Workspace, error) {
	if opts.MaxBytes > 0 && int64(len(data)) > opts.MaxBytes {
		return nil, fmt.Errorf("%w: %s is %s, limit is %s",
			ErrSizeExceeded, name, humanBytes(int64(len(data))), humanBytes(opts.MaxBytes))
	}

	format := DetectFormat(data)
	if format == FormatUnknown {
		format = FormatFromName(name)
	}
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
	}

	dir, err := os.MkdirTemp(opts.TempDir, "project2article-*")
	if err != nil {
		return nil, fmt.Errorf("archive: create workspace: %w", err)
	}
	ws := &Workspace{root: dir}

	switch format {
	case FormatZip:
		err = extractZip(ctx, data, dir, opts)
	case FormatTarGz:
		err = extractTarGz(ctx, data, dir, opts)
	}
	if err != nil {
		_ = ws.Close()
		return nil, err
	}

	tree, err := buildTree(dir)
	if err != nil {
		_ = ws.Close()
		return nil, err
	}
	ws.tree = tree
	opts.logger().Debug("archive extracted",
		"name", name, "format", format.String(), "files", tree.FileCount(), "root", dir)
	return ws, nil
}

// ---------------------------------------------------------------------------
// ZIP
// ---------------------------------------------------------------------------

func extractZip(ctx context.Context, data []byte, root string, opts Options) error {
	// A reader returned alongside an insecure-path error is still usable;
	// safeJoin reports those entries below.
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil && zr == nil {
		return fmt.Errorf("%w: zip: %v", ErrUnsupportedFormat, err)
	}

	limit := opts.expandedLimit()
	var declared uint64
	for _, f := range zr.File {
		if _, err := safeJoin(root, f.Name); err != nil {
			return err
		}
		declared += f.UncompressedSize64
	}
	if limit > 0 && declared > uint64(limit) {
		return fmt.Errorf("%w: expands to %s, limit is %s",
			ErrSizeExceeded, humanBytes(int64(declared)), humanBytes(limit))
	}

	budget := newBudget(limit)
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, _ := safeJoin(root, f.Name)
		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", f.Name, err)
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return fmt.Errorf("archive: open %s: %w", f.Name, err)
			}
			err = writeFile(target, rc, budget)
			rc.Close()
			if err != nil {
				return err
			}
		default:
			opts.logger().Debug("skipping non-regular zip entry", "entry", f.Name, "mode", mode.String())
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// TAR.GZ
// ---------------------------------------------------------------------------

func extractTarGz(ctx context.Context, data []byte, root string, opts Options) error {
	// First pass validates every header so an unsafe entry late in the
	// stream cannot follow files that were already written.
	if err := walkTar(data, func(hdr *tar.Header, _ io.Reader) error {
		_, err := safeJoin(root, hdr.Name)
		return err
	}); err != nil {
		return err
	}

	budget := newBudget(opts.expandedLimit())
	return walkTar(data, func(hdr *tar.Header, r io.Reader) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, _ := safeJoin(root, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("archive: mkdir %s: %w", hdr.Name, err)
			}
		case tar.TypeReg:
			return writeFile(target, r, budget)
		default:
			opts.logger().Debug("skipping non-regular tar entry", "entry", hdr.Name, "type", string(hdr.Typeflag))
		}
		return nil
	})
}

func walkTar(data []byte, fn func(*tar.Header, io.Reader) error) error {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: gzip: %v", ErrUnsupportedFormat, err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil && hdr == nil {
			return fmt.Errorf("%w: tar: %v", ErrUnsupportedFormat, err)
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		if err := fn(hdr, tr); err != nil {
			return err
		}
	}
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// safeJoin resolves an archive entry name under root. Absolute names, drive
// letters and names that climb above root are rejected.
func safeJoin(root, name string) (string, error) {
	slashed := strings.ReplaceAll(name, "\\", "/")
	if slashed == "" || path.IsAbs(slashed) || filepath.IsAbs(name) || hasDriveLetter(slashed) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchive, name)
	}
	cleaned := path.Clean(slashed)
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchive, name)
	}
	target := filepath.Join(root, filepath.FromSlash(cleaned))
	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchive, name)
	}
	return target, nil
}

func hasDriveLetter(p string) bool {
	return len(p) >= 2 && p[1] == ':' &&
		((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}

// budget tracks how many uncompressed bytes may still be written.
type budget struct {
	remaining int64
	unlimited bool
}

func newBudget(limit int64) *budget {
	return &budget{remaining: limit, unlimited: limit <= 0}
}

func writeFile(target string, r io.Reader, b *budget) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", filepath.Dir(target), err)
	}
	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("archive: create %s: %w", target, err)
	}
	defer f.Close()

	if b.unlimited {
		if _, err := io.Copy(f, r); err != nil {
			return fmt.Errorf("archive: write %s: %w", target, err)
		}
		return nil
	}
	n, err := io.Copy(f, io.LimitReader(r, b.remaining+1))
	if err != nil {
		return fmt.Errorf("archive: write %s: %w", target, err)
	}
	b.remaining -= n
	if b.remaining < 0 {
		return fmt.Errorf("%w: uncompressed contents exceed the limit", ErrSizeExceeded)
	}
	return nil
}

// buildTree lists root depth-first with entries in lexical order per
// directory.
func buildTree(root string) (FileTree, error) {
	tree := FileTree{Root: root}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		e := Entry{Path: filepath.ToSlash(rel), IsDir: d.IsDir()}
		if !d.IsDir() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			e.Size = info.Size()
		}
		tree.Entries = append(tree.Entries, e)
		return nil
	})
	if err != nil {
		return FileTree{}, fmt.Errorf("archive: list workspace: %w", err)
	}
	return tree, nil
}
