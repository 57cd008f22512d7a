// Package project classifies the files of an extracted archive and builds
// the read-only summary the article stages work from.
package project

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Gmabatah93/Project2Article/internal/archive"
)

// Depth controls how much file content the classifier reads.
type Depth int

const (
	DepthOverview Depth = iota
	DepthDetailed
)

func (d Depth) String() string {
	if d == DepthDetailed {
		return "detailed"
	}
	return "overview"
}

// Label is the human-readable name used in prompts and footers.
func (d Depth) Label() string {
	if d == DepthDetailed {
		return "Detailed"
	}
	return "Overview"
}

// MarshalText renders the depth name in JSON output.
func (d Depth) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// ParseDepth accepts "overview" or "detailed" in any case.
func ParseDepth(s string) (Depth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "overview":
		return DepthOverview, nil
	case "detailed", "detail":
		return DepthDetailed, nil
	default:
		return DepthOverview, fmt.Errorf("project: unknown analysis depth %q", s)
	}
}

const (
	defaultMaxExcerpt = 4000
	sniffBytes        = 8 << 10
	maxReadBytes      = 1 << 20
	truncationMarker  = "\n..."
)

// Outliner renders a symbol outline for a source file. An empty result
// means the language is not supported.
type Outliner interface {
	Outline(ctx context.Context, path string, source []byte, max int) (string, error)
}

// Options tune classification.
type Options struct {
	// MaxExcerpt caps excerpt length in characters. Zero means 4000.
	MaxExcerpt int
	// Outliner, when set, adds symbol outlines to code files in detailed
	// depth.
	Outliner Outliner
	// MaxOutlineSymbols caps outline length; zero means 40.
	MaxOutlineSymbols int
	Logger            *slog.Logger
}

// File describes one classified file.
type File struct {
	Path      string   `json:"path"`
	Category  Category `json:"category"`
	Size      int64    `json:"size"`
	Excerpt   string   `json:"excerpt,omitempty"`
	Truncated bool     `json:"truncated,omitempty"`
	Outline   string   `json:"outline,omitempty"`
}

// Depth returns how many directories sit above the file.
func (f File) Depth() int { return strings.Count(f.Path, "/") }

// Summary is the immutable result of classification.
type Summary struct {
	Depth       Depth            `json:"depth"`
	Files       []File           `json:"files"`
	Directories []string         `json:"directories"`
	Counts      map[Category]int `json:"counts"`
	Extensions  map[string]int   `json:"extensions"`
	TreeText    string           `json:"treeText"`
	TotalSize   int64            `json:"totalSize"`
	// Problems lists files whose excerpt or outline was skipped after an
	// error. Classification still succeeds.
	Problems []string `json:"problems,omitempty"`
}

// Count returns the number of files in c.
func (s *Summary) Count(c Category) int { return s.Counts[c] }

// TotalFiles returns the number of classified files.
func (s *Summary) TotalFiles() int { return len(s.Files) }

// ByCategory returns the files in c, in tree order.
func (s *Summary) ByCategory(c Category) []File {
	var out []File
	for _, f := range s.Files {
		if f.Category == c {
			out = append(out, f)
		}
	}
	return out
}

// Readme returns the shallowest README that has an excerpt.
func (s *Summary) Readme() (File, bool) {
	var best File
	found := false
	for _, f := range s.Files {
		if f.Category != CategoryReadme || f.Excerpt == "" {
			continue
		}
		if !found || f.Depth() < best.Depth() {
			best, found = f, true
		}
	}
	return best, found
}

// TopExtensions returns up to n extensions ordered by count, then name.
func (s *Summary) TopExtensions(n int) []string {
	exts := make([]string, 0, len(s.Extensions))
	for e := range s.Extensions {
		exts = append(exts, e)
	}
	sort.Slice(exts, func(i, j int) bool {
		if s.Extensions[exts[i]] != s.Extensions[exts[j]] {
			return s.Extensions[exts[i]] > s.Extensions[exts[j]]
		}
		return exts[i] < exts[j]
	})
	if n > 0 && len(exts) > n {
		exts = exts[:n]
	}
	return exts
}

// ClassifyTree walks an extracted tree, skipping ignored paths, and builds
// a Summary. Every file is counted; excerpts follow the depth rules: README
// and top-level files always, config and code files only in detailed depth.
func ClassifyTree(ctx context.Context, tree archive.FileTree, depth Depth, opts Options) (*Summary, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxExcerpt := opts.MaxExcerpt
	if maxExcerpt <= 0 {
		maxExcerpt = defaultMaxExcerpt
	}
	maxSymbols := opts.MaxOutlineSymbols
	if maxSymbols <= 0 {
		maxSymbols = 40
	}

	sum := &Summary{
		Depth:      depth,
		Counts:     make(map[Category]int, len(Categories)),
		Extensions: make(map[string]int),
	}
	for _, c := range Categories {
		sum.Counts[c] = 0
	}

	var kept []archive.Entry
	for _, e := range tree.Entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if Ignored(e.Path) {
			continue
		}
		kept = append(kept, e)
		if e.IsDir {
			sum.Directories = append(sum.Directories, e.Path)
			continue
		}

		f := File{Path: e.Path, Category: Classify(e.Path), Size: e.Size}
		sum.Counts[f.Category]++
		sum.TotalSize += e.Size
		if ext := strings.ToLower(path.Ext(e.Path)); ext != "" {
			sum.Extensions[ext]++
		}

		if wantExcerpt(f, depth) {
			full := filepath.Join(tree.Root, filepath.FromSlash(e.Path))
			src, err := readText(full)
			switch {
			case errors.Is(err, errBinary):
			case err != nil:
				logger.Warn("could not read file for excerpt", "path", e.Path, "error", err)
				sum.Problems = append(sum.Problems, fmt.Sprintf("%s: excerpt unavailable: %v", e.Path, err))
			default:
				f.Excerpt, f.Truncated = excerpt(src, maxExcerpt)
				if depth == DepthDetailed && f.Category == CategoryCode && opts.Outliner != nil {
					outline, err := opts.Outliner.Outline(ctx, e.Path, src, maxSymbols)
					if err != nil {
						logger.Warn("symbol outline failed", "path", e.Path, "error", err)
						sum.Problems = append(sum.Problems, fmt.Sprintf("%s: symbol outline failed: %v", e.Path, err))
					}
					f.Outline = outline
				}
			}
		}
		sum.Files = append(sum.Files, f)
	}

	sum.TreeText = RenderTree(kept)
	logger.Debug("project classified",
		"files", len(sum.Files),
		"readme", sum.Counts[CategoryReadme],
		"config", sum.Counts[CategoryConfig],
		"code", sum.Counts[CategoryCode],
		"other", sum.Counts[CategoryOther],
		"depth", depth.String())
	return sum, nil
}

func wantExcerpt(f File, depth Depth) bool {
	if f.Category == CategoryReadme || f.Depth() == 0 {
		return true
	}
	return depth == DepthDetailed && (f.Category == CategoryConfig || f.Category == CategoryCode)
}

var errBinary = errors.New("binary file")

// readText reads up to maxReadBytes of a file, rejecting content with a
// NUL byte in its first 8 KiB.
func readText(name string) ([]byte, error) {
	fh, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	data, err := io.ReadAll(io.LimitReader(fh, maxReadBytes))
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > sniffBytes {
		head = head[:sniffBytes]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, errBinary
	}
	return data, nil
}

// excerpt returns at most max characters of valid UTF-8 text, with a
// trailing marker when cut.
func excerpt(src []byte, max int) (string, bool) {
	text := strings.ToValidUTF8(string(src), "�")
	if utf8.RuneCountInString(text) <= max {
		return text, false
	}
	n := 0
	for i := range text {
		if n == max {
			return text[:i] + truncationMarker, true
		}
		n++
	}
	return text, false
}
