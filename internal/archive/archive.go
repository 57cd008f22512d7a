// Package archive validates uploaded project archives and unpacks them into
// a run-owned temporary directory.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Errors surfaced verbatim to the user before a pipeline run starts.
var (
	ErrSizeExceeded      = errors.New("archive exceeds the size limit")
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	ErrUnsafeArchive     = errors.New("archive contains an entry outside the extraction root")
)

// DefaultMaxBytes is the upload limit used when none is configured.
const DefaultMaxBytes = 20 << 20

// Format identifies a supported archive container.
type Format int

const (
	FormatUnknown Format = iota
	FormatZip
	FormatTarGz
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatTarGz:
		return "tar.gz"
	default:
		return "unknown"
	}
}

// FormatFromName maps a declared filename to a Format by its extension.
func FormatFromName(name string) Format {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZip
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGz
	default:
		return FormatUnknown
	}
}

var (
	zipMagic  = []byte("PK\x03\x04")
	zipEmpty  = []byte("PK\x05\x06")
	gzipMagic = []byte{0x1f, 0x8b}
)

// DetectFormat sniffs the leading bytes of an archive.
func DetectFormat(header []byte) Format {
	switch {
	case bytes.HasPrefix(header, zipMagic), bytes.HasPrefix(header, zipEmpty):
		return FormatZip
	case bytes.HasPrefix(header, gzipMagic):
		return FormatTarGz
	default:
		return FormatUnknown
	}
}

// ValidateUpload is the upload boundary check: it rejects oversize uploads
// before any byte is read and names without a supported extension.
func ValidateUpload(name string, size, maxBytes int64) (Format, error) {
	if maxBytes > 0 && size > maxBytes {
		return FormatUnknown, fmt.Errorf("%w: %s is %s, limit is %s",
			ErrSizeExceeded, name, humanBytes(size), humanBytes(maxBytes))
	}
	f := FormatFromName(name)
	if f == FormatUnknown {
		return FormatUnknown, fmt.Errorf("%w: %q (expected .zip, .tar.gz or .tgz)", ErrUnsupportedFormat, name)
	}
	return f, nil
}

// FileTree is the ordered listing of an extracted archive.
type FileTree struct {
	Root    string
	Entries []Entry
}

// Entry is one path in a FileTree. Path is relative to the root and uses
// forward slashes.
type Entry struct {
	Path  string `json:"path"`
	Size  int64  `json:"size"`
	IsDir bool   `json:"isDir"`
}

// Depth returns the number of directories above the entry; top-level
// entries have depth 0.
func (e Entry) Depth() int {
	return strings.Count(e.Path, "/")
}

// Name returns the final path element.
func (e Entry) Name() string {
	return path.Base(e.Path)
}

// FileCount returns the number of non-directory entries.
func (t FileTree) FileCount() int {
	n := 0
	for _, e := range t.Entries {
		if !e.IsDir {
			n++
		}
	}
	return n
}

// TotalSize sums the sizes of all file entries.
func (t FileTree) TotalSize() int64 {
	var n int64
	for _, e := range t.Entries {
		n += e.Size
	}
	return n
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
