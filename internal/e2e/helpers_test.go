//go:build e2e

package e2e

import (
	"archive/tar"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"github.com/Gmabatah93/Project2Article/internal/codeindex"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
)

// fixtureDir is the Go project every e2e test archives.
func fixtureDir() string {
	return filepath.Join("..", "..", "testdata", "fixtures", "go_project")
}

// fixtureArchive packs the fixture project, plus a README and go.mod, into
// a tar.gz under a top-level "go_project/" directory.
func fixtureArchive(t *testing.T) []byte {
	t.Helper()
	files := map[string][]byte{
		"go_project/README.md": []byte("# go_project\n\nA small user service used as an end-to-end fixture.\n\n## Usage\n\nCall `NewService` with a repository.\n"),
		"go_project/go.mod":    []byte("module example.com/go_project\n\ngo 1.22\n"),
	}
	entries, err := os.ReadDir(fixtureDir())
	require.NoError(t, err)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(fixtureDir(), e.Name()))
		require.NoError(t, err)
		files["go_project/"+e.Name()] = data
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, data := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0o644, Size: int64(len(data)), Typeflag: tar.TypeReg}))
		_, err := tw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

// treeSitterOutliner opens an in-memory symbol index per run.
func treeSitterOutliner(ctx context.Context, _ string) (pipeline.OutlinerCloser, error) {
	return codeindex.Open(ctx, "memory", "", nil)
}

// evilZip holds one entry that climbs out of the extraction root.
func evilZip(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("../../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("gotcha"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}
