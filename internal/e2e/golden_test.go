//go:build e2e

package e2e

import (
	"context"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/export"
	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

var update = flag.Bool("update", false, "update golden files")

// goldenDir returns the path to the testdata/golden directory.
func goldenDir() string {
	return filepath.Join("..", "..", "testdata", "golden")
}

// goldenFiles maps each golden file to the run output it captures.
var goldenFiles = []struct {
	golden string
	render func(res *pipeline.Result) string
}{
	{"article_overview.md", func(res *pipeline.Result) string { return res.Article }},
	{"structure.mmd", func(res *pipeline.Result) string { return export.StructureMermaid(res.State.Summary, 0) }},
}

// runForGolden runs the fixture offline with a fixed id and clock so the
// output is reproducible.
func runForGolden(t *testing.T) *pipeline.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	d := pipeline.NewDriver(pipeline.Options{
		NewRunID: func() string { return "golden-run" },
		Clock:    func() time.Time { return fixed },
	})
	res, err := d.Run(ctx, pipeline.Upload{Name: "go_project.tar.gz", Data: fixtureArchive(t)}, article.Config{
		Depth:    project.DepthOverview,
		Provider: llm.ProviderMock,
	})
	require.NoError(t, err)
	return res
}

// TestGolden compares the offline article against golden files. If golden
// files do not exist, the test is skipped with a message to run with -update.
func TestGolden(t *testing.T) {
	res := runForGolden(t)
	for _, g := range goldenFiles {
		t.Run(g.golden, func(t *testing.T) {
			golden, err := os.ReadFile(filepath.Join(goldenDir(), g.golden))
			if os.IsNotExist(err) {
				t.Skipf("golden file %s not found; run with -update to generate", g.golden)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, string(golden), g.render(res), "output does not match golden file %s", g.golden)
		})
	}
}

// TestUpdateGolden regenerates golden files from the current output.
// Run with: go test -tags e2e -run TestUpdateGolden ./internal/e2e/ -update
func TestUpdateGolden(t *testing.T) {
	if !*update {
		t.Skip("skipping golden file update; run with -update flag")
	}
	res := runForGolden(t)
	require.NoError(t, os.MkdirAll(goldenDir(), 0o755))
	for _, g := range goldenFiles {
		require.NoError(t, os.WriteFile(filepath.Join(goldenDir(), g.golden), []byte(g.render(res)), 0o644))
		t.Logf("updated %s", g.golden)
	}
}
