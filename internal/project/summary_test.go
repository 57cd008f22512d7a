package project

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree materializes files under a temp dir and returns the FileTree the
// extractor would have produced for it.
func writeTree(t *testing.T, files map[string]string) archive.FileTree {
	t.Helper()
	root := t.TempDir()
	for p, body := range files {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
	}
	tree := archive.FileTree{Root: root}
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		require.NoError(t, err)
		if p == root {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		e := archive.Entry{Path: filepath.ToSlash(rel), IsDir: d.IsDir()}
		if !d.IsDir() {
			info, _ := d.Info()
			e.Size = info.Size()
		}
		tree.Entries = append(tree.Entries, e)
		return nil
	})
	require.NoError(t, err)
	return tree
}

func fileByPath(s *Summary, p string) (File, bool) {
	for _, f := range s.Files {
		if f.Path == p {
			return f, true
		}
	}
	return File{}, false
}

// ---------------------------------------------------------------------------
// Classification rules
// ---------------------------------------------------------------------------

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		want Category
	}{
		{"README.md", CategoryReadme},
		{"docs/readme.txt", CategoryReadme},
		{"Readme", CategoryReadme},
		{"readme.json", CategoryReadme}, // README wins over config
		{"config.yaml", CategoryConfig},
		{"settings.TOML", CategoryConfig},
		{".env", CategoryConfig},
		{"package.json", CategoryConfig},
		{"requirements.txt", CategoryConfig},
		{"setup.py", CategoryConfig}, // manifest wins over code
		{"Cargo.toml", CategoryConfig},
		{"go.mod", CategoryConfig},
		{"Dockerfile", CategoryConfig},
		{"src/main.py", CategoryCode},
		{"web/app.tsx", CategoryCode},
		{"schema.sql", CategoryCode},
		{"LICENSE", CategoryOther},
		{"logo.png", CategoryOther},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, Classify(tc.name), tc.name)
	}
}

func TestIgnored(t *testing.T) {
	assert.True(t, Ignored(".git/config"))
	assert.True(t, Ignored("src/__pycache__/x.cpython-311.pyc"))
	assert.True(t, Ignored("web/node_modules/react/index.js"))
	assert.True(t, Ignored("venv"))
	assert.True(t, Ignored("pkg/module.pyc"))
	assert.False(t, Ignored("src/environment.py"))
	assert.False(t, Ignored("envoy/config.yaml"))
}

// ---------------------------------------------------------------------------
// ClassifyTree
// ---------------------------------------------------------------------------

func TestClassifyTree_ReadmeAndMain(t *testing.T) {
	tree := writeTree(t, map[string]string{
		"README.md": "# Demo\nA small demo project.\n",
		"main.py":   "print('hello')\n",
	})

	sum, err := ClassifyTree(context.Background(), tree, DepthOverview, Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, sum.TotalFiles())
	assert.Equal(t, 1, sum.Count(CategoryReadme))
	assert.Equal(t, 1, sum.Count(CategoryCode))
	assert.Equal(t, 0, sum.Count(CategoryConfig))
	assert.Equal(t, 0, sum.Count(CategoryOther))

	readme, ok := sum.Readme()
	require.True(t, ok)
	assert.Contains(t, readme.Excerpt, "A small demo project.")

	main, ok := fileByPath(sum, "main.py")
	require.True(t, ok)
	assert.Equal(t, "print('hello')\n", main.Excerpt, "top-level files are excerpted in overview")

	assert.Equal(t, "README.md\nmain.py", sum.TreeText)
}

func TestClassifyTree_OverviewSkipsNestedCode(t *testing.T) {
	tree := writeTree(t, map[string]string{
		"README.md":        "# Demo\n",
		"src/app.py":       "def run():\n    pass\n",
		"docs/README.md":   "nested readme\n",
		"config/base.yaml": "a: 1\n",
	})

	sum, err := ClassifyTree(context.Background(), tree, DepthOverview, Options{})
	require.NoError(t, err)

	app, _ := fileByPath(sum, "src/app.py")
	assert.Empty(t, app.Excerpt)
	cfg, _ := fileByPath(sum, "config/base.yaml")
	assert.Empty(t, cfg.Excerpt)
	nested, _ := fileByPath(sum, "docs/README.md")
	assert.Equal(t, "nested readme\n", nested.Excerpt, "READMEs are read at any depth")

	readme, ok := sum.Readme()
	require.True(t, ok)
	assert.Equal(t, "README.md", readme.Path, "the shallowest README wins")
	assert.Equal(t, 4, sum.TotalFiles())
}

type stubOutliner struct {
	calls []string
	err   error
}

func (s *stubOutliner) Outline(_ context.Context, path string, _ []byte, _ int) (string, error) {
	s.calls = append(s.calls, path)
	if s.err != nil {
		return "", s.err
	}
	return "- function run", nil
}

func TestClassifyTree_DetailedReadsCodeAndOutlines(t *testing.T) {
	tree := writeTree(t, map[string]string{
		"src/app.py":       "def run():\n    pass\n",
		"config/base.yaml": "a: 1\n",
		"assets/notes.txt": "misc\n",
	})
	ol := &stubOutliner{}

	sum, err := ClassifyTree(context.Background(), tree, DepthDetailed, Options{Outliner: ol})
	require.NoError(t, err)

	app, _ := fileByPath(sum, "src/app.py")
	assert.Contains(t, app.Excerpt, "def run")
	assert.Equal(t, "- function run", app.Outline)
	cfg, _ := fileByPath(sum, "config/base.yaml")
	assert.Equal(t, "a: 1\n", cfg.Excerpt)
	notes, _ := fileByPath(sum, "assets/notes.txt")
	assert.Empty(t, notes.Excerpt, "nested other files are never excerpted")
	assert.Equal(t, []string{"src/app.py"}, ol.calls)
}

func TestClassifyTree_OutlineErrorIsNotFatal(t *testing.T) {
	tree := writeTree(t, map[string]string{"main.go": "package main\n"})
	sum, err := ClassifyTree(context.Background(), tree, DepthDetailed, Options{Outliner: &stubOutliner{err: errors.New("boom")}})
	require.NoError(t, err)
	f, _ := fileByPath(sum, "main.go")
	assert.NotEmpty(t, f.Excerpt)
	assert.Empty(t, f.Outline)
	require.Len(t, sum.Problems, 1)
	assert.Contains(t, sum.Problems[0], "main.go: symbol outline failed: boom")
}

func TestClassifyTree_UnreadableFileIsReported(t *testing.T) {
	tree := writeTree(t, map[string]string{"README.md": "hello"})
	tree.Entries = append(tree.Entries, archive.Entry{Path: "gone.py", Size: 3})

	sum, err := ClassifyTree(context.Background(), tree, DepthOverview, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Count(CategoryCode), "still counted")
	f, ok := fileByPath(sum, "gone.py")
	require.True(t, ok)
	assert.Empty(t, f.Excerpt)
	require.Len(t, sum.Problems, 1)
	assert.Contains(t, sum.Problems[0], "gone.py: excerpt unavailable")
}

func TestClassifyTree_ExcerptCap(t *testing.T) {
	long := strings.Repeat("é", 50)
	tree := writeTree(t, map[string]string{"README.md": long})

	sum, err := ClassifyTree(context.Background(), tree, DepthOverview, Options{MaxExcerpt: 10})
	require.NoError(t, err)

	readme, ok := sum.Readme()
	require.True(t, ok)
	assert.True(t, readme.Truncated)
	assert.Equal(t, strings.Repeat("é", 10)+"\n...", readme.Excerpt)
}

func TestClassifyTree_BinarySkipped(t *testing.T) {
	tree := writeTree(t, map[string]string{"logo.png": "\x89PNG\x00\x00binary"})
	sum, err := ClassifyTree(context.Background(), tree, DepthDetailed, Options{})
	require.NoError(t, err)
	f, ok := fileByPath(sum, "logo.png")
	require.True(t, ok)
	assert.Empty(t, f.Excerpt)
	assert.Equal(t, 1, sum.Count(CategoryOther))
	assert.Equal(t, 1, sum.Extensions[".png"])
}

func TestClassifyTree_IgnoresPatterns(t *testing.T) {
	tree := writeTree(t, map[string]string{
		"main.py":                   "x = 1\n",
		".git/HEAD":                 "ref: main\n",
		"__pycache__/main.pyc":      "\x00",
		"node_modules/lib/index.js": "module.exports = {}\n",
	})
	sum, err := ClassifyTree(context.Background(), tree, DepthDetailed, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalFiles())
	assert.Equal(t, "main.py", sum.TreeText)
	assert.Empty(t, sum.Directories)
}

func TestClassifyTree_Cancelled(t *testing.T) {
	tree := writeTree(t, map[string]string{"main.py": "x"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ClassifyTree(ctx, tree, DepthOverview, Options{})
	require.ErrorIs(t, err, context.Canceled)
}

// ---------------------------------------------------------------------------
// Tree rendering
// ---------------------------------------------------------------------------

func TestRenderTree(t *testing.T) {
	entries := []archive.Entry{
		{Path: "README.md"},
		{Path: "src", IsDir: true},
		{Path: "src/main.py"},
		{Path: "src/util", IsDir: true},
		{Path: "src/util/helpers.py"},
		{Path: "tests/test_main.py"}, // parent directory implied
		{Path: "empty", IsDir: true},
	}
	want := strings.Join([]string{
		"empty/",
		"src/",
		"  util/",
		"    helpers.py",
		"  main.py",
		"tests/",
		"  test_main.py",
		"README.md",
	}, "\n")
	assert.Equal(t, want, RenderTree(entries))
}

func TestSummary_TopExtensions(t *testing.T) {
	s := &Summary{Extensions: map[string]int{".py": 3, ".md": 1, ".go": 3, ".yaml": 2}}
	assert.Equal(t, []string{".go", ".py", ".yaml"}, s.TopExtensions(3))
}

func TestParseDepth(t *testing.T) {
	d, err := ParseDepth("Detailed")
	require.NoError(t, err)
	assert.Equal(t, DepthDetailed, d)
	d, err = ParseDepth("")
	require.NoError(t, err)
	assert.Equal(t, DepthOverview, d)
	_, err = ParseDepth("deep")
	require.Error(t, err)
}
