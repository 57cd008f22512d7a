package mcptools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/codeindex"
	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/project"
	"github.com/Gmabatah93/Project2Article/internal/runstore"
)

// ArticleService handles MCP tool calls. Driver options are shared by
// every generate_article call.
type ArticleService struct {
	driver  *pipeline.Driver
	opts    pipeline.Options
	history *runstore.Store
	logger  *slog.Logger
}

// NewArticleService creates an ArticleService. history may be nil, in which
// case list_runs reports an error.
func NewArticleService(opts pipeline.Options, history *runstore.Store) *ArticleService {
	if history != nil {
		opts.Hooks = append(append([]pipeline.Hook(nil), opts.Hooks...), runstore.NewHook(history))
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleService{driver: pipeline.NewDriver(opts), opts: opts, history: history, logger: logger}
}

// readArchive loads and validates the archive at path.
func (s *ArticleService) readArchive(path string) (pipeline.Upload, error) {
	if path == "" {
		return pipeline.Upload{}, fmt.Errorf("archivePath is required")
	}
	info, err := os.Stat(path)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("cannot access archivePath: %w", err)
	}
	maxBytes := s.opts.Archive.MaxBytes
	if maxBytes <= 0 {
		maxBytes = archive.DefaultMaxBytes
	}
	if _, err := archive.ValidateUpload(filepath.Base(path), info.Size(), maxBytes); err != nil {
		return pipeline.Upload{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return pipeline.Upload{}, fmt.Errorf("read archive: %w", err)
	}
	return pipeline.Upload{Name: filepath.Base(path), Data: data}, nil
}

// ClassifyProject extracts an archive and reports how its files were
// classified, without calling a model.
func (s *ArticleService) ClassifyProject(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ClassifyProjectInput,
) (*mcp.CallToolResult, ClassifyProjectOutput, error) {
	depth, err := project.ParseDepth(input.Depth)
	if err != nil {
		return nil, ClassifyProjectOutput{}, err
	}
	up, err := s.readArchive(input.ArchivePath)
	if err != nil {
		return nil, ClassifyProjectOutput{}, err
	}
	ws, err := archive.Extract(ctx, up.Name, up.Data, s.opts.Archive)
	if err != nil {
		return nil, ClassifyProjectOutput{}, err
	}
	defer ws.Close()

	sum, err := project.ClassifyTree(ctx, ws.Tree(), depth, s.opts.Classify)
	if err != nil {
		return nil, ClassifyProjectOutput{}, fmt.Errorf("classify: %w", err)
	}

	out := ClassifyProjectOutput{
		Depth:         depth.String(),
		TotalFiles:    sum.TotalFiles(),
		TotalBytes:    sum.TotalSize,
		Readme:        sum.Count(project.CategoryReadme),
		Config:        sum.Count(project.CategoryConfig),
		Code:          sum.Count(project.CategoryCode),
		Other:         sum.Count(project.CategoryOther),
		TopExtensions: sum.TopExtensions(5),
		Tree:          sum.TreeText,
		Files:         make([]FileInfo, 0, len(sum.Files)),
	}
	for _, f := range sum.Files {
		out.Files = append(out.Files, FileInfo{Path: f.Path, Category: f.Category.String(), Size: f.Size})
	}
	return nil, out, nil
}

// GenerateArticle runs the full pipeline and returns the Markdown article.
func (s *ArticleService) GenerateArticle(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateArticleInput,
) (*mcp.CallToolResult, GenerateArticleOutput, error) {
	cfg, err := configFromInput(input)
	if err != nil {
		return nil, GenerateArticleOutput{}, err
	}
	up, err := s.readArchive(input.ArchivePath)
	if err != nil {
		return nil, GenerateArticleOutput{}, err
	}

	res, err := s.driver.Run(ctx, up, cfg)
	if err != nil {
		return nil, GenerateArticleOutput{}, err
	}

	out := GenerateArticleOutput{
		RunID:            res.RunID,
		Title:            res.Title(),
		Article:          res.Article,
		FallbackSections: res.FallbackSections(),
	}
	if o := res.State.Outline; o != nil {
		out.Sections = o.Headings()
	}
	for _, w := range res.Warnings {
		out.Warnings = append(out.Warnings, w.String())
	}
	return nil, out, nil
}

func configFromInput(in GenerateArticleInput) (article.Config, error) {
	var cfg article.Config
	var err error
	if cfg.Depth, err = project.ParseDepth(in.Depth); err != nil {
		return cfg, err
	}
	if cfg.Tone, err = article.ParseTone(in.Tone); err != nil {
		return cfg, err
	}
	if cfg.Audience, err = article.ParseAudience(in.Audience); err != nil {
		return cfg, err
	}
	p, ok := llm.ParseProvider(in.Provider)
	if !ok {
		return cfg, fmt.Errorf("unknown provider %q (choose one of: %s)", in.Provider, llm.ProviderChoices())
	}
	cfg.Provider = p
	cfg.Title = in.Title
	cfg.Model = in.Model
	return cfg, nil
}

// ListRuns returns the run history, newest first.
func (s *ArticleService) ListRuns(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListRunsInput,
) (*mcp.CallToolResult, ListRunsOutput, error) {
	if s.history == nil {
		return nil, ListRunsOutput{}, fmt.Errorf("run history is disabled")
	}
	runs, err := s.history.List(ctx, input.Limit)
	if err != nil {
		return nil, ListRunsOutput{}, err
	}
	if runs == nil {
		runs = []runstore.Record{}
	}
	return nil, ListRunsOutput{Runs: runs}, nil
}

// OutlineSource parses one source file with tree-sitter and lists its
// symbols.
func (s *ArticleService) OutlineSource(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input OutlineSourceInput,
) (*mcp.CallToolResult, OutlineSourceOutput, error) {
	if input.Path == "" {
		return nil, OutlineSourceOutput{}, fmt.Errorf("path is required")
	}
	limit := input.MaxSymbols
	if limit <= 0 {
		limit = 40
	}

	ix, err := codeindex.Open(ctx, "memory", "", s.logger)
	if err != nil {
		return nil, OutlineSourceOutput{}, err
	}
	defer ix.Close()

	lang, ok := codeindex.LanguageForPath(input.Path)
	if !ok {
		return nil, OutlineSourceOutput{Supported: languageNames(ix)}, nil
	}
	outline, err := ix.Outline(ctx, input.Path, []byte(input.Source), limit)
	if err != nil {
		return nil, OutlineSourceOutput{}, err
	}
	syms, err := ix.Store().FileSymbols(ctx, input.Path)
	if err != nil {
		return nil, OutlineSourceOutput{}, err
	}
	return nil, OutlineSourceOutput{Language: string(lang), Outline: outline, Symbols: syms}, nil
}

// maxIndexBytes caps the size of a single file indexed by search_symbols.
const maxIndexBytes = 1 << 20

// SearchSymbols indexes every supported source file of an archive and
// returns the symbols whose name contains the query.
func (s *ArticleService) SearchSymbols(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchSymbolsInput,
) (*mcp.CallToolResult, SearchSymbolsOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, SearchSymbolsOutput{}, fmt.Errorf("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	up, err := s.readArchive(input.ArchivePath)
	if err != nil {
		return nil, SearchSymbolsOutput{}, err
	}
	ws, err := archive.Extract(ctx, up.Name, up.Data, s.opts.Archive)
	if err != nil {
		return nil, SearchSymbolsOutput{}, err
	}
	defer ws.Close()

	ix, err := codeindex.Open(ctx, "memory", "", s.logger)
	if err != nil {
		return nil, SearchSymbolsOutput{}, err
	}
	defer ix.Close()

	var out SearchSymbolsOutput
	tree := ws.Tree()
	for _, e := range tree.Entries {
		if e.IsDir || project.Ignored(e.Path) {
			continue
		}
		if _, ok := codeindex.LanguageForPath(e.Path); !ok {
			continue
		}
		if e.Size > maxIndexBytes {
			out.Skipped = append(out.Skipped, fmt.Sprintf("%s: larger than %d bytes", e.Path, maxIndexBytes))
			continue
		}
		src, err := os.ReadFile(filepath.Join(tree.Root, filepath.FromSlash(e.Path)))
		if err == nil {
			_, _, err = ix.Add(ctx, e.Path, src)
		}
		if err != nil {
			s.logger.Warn("search_symbols skipped file", "path", e.Path, "error", err)
			out.Skipped = append(out.Skipped, fmt.Sprintf("%s: %v", e.Path, err))
		}
	}

	if out.Matches, err = ix.Store().Search(ctx, query, limit); err != nil {
		return nil, SearchSymbolsOutput{}, err
	}
	if out.Matches == nil {
		out.Matches = []codeindex.Symbol{}
	}
	if out.Indexed, err = ix.Store().Stats(ctx); err != nil {
		return nil, SearchSymbolsOutput{}, err
	}
	out.Languages = languageNames(ix)
	return nil, out, nil
}

func languageNames(ix *codeindex.Index) []string {
	langs := ix.Languages()
	out := make([]string, len(langs))
	for i, l := range langs {
		out[i] = string(l)
	}
	return out
}
