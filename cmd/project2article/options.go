package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/codeindex"
	"github.com/Gmabatah93/Project2Article/internal/config"
	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/project"
	"github.com/Gmabatah93/Project2Article/internal/runstore"
)

// env is what every command needs: the loaded config and a logger.
type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func loadEnv(c *cli.Context) (*env, error) {
	cfg, err := config.Load(c.String("config-dir"))
	if err != nil {
		return nil, err
	}
	level := slog.LevelWarn
	if c.Bool("verbose") || cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level}))
	return &env{cfg: cfg, logger: logger}, nil
}

// driverOptions maps the config onto pipeline options. Credentials fall back
// to the provider environment variables and detailed runs get a tree-sitter
// outliner.
func (e *env) driverOptions() pipeline.Options {
	cfg := e.cfg
	gw := llm.DefaultOptions()
	gw.CallTimeout = cfg.LLM.CallTimeout
	gw.Retries = cfg.RetryCount()
	if cfg.LLM.Temperature > 0 {
		gw.Temperature = cfg.LLM.Temperature
	}
	if cfg.LLM.MaxTokens > 0 {
		gw.MaxTokens = cfg.LLM.MaxTokens
	}
	return pipeline.Options{
		Archive:    archive.Options{MaxBytes: cfg.Upload.MaxBytes, Logger: e.logger},
		Classify:   project.Options{MaxExcerpt: cfg.Upload.MaxExcerpt, Logger: e.logger},
		Gateway:    gw,
		RunTimeout: cfg.LLM.RunTimeout,
		Credential: func(p llm.ProviderID, direct string) string {
			return cfg.Credential(string(p), direct)
		},
		DefaultModel: func(p llm.ProviderID) string {
			return cfg.Model(string(p))
		},
		OpenOutliner: e.openOutliner,
		Logger:       e.logger,
	}
}

// openOutliner opens a symbol index for one run. With a configured path
// each run gets its own database under it, removed again on Close.
func (e *env) openOutliner(ctx context.Context, runID string) (pipeline.OutlinerCloser, error) {
	path := e.cfg.CodeIndex.Path
	if path == "" {
		return codeindex.Open(ctx, e.cfg.CodeIndex.Backend, "", e.logger)
	}
	path = filepath.Join(path, runID)
	ix, err := codeindex.Open(ctx, e.cfg.CodeIndex.Backend, path, e.logger)
	if err != nil {
		_ = os.RemoveAll(path)
		return nil, err
	}
	return &scratchIndex{Index: ix, path: path}, nil
}

// scratchIndex is a per-run index whose on-disk database is deleted when
// the run closes it.
type scratchIndex struct {
	*codeindex.Index
	path string
}

func (s *scratchIndex) Close() error {
	err := s.Index.Close()
	if rerr := os.RemoveAll(s.path); rerr != nil && err == nil {
		err = fmt.Errorf("remove index %s: %w", s.path, rerr)
	}
	return err
}

// openHistory opens the run history database, or returns nil when history
// is disabled in the config or with --no-history.
func (e *env) openHistory(c *cli.Context) (*runstore.Store, error) {
	if e.cfg.History.Disabled || c.Bool("no-history") {
		return nil, nil
	}
	st, err := runstore.Open(c.Context, e.cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	return st, nil
}

// articleConfig reads the article flags shared by generate and classify.
func articleConfig(c *cli.Context) (article.Config, error) {
	var cfg article.Config
	var err error
	if cfg.Depth, err = project.ParseDepth(c.String("depth")); err != nil {
		return cfg, err
	}
	if cfg.Tone, err = article.ParseTone(c.String("tone")); err != nil {
		return cfg, err
	}
	if cfg.Audience, err = article.ParseAudience(c.String("audience")); err != nil {
		return cfg, err
	}
	p, ok := llm.ParseProvider(c.String("provider"))
	if !ok {
		return cfg, fmt.Errorf("unknown provider %q (choose one of: %s)", c.String("provider"), llm.ProviderChoices())
	}
	cfg.Provider = p
	cfg.Credential = c.String("api-key")
	cfg.Title = c.String("title")
	cfg.ProjectName = c.String("project-name")
	cfg.Model = c.String("model")
	return cfg, nil
}
