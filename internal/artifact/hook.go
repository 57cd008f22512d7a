package artifact

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Gmabatah93/Project2Article/internal/export"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
)

// Hook saves a run's artifacts after it ends. Failed runs get only
// report.json.
type Hook struct {
	Store  Store
	Clock  func() time.Time
	Logger *slog.Logger
}

var _ pipeline.Hook = (*Hook)(nil)

// NewHook creates a Hook writing to store.
func NewHook(store Store, logger *slog.Logger) *Hook {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hook{Store: store, Clock: time.Now, Logger: logger}
}

func (h *Hook) Name() string { return "artifacts" }

// AfterRun writes the report, plus the article, its HTML copy and the
// structure diagram when res is non-nil.
func (h *Hook) AfterRun(ctx context.Context, st pipeline.State, res *pipeline.Result) error {
	if res != nil {
		// Hooks run just before the done transition is published.
		st = st.Done()
	}
	report := export.BuildReport(st, h.Clock())
	data, err := report.JSON()
	if err != nil {
		return fmt.Errorf("artifact: encode report: %w", err)
	}

	files := map[string][]byte{Report: data}
	if res != nil {
		files[ArticleMarkdown] = []byte(res.Article)
		if len(res.HTML) > 0 {
			files[ArticleHTML] = res.HTML
		}
		if report.Structure != "" {
			files[Structure] = []byte(report.Structure)
		}
	}
	for _, name := range []string{ArticleMarkdown, ArticleHTML, Structure, Report} {
		content, ok := files[name]
		if !ok {
			continue
		}
		if err := h.Store.Put(ctx, st.RunID, name, content); err != nil {
			return err
		}
	}
	h.Logger.Info("artifacts saved", "run", st.RunID, "count", len(files))
	return nil
}
