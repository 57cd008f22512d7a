// Package pipeline drives one run from uploaded archive to finished
// article: extract, classify, plan, generate each section, assemble.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

// Upload is an archive as received at the upload boundary.
type Upload struct {
	Name string
	Data []byte
}

// Result is a finished run.
type Result struct {
	RunID    string
	Article  string
	HTML     []byte
	State    State
	Warnings []Warning
}

// Title returns the article title.
func (r *Result) Title() string {
	if r.State.Outline == nil {
		return ""
	}
	return r.State.Outline.Title
}

// FallbackSections counts sections that used placeholder content.
func (r *Result) FallbackSections() int { return r.State.FallbackSections() }

// Observer receives a copy of the state after every transition.
type Observer func(State)

// Hook runs after a run ends, successfully or not. res is nil on failure.
// Errors become warnings.
type Hook interface {
	Name() string
	AfterRun(ctx context.Context, st State, res *Result) error
}

// OutlinerCloser is a per-run symbol outliner.
type OutlinerCloser interface {
	project.Outliner
	io.Closer
}

// GatewayFactory builds the gateway for one run.
type GatewayFactory func(ctx context.Context, cfg article.Config) article.Gateway

// Options configure a Driver.
type Options struct {
	Archive  archive.Options
	Classify project.Options
	Gateway  llm.Options
	// RunTimeout bounds a whole run. Zero means no limit.
	RunTimeout time.Duration
	// Credential resolves the key for provider from the direct value. When
	// nil the direct value is used as is.
	Credential func(provider llm.ProviderID, direct string) string
	// DefaultModel returns the model used when a run names none.
	DefaultModel func(provider llm.ProviderID) string
	// NewGateway replaces the default llm.New based factory.
	NewGateway GatewayFactory
	// OpenOutliner opens a symbol outliner for detailed runs.
	OpenOutliner func(ctx context.Context, runID string) (OutlinerCloser, error)
	Clock        func() time.Time
	Observer     Observer
	Progress     *ProgressReporter
	Hooks        []Hook
	NewRunID     func() string
	Logger       *slog.Logger
}

// Driver runs pipelines. It holds no per-run state and may be shared.
type Driver struct {
	opts   Options
	logger *slog.Logger
}

// NewDriver creates a Driver.
func NewDriver(opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Driver{opts: opts, logger: logger}
}

// NewRunID returns a fresh run id.
func (d *Driver) NewRunID() string { return d.opts.NewRunID() }

// Run executes one pipeline run under a fresh id.
func (d *Driver) Run(ctx context.Context, up Upload, cfg article.Config) (*Result, error) {
	return d.RunWithID(ctx, d.opts.NewRunID(), up, cfg)
}

// RunWithID executes one pipeline run. It returns the finished article or
// a *Failure. The extracted workspace is removed on every exit path.
func (d *Driver) RunWithID(ctx context.Context, runID string, up Upload, cfg article.Config) (*Result, error) {
	if d.opts.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.RunTimeout)
		defer cancel()
	}
	logger := d.logger.With("run", runID)
	r := &run{d: d, ctx: ctx, logger: logger, st: NewState(runID, cfg)}
	r.publish(ProgressWorking, "", "run started")

	res, err := r.execute(up)
	if err != nil {
		r.afterRun(nil)
		return nil, err
	}
	res.State = r.afterRun(res)
	res.Warnings = res.State.Warnings
	return res, nil
}

type run struct {
	d      *Driver
	ctx    context.Context
	logger *slog.Logger
	st     State
}

func (r *run) execute(up Upload) (*Result, error) {
	ctx := r.ctx
	cfg := r.st.Config
	opts := r.d.opts

	maxBytes := opts.Archive.MaxBytes
	if maxBytes <= 0 {
		maxBytes = archive.DefaultMaxBytes
	}
	if _, err := archive.ValidateUpload(up.Name, int64(len(up.Data)), maxBytes); err != nil {
		return nil, r.fail(StepExtraction, err)
	}
	aopts := opts.Archive
	aopts.Logger = r.logger
	ws, err := archive.Extract(ctx, up.Name, up.Data, aopts)
	if err != nil {
		return nil, r.fail(StepExtraction, err)
	}
	defer func() {
		if err := ws.Close(); err != nil {
			r.logger.Warn("workspace cleanup failed", "error", err)
		}
	}()
	r.advance(r.st.WithTree(ws.Tree()), ProgressComplete, "", fmt.Sprintf("extracted %d files", ws.Tree().FileCount()))

	copts := opts.Classify
	copts.Logger = r.logger
	if cfg.Depth == project.DepthDetailed && opts.OpenOutliner != nil {
		ol, err := opts.OpenOutliner(ctx, r.st.RunID)
		if err != nil {
			r.st = r.st.WithWarnings(Warning{Stage: StepClassification, Message: "symbol outlines unavailable: " + err.Error()})
		} else {
			defer ol.Close()
			copts.Outliner = ol
		}
	}
	sum, err := project.ClassifyTree(ctx, ws.Tree(), cfg.Depth, copts)
	if err != nil {
		return nil, r.fail(StepClassification, err)
	}
	for _, p := range sum.Problems {
		r.st = r.st.WithWarnings(Warning{Stage: StepClassification, Message: p})
	}
	r.advance(r.st.WithSummary(sum), ProgressComplete, "",
		fmt.Sprintf("%d README, %d config, %d code, %d other",
			sum.Count(project.CategoryReadme), sum.Count(project.CategoryConfig),
			sum.Count(project.CategoryCode), sum.Count(project.CategoryOther)))

	gw := r.gateway(cfg)
	outline, warnings, err := article.Plan(ctx, sum, cfg, gw)
	if err != nil {
		r.st = r.st.WithWarnings(warnings...)
		return nil, r.fail(StepPlanning, err)
	}
	r.advance(r.st.WithOutline(outline, warnings), ProgressComplete, "",
		fmt.Sprintf("%q with %d sections", outline.Title, len(outline.Sections)))

	for i, plan := range outline.Sections {
		r.advance(r.st.Generating(i), ProgressWorking, plan.Heading, "")
		draft, w, err := article.GenerateSection(ctx, outline, i, sum, cfg, gw)
		if err != nil {
			return nil, r.fail(StepGeneration, err)
		}
		status, msg := ProgressComplete, ""
		if w != nil {
			status, msg = ProgressFailed, "used fallback content: "+w.Message
		}
		r.advance(r.st.WithDraft(draft, w), status, plan.Heading, msg)
	}

	var aopt []article.AssemblerOption
	if opts.Clock != nil {
		aopt = append(aopt, article.WithClock(opts.Clock))
	}
	doc, err := article.NewAssembler(aopt...).Assemble(outline, r.st.Drafts, cfg, sum)
	if err != nil {
		return nil, r.fail(StepAssembly, err)
	}
	html, err := article.RenderHTML(outline.Title, doc)
	if err != nil {
		r.st = r.st.WithWarnings(Warning{Stage: StepAssembly, Message: err.Error()})
	}
	r.advance(r.st.WithArticle(doc), ProgressComplete, "", "")

	return &Result{RunID: r.st.RunID, Article: doc, HTML: html}, nil
}

// afterRun runs the hooks, then publishes the terminal state.
func (r *run) afterRun(res *Result) State {
	if res != nil {
		res.State = r.st
	}
	// Hooks still run when the run context was cancelled.
	hctx := context.WithoutCancel(r.ctx)
	hookFailed := false
	for _, h := range r.d.opts.Hooks {
		if err := h.AfterRun(hctx, r.st, res); err != nil {
			r.logger.Warn("post-run hook failed", "hook", h.Name(), "error", err)
			r.st = r.st.WithWarnings(Warning{Stage: h.Name(), Message: err.Error()})
			hookFailed = true
		}
	}
	if res == nil {
		if hookFailed && r.d.opts.Observer != nil {
			r.d.opts.Observer(r.st)
		}
		return r.st
	}
	msg := "article ready"
	if n := r.st.FallbackSections(); n > 0 {
		msg = fmt.Sprintf("article ready; %d section(s) used fallback content", n)
	}
	r.advance(r.st.Done(), ProgressComplete, "", msg)
	return r.st
}

func (r *run) gateway(cfg article.Config) article.Gateway {
	if r.d.opts.NewGateway != nil {
		return r.d.opts.NewGateway(r.ctx, cfg)
	}
	cred := cfg.Credential
	if r.d.opts.Credential != nil {
		cred = r.d.opts.Credential(cfg.Provider, cfg.Credential)
	}
	gopts := r.d.opts.Gateway
	gopts.Logger = r.logger
	switch {
	case cfg.Model != "":
		gopts.Model = cfg.Model
	case r.d.opts.DefaultModel != nil:
		if m := r.d.opts.DefaultModel(cfg.Provider); m != "" {
			gopts.Model = m
		}
	}
	gw := llm.New(r.ctx, cfg.Provider, cred, gopts)
	r.logger.Info("provider gateway ready", "provider", cfg.Provider, "backend", gw.Backend())
	return gw
}

func (r *run) fail(step string, err error) error {
	f := newFailure(r.st.Stage, step, err)
	r.logger.Error("run failed", "step", step, "error", err)
	r.advance(r.st.WithFailure(f), ProgressFailed, "", f.Error())
	return f
}

func (r *run) advance(next State, status ProgressStatus, section, msg string) {
	r.st = next
	r.publish(status, section, msg)
}

func (r *run) publish(status ProgressStatus, section, msg string) {
	st := r.st
	if r.d.opts.Observer != nil {
		r.d.opts.Observer(st)
	}
	if r.d.opts.Progress != nil {
		ev := ProgressEvent{
			RunID:   st.RunID,
			Stage:   st.Stage,
			Section: section,
			Total:   st.Total(),
			Status:  status,
			Message: msg,
		}
		if st.Stage == StageGenerating || section != "" {
			ev.Index = st.Current + 1
		}
		r.d.opts.Progress.Emit(ev)
	}
	r.logger.Debug("run transition", "stage", st.Stage.String(), "section", section, "status", string(status))
}
