package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func zipUpload(t *testing.T, name string, files map[string]string) Upload {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for p, body := range files {
		w, err := zw.Create(p)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return Upload{Name: name, Data: buf.Bytes()}
}

func demoUpload(t *testing.T) Upload {
	return zipUpload(t, "demo.zip", map[string]string{
		"README.md": "Hello",
		"main.py":   "print('hello')\n",
	})
}

// recorder collects observed states.
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) observe(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) stages() []Stage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stage, len(r.states))
	for i, s := range r.states {
		out[i] = s.Stage
	}
	return out
}

func (r *recorder) last() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

// funcCompleter adapts a function to llm.Completer.
type funcCompleter struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(prompt string) (string, error)
}

func (f *funcCompleter) Name() string { return "func" }

func (f *funcCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[headingOf(prompt)]++
	f.mu.Unlock()
	return f.fn(prompt)
}

func headingOf(prompt string) string {
	for _, line := range strings.Split(prompt, "\n") {
		if v, ok := strings.CutPrefix(line, llm.LabelHeading); ok {
			return strings.TrimSpace(v)
		}
	}
	return "planner"
}

func withCompleter(c llm.Completer) GatewayFactory {
	return func(_ context.Context, cfg article.Config) article.Gateway {
		return llm.NewWithCompleter(cfg.Provider, c, llm.Options{Retries: 1})
	}
}

var overviewConfig = article.Config{
	Depth:    project.DepthOverview,
	Tone:     article.ToneExplanatory,
	Audience: article.AudienceBeginner,
	Provider: llm.ProviderMock,
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

func TestDriver_MockRunReachesDone(t *testing.T) {
	tmp := t.TempDir()
	rec := &recorder{}
	progress := NewProgressReporter()
	d := NewDriver(Options{
		Archive:  archive.Options{TempDir: tmp},
		Observer: rec.observe,
		Progress: progress,
		NewRunID: func() string { return "run-1" },
	})

	res, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.NoError(t, err)

	sum := res.State.Summary
	require.NotNil(t, sum)
	assert.Equal(t, 1, sum.Count(project.CategoryReadme))
	assert.Equal(t, 1, sum.Count(project.CategoryCode))

	require.NotNil(t, res.State.Outline)
	assert.NotEmpty(t, res.Title())
	assert.True(t, strings.HasPrefix(res.Article, "# "+res.Title()+"\n"))
	for _, h := range res.State.Outline.Headings() {
		assert.Equal(t, 1, strings.Count(res.Article, "\n## "+h+"\n"), h)
	}
	assert.Contains(t, string(res.HTML), "<h1")
	assert.Empty(t, res.Warnings)
	assert.Equal(t, 0, res.FallbackSections())
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, StageDone, res.State.Stage)

	stages := rec.stages()
	assert.Equal(t, []Stage{StageStart, StageExtracted, StageClassified, StagePlanned}, stages[:4])
	assert.Equal(t, []Stage{StageAssembled, StageDone}, stages[len(stages)-2:])
	n := len(res.State.Outline.Sections)
	assert.Len(t, stages, 4+2*n+2, "two transitions per section")

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries, "workspace removed after the run")

	progress.Close()
	var events []ProgressEvent
	for ev := range progress.Subscribe() {
		events = append(events, ev)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, StageDone, events[len(events)-1].Stage)
}

func TestDriver_MockRunIsDeterministic(t *testing.T) {
	d := NewDriver(Options{})
	a, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.NoError(t, err)
	b, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.NoError(t, err)
	assert.Equal(t, a.Article, b.Article)
}

func TestDriver_SectionFailingTwiceUsesPlaceholder(t *testing.T) {
	c := &funcCompleter{fn: func(prompt string) (string, error) {
		if headingOf(prompt) == "Getting Started" {
			return "", errors.New("rate limited")
		}
		return llm.MockText(prompt), nil
	}}
	d := NewDriver(Options{NewGateway: withCompleter(c)})

	res, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.NoError(t, err)
	assert.Equal(t, StageDone, res.State.Stage)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "Getting Started", res.Warnings[0].Section)
	assert.Contains(t, res.Warnings[0].Message, "rate limited")
	assert.Equal(t, 1, res.FallbackSections())
	assert.Equal(t, 2, c.calls["Getting Started"], "one call plus one retry")

	for _, d := range res.State.Drafts {
		if d.Heading == "Getting Started" {
			assert.Equal(t, article.PlaceholderBody, d.Body)
		} else {
			assert.NotEqual(t, article.PlaceholderBody, d.Body)
		}
	}
	assert.Contains(t, res.Article, "## Getting Started\n\n"+article.PlaceholderBody)
}

func TestDriver_PlanningFailure(t *testing.T) {
	c := &funcCompleter{fn: func(string) (string, error) { return "I would rather not.", nil }}
	rec := &recorder{}
	d := NewDriver(Options{NewGateway: withCompleter(c), Observer: rec.observe})

	res, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.Error(t, err)
	assert.Nil(t, res)

	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Equal(t, StepPlanning, f.Step)
	assert.Equal(t, StageClassified, f.Stage)
	assert.ErrorIs(t, err, article.ErrPlanningParse)
	assert.Contains(t, err.Error(), "try again")

	last := rec.last()
	assert.Equal(t, StageFailed, last.Stage)
	assert.Empty(t, last.Drafts)
	assert.Nil(t, last.Outline)
	assert.Equal(t, 2, c.calls["planner"])
}

func TestDriver_ExtractionFailures(t *testing.T) {
	tests := []struct {
		name   string
		upload func(t *testing.T) Upload
		opts   archive.Options
		want   error
	}{
		{
			name: "traversal",
			upload: func(t *testing.T) Upload {
				return zipUpload(t, "evil.zip", map[string]string{"../escape.txt": "x"})
			},
			want: archive.ErrUnsafeArchive,
		},
		{
			name:   "too large",
			upload: demoUpload,
			opts:   archive.Options{MaxBytes: 16},
			want:   archive.ErrSizeExceeded,
		},
		{
			name: "unsupported name",
			upload: func(t *testing.T) Upload {
				u := demoUpload(t)
				u.Name = "demo.rar"
				return u
			},
			want: archive.ErrUnsupportedFormat,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := &recorder{}
			d := NewDriver(Options{Archive: tc.opts, Observer: rec.observe})
			_, err := d.Run(context.Background(), tc.upload(t), overviewConfig)
			require.ErrorIs(t, err, tc.want)

			var f *Failure
			require.ErrorAs(t, err, &f)
			assert.Equal(t, StepExtraction, f.Step)
			assert.Equal(t, StageStart, f.Stage)
			assert.Equal(t, StageFailed, rec.last().Stage)
		})
	}
}

func TestDriver_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewDriver(Options{}).Run(ctx, demoUpload(t), overviewConfig)
	require.ErrorIs(t, err, context.Canceled)
	var f *Failure
	require.ErrorAs(t, err, &f)
	assert.Contains(t, f.Reason, "cancelled")
}

func TestDriver_RunTimeout(t *testing.T) {
	c := &funcCompleter{fn: func(prompt string) (string, error) {
		time.Sleep(50 * time.Millisecond)
		return llm.MockText(prompt), nil
	}}
	d := NewDriver(Options{NewGateway: withCompleter(c), RunTimeout: 20 * time.Millisecond})
	_, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

type hookFunc struct {
	name string
	fn   func(State, *Result) error
}

func (h hookFunc) Name() string { return h.name }
func (h hookFunc) AfterRun(_ context.Context, st State, res *Result) error {
	return h.fn(st, res)
}

func TestDriver_HookErrorsBecomeWarnings(t *testing.T) {
	var seen *Result
	var failedState State
	hooks := []Hook{
		hookFunc{name: "artifacts", fn: func(_ State, res *Result) error {
			seen = res
			return errors.New("bucket unreachable")
		}},
		hookFunc{name: "history", fn: func(st State, _ *Result) error {
			failedState = st
			return nil
		}},
	}
	d := NewDriver(Options{Hooks: hooks})

	res, err := d.Run(context.Background(), demoUpload(t), overviewConfig)
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.NotEmpty(t, seen.Article)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "artifacts", res.Warnings[0].Stage)
	assert.Equal(t, StageAssembled, failedState.Stage)

	// Hooks also observe failed runs.
	_, err = d.Run(context.Background(), Upload{Name: "x.rar", Data: []byte("x")}, overviewConfig)
	require.Error(t, err)
	assert.Equal(t, StageFailed, failedState.Stage)
}

type stubOutliner struct {
	closed bool
}

func (s *stubOutliner) Outline(context.Context, string, []byte, int) (string, error) {
	return "- function main", nil
}

func (s *stubOutliner) Close() error {
	s.closed = true
	return nil
}

func TestDriver_DetailedRunUsesOutliner(t *testing.T) {
	ol := &stubOutliner{}
	d := NewDriver(Options{
		OpenOutliner: func(context.Context, string) (OutlinerCloser, error) { return ol, nil },
	})
	cfg := overviewConfig
	cfg.Depth = project.DepthDetailed

	res, err := d.Run(context.Background(), demoUpload(t), cfg)
	require.NoError(t, err)
	assert.True(t, ol.closed)
	assert.Len(t, res.State.Outline.Sections, 6)

	var outline string
	for _, f := range res.State.Summary.Files {
		if f.Path == "main.py" {
			outline = f.Outline
		}
	}
	assert.Equal(t, "- function main", outline)
}

type failingOutliner struct{}

func (failingOutliner) Outline(context.Context, string, []byte, int) (string, error) {
	return "", errors.New("parser crashed")
}

func (failingOutliner) Close() error { return nil }

func TestDriver_OutlineErrorsBecomeWarnings(t *testing.T) {
	d := NewDriver(Options{
		OpenOutliner: func(context.Context, string) (OutlinerCloser, error) { return failingOutliner{}, nil },
	})
	cfg := overviewConfig
	cfg.Depth = project.DepthDetailed

	res, err := d.Run(context.Background(), demoUpload(t), cfg)
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, StepClassification, res.Warnings[0].Stage)
	assert.Contains(t, res.Warnings[0].Message, "main.py")
	assert.Contains(t, res.Warnings[0].Message, "parser crashed")
	assert.Equal(t, []string{res.Warnings[0].Message}, res.State.Summary.Problems)
}

func TestDriver_HookErrorsOnFailedRun(t *testing.T) {
	rec := &recorder{}
	d := NewDriver(Options{
		Observer: rec.observe,
		Hooks: []Hook{hookFunc{name: "history", fn: func(State, *Result) error {
			return errors.New("database locked")
		}}},
	})

	_, err := d.Run(context.Background(), Upload{Name: "x.rar", Data: []byte("x")}, overviewConfig)
	require.Error(t, err)

	last := rec.last()
	assert.Equal(t, StageFailed, last.Stage)
	require.Len(t, last.Warnings, 1)
	assert.Equal(t, "history", last.Warnings[0].Stage)
	assert.Equal(t, "database locked", last.Warnings[0].Message)
}

func TestDriver_CredentialResolver(t *testing.T) {
	var gotProvider llm.ProviderID
	var gotDirect string
	d := NewDriver(Options{Credential: func(p llm.ProviderID, direct string) string {
		gotProvider, gotDirect = p, direct
		return ""
	}})
	cfg := overviewConfig
	cfg.Provider = llm.ProviderOpenAI
	cfg.Credential = "your-openai-key-here"

	res, err := d.Run(context.Background(), demoUpload(t), cfg)
	require.NoError(t, err)
	assert.Equal(t, llm.ProviderOpenAI, gotProvider)
	assert.Equal(t, "your-openai-key-here", gotDirect)
	assert.Empty(t, res.Warnings, "mock mode without a credential is not a warning")
	assert.Contains(t, res.Article, "- **Provider**: OpenAI GPT-4")
}
