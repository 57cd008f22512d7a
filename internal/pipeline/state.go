package pipeline

import (
	"github.com/Gmabatah93/Project2Article/internal/archive"
	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

// Warning records an absorbed failure.
type Warning = article.Warning

// State is one run's record. It is a value: every With method returns an
// updated copy and never modifies slices shared with earlier copies.
type State struct {
	RunID    string                 `json:"runId"`
	Stage    Stage                  `json:"stage"`
	Current  int                    `json:"current,omitempty"`
	Config   article.Config         `json:"config"`
	Files    int                    `json:"files"`
	Bytes    int64                  `json:"bytes"`
	Summary  *project.Summary       `json:"summary,omitempty"`
	Outline  *article.Outline       `json:"outline,omitempty"`
	Drafts   []article.SectionDraft `json:"drafts,omitempty"`
	Warnings []Warning              `json:"warnings,omitempty"`
	Failure  *Failure               `json:"failure,omitempty"`
	Article  string                 `json:"-"`
}

// NewState starts a run record.
func NewState(runID string, cfg article.Config) State {
	return State{RunID: runID, Stage: StageStart, Config: cfg}
}

// Total is the number of planned sections, or zero before planning.
func (s State) Total() int {
	if s.Outline == nil {
		return 0
	}
	return len(s.Outline.Sections)
}

// WithTree records extraction.
func (s State) WithTree(t archive.FileTree) State {
	s.Stage = StageExtracted
	s.Files = t.FileCount()
	s.Bytes = t.TotalSize()
	return s
}

// WithSummary records classification.
func (s State) WithSummary(sum *project.Summary) State {
	s.Stage = StageClassified
	s.Summary = sum
	return s
}

// WithOutline records planning and any planning warnings.
func (s State) WithOutline(o *article.Outline, warnings []Warning) State {
	s.Stage = StagePlanned
	s.Outline = o
	return s.WithWarnings(warnings...)
}

// Generating marks section i as in progress.
func (s State) Generating(i int) State {
	s.Stage = StageGenerating
	s.Current = i
	return s
}

// WithDraft appends the next draft and its warning, if any.
func (s State) WithDraft(d article.SectionDraft, w *Warning) State {
	drafts := make([]article.SectionDraft, len(s.Drafts), len(s.Drafts)+1)
	copy(drafts, s.Drafts)
	s.Drafts = append(drafts, d)
	if w != nil {
		s = s.WithWarnings(*w)
	}
	return s
}

// WithArticle records the assembled document.
func (s State) WithArticle(doc string) State {
	s.Stage = StageAssembled
	s.Article = doc
	return s
}

// WithWarnings appends warnings.
func (s State) WithWarnings(ws ...Warning) State {
	if len(ws) == 0 {
		return s
	}
	out := make([]Warning, len(s.Warnings), len(s.Warnings)+len(ws))
	copy(out, s.Warnings)
	s.Warnings = append(out, ws...)
	return s
}

// Done marks the run finished.
func (s State) Done() State {
	s.Stage = StageDone
	return s
}

// WithFailure moves the run to the failed stage.
func (s State) WithFailure(f *Failure) State {
	s.Stage = StageFailed
	s.Failure = f
	return s
}

// FallbackSections counts drafts that carry placeholder content.
func (s State) FallbackSections() int {
	n := 0
	for _, d := range s.Drafts {
		if d.Fallback {
			n++
		}
	}
	return n
}
