package runstore

import (
	"context"
	"time"

	"github.com/Gmabatah93/Project2Article/internal/pipeline"
)

// Hook records every finished or failed run.
type Hook struct {
	Store *Store
	Clock func() time.Time
}

var _ pipeline.Hook = (*Hook)(nil)

func NewHook(s *Store) *Hook { return &Hook{Store: s, Clock: time.Now} }

func (h *Hook) Name() string { return "history" }

func (h *Hook) AfterRun(ctx context.Context, st pipeline.State, res *pipeline.Result) error {
	return h.Store.Put(ctx, FromState(st, res != nil, h.Clock()))
}

// FromState builds the history row for a run's final state.
func FromState(st pipeline.State, ok bool, now time.Time) Record {
	r := Record{
		RunID:            st.RunID,
		Status:           "complete",
		Depth:            st.Config.Depth.String(),
		Tone:             st.Config.Tone.String(),
		Audience:         st.Config.Audience.String(),
		Provider:         string(st.Config.Provider),
		Files:            st.Files,
		Sections:         len(st.Drafts),
		FallbackSections: st.FallbackSections(),
		Warnings:         len(st.Warnings),
		CreatedAt:        now,
	}
	if st.Outline != nil {
		r.Title = st.Outline.Title
	}
	if !ok {
		r.Status = "failed"
		if f := st.Failure; f != nil {
			r.Step = f.Step
			r.Reason = f.Reason
		}
	}
	return r
}
