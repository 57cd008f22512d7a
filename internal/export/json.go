// Package export renders finished runs as downloadable reports.
package export

import (
	"encoding/json"
	"time"

	"github.com/Gmabatah93/Project2Article/internal/article"
	"github.com/Gmabatah93/Project2Article/internal/pipeline"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

// RunReport is the top-level JSON export structure.
type RunReport struct {
	RunID            string            `json:"runId"`
	Title            string            `json:"title,omitempty"`
	ExportedAt       string            `json:"exportedAt"`
	Status           string            `json:"status"`
	Config           ConfigExport      `json:"config"`
	Stages           []StageExport     `json:"stages"`
	Files            FileStats         `json:"files"`
	Sections         []SectionExport   `json:"sections,omitempty"`
	Warnings         []article.Warning `json:"warnings,omitempty"`
	FallbackSections int               `json:"fallbackSections"`
	Failure          *FailureExport    `json:"failure,omitempty"`
	Structure        string            `json:"structure,omitempty"`
}

// ConfigExport echoes the generation settings, without credentials.
type ConfigExport struct {
	Depth    string `json:"depth"`
	Tone     string `json:"tone"`
	Audience string `json:"audience"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// StageExport describes one pipeline stage.
type StageExport struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// FileStats summarises classification.
type FileStats struct {
	Total      int            `json:"total"`
	Readme     int            `json:"readme"`
	Config     int            `json:"config"`
	Code       int            `json:"code"`
	Other      int            `json:"other"`
	Bytes      int64          `json:"bytes"`
	Extensions map[string]int `json:"extensions,omitempty"`
}

// SectionExport describes one planned section and how it was produced.
type SectionExport struct {
	Heading     string   `json:"heading"`
	ContentType string   `json:"contentType"`
	KeyPoints   []string `json:"keyPoints,omitempty"`
	Generated   bool     `json:"generated"`
	Fallback    bool     `json:"fallback,omitempty"`
}

// FailureExport is the terminal failure of a run.
type FailureExport struct {
	Step   string `json:"step"`
	Reason string `json:"reason"`
}

// reportStages are the stages listed in a report, in order.
var reportStages = []pipeline.Stage{
	pipeline.StageExtracted,
	pipeline.StageClassified,
	pipeline.StagePlanned,
	pipeline.StageGenerating,
	pipeline.StageAssembled,
	pipeline.StageDone,
}

// BuildReport builds a RunReport from a run's final state.
func BuildReport(st pipeline.State, now time.Time) *RunReport {
	r := &RunReport{
		RunID:            st.RunID,
		ExportedAt:       now.UTC().Format(time.RFC3339),
		Status:           "complete",
		Warnings:         st.Warnings,
		FallbackSections: st.FallbackSections(),
		Config: ConfigExport{
			Depth:    st.Config.Depth.String(),
			Tone:     st.Config.Tone.String(),
			Audience: st.Config.Audience.String(),
			Provider: string(st.Config.Provider),
			Model:    st.Config.Model,
		},
	}

	reached := st.Stage
	switch {
	case st.Failure != nil:
		r.Status = "failed"
		r.Failure = &FailureExport{Step: st.Failure.Step, Reason: st.Failure.Reason}
		reached = st.Failure.Stage
	case st.Stage != pipeline.StageDone:
		r.Status = "running"
	}
	for _, s := range reportStages {
		r.Stages = append(r.Stages, StageExport{Name: s.String(), Status: stageStatus(s, reached, r.Status)})
	}

	if sum := st.Summary; sum != nil {
		r.Files = FileStats{
			Total:      sum.TotalFiles(),
			Readme:     sum.Count(project.CategoryReadme),
			Config:     sum.Count(project.CategoryConfig),
			Code:       sum.Count(project.CategoryCode),
			Other:      sum.Count(project.CategoryOther),
			Bytes:      sum.TotalSize,
			Extensions: sum.Extensions,
		}
		r.Structure = StructureMermaid(sum, 0)
	}

	if o := st.Outline; o != nil {
		r.Title = o.Title
		for i, sp := range o.Sections {
			se := SectionExport{Heading: sp.Heading, ContentType: sp.ContentType, KeyPoints: sp.KeyPoints}
			if i < len(st.Drafts) {
				se.Generated = true
				se.Fallback = st.Drafts[i].Fallback
			}
			r.Sections = append(r.Sections, se)
		}
	}
	return r
}

// stageStatus reports s relative to the last stage reached. The stage after
// it is the one that failed or is in progress; generation stays in progress
// until assembly.
func stageStatus(s, reached pipeline.Stage, run string) string {
	switch {
	case run == "running" && s == pipeline.StageGenerating && reached == s:
		return "working"
	case run == "complete" || s <= reached:
		return "complete"
	case s == reached+1 && run == "failed":
		return "failed"
	case s == reached+1:
		return "working"
	default:
		return "pending"
	}
}

// JSON renders the report indented.
func (r *RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
