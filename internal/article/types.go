// Package article implements the three language-model stages of a run:
// planning an outline, generating each section and assembling the final
// Markdown document.
package article

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

// ErrPlanningParse is returned when the planner's output could not be
// parsed into a valid outline after the corrective retry.
var ErrPlanningParse = errors.New("article: planning response could not be parsed")

// Gateway completes prompts. *llm.Gateway implements it.
type Gateway interface {
	Complete(ctx context.Context, prompt string) (llm.Result, error)
}

var _ Gateway = (*llm.Gateway)(nil)

// Tone is the article's voice.
type Tone int

const (
	ToneExplanatory Tone = iota
	ToneConversational
	ToneMarketing
)

func (t Tone) String() string {
	switch t {
	case ToneConversational:
		return "Conversational"
	case ToneMarketing:
		return "Marketing"
	default:
		return "Explanatory"
	}
}

// MarshalText renders the tone name in JSON output.
func (t Tone) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// ParseTone accepts a tone name in any case. Empty means Explanatory.
func ParseTone(s string) (Tone, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "explanatory":
		return ToneExplanatory, nil
	case "conversational":
		return ToneConversational, nil
	case "marketing":
		return ToneMarketing, nil
	default:
		return ToneExplanatory, fmt.Errorf("article: unknown tone %q", s)
	}
}

// Audience is the intended reader's experience level.
type Audience int

const (
	AudienceBeginner Audience = iota
	AudienceIntermediate
	AudienceAdvanced
)

func (a Audience) String() string {
	switch a {
	case AudienceIntermediate:
		return "Intermediate"
	case AudienceAdvanced:
		return "Advanced"
	default:
		return "Beginner"
	}
}

// MarshalText renders the audience name in JSON output.
func (a Audience) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// ParseAudience accepts an audience name in any case. Empty means
// Beginner.
func ParseAudience(s string) (Audience, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "beginner":
		return AudienceBeginner, nil
	case "intermediate":
		return AudienceIntermediate, nil
	case "advanced":
		return AudienceAdvanced, nil
	default:
		return AudienceBeginner, fmt.Errorf("article: unknown audience %q", s)
	}
}

// Config is the user's generation request. It is never modified after a
// run starts.
type Config struct {
	Depth       project.Depth  `json:"depth"`
	Tone        Tone           `json:"tone"`
	Audience    Audience       `json:"audience"`
	Provider    llm.ProviderID `json:"provider"`
	Credential  string         `json:"-"`
	Title       string         `json:"title,omitempty"`
	ProjectName string         `json:"projectName,omitempty"`
	Model       string         `json:"model,omitempty"`
}

// Content-type tags guide which project content a section prompt carries.
const (
	ContentOverview     = "overview"
	ContentSetup        = "setup"
	ContentFeatures     = "features"
	ContentCodeAnalysis = "code_analysis"
	ContentConclusion   = "conclusion"
)

var contentTypes = map[string]bool{
	ContentOverview:     true,
	ContentSetup:        true,
	ContentFeatures:     true,
	ContentCodeAnalysis: true,
	ContentConclusion:   true,
}

// normalizeContentType maps unknown tags to overview.
func normalizeContentType(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "-", "_")
	v = strings.ReplaceAll(v, " ", "_")
	if contentTypes[v] {
		return v
	}
	return ContentOverview
}

// SectionPlan is one planned section.
type SectionPlan struct {
	Heading     string   `json:"heading"`
	ContentType string   `json:"contentType"`
	KeyPoints   []string `json:"keyPoints"`
	LengthHint  string   `json:"lengthHint,omitempty"`
}

// Outline is the planner's result.
type Outline struct {
	Title         string        `json:"title"`
	Sections      []SectionPlan `json:"sections"`
	ToneNotes     string        `json:"toneNotes,omitempty"`
	AudienceNotes string        `json:"audienceNotes,omitempty"`
}

// Headings returns the section headings in order.
func (o *Outline) Headings() []string {
	out := make([]string, len(o.Sections))
	for i, s := range o.Sections {
		out[i] = s.Heading
	}
	return out
}

// SectionDraft is the generated body for one planned section.
type SectionDraft struct {
	Heading  string `json:"heading"`
	Body     string `json:"body"`
	Fallback bool   `json:"fallback,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Warning records a failure that was absorbed instead of ending the run.
type Warning struct {
	Stage   string `json:"stage"`
	Section string `json:"section,omitempty"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	if w.Section != "" {
		return fmt.Sprintf("%s (%s): %s", w.Stage, w.Section, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
