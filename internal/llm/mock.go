package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Prompt conventions shared with the article stages. Planner prompts carry
// OutlineMarker; the labeled lines let the mock personalise its output.
const (
	OutlineMarker  = "ARTICLE_OUTLINE_JSON"
	LabelProject   = "Project name:"
	LabelDepth     = "Analysis depth:"
	LabelTone      = "Tone:"
	LabelAudience  = "Audience:"
	LabelHeading   = "Section heading:"
	LabelKeyPoints = "Key points:"
)

const mockExcerptRunes = 160

// Mock is the deterministic offline completer. Its output is a pure
// function of the prompt.
type Mock struct{}

var _ Completer = Mock{}

func (Mock) Name() string { return string(ProviderMock) }

func (Mock) Complete(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return MockText(prompt), nil
}

// MockText returns the mock completion for prompt.
func MockText(prompt string) string {
	if strings.Contains(prompt, OutlineMarker) {
		return mockOutline(prompt)
	}
	return mockSection(prompt)
}

type mockSectionPlan struct {
	Heading         string   `json:"heading"`
	ContentType     string   `json:"content_type"`
	KeyPoints       []string `json:"key_points"`
	EstimatedLength string   `json:"estimated_length"`
}

type mockPlan struct {
	Title         string            `json:"title"`
	Sections      []mockSectionPlan `json:"sections"`
	ToneNotes     string            `json:"tone_notes"`
	AudienceNotes string            `json:"audience_notes"`
}

var overviewSections = []mockSectionPlan{
	{"Introduction", "overview", []string{"What the project does", "Who it is for", "How the repository is organised"}, "short"},
	{"Getting Started", "setup", []string{"Prerequisites", "Installing dependencies", "Running the project for the first time"}, "medium"},
	{"Features and Usage", "features", []string{"Core capabilities", "A typical workflow", "Configuration options"}, "long"},
	{"Conclusion", "conclusion", []string{"What we covered", "Where to go next", "How to contribute"}, "short"},
}

var detailedSections = []mockSectionPlan{
	{"Introduction", "overview", []string{"What the project does", "Design goals", "How the repository is organised"}, "short"},
	{"Architecture Deep Dive", "code_analysis", []string{"Main components", "How data flows between them", "Key abstractions"}, "long"},
	{"Getting Started", "setup", []string{"Prerequisites", "Installing dependencies", "Verifying the setup"}, "medium"},
	{"Implementation Details", "code_analysis", []string{"Entry points", "Notable functions and types", "Error handling"}, "long"},
	{"Advanced Features", "features", []string{"Extension points", "Configuration knobs", "Performance considerations"}, "medium"},
	{"Conclusion", "conclusion", []string{"What we covered", "Trade-offs worth knowing", "Next steps"}, "short"},
}

func mockOutline(prompt string) string {
	depth := strings.ToLower(labelValue(prompt, LabelDepth))
	tone := strings.ToLower(labelValue(prompt, LabelTone))
	if tone == "" {
		tone = "explanatory"
	}
	audience := strings.ToLower(labelValue(prompt, LabelAudience))
	if audience == "" {
		audience = "intermediate"
	}

	title := "Project Walkthrough"
	if name := labelValue(prompt, LabelProject); name != "" {
		title = "Inside " + name
	}
	sections := overviewSections
	if depth == "detailed" {
		sections = detailedSections
	}
	plan := mockPlan{
		Title:         title,
		Sections:      sections,
		ToneNotes:     fmt.Sprintf("Use a %s tone throughout.", tone),
		AudienceNotes: fmt.Sprintf("Write for %s developers.", audience),
	}
	data, _ := json.MarshalIndent(plan, "", "  ")
	return string(data)
}

func mockSection(prompt string) string {
	heading := labelValue(prompt, LabelHeading)
	if heading == "" {
		heading = "this section"
	}
	points := keyPoints(prompt)
	tone := strings.ToLower(labelValue(prompt, LabelTone))

	var b strings.Builder
	switch tone {
	case "explanatory":
		fmt.Fprintf(&b, "This part of the article walks through %s step by step. ", heading)
		b.WriteString("Each idea builds on the previous one, so it is worth reading in order.\n\n")
	case "marketing":
		fmt.Fprintf(&b, "%s is where this project really shines. ", heading)
		b.WriteString("It removes the busywork so your team can focus on shipping.\n\n")
	default:
		fmt.Fprintf(&b, "Let's talk about %s. ", heading)
		b.WriteString("Grab a coffee, this is the fun part.\n\n")
	}

	if len(points) > 0 {
		b.WriteString("Highlights:\n\n")
		for _, p := range points {
			fmt.Fprintf(&b, "- **%s**: covered with examples from the codebase.\n", p)
		}
		b.WriteString("\n")
	}

	b.WriteString("```bash\n# clone the repository and follow the README\nmake run\n```\n\n")
	b.WriteString("> Offline draft generated from:\n>\n")
	b.WriteString(promptExcerpt(prompt))
	return b.String()
}

// labelValue returns the trimmed text after the first line starting with
// label, or "".
func labelValue(prompt, label string) string {
	for _, line := range strings.Split(prompt, "\n") {
		line = strings.TrimSpace(line)
		if v, ok := strings.CutPrefix(line, label); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// keyPoints collects the "- item" lines following the key points label.
func keyPoints(prompt string) []string {
	lines := strings.Split(prompt, "\n")
	var out []string
	in := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, LabelKeyPoints) {
			in = true
			continue
		}
		if !in {
			continue
		}
		item, ok := strings.CutPrefix(line, "- ")
		if !ok {
			break
		}
		out = append(out, strings.TrimSpace(item))
	}
	return out
}

// promptExcerpt quotes the first mockExcerptRunes runes of the prompt
// verbatim, one blockquote line per prompt line.
func promptExcerpt(prompt string) string {
	r := []rune(prompt)
	cut := len(r) > mockExcerptRunes
	if cut {
		r = r[:mockExcerptRunes]
	}
	lines := strings.Split(string(r), "\n")
	if cut {
		lines[len(lines)-1] += "..."
	}
	for i, line := range lines {
		if line == "" {
			lines[i] = ">"
		} else {
			lines[i] = "> " + line
		}
	}
	return strings.Join(lines, "\n")
}
