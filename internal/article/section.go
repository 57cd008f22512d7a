package article

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gmabatah93/Project2Article/internal/project"
)

// StageGenerating names the section generation stage in warnings.
const StageGenerating = "generating"

// PlaceholderBody replaces a section whose generation fell back to mock
// content.
const PlaceholderBody = "Content generation failed for this section."

// GenerateSection writes section i of outline. A degraded gateway result
// yields the placeholder body and exactly one warning; the only error is
// the caller's context being done.
func GenerateSection(ctx context.Context, outline *Outline, i int, sum *project.Summary, cfg Config, gw Gateway) (SectionDraft, *Warning, error) {
	if i < 0 || i >= len(outline.Sections) {
		return SectionDraft{}, nil, fmt.Errorf("article: section index %d out of range", i)
	}
	plan := outline.Sections[i]

	res, err := gw.Complete(ctx, SectionPrompt(outline, i, sum, cfg))
	if err != nil {
		return SectionDraft{}, nil, fmt.Errorf("article: section %q: %w", plan.Heading, err)
	}
	if res.Degraded() {
		return SectionDraft{Heading: plan.Heading, Body: PlaceholderBody, Fallback: true, Reason: res.Reason},
			&Warning{Stage: StageGenerating, Section: plan.Heading, Message: res.Reason}, nil
	}

	body := stripLeadingHeading(strings.TrimSpace(res.Text), plan.Heading)
	if body == "" {
		reason := "provider returned an empty section"
		return SectionDraft{Heading: plan.Heading, Body: PlaceholderBody, Fallback: true, Reason: reason},
			&Warning{Stage: StageGenerating, Section: plan.Heading, Message: reason}, nil
	}
	return SectionDraft{Heading: plan.Heading, Body: body}, nil, nil
}

// stripLeadingHeading drops a first Markdown heading line that repeats
// heading.
func stripLeadingHeading(body, heading string) string {
	first, rest, _ := strings.Cut(body, "\n")
	trimmed := strings.TrimSpace(first)
	if !strings.HasPrefix(trimmed, "#") {
		return body
	}
	title := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
	if !strings.EqualFold(title, strings.TrimSpace(heading)) {
		return body
	}
	return strings.TrimSpace(rest)
}
