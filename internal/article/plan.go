package article

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/Gmabatah93/Project2Article/internal/project"
)

// StagePlanning names the planning stage in warnings.
const StagePlanning = "planning"

// Plan asks the gateway for an outline. An unusable response is retried
// once with a correction appended to the prompt; a second failure returns
// ErrPlanningParse. Degraded gateway results are accepted and reported as
// warnings.
func Plan(ctx context.Context, sum *project.Summary, cfg Config, gw Gateway) (*Outline, []Warning, error) {
	base := PlanPrompt(sum, cfg)
	prompt := base

	var (
		warnings []Warning
		lastErr  error
	)
	for attempt := 0; attempt < 2; attempt++ {
		res, err := gw.Complete(ctx, prompt)
		if err != nil {
			return nil, warnings, fmt.Errorf("article: plan: %w", err)
		}
		if res.Degraded() {
			warnings = append(warnings, Warning{Stage: StagePlanning, Message: res.Reason})
		}

		outline, err := ParseOutline(res.Text, cfg.Title)
		if err == nil {
			return outline, warnings, nil
		}
		lastErr = err
		prompt = correctionPrompt(base, err)
	}
	return nil, warnings, fmt.Errorf("%w: %v", ErrPlanningParse, lastErr)
}

var (
	errNoJSON      = errors.New("no JSON object found")
	errInvalidJSON = errors.New("invalid JSON")
	errNoTitle     = errors.New("title is empty")
	errNoSections  = errors.New("no sections")
)

// ParseOutline extracts and validates an outline from model output. The
// first balanced JSON object is used, so fenced blocks and surrounding
// prose are tolerated. fallbackTitle replaces an empty title.
func ParseOutline(text, fallbackTitle string) (*Outline, error) {
	raw, ok := firstJSONObject(text)
	if !ok {
		return nil, errNoJSON
	}
	if !gjson.Valid(raw) {
		return nil, errInvalidJSON
	}
	doc := gjson.Parse(raw)

	o := &Outline{
		Title:         strings.TrimSpace(doc.Get("title").String()),
		ToneNotes:     strings.TrimSpace(firstOf(doc, "tone_notes", "toneNotes").String()),
		AudienceNotes: strings.TrimSpace(firstOf(doc, "audience_notes", "audienceNotes").String()),
	}
	if o.Title == "" {
		o.Title = strings.TrimSpace(fallbackTitle)
	}
	if o.Title == "" {
		return nil, errNoTitle
	}

	sections := doc.Get("sections")
	if !sections.IsArray() || len(sections.Array()) == 0 {
		return nil, errNoSections
	}
	seen := make(map[string]int, len(sections.Array()))
	for i, s := range sections.Array() {
		heading := strings.TrimSpace(firstOf(s, "heading", "title").String())
		if heading == "" {
			return nil, fmt.Errorf("section %d has no heading", i+1)
		}
		key := strings.ToLower(heading)
		if prev, dup := seen[key]; dup {
			return nil, fmt.Errorf("section %d repeats the heading %q of section %d; headings must be unique", i+1, heading, prev)
		}
		seen[key] = i + 1
		o.Sections = append(o.Sections, SectionPlan{
			Heading:     heading,
			ContentType: normalizeContentType(firstOf(s, "content_type", "contentType", "type").String()),
			KeyPoints:   keyPointList(firstOf(s, "key_points", "keyPoints")),
			LengthHint:  strings.ToLower(strings.TrimSpace(firstOf(s, "estimated_length", "length_hint", "lengthHint").String())),
		})
	}
	return o, nil
}

// firstOf returns the first present field among names.
func firstOf(r gjson.Result, names ...string) gjson.Result {
	for _, n := range names {
		if v := r.Get(n); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}

// keyPointList accepts an array of strings or a single string with one
// point per line.
func keyPointList(r gjson.Result) []string {
	var out []string
	add := func(s string) {
		s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "-*•"))
		if s != "" {
			out = append(out, s)
		}
	}
	switch {
	case r.IsArray():
		for _, v := range r.Array() {
			add(v.String())
		}
	case r.Type == gjson.String:
		for _, line := range strings.Split(r.String(), "\n") {
			add(line)
		}
	}
	return out
}

// firstJSONObject returns the first balanced {...} span in s, skipping
// braces inside string literals.
func firstJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	for start >= 0 {
		depth := 0
		inString, escaped := false, false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
		next := strings.IndexByte(s[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}
