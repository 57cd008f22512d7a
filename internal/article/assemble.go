package article

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/Gmabatah93/Project2Article/internal/project"
)

// ErrDraftMismatch is returned when drafts do not line up with the outline.
var ErrDraftMismatch = errors.New("article: drafts do not match outline")

// Assembler joins drafts into the final document.
type Assembler struct {
	now func() time.Time
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock adds a generation timestamp to the footer, read from now.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler creates an Assembler. Without WithClock the footer carries
// no timestamp.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble renders the title, each draft in outline order and the
// metadata footer.
func (a *Assembler) Assemble(outline *Outline, drafts []SectionDraft, cfg Config, sum *project.Summary) (string, error) {
	if len(drafts) != len(outline.Sections) {
		return "", fmt.Errorf("%w: %d drafts for %d sections", ErrDraftMismatch, len(drafts), len(outline.Sections))
	}
	for i, d := range drafts {
		if d.Heading != outline.Sections[i].Heading {
			return "", fmt.Errorf("%w: draft %d is %q, outline expects %q", ErrDraftMismatch, i+1, d.Heading, outline.Sections[i].Heading)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", outline.Title)
	for _, d := range drafts {
		fmt.Fprintf(&b, "## %s\n\n%s\n\n", d.Heading, strings.TrimSpace(d.Body))
	}
	b.WriteString(a.footer(cfg, sum))
	return b.String(), nil
}

func (a *Assembler) footer(cfg Config, sum *project.Summary) string {
	var b strings.Builder
	b.WriteString("---\n\n## Article Information\n\n")
	b.WriteString("- **Generated by**: Project2Article\n")
	fmt.Fprintf(&b, "- **Analysis Depth**: %s\n", cfg.Depth.Label())
	fmt.Fprintf(&b, "- **Article Tone**: %s\n", cfg.Tone)
	fmt.Fprintf(&b, "- **Target Audience**: %s\n", cfg.Audience)
	fmt.Fprintf(&b, "- **Provider**: %s\n", cfg.Provider.DisplayName())
	if sum != nil {
		fmt.Fprintf(&b, "- **Project Files Analyzed**: %d\n", sum.TotalFiles())
		fmt.Fprintf(&b, "- **Code Files**: %d\n", sum.Count(project.CategoryCode))
		fmt.Fprintf(&b, "- **README Files**: %d\n", sum.Count(project.CategoryReadme))
		fmt.Fprintf(&b, "- **Configuration Files**: %d\n", sum.Count(project.CategoryConfig))
	}
	if a.now != nil {
		fmt.Fprintf(&b, "- **Generated**: %s\n", a.now().UTC().Format(time.RFC3339))
	}
	b.WriteString("\n*This article was generated automatically from the project files. Review it before publishing.*\n")
	return b.String()
}

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(parser.WithAutoHeadingID()),
)

// RenderHTML converts an article to a standalone HTML page.
func RenderHTML(title, md string) ([]byte, error) {
	var body bytes.Buffer
	if err := markdown.Convert([]byte(md), &body); err != nil {
		return nil, fmt.Errorf("article: render html: %w", err)
	}
	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&out, "<title>%s</title>\n", htmlEscape(title))
	out.WriteString("</head>\n<body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body>\n</html>\n")
	return out.Bytes(), nil
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")

func htmlEscape(s string) string { return htmlEscaper.Replace(s) }
