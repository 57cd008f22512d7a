package article

import (
	"embed"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Gmabatah93/Project2Article/internal/llm"
	"github.com/Gmabatah93/Project2Article/internal/project"
)

// promptFS holds the fixed instruction blocks, one file per enum value.
//
//go:embed prompts/*.txt
var promptFS embed.FS

const (
	maxListedFiles   = 20
	maxTreeRunes     = 3000
	maxConfigFiles   = 6
	maxCodeFiles     = 8
	maxContextRunes  = 24000
	correctionPrefix = "Your previous response could not be used"
)

func instruction(name string) string {
	data, err := promptFS.ReadFile("prompts/" + name + ".txt")
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func toneInstruction(t Tone) string {
	return instruction("tone_" + strings.ToLower(t.String()))
}

func audienceInstruction(a Audience) string {
	return instruction("audience_" + strings.ToLower(a.String()))
}

func depthInstruction(d project.Depth) string {
	return instruction("depth_" + d.String())
}

// projectName picks the name used in prompts.
func projectName(cfg Config) string {
	switch {
	case strings.TrimSpace(cfg.ProjectName) != "":
		return strings.TrimSpace(cfg.ProjectName)
	case strings.TrimSpace(cfg.Title) != "":
		return strings.TrimSpace(cfg.Title)
	default:
		return "Project"
	}
}

// PlanPrompt builds the planner prompt for sum and cfg.
func PlanPrompt(sum *project.Summary, cfg Config) string {
	var b strings.Builder
	b.WriteString("You are planning a technical article about a software project.\n\n")
	fmt.Fprintf(&b, "%s %s\n", llm.LabelProject, projectName(cfg))
	fmt.Fprintf(&b, "%s %s\n", llm.LabelDepth, cfg.Depth.Label())
	fmt.Fprintf(&b, "%s %s\n", llm.LabelTone, cfg.Tone)
	fmt.Fprintf(&b, "%s %s\n", llm.LabelAudience, cfg.Audience)
	if cfg.Title != "" {
		fmt.Fprintf(&b, "Requested title: %s\n", cfg.Title)
	}

	b.WriteString("\n## Project statistics\n\n")
	fmt.Fprintf(&b, "- Total files: %d\n", sum.TotalFiles())
	fmt.Fprintf(&b, "- README files: %d\n", sum.Count(project.CategoryReadme))
	fmt.Fprintf(&b, "- Config files: %d\n", sum.Count(project.CategoryConfig))
	fmt.Fprintf(&b, "- Code files: %d\n", sum.Count(project.CategoryCode))
	fmt.Fprintf(&b, "- Other files: %d\n", sum.Count(project.CategoryOther))
	if exts := sum.TopExtensions(5); len(exts) > 0 {
		fmt.Fprintf(&b, "- Most common extensions: %s\n", strings.Join(exts, ", "))
	}

	for _, c := range []project.Category{project.CategoryReadme, project.CategoryConfig, project.CategoryCode} {
		files := sum.ByCategory(c)
		if len(files) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n## %s files\n\n", categoryTitle(c))
		writeFileList(&b, files)
	}

	if sum.TreeText != "" {
		b.WriteString("\n## Directory structure\n\n```text\n")
		b.WriteString(truncateRunes(sum.TreeText, maxTreeRunes))
		b.WriteString("\n```\n")
	}

	if readme, ok := sum.Readme(); ok {
		fmt.Fprintf(&b, "\n## README (%s)\n\n%s\n", readme.Path, readme.Excerpt)
	}

	fmt.Fprintf(&b, "\n## Tone\n\n%s\n", toneInstruction(cfg.Tone))
	fmt.Fprintf(&b, "\n## Audience\n\n%s\n", audienceInstruction(cfg.Audience))
	fmt.Fprintf(&b, "\n## Scope\n\n%s\n", depthInstruction(cfg.Depth))
	fmt.Fprintf(&b, "\n## Output format (%s)\n\n%s\n", llm.OutlineMarker, instruction("outline_contract"))
	return b.String()
}

// correctionPrompt appends the retry instruction to a planner prompt.
func correctionPrompt(prompt string, cause error) string {
	return fmt.Sprintf("%s\n\n%s: %v. Return only one valid JSON object that follows the output format above.\n",
		prompt, correctionPrefix, cause)
}

// SectionPrompt builds the prompt for section i of outline. Only project
// content relevant to the section's content type is included.
func SectionPrompt(outline *Outline, i int, sum *project.Summary, cfg Config) string {
	plan := outline.Sections[i]

	var b strings.Builder
	fmt.Fprintf(&b, "You are writing one section of a technical article about %s.\n\n", projectName(cfg))
	fmt.Fprintf(&b, "Article title: %s\n", outline.Title)
	fmt.Fprintf(&b, "%s %s\n", llm.LabelTone, cfg.Tone)
	fmt.Fprintf(&b, "%s %s\n", llm.LabelAudience, cfg.Audience)
	fmt.Fprintf(&b, "%s %s\n", llm.LabelHeading, plan.Heading)
	fmt.Fprintf(&b, "Content type: %s\n", plan.ContentType)
	if plan.LengthHint != "" {
		fmt.Fprintf(&b, "Target length: %s\n", plan.LengthHint)
	}
	fmt.Fprintf(&b, "Section position: %d of %d\n", i+1, len(outline.Sections))
	if len(plan.KeyPoints) > 0 {
		b.WriteString(llm.LabelKeyPoints + "\n")
		for _, p := range plan.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	b.WriteString("\n## Style\n\n")
	b.WriteString(toneInstruction(cfg.Tone) + "\n")
	b.WriteString(audienceInstruction(cfg.Audience) + "\n")
	if outline.ToneNotes != "" {
		fmt.Fprintf(&b, "Tone notes: %s\n", outline.ToneNotes)
	}
	if outline.AudienceNotes != "" {
		fmt.Fprintf(&b, "Audience notes: %s\n", outline.AudienceNotes)
	}

	if extra := sectionContext(plan.ContentType, sum, cfg.Depth); extra != "" {
		b.WriteString("\n## Project context\n\n")
		b.WriteString(extra)
	}

	b.WriteString("\nWrite only the body of this section in Markdown. Do not repeat the section heading.\n")
	return b.String()
}

// sectionContext selects the slice of the summary a section may see: the
// README always, config excerpts for setup, code excerpts and outlines for
// code_analysis in detailed depth, and the tree for overview and
// code_analysis.
func sectionContext(contentType string, sum *project.Summary, depth project.Depth) string {
	var b strings.Builder
	if readme, ok := sum.Readme(); ok {
		fmt.Fprintf(&b, "### README (%s)\n\n%s\n\n", readme.Path, readme.Excerpt)
	}

	if contentType == ContentSetup {
		n := 0
		for _, f := range sum.ByCategory(project.CategoryConfig) {
			if f.Excerpt == "" || n == maxConfigFiles {
				continue
			}
			fmt.Fprintf(&b, "### Config: %s\n\n```\n%s\n```\n\n", f.Path, strings.TrimRight(f.Excerpt, "\n"))
			n++
		}
	}

	if contentType == ContentCodeAnalysis && depth == project.DepthDetailed {
		n := 0
		for _, f := range sum.ByCategory(project.CategoryCode) {
			if f.Excerpt == "" || n == maxCodeFiles {
				continue
			}
			fmt.Fprintf(&b, "### Code: %s\n\n", f.Path)
			if f.Outline != "" {
				fmt.Fprintf(&b, "Symbols:\n%s\n\n", f.Outline)
			}
			fmt.Fprintf(&b, "```\n%s\n```\n\n", strings.TrimRight(f.Excerpt, "\n"))
			n++
		}
	}

	if (contentType == ContentOverview || contentType == ContentCodeAnalysis) && sum.TreeText != "" {
		fmt.Fprintf(&b, "### Directory structure\n\n```text\n%s\n```\n\n", truncateRunes(sum.TreeText, maxTreeRunes))
	}

	return truncateRunes(b.String(), maxContextRunes)
}

func categoryTitle(c project.Category) string {
	switch c {
	case project.CategoryReadme:
		return "README"
	case project.CategoryConfig:
		return "Config"
	case project.CategoryCode:
		return "Code"
	default:
		return "Other"
	}
}

func writeFileList(b *strings.Builder, files []project.File) {
	for i, f := range files {
		if i == maxListedFiles {
			fmt.Fprintf(b, "- ... and %d more\n", len(files)-maxListedFiles)
			return
		}
		fmt.Fprintf(b, "- %s\n", f.Path)
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "\n..."
}
