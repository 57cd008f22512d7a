package llm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plannerPrompt(depth, tone, audience string) string {
	return strings.Join([]string{
		"Plan an article. " + OutlineMarker,
		LabelProject + " demo",
		LabelDepth + " " + depth,
		LabelTone + " " + tone,
		LabelAudience + " " + audience,
	}, "\n")
}

func TestMock_OutlineByDepth(t *testing.T) {
	tests := []struct {
		depth    string
		sections int
	}{
		{"Overview", 4},
		{"Detailed", 6},
	}
	for _, tc := range tests {
		t.Run(tc.depth, func(t *testing.T) {
			var plan mockPlan
			require.NoError(t, json.Unmarshal([]byte(MockText(plannerPrompt(tc.depth, "Marketing", "Beginner"))), &plan))
			assert.Equal(t, "Inside demo", plan.Title)
			assert.Len(t, plan.Sections, tc.sections)
			assert.Equal(t, "Introduction", plan.Sections[0].Heading)
			assert.Equal(t, "Conclusion", plan.Sections[len(plan.Sections)-1].Heading)
			for _, s := range plan.Sections {
				assert.Len(t, s.KeyPoints, 3, s.Heading)
			}
			assert.Contains(t, plan.ToneNotes, "marketing")
			assert.Contains(t, plan.AudienceNotes, "beginner")
		})
	}
}

func TestMock_Deterministic(t *testing.T) {
	prompts := []string{
		plannerPrompt("Overview", "Explanatory", "Beginner"),
		"Section heading: Getting Started\nTone: Conversational\nKey points:\n- Install\n- Run\n",
	}
	for _, p := range prompts {
		a, err := Mock{}.Complete(context.Background(), p)
		require.NoError(t, err)
		b, err := Mock{}.Complete(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, a, b)
		assert.NotEmpty(t, a)
	}
}

func TestMock_SectionUsesHeadingKeyPointsAndTone(t *testing.T) {
	prompt := "Write a section.\nSection heading: Getting Started\nTone: Marketing\nKey points:\n- Install the CLI\n- Run it\n\nProject files follow."
	text := MockText(prompt)

	assert.Contains(t, text, "Getting Started is where this project really shines")
	assert.Contains(t, text, "**Install the CLI**")
	assert.Contains(t, text, "**Run it**")
	assert.NotContains(t, text, "Project files follow**")
	assert.Contains(t, text, "> Offline draft generated from:\n>\n> Write a section.\n> Section heading: Getting Started\n")
}

func TestMock_ExcerptIsCapped(t *testing.T) {
	text := MockText(strings.Repeat("word ", 200))
	i := strings.Index(text, "generated from:\n>\n> ")
	require.GreaterOrEqual(t, i, 0)
	excerpt := text[i+len("generated from:\n>\n> "):]
	assert.Equal(t, strings.Repeat("word ", 32)+"...", excerpt)
}

func TestPromptExcerpt(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		expect string
	}{
		{"keeps spacing", "a  b\tc", "> a  b\tc"},
		{"quotes every line", "## Heading\n\n- item", "> ## Heading\n>\n> - item"},
		{"cuts by runes", strings.Repeat("é", mockExcerptRunes+5), "> " + strings.Repeat("é", mockExcerptRunes) + "..."},
		{"exact length is not cut", strings.Repeat("x", mockExcerptRunes), "> " + strings.Repeat("x", mockExcerptRunes)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, promptExcerpt(tt.prompt))
		})
	}
}

func TestUsableCredential(t *testing.T) {
	assert.True(t, UsableCredential("sk-live-123"))
	assert.False(t, UsableCredential(""))
	assert.False(t, UsableCredential("your-google-api-key-here"))
	assert.False(t, UsableCredential("YOUR-ANTHROPIC-KEY-HERE"))
}
