package markdown

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSummarize_FullReport(t *testing.T) {
	report := `# The Water Pattern

## Water

You move like water: around obstacles, not through them. This passage keeps
going long enough to cross the paragraph threshold for the highlight.

## Career

Momentum builds slowly.

## Bonds

You read rooms quickly.
`

	summary := Summarize(report)

	assert.Equal(t, "The Water Pattern", summary.Title)
	assert.Equal(t, []string{"Water", "Career", "Bonds"}, summary.Keywords)
	assert.True(t, strings.HasPrefix(summary.Highlight, "You move like water"))
}

func TestSummarize_H2Title(t *testing.T) {
	summary := Summarize("## Only Heading\n\nBody text here.")
	assert.Equal(t, "Only Heading", summary.Title)
	// The title heading is excluded from keywords, so fallbacks apply.
	assert.Equal(t, fallbackKeywords, summary.Keywords)
}

func TestSummarize_KeywordRules(t *testing.T) {
	report := `# Title

## One
## Two
## One
## Three
## Four
## Five
## Six
`
	summary := Summarize(report)

	assert.LessOrEqual(t, len(summary.Keywords), 5)
	seen := make(map[string]bool)
	for _, k := range summary.Keywords {
		assert.False(t, seen[k], "duplicate keyword %q", k)
		seen[k] = true
	}
}

func TestSummarize_BoldFallback(t *testing.T) {
	report := "# Title\n\nWe see **Focus** and **Drive** and **Focus** again, " +
		"plus **a span that is far too long to qualify as a keyword**."

	summary := Summarize(report)
	assert.Equal(t, []string{"Focus", "Drive"}, summary.Keywords)
}

func TestSummarize_HighlightTruncation(t *testing.T) {
	long := strings.Repeat("word ", 60)
	summary := Summarize("# T\n\n" + long)

	assert.LessOrEqual(t, len(summary.Highlight), 120)
	assert.True(t, strings.HasSuffix(summary.Highlight, "..."))
}

func TestSummarize_CJKHighlightTruncatesOnRunes(t *testing.T) {
	long := "A" + strings.Repeat("水象星座的你如同流水", 15)
	summary := Summarize("# 标题\n\n" + long)

	assert.True(t, utf8.ValidString(summary.Highlight))
	assert.LessOrEqual(t, utf8.RuneCountInString(summary.Highlight), 120)
	assert.True(t, strings.HasSuffix(summary.Highlight, "..."))
}

func TestSummarize_CJKBoldKeywords(t *testing.T) {
	// 8 runes but 24 bytes: the length gate must count runes.
	report := "# 标题\n\n你的核心是**水象星座的你如同**与**平衡**。"

	summary := Summarize(report)
	assert.Equal(t, []string{"水象星座的你如同", "平衡"}, summary.Keywords)
}

func TestSummarize_SkipsListsAndQuotes(t *testing.T) {
	report := `# Title

- a list item
* another item
> a quote

The real first paragraph.
`
	summary := Summarize(report)
	assert.Equal(t, "The real first paragraph.", summary.Highlight)
}

func TestSummarize_EmptyInput(t *testing.T) {
	summary := Summarize("")

	assert.Equal(t, fallbackTitle, summary.Title)
	assert.Equal(t, fallbackKeywords, summary.Keywords)
	assert.Equal(t, fallbackHighlight, summary.Highlight)
	assert.NotEmpty(t, summary.Title)
	assert.NotEmpty(t, summary.Keywords)
	assert.NotEmpty(t, summary.Highlight)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 100))
	assert.Equal(t, "a b c", Snippet("a\n\nb\t c", 100))

	long := strings.Repeat("x", 150)
	assert.Len(t, Snippet(long, 100), 100)
}

func TestSnippet_CJKCutsOnRuneBoundary(t *testing.T) {
	got := Snippet(strings.Repeat("能量平衡", 40), 100)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 100, utf8.RuneCountInString(got))
}
