// Package markdown derives display summaries from free-form analysis report
// bodies. Everything here is pure: no I/O, no side effects, and no failure
// mode — missing structure falls back to generic defaults.
package markdown

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Length gates count runes, not bytes. Reports are frequently CJK, where a
// byte cut would land mid-character.
const (
	maxKeywords      = 5
	maxKeywordLength = 20
	// highlight is cut to 117 runes plus an ellipsis when it would exceed
	// 120.
	maxHighlight = 120
	highlightCut = 117
	minParagraph = 100
)

const (
	fallbackTitle     = "Your Energy Analysis"
	fallbackHighlight = "Discover your unique energy patterns and unlock your potential."
)

var fallbackKeywords = []string{"Energy", "Balance", "Insight"}

var (
	h1Pattern   = regexp.MustCompile(`^#\s+(.+)$`)
	h2Pattern   = regexp.MustCompile(`^##\s+(.+)$`)
	boldPattern = regexp.MustCompile(`\*\*([^*]+)\*\*`)
)

// Summary is the share-card view of a report.
type Summary struct {
	Title     string   `json:"title"`
	Keywords  []string `json:"keywords"`
	Highlight string   `json:"highlight"`
}

// Summarize extracts a title, keyword list and highlight from a markdown
// report body. The first H1 or H2 becomes the title; subsequent H2 headings
// (deduplicated, excluding the title, capped at 5) become keywords; the
// first run of plain paragraph text becomes the highlight. Fields that stay
// empty after scanning get fixed fallbacks, so no field is ever empty.
func Summarize(markdownText string) Summary {
	var (
		title     string
		keywords  []string
		paragraph strings.Builder
		paraLen   int
		paraDone  bool
	)

	for _, line := range strings.Split(markdownText, "\n") {
		trimmed := strings.TrimSpace(line)

		if title == "" {
			if m := h1Pattern.FindStringSubmatch(trimmed); m != nil {
				title = strings.TrimSpace(m[1])
				continue
			}
			if m := h2Pattern.FindStringSubmatch(trimmed); m != nil {
				title = strings.TrimSpace(m[1])
				continue
			}
		}

		if m := h2Pattern.FindStringSubmatch(trimmed); m != nil && len(keywords) < maxKeywords {
			keyword := strings.TrimSpace(m[1])
			if keyword != title && !containsString(keywords, keyword) {
				keywords = append(keywords, keyword)
			}
			continue
		}

		if !paraDone && trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			if isParagraphText(trimmed) {
				paragraph.WriteString(trimmed)
				paragraph.WriteString(" ")
				paraLen += utf8.RuneCountInString(trimmed) + 1
				if paraLen >= minParagraph {
					paraDone = true
				}
			}
		} else if paragraph.Len() > 0 && trimmed == "" {
			paraDone = true
		}
	}

	highlight := strings.TrimSpace(paragraph.String())
	if runes := []rune(highlight); len(runes) > maxHighlight {
		highlight = string(runes[:highlightCut]) + "..."
	}

	// No H2 keywords found: fall back to bolded spans.
	if len(keywords) == 0 {
		for _, m := range boldPattern.FindAllStringSubmatch(markdownText, maxKeywords) {
			keyword := strings.TrimSpace(m[1])
			if utf8.RuneCountInString(keyword) < maxKeywordLength && !containsString(keywords, keyword) {
				keywords = append(keywords, keyword)
			}
		}
	}

	if title == "" {
		title = fallbackTitle
	}
	if len(keywords) == 0 {
		keywords = append(keywords, fallbackKeywords...)
	}
	if highlight == "" {
		highlight = fallbackHighlight
	}

	return Summary{Title: title, Keywords: keywords, Highlight: highlight}
}

// Snippet returns a save-time prefix summary of a report body: the first n
// runes of the raw content, whitespace-collapsed. Distinct from Summarize,
// which powers share cards.
func Snippet(content string, n int) string {
	collapsed := strings.Join(strings.Fields(content), " ")
	runes := []rune(collapsed)
	if len(runes) <= n {
		return collapsed
	}
	return string(runes[:n])
}

// isParagraphText rejects list items, blockquotes and code fences.
func isParagraphText(line string) bool {
	return !strings.HasPrefix(line, "-") &&
		!strings.HasPrefix(line, "*") &&
		!strings.HasPrefix(line, "```") &&
		!strings.HasPrefix(line, ">")
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
