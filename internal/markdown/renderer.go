package markdown

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
)

// defaultRenderWidth is the wrap width for terminal report output.
const defaultRenderWidth = 80

// Renderer turns a report's markdown into styled terminal output.
type Renderer struct {
	term  *glamour.TermRenderer
	width int
}

// NewRenderer creates a terminal renderer. width <= 0 takes the default.
func NewRenderer(width int) (*Renderer, error) {
	if width <= 0 {
		width = defaultRenderWidth
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create terminal renderer: %w", err)
	}
	return &Renderer{term: term, width: width}, nil
}

// Render renders report markdown for the terminal. Reports come from a model
// and occasionally contain markdown glamour chokes on; rendering failures
// degrade to the raw text rather than hiding the report.
func (r *Renderer) Render(content string) string {
	if content == "" {
		return ""
	}

	rendered, err := r.term.Render(content)
	if err != nil {
		return content
	}
	return collapseBlankLines(rendered)
}

// collapseBlankLines squeezes runs of blank lines down to one, which keeps
// chunk boundaries from showing up as gaps in the final output.
func collapseBlankLines(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blanks := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			blanks++
			if blanks > 1 {
				continue
			}
		} else {
			blanks = 0
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
