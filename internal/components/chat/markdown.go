package chat

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

var (
	renderers = map[int]*glamour.TermRenderer{}
	mu        sync.Mutex
	enabled   = true
)

// RenderMarkdown renders markdown content wrapped at width.
// Falls back to plain text if rendering fails or is disabled.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}

	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return content
	}

	r, ok := renderers[width]
	if !ok {
		var err error
		r, err = glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		renderers[width] = r
	}

	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

// SetMarkdownEnabled enables or disables markdown rendering
func SetMarkdownEnabled(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = enable
}
