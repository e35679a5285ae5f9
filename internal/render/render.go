// Package render turns Markdown views into terminal output.
package render

import (
	"github.com/charmbracelet/glamour"
)

// noMarginStyle drops the document margins glamour adds by default.
const noMarginStyle = `{
	"document": {
		"margin": 0,
		"block_prefix": "",
		"block_suffix": ""
	}
}`

// DefaultStyle is used when no style is configured. A fixed style keeps
// glamour from querying the terminal for its background colour.
const DefaultStyle = "dark"

// Renderer renders Markdown with glamour. The zero value, and the value
// returned by Plain, passes Markdown through unchanged.
type Renderer struct {
	term  *glamour.TermRenderer
	width int
}

// New creates a glamour renderer wrapping at width. style is a glamour style
// name ("dark", "light", "notty", ...) or a path to a JSON style file.
func New(width int, style string) (*Renderer, error) {
	if style == "" {
		style = DefaultStyle
	}
	term, err := glamour.NewTermRenderer(
		glamour.WithStylePath(style),
		glamour.WithStylesFromJSONBytes([]byte(noMarginStyle)),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Renderer{term: term, width: width}, nil
}

// Plain returns a renderer that prints Markdown as is.
func Plain() *Renderer {
	return &Renderer{}
}

// Width returns the configured word wrap width.
func (r *Renderer) Width() int {
	return r.width
}

// Render returns the styled form of markdown. When glamour fails the input is
// returned unchanged.
func (r *Renderer) Render(markdown string) string {
	if r == nil || r.term == nil {
		return markdown
	}
	out, err := r.term.Render(markdown)
	if err != nil {
		return markdown
	}
	return out
}
