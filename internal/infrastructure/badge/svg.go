// Package badge renders the coverage status icon shown in pull request
// comments.
package badge

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/charmbracelet/lipgloss"
)

const (
	baseIconWidth = 70
	baseFontXPos  = 65
	// average advance of an 11px DejaVu Sans glyph
	glyphWidth = 7
)

var namedColors = map[string]string{
	"red":         "#b94947",
	"yellow":      "#F89406",
	"brightgreen": "#97CA00",
	"green":       "#008000",
}

type Options struct {
	Message string
	Color   string // color name or #rrggbb
}

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" width="{{.TotalWidth}}" height="20" role="img" aria-label="coverage: {{.Message}}">
  <title>coverage: {{.Message}}</title>
  <linearGradient id="b" x2="0" y2="100%">
    <stop offset="0" stop-color="#bbb" stop-opacity=".1"/>
    <stop offset="1" stop-opacity=".1"/>
  </linearGradient>
  <mask id="a">
    <rect width="{{.TotalWidth}}" height="20" rx="3" fill="#fff"/>
  </mask>
  <g mask="url(#a)">
    <path fill="#555" d="M0 0h61v20H0z"/>
    <path fill="{{.Color}}" d="M61 0h{{.ValueWidth}}v20H61z"/>
    <path fill="url(#b)" d="M0 0h{{.TotalWidth}}v20H0z"/>
  </g>
  <g fill="#fff" text-anchor="middle" font-family="DejaVu Sans,Verdana,Geneva,sans-serif" font-size="11">
    <text x="30.5" y="15" fill="#010101" fill-opacity=".3">coverage</text>
    <text x="30.5" y="14">coverage</text>
    <text x="{{.FontXPos}}" y="15" fill="#010101" fill-opacity=".3">{{.Message}}</text>
    <text x="{{.FontXPos}}" y="14">{{.Message}}</text>
  </g>
</svg>
`

var tmpl = template.Must(template.New("icon").Parse(svgTemplate))

type templateData struct {
	Message    string
	Color      string
	TotalWidth int
	ValueWidth int
	FontXPos   int
}

// HexColor maps the color names used in comment URLs to the icon palette.
// Hex values pass through; unknown names are returned unchanged.
func HexColor(color string) string {
	if strings.HasPrefix(color, "#") {
		return color
	}
	if hex, ok := namedColors[strings.ToLower(color)]; ok {
		return hex
	}
	return color
}

// TextWidth estimates the rendered width of s in pixels.
func TextWidth(s string) int {
	return lipgloss.Width(s) * glyphWidth
}

func Generate(w io.Writer, opts Options) error {
	textWidth := TextWidth(opts.Message)
	total := baseIconWidth + textWidth
	data := templateData{
		Message:    template.HTMLEscapeString(opts.Message),
		Color:      template.HTMLEscapeString(HexColor(opts.Color)),
		TotalWidth: total,
		ValueWidth: total - 61,
		FontXPos:   baseFontXPos + textWidth/2,
	}
	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("render icon: %w", err)
	}
	return nil
}

// Renderer implements application.IconRenderer.
type Renderer struct{}

func NewRenderer() Renderer {
	return Renderer{}
}

func (Renderer) Render(message, color string) (string, error) {
	var buf bytes.Buffer
	if err := Generate(&buf, Options{Message: message, Color: color}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
