package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// DefaultReferenceLabel names the reference when the caller gives none.
const DefaultReferenceLabel = "master"

// IconPath is the path segment of the locally served coverage icon.
const IconPath = "coverage-status-icon"

// ShieldsBaseURL is the external badge generator used in shields mode.
const ShieldsBaseURL = "https://img.shields.io/badge/"

// CommentMode selects where the comment image points.
type CommentMode string

const (
	// CommentShields embeds an img.shields.io badge URL.
	CommentShields CommentMode = "shields"
	// CommentLocal embeds a URL to the icon endpoint served by covstatus.
	CommentLocal CommentMode = "local"
)

// CommentOptions configures Message.Comment.
type CommentOptions struct {
	Mode       CommentMode
	BaseURL    string // root of the icon endpoint, local mode only
	BuildURL   string // link target of the image
	Thresholds ThresholdConfig
	PlainGreen bool
}

// Message compares a coverage ratio with a reference ratio. Both inputs are
// rounded to four decimals on construction; every rendering is a pure
// function of the stored values.
type Message struct {
	coverage  float64
	reference float64
	label     string
}

// NewMessage builds a Message. An empty label becomes "master".
func NewMessage(coverage, reference CoverageRatio, label string) Message {
	if strings.TrimSpace(label) == "" {
		label = DefaultReferenceLabel
	}
	return Message{
		coverage:  RoundFourAfterDigit(coverage),
		reference: RoundFourAfterDigit(reference),
		label:     label,
	}
}

// Coverage returns the rounded current ratio.
func (m Message) Coverage() float64 { return m.coverage }

// Reference returns the rounded reference ratio.
func (m Message) Reference() float64 { return m.reference }

// Label returns the reference label.
func (m Message) Label() string { return m.label }

// Change returns the signed delta used by every rendering.
func (m Message) Change() float64 {
	return Change(m.coverage, m.reference)
}

// Decreased reports whether coverage went down against the reference.
func (m Message) Decreased() bool {
	return m.Change() < 0
}

// Console renders the build-log line,
// e.g. "Coverage 70% changed +20.0% vs master 50%".
func (m Message) Console() string {
	return fmt.Sprintf("Coverage %s changed %s vs %s %s",
		FormatWholeNoSign(m.coverage), FormatChange(m.Change()), m.label, FormatWholeNoSign(m.reference))
}

// Icon renders the badge caption, e.g. "92% (+23.0%) vs master 70%".
func (m Message) Icon() string {
	return fmt.Sprintf("%s (%s) vs %s %s",
		FormatWholeNoSign(m.coverage), FormatChange(m.Change()), m.label, FormatWholeNoSign(m.reference))
}

// Color buckets the current coverage with the given thresholds.
func (m Message) Color(cfg ThresholdConfig) ColorTier {
	return ColorTierFor(ToPercent(m.coverage), cfg, m.Decreased())
}

// Comment renders the markdown image link posted on a pull request.
func (m Message) Comment(opts CommentOptions) string {
	caption := m.Icon()
	color := m.Color(opts.Thresholds).Token(opts.PlainGreen)

	var image string
	switch opts.Mode {
	case CommentLocal:
		image = m.localIconURL(opts.BaseURL, color)
	default:
		image = ShieldsBaseURL + "coverage-" + shieldsEscaper.Replace(caption) + "-" + color + ".svg"
	}
	return "[![" + caption + "](" + image + ")](" + opts.BuildURL + ")"
}

func (m Message) localIconURL(baseURL, color string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSuffix(baseURL, "/"))
	b.WriteString("/" + IconPath + "/?coverage=")
	b.WriteString(formatDecimal(m.coverage))
	b.WriteString("&masterCoverage=")
	b.WriteString(formatDecimal(m.reference))
	b.WriteString("&color=")
	b.WriteString(color)
	if m.label != DefaultReferenceLabel {
		b.WriteString("&branch=")
		b.WriteString(url.QueryEscape(m.label))
	}
	return b.String()
}

// JenkinsRoot cuts a Jenkins build URL at its first "/job/" segment.
func JenkinsRoot(buildURL string) (string, error) {
	i := strings.Index(buildURL, "/job/")
	if i < 0 {
		return "", fmt.Errorf("invalid build URL: %s", buildURL)
	}
	return buildURL[:i], nil
}

// shieldsEscaper applies the static-badge path conventions: dashes and
// underscores are doubled, the rest is percent-encoded.
var shieldsEscaper = strings.NewReplacer(
	"-", "--",
	"_", "__",
	"%", "%25",
	" ", "%20",
	"+", "%2B",
	"/", "%2F",
)
