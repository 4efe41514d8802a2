// Package jacoco implements a parser for JaCoCo XML coverage reports.
//
// The report-level <counter> elements (direct children of <report>) hold the
// totals for the whole report; the counter type is selected by the
// jacoco-line, jacoco-branch and jacoco-instruction format variants.
package jacoco

import (
	"encoding/xml"
	"fmt"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/xmlattr"
)

type report struct {
	XMLName  xml.Name  `xml:"report"`
	Name     string    `xml:"name,attr"`
	Counters []counter `xml:"counter"`
}

type counter struct {
	Type  string     `xml:"type,attr"`
	Attrs []xml.Attr `xml:",any,attr"`
}

// Parser implements ReportParser for every JaCoCo format variant.
type Parser struct{}

// New creates a new JaCoCo parser.
func New() *Parser {
	return &Parser{}
}

// Formats returns the format variants this parser handles.
func (p *Parser) Formats() []domain.ReportFormat {
	return []domain.ReportFormat{domain.FormatJacocoLine, domain.FormatJacocoBranch, domain.FormatJacocoInstruction}
}

// Parse reads the covered and missed attributes of the selected counter.
// A counter with nothing to cover yields 0. The measurement carries the raw
// counter so callers can sum it across reports.
func (p *Parser) Parse(r application.Report) (domain.Measurement, error) {
	format := r.Format
	if !format.IsJacoco() {
		format = domain.FormatJacocoLine
	}
	counterType := format.CounterType()

	if len(r.Content) == 0 {
		return domain.Measurement{}, &domain.UnreadableReportError{Format: format, Path: r.Path, Err: domain.ErrNoContent}
	}

	missedLocator := locator(counterType, "missed")
	var root report
	if err := xml.Unmarshal(r.Content, &root); err != nil {
		return domain.Measurement{}, malformed(r, format, missedLocator, err)
	}

	c, ok := root.counter(counterType)
	if !ok {
		return domain.Measurement{}, malformed(r, format, missedLocator, fmt.Errorf("no %s counter", counterType))
	}

	missed, err := xmlattr.Float(c.Attrs, "missed")
	if err != nil {
		return domain.Measurement{}, malformed(r, format, missedLocator, err)
	}
	covered, err := xmlattr.Float(c.Attrs, "covered")
	if err != nil {
		return domain.Measurement{}, malformed(r, format, locator(counterType, "covered"), err)
	}

	pair := domain.CounterPair{Covered: covered, Missed: missed}
	return domain.Measurement{
		Format:  format,
		Path:    r.Path,
		Ratio:   pair.Ratio(),
		Counter: &pair,
	}, nil
}

func (r report) counter(counterType string) (counter, bool) {
	for _, c := range r.Counters {
		if c.Type == counterType {
			return c, true
		}
	}
	return counter{}, false
}

func locator(counterType, attr string) string {
	return fmt.Sprintf("/report/counter[@type='%s']/@%s", counterType, attr)
}

func malformed(r application.Report, format domain.ReportFormat, loc string, err error) error {
	return &domain.MalformedReportError{
		Format:  format,
		Path:    r.Path,
		Locator: loc,
		Content: string(r.Content),
		Err:     err,
	}
}
