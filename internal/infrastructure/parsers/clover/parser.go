// Package clover implements a parser for Clover XML coverage reports as
// written by OpenClover, PHPUnit and istanbul's clover reporter.
package clover

import (
	"encoding/xml"
	"errors"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/xmlattr"
)

const (
	statementsLocator = "/coverage/project/metrics/@statements"
	coveredLocator    = "/coverage/project/metrics/@coveredstatements"
)

var errNoMetrics = errors.New("no project metrics element")

type coverage struct {
	XMLName xml.Name `xml:"coverage"`
	Project *project `xml:"project"`
}

type project struct {
	Metrics *metrics `xml:"metrics"`
}

type metrics struct {
	Attrs []xml.Attr `xml:",any,attr"`
}

// Parser implements ReportParser for Clover XML format.
type Parser struct{}

// New creates a new Clover parser.
func New() *Parser {
	return &Parser{}
}

// Format returns the format this parser handles.
func (p *Parser) Format() domain.ReportFormat {
	return domain.FormatClover
}

// Parse returns coveredstatements/statements of the project metrics.
// A project without statements yields 0.
func (p *Parser) Parse(report application.Report) (domain.Measurement, error) {
	if len(report.Content) == 0 {
		return domain.Measurement{}, &domain.UnreadableReportError{
			Format: domain.FormatClover,
			Path:   report.Path,
			Err:    domain.ErrNoContent,
		}
	}

	var root coverage
	if err := xml.Unmarshal(report.Content, &root); err != nil {
		return domain.Measurement{}, p.malformed(report, statementsLocator, err)
	}
	if root.Project == nil || root.Project.Metrics == nil {
		return domain.Measurement{}, p.malformed(report, statementsLocator, errNoMetrics)
	}
	attrs := root.Project.Metrics.Attrs

	statements, err := xmlattr.Float(attrs, "statements")
	if err != nil {
		return domain.Measurement{}, p.malformed(report, statementsLocator, err)
	}

	covered, err := xmlattr.Float(attrs, "coveredstatements")
	if err != nil {
		return domain.Measurement{}, p.malformed(report, coveredLocator, err)
	}

	m := domain.Measurement{Format: domain.FormatClover, Path: report.Path}
	if statements == 0 {
		return m, nil
	}
	m.Ratio = covered / statements
	return m, nil
}

func (p *Parser) malformed(report application.Report, locator string, err error) error {
	return &domain.MalformedReportError{
		Format:  domain.FormatClover,
		Path:    report.Path,
		Locator: locator,
		Content: string(report.Content),
		Err:     err,
	}
}
