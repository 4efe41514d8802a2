// Package cobertura implements a parser for Cobertura XML coverage format.
//
// Cobertura XML format is widely used by:
//   - Python (coverage.py with --xml)
//   - JavaScript (istanbul/nyc cobertura reporter)
//   - .NET (coverlet)
//   - Many CI tools (Jenkins, Azure DevOps, etc.)
//
// Only the summary rates on the root element are read.
package cobertura

import (
	"encoding/xml"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/xmlattr"
)

const (
	lineRateLocator   = "/coverage/@line-rate"
	branchRateLocator = "/coverage/@branch-rate"
)

// coverage represents the root Cobertura XML element.
type coverage struct {
	XMLName xml.Name   `xml:"coverage"`
	Attrs   []xml.Attr `xml:",any,attr"`
}

// Parser implements ReportParser for Cobertura XML format.
type Parser struct{}

// New creates a new Cobertura parser.
func New() *Parser {
	return &Parser{}
}

// Format returns the format this parser handles.
func (p *Parser) Format() domain.ReportFormat {
	return domain.FormatCobertura
}

// Parse combines the line and branch rates of the root element.
//
// A rate that is zero while the other is positive is treated as "not
// measured" and the other rate is returned alone. A report that explicitly
// declares lines-valid="0" (or branches-valid="0") has no lines (branches)
// at all, so the corresponding rate is ignored.
func (p *Parser) Parse(report application.Report) (domain.Measurement, error) {
	if len(report.Content) == 0 {
		return domain.Measurement{}, &domain.UnreadableReportError{
			Format: domain.FormatCobertura,
			Path:   report.Path,
			Err:    domain.ErrNoContent,
		}
	}

	var root coverage
	if err := xml.Unmarshal(report.Content, &root); err != nil {
		return domain.Measurement{}, p.malformed(report, lineRateLocator, err)
	}

	noLines := declaresEmpty(root.Attrs, "lines-valid")
	noBranches := declaresEmpty(root.Attrs, "branches-valid")

	var lineRate, branchRate float64
	var err error
	if !noLines {
		if lineRate, err = xmlattr.Float(root.Attrs, "line-rate"); err != nil {
			return domain.Measurement{}, p.malformed(report, lineRateLocator, err)
		}
	}
	if !noBranches {
		if branchRate, err = xmlattr.Float(root.Attrs, "branch-rate"); err != nil {
			return domain.Measurement{}, p.malformed(report, branchRateLocator, err)
		}
	}

	var ratio float64
	switch {
	case noLines && noBranches:
		ratio = 0
	case noLines:
		ratio = branchRate
	case noBranches:
		ratio = lineRate
	default:
		ratio = combine(lineRate, branchRate)
	}

	return domain.Measurement{
		Format: domain.FormatCobertura,
		Path:   report.Path,
		Ratio:  ratio,
	}, nil
}

func combine(lineRate, branchRate float64) float64 {
	switch {
	case lineRate > 0 && branchRate == 0:
		return lineRate
	case lineRate == 0 && branchRate > 0:
		return branchRate
	default:
		return (lineRate + branchRate) / 2
	}
}

func declaresEmpty(attrs []xml.Attr, name string) bool {
	v, ok := xmlattr.Lookup(attrs, name)
	return ok && v == "0"
}

func (p *Parser) malformed(report application.Report, locator string, err error) error {
	return &domain.MalformedReportError{
		Format:  domain.FormatCobertura,
		Path:    report.Path,
		Locator: locator,
		Content: string(report.Content),
		Err:     err,
	}
}
