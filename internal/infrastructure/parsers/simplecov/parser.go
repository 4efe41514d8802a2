// Package simplecov implements a parser for the JSON summary written by
// Ruby's SimpleCov (simplecov-json, coverage/coverage.json).
package simplecov

import (
	"encoding/json"
	"fmt"

	"github.com/PaesslerAG/jsonpath"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// CoveredPercentPath locates the 0-100 summary percent.
const CoveredPercentPath = "$.metrics.covered_percent"

// Parser implements ReportParser for SimpleCov JSON.
type Parser struct{}

// New creates a new SimpleCov parser.
func New() *Parser {
	return &Parser{}
}

// Format returns the format this parser handles.
func (p *Parser) Format() domain.ReportFormat {
	return domain.FormatSimpleCov
}

// Parse returns metrics.covered_percent divided by 100.
func (p *Parser) Parse(report application.Report) (domain.Measurement, error) {
	if len(report.Content) == 0 {
		return domain.Measurement{}, &domain.UnreadableReportError{
			Format: domain.FormatSimpleCov,
			Path:   report.Path,
			Err:    domain.ErrNoContent,
		}
	}

	var doc interface{}
	if err := json.Unmarshal(report.Content, &doc); err != nil {
		return domain.Measurement{}, p.malformed(report, err)
	}

	raw, err := jsonpath.Get(CoveredPercentPath, doc)
	if err != nil {
		return domain.Measurement{}, p.malformed(report, err)
	}

	percent, ok := raw.(float64)
	if !ok {
		return domain.Measurement{}, p.malformed(report, fmt.Errorf("value %v is not a number", raw))
	}

	return domain.Measurement{
		Format: domain.FormatSimpleCov,
		Path:   report.Path,
		Ratio:  percent / 100,
	}, nil
}

func (p *Parser) malformed(report application.Report, err error) error {
	return &domain.MalformedReportError{
		Format:  domain.FormatSimpleCov,
		Path:    report.Path,
		Locator: CoveredPercentPath,
		Content: string(report.Content),
		Err:     err,
	}
}
