// Package parsers provides a unified registry for coverage report parsers.
//
// The registry dispatches on the report format and detects it from content
// when the caller leaves it empty.
package parsers

import (
	"fmt"

	"github.com/felixgeelhaar/covstatus/internal/application"
	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/clover"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/cobertura"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/detector"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/jacoco"
	"github.com/felixgeelhaar/covstatus/internal/infrastructure/parsers/simplecov"
)

// Registry manages the format parsers and auto-detects formats.
type Registry struct {
	detector *detector.Detector
	parsers  map[domain.ReportFormat]application.ReportParser
}

// NewRegistry creates a new parser registry with all supported parsers.
func NewRegistry() *Registry {
	jacocoParser := jacoco.New()
	return &Registry{
		detector: detector.New(),
		parsers: map[domain.ReportFormat]application.ReportParser{
			domain.FormatCobertura:         cobertura.New(),
			domain.FormatJacocoLine:        jacocoParser,
			domain.FormatJacocoBranch:      jacocoParser,
			domain.FormatJacocoInstruction: jacocoParser,
			domain.FormatClover:            clover.New(),
			domain.FormatSimpleCov:         simplecov.New(),
		},
	}
}

// Parse parses a report, detecting the format when it is empty.
func (r *Registry) Parse(report application.Report) (domain.Measurement, error) {
	if report.Format == "" {
		if len(report.Content) == 0 {
			return domain.Measurement{}, &domain.UnreadableReportError{Path: report.Path, Err: domain.ErrNoContent}
		}
		format, err := r.detector.DetectFormat(report.Path, report.Content)
		if err != nil {
			return domain.Measurement{}, fmt.Errorf("detect format: %w", err)
		}
		report.Format = format
	}

	parser, ok := r.parsers[report.Format]
	if !ok {
		return domain.Measurement{}, fmt.Errorf("no parser available for format: %s", report.Format)
	}
	return parser.Parse(report)
}

// DetectFormat exposes content sniffing for callers that need the format
// before parsing.
func (r *Registry) DetectFormat(path string, content []byte) (domain.ReportFormat, error) {
	return r.detector.DetectFormat(path, content)
}

// SupportedFormats returns every format with a registered parser.
func (r *Registry) SupportedFormats() []domain.ReportFormat {
	formats := make([]domain.ReportFormat, 0, len(r.parsers))
	for _, f := range domain.Formats() {
		if _, ok := r.parsers[f]; ok {
			formats = append(formats, f)
		}
	}
	return formats
}
