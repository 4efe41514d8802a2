package detector

import (
	"testing"

	"github.com/felixgeelhaar/covstatus/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetector_DetectFormat_Content(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    domain.ReportFormat
	}{
		{
			name: "cobertura",
			path: "out/report.xml",
			content: `<?xml version="1.0"?>
<!DOCTYPE coverage SYSTEM "http://cobertura.sourceforge.net/xml/coverage-04.dtd">
<coverage line-rate="0.5" branch-rate="0.5" version="1.9"><packages/></coverage>`,
			want: domain.FormatCobertura,
		},
		{
			name: "jacoco with doctype",
			path: "out/report.xml",
			content: `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<!DOCTYPE report PUBLIC "-//JACOCO//DTD Report 1.1//EN" "report.dtd">
<report name="app"><counter type="LINE" missed="1" covered="1"/></report>`,
			want: domain.FormatJacocoLine,
		},
		{
			name:    "clover",
			path:    "out/report.xml",
			content: `<coverage generated="1" clover="4.1"><project><metrics statements="1" coveredstatements="1"/></project></coverage>`,
			want:    domain.FormatClover,
		},
		{
			name:    "clover without version attribute",
			path:    "out/report.xml",
			content: `<coverage generated="1"><project timestamp="1"><metrics statements="1" coveredstatements="1"/></project></coverage>`,
			want:    domain.FormatClover,
		},
		{
			name:    "simplecov",
			path:    "out/report.json",
			content: `{"metrics": {"covered_percent": 10}}`,
			want:    domain.FormatSimpleCov,
		},
	}

	d := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := d.DetectFormat(tt.path, []byte(tt.content))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetector_DetectFormat_NameFallback(t *testing.T) {
	d := New()

	tests := map[string]domain.ReportFormat{
		"target/site/jacoco/jacoco.xml":      domain.FormatJacocoLine,
		"build/reports/jacocoTestReport.xml": domain.FormatJacocoLine,
		"build/logs/clover.xml":              domain.FormatClover,
		"coverage/cobertura-coverage.xml":    domain.FormatCobertura,
		"coverage/.last_run.json":            domain.FormatSimpleCov,
	}
	for path, want := range tests {
		got, err := d.DetectFormat(path, []byte("garbage"))
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}
}

func TestDetector_DetectFormat_Unknown(t *testing.T) {
	_, err := New().DetectFormat("coverage.out", []byte("mode: set\n"))
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = New().DetectFormat("data.xml", []byte("<html><body/></html>"))
	assert.ErrorIs(t, err, ErrUnknownFormat)
}
