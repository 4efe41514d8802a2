package domain

import (
	"fmt"
	"strings"
)

// ReportFormat identifies a coverage report dialect and, for JaCoCo, the
// counter kind the ratio is computed from.
type ReportFormat string

const (
	FormatCobertura         ReportFormat = "cobertura"
	FormatJacocoLine        ReportFormat = "jacoco-line"
	FormatJacocoBranch      ReportFormat = "jacoco-branch"
	FormatJacocoInstruction ReportFormat = "jacoco-instruction"
	FormatClover            ReportFormat = "clover"
	FormatSimpleCov         ReportFormat = "simplecov"
)

// Formats lists every supported report format in a stable order.
func Formats() []ReportFormat {
	return []ReportFormat{
		FormatCobertura,
		FormatJacocoLine,
		FormatJacocoBranch,
		FormatJacocoInstruction,
		FormatClover,
		FormatSimpleCov,
	}
}

// ParseReportFormat converts user input into a ReportFormat.
// "jacoco" is accepted as an alias for the line counter variant.
func ParseReportFormat(s string) (ReportFormat, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if v == "jacoco" {
		return FormatJacocoLine, nil
	}
	for _, f := range Formats() {
		if string(f) == v {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown report format: %q", s)
}

// JacocoFormat returns the JaCoCo variant for a counter type name
// (LINE, BRANCH, INSTRUCTION). An empty name selects LINE.
func JacocoFormat(counter string) (ReportFormat, error) {
	switch strings.ToUpper(strings.TrimSpace(counter)) {
	case "", "LINE":
		return FormatJacocoLine, nil
	case "BRANCH":
		return FormatJacocoBranch, nil
	case "INSTRUCTION":
		return FormatJacocoInstruction, nil
	default:
		return "", fmt.Errorf("unsupported jacoco counter type: %q", counter)
	}
}

// CanAggregate reports whether reports of this format expose raw counters
// that can be summed across files before dividing.
func (f ReportFormat) CanAggregate() bool {
	switch f {
	case FormatJacocoLine, FormatJacocoBranch, FormatJacocoInstruction:
		return true
	default:
		return false
	}
}

// IsJacoco reports whether f is one of the JaCoCo variants.
func (f ReportFormat) IsJacoco() bool {
	return f.CanAggregate()
}

// CounterType returns the JaCoCo counter type attribute for the format,
// or an empty string for non-JaCoCo formats.
func (f ReportFormat) CounterType() string {
	switch f {
	case FormatJacocoLine:
		return "LINE"
	case FormatJacocoBranch:
		return "BRANCH"
	case FormatJacocoInstruction:
		return "INSTRUCTION"
	default:
		return ""
	}
}

// Kind returns the human name of the report family used in error messages.
func (f ReportFormat) Kind() string {
	switch f {
	case FormatCobertura:
		return "Cobertura"
	case FormatJacocoLine, FormatJacocoBranch, FormatJacocoInstruction:
		return "Jacoco"
	case FormatClover:
		return "Clover"
	case FormatSimpleCov:
		return "SimpleCov"
	default:
		return string(f)
	}
}

func (f ReportFormat) String() string {
	return string(f)
}
