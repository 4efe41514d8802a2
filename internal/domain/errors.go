package domain

import (
	"errors"
	"fmt"
)

// ErrNoContent is wrapped by UnreadableReportError when a report reached the
// parser without any content.
var ErrNoContent = errors.New("no report content")

// UnreadableReportError means the content of a report could not be obtained.
type UnreadableReportError struct {
	Format ReportFormat
	Path   string
	Err    error
}

func (e *UnreadableReportError) Error() string {
	return fmt.Sprintf("Can't read %s report by path: %s", e.Format.Kind(), e.Path)
}

func (e *UnreadableReportError) Unwrap() error {
	return e.Err
}

// MalformedReportError means an expected counter, attribute or path was
// absent or not numeric. Locator is the XPath or JSONPath that was tried.
type MalformedReportError struct {
	Format  ReportFormat
	Path    string
	Locator string
	Content string
	Err     error
}

func (e *MalformedReportError) Error() string {
	if e.Format == FormatSimpleCov {
		return fmt.Sprintf("Strange %s report!\nCan't extract float value by JsonPath: %s\nfrom:\n%s",
			e.Format.Kind(), e.Locator, e.Content)
	}
	return fmt.Sprintf("Strange %s report!\nFile path: %s\nCan't extract float value by XPath: %s\nfrom:\n%s",
		e.Format.Kind(), e.Path, e.Locator, e.Content)
}

func (e *MalformedReportError) Unwrap() error {
	return e.Err
}

// UnsupportedAggregationError is returned when counter aggregation is
// requested for a format that has no counters.
type UnsupportedAggregationError struct {
	Format ReportFormat
}

func (e *UnsupportedAggregationError) Error() string {
	return fmt.Sprintf("format %s does not support counter aggregation", e.Format)
}
