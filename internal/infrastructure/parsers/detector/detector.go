// Package detector implements auto-detection for coverage report formats.
//
// The detector examines report content first and falls back to the file
// name when the content is inconclusive.
package detector

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/covstatus/internal/domain"
)

// ErrUnknownFormat is returned when neither content nor name identify a format.
var ErrUnknownFormat = errors.New("unknown coverage report format")

// sniffLimit bounds how much of a report is inspected.
const sniffLimit = 8192

// Detector detects coverage report formats.
type Detector struct{}

// New creates a new format detector.
func New() *Detector {
	return &Detector{}
}

// DetectFormat determines the format of a report. JaCoCo reports are
// reported as the line variant; callers pick the configured counter.
func (d *Detector) DetectFormat(path string, content []byte) (domain.ReportFormat, error) {
	if format, ok := d.detectFromContent(content); ok {
		return format, nil
	}
	if format, ok := d.detectFromName(path); ok {
		return format, nil
	}
	return "", fmt.Errorf("%s: %w", path, ErrUnknownFormat)
}

func (d *Detector) detectFromContent(content []byte) (domain.ReportFormat, bool) {
	head := content
	if len(head) > sniffLimit {
		head = head[:sniffLimit]
	}
	trimmed := bytes.TrimSpace(head)

	if bytes.HasPrefix(trimmed, []byte("{")) {
		if bytes.Contains(content, []byte(`"covered_percent"`)) {
			return domain.FormatSimpleCov, true
		}
		return "", false
	}

	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return "", false
	}

	root, ok := rootElement(head)
	if !ok {
		return "", false
	}
	switch root.Name.Local {
	case "report":
		return domain.FormatJacocoLine, true
	case "coverage":
		if hasAttr(root, "line-rate") || hasAttr(root, "branch-rate") {
			return domain.FormatCobertura, true
		}
		if hasAttr(root, "clover") || bytes.Contains(head, []byte("<project")) {
			return domain.FormatClover, true
		}
		return domain.FormatCobertura, true
	}
	return "", false
}

func (d *Detector) detectFromName(path string) (domain.ReportFormat, bool) {
	base := strings.ToLower(filepath.Base(path))
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case ext == ".json":
		return domain.FormatSimpleCov, true
	case ext != ".xml":
		return "", false
	case strings.Contains(base, "jacoco"):
		return domain.FormatJacocoLine, true
	case strings.Contains(base, "clover"):
		return domain.FormatClover, true
	case strings.Contains(base, "cobertura"):
		return domain.FormatCobertura, true
	}
	return "", false
}

// rootElement returns the first start element, skipping the prolog and any
// DOCTYPE directive.
func rootElement(content []byte) (xml.StartElement, bool) {
	dec := xml.NewDecoder(bytes.NewReader(content))
	dec.Strict = false
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, false
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, true
		}
	}
}

func hasAttr(se xml.StartElement, name string) bool {
	for _, a := range se.Attr {
		if a.Name.Local == name {
			return true
		}
	}
	return false
}
