// Package xmlattr reads numeric attributes captured with an `xml:",any,attr"`
// field.
package xmlattr

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissing is returned when the attribute is absent.
var ErrMissing = errors.New("attribute missing")

// Lookup returns the value of the named attribute.
func Lookup(attrs []xml.Attr, name string) (string, bool) {
	for _, a := range attrs {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}

// Float parses the named attribute as a float.
func Float(attrs []xml.Attr, name string) (float64, error) {
	raw, ok := Lookup(attrs, name)
	if !ok {
		return 0, fmt.Errorf("%s: %w", name, ErrMissing)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}
