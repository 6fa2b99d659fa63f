// Package schema defines custom JSON Schema formats for markerhub messages.
package schema

import (
	"regexp"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"
)

var markerNameRe = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// markerNameFormatChecker implements gojsonschema.FormatChecker for marker_name.
type markerNameFormatChecker struct{}

// IsFormat validates that the input is a usable marker key: letters, digits,
// dots, underscores, slashes, hyphens.
func (c markerNameFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		return len(s) > 0 && markerNameRe.MatchString(s)
	}
	return false
}

// clientIDFormatChecker implements gojsonschema.FormatChecker for client_id.
type clientIDFormatChecker struct{}

// IsFormat validates that the input is a client ID (UUID or semantic).
func (c clientIDFormatChecker) IsFormat(input interface{}) bool {
	if s, ok := input.(string); ok {
		if len(s) == 0 {
			return false
		}
		if _, err := uuid.Parse(s); err == nil {
			return true
		}
		return markerNameRe.MatchString(s)
	}
	return false
}

// RegisterCustomFormats registers the marker_name and client_id formats.
func RegisterCustomFormats() {
	gojsonschema.FormatCheckers.Add("marker_name", markerNameFormatChecker{})
	gojsonschema.FormatCheckers.Add("client_id", clientIDFormatChecker{})
}
