package errors

import (
	"strings"
	"unicode"
)

// maxNameLength bounds layer and graph names shown in control widgets.
const maxNameLength = 128

// ValidateLayerName validates a layer or graph name before it enters the registry.
//
// Rules:
//   - No empty or whitespace-only names
//   - No control characters
//   - No "/" (names are used as path segments by the HTTP control surface)
//   - Maximum length of 128 characters
func ValidateLayerName(name string) error {
	if strings.TrimSpace(name) == "" {
		return New(ErrCodeInvalidInput, "layer name cannot be empty")
	}

	if len(name) > maxNameLength {
		return New(ErrCodeInvalidInput, "layer name too long (max %d characters)", maxNameLength)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "layer name contains invalid control characters")
		}
	}

	if strings.Contains(name, "/") {
		return New(ErrCodeInvalidInput, "layer name cannot contain %q: %q", "/", name)
	}

	return nil
}

// ValidateColor performs a light check on a CSS colour value.
// Empty is allowed and means "keep the preset default".
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}
	if strings.ContainsAny(color, ";{}<>\"") {
		return New(ErrCodeInvalidInput, "invalid colour value: %q", color)
	}
	return nil
}
