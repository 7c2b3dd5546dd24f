package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips any markup from short plain-text fields such as names and descriptions.
func Sanitize(input string) string {
	return strings.TrimSpace(sanitizer.Sanitize(input))
}
