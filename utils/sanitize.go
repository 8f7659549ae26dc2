package utils

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// Sanitize strips markup from user supplied text. The result stays
// entity-escaped, so encoded markup never turns back into tags.
func Sanitize(input string) string {
	return strings.TrimSpace(sanitizer.Sanitize(input))
}
