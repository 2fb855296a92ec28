package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	richPolicy  = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

// Sanitize keeps markup that is safe to render, for HTML configured by operators.
func Sanitize(input string) string {
	return strings.TrimSpace(richPolicy.Sanitize(input))
}

// SanitizePlain strips every tag and returns the remaining text as typed.
// Entities added by the policy are decoded again so "&" stays "&"; the result
// is plain text and must be escaped by whatever renders it.
func SanitizePlain(input string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(input)))
}
