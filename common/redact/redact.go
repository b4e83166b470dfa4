// Package redact strips secret values (completion API keys, chat platform
// tokens, signing secrets) from strings before they are logged or printed.
//
// Redaction is best-effort and string based. Call sites remain responsible
// for not logging secrets in the first place.
package redact

import (
	"strings"
)

const placeholder = "[REDACTED]"

// String replaces every occurrence of each sensitive value in s with
// [REDACTED]. Values shorter than 4 characters are ignored so that common
// substrings are not mangled.
func String(s string, sensitiveValues ...string) string {
	for _, v := range sensitiveValues {
		if len(v) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, v, placeholder)
	}
	return s
}

// Mask renders a secret for display, keeping at most the first four
// characters: "sk-a…[REDACTED]". Empty input yields "(empty)".
func Mask(secret string) string {
	switch {
	case secret == "":
		return "(empty)"
	case len(secret) <= 8:
		return placeholder
	default:
		return secret[:4] + "…" + placeholder
	}
}
