package logging

import (
	"regexp"
)

// Redactor masks credential material in strings before they reach a
// log sink.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor builds a redactor with the built-in credential patterns.
func NewRedactor() *Redactor {
	return &Redactor{
		patterns: []redactPattern{
			// Bearer tokens, before the generic key pattern so the
			// whole token is caught.
			{
				regex:       regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9._\-]+`),
				replacement: "Bearer ***",
			},
			// OpenAI/Anthropic style keys.
			{
				regex:       regexp.MustCompile(`sk-[a-zA-Z0-9_\-]{8,}`),
				replacement: "sk-***",
			},
			// Google API keys.
			{
				regex:       regexp.MustCompile(`AIza[a-zA-Z0-9_\-]{10,}`),
				replacement: "AIza***",
			},
			// Generic key=value credential fields.
			{
				regex:       regexp.MustCompile(`(?i)(api[-_]?key|refresh[-_]?token|access[-_]?token)["']?\s*[:=]\s*["']?[a-zA-Z0-9._\-]{6,}`),
				replacement: "$1=***",
			},
		},
	}
}

// Redact returns s with every credential pattern masked.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
