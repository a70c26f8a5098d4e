// Package masking redacts secrets and PII-tagged fields from values before
// they reach a log line — spec.md §7's "Never-log" requirement. Adapted
// from the teacher's pkg/masking, collapsed from its MCP-server-scoped
// pattern-group/custom-pattern registry down to a fixed built-in pattern
// set since this core has no per-server masking configuration to resolve.
package masking

import (
	"fmt"
	"regexp"
)

// CompiledPattern holds a pre-compiled regex pattern with its replacement.
type CompiledPattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

// builtinPatterns mirrors the teacher's config.GetBuiltinConfig().MaskingPatterns
// set, narrowed to the fields this core ever logs: provider API keys, bearer
// tokens, and common PII shapes (emails, SSNs) that could appear inside a
// strategy summary or a research-question answer.
var builtinPatterns = []struct {
	name        string
	pattern     string
	replacement string
}{
	{"api_key", `(?i)(api[_-]?key|x-api-key)\s*[:=]\s*['"]?([A-Za-z0-9_\-]{16,})['"]?`, "${1}=***MASKED_API_KEY***"},
	{"bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-\.]{10,}`, "Bearer ***MASKED_TOKEN***"},
	{"aws_access_key", `AKIA[0-9A-Z]{16}`, "***MASKED_AWS_KEY***"},
	{"email", `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`, "***MASKED_EMAIL***"},
	{"ssn", `\b\d{3}-\d{2}-\d{4}\b`, "***MASKED_SSN***"},
}

// Service applies the built-in redaction patterns to arbitrary log values.
// A Service is safe for concurrent use — its pattern set is immutable
// after New returns.
type Service struct {
	patterns []*CompiledPattern
}

// New compiles the built-in pattern set. A pattern that fails to compile
// is logged by the caller's choosing (New itself never logs) and simply
// omitted — the remaining patterns still apply.
func New() *Service {
	s := &Service{}
	for _, p := range builtinPatterns {
		re, err := regexp.Compile(p.pattern)
		if err != nil {
			continue
		}
		s.patterns = append(s.patterns, &CompiledPattern{Name: p.name, Regex: re, Replacement: p.replacement})
	}
	return s
}

// Mask applies every compiled pattern to s in sequence and returns the
// redacted result. Mask is defensive by construction: a regex that simply
// doesn't match leaves its portion of the string untouched rather than
// erroring.
func (s *Service) Mask(value string) string {
	for _, p := range s.patterns {
		value = p.Regex.ReplaceAllString(value, p.Replacement)
	}
	return value
}

// MaskAny stringifies v with fmt.Sprintf("%v", v) and masks the result —
// used at slog call sites where the value being logged isn't already a
// string (e.g. an error, a struct).
func (s *Service) MaskAny(v any) string {
	return s.Mask(fmt.Sprintf("%v", v))
}
