// Package jsonutil provides the pre-processing steps the LLM provider layer
// applies around JSON: stripping code-fence wrappers from model output, and
// trimming a structured payload down to a token budget before it is
// serialized into a prompt.
package jsonutil

import "strings"

// StripCodeFence removes a surrounding ```json ... ``` or ``` ... ``` fence
// from a model response, if present. Non-fenced input is returned unchanged.
func StripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl != -1 {
		firstLine := strings.TrimSpace(trimmed[:nl])
		// Drop a language tag on the opening fence line (e.g. "json").
		if firstLine == "" || isLanguageTag(firstLine) {
			trimmed = trimmed[nl+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimRight(trimmed, "\n"), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	if len(s) == 0 || len(s) > 16 {
		return false
	}
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
