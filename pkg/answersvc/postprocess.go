package answersvc

import (
	"strconv"
	"strings"
)

// Postprocess maps a free-text answer back onto the field's constraints:
// option lists are resolved to an exact option, numeric-only answers are
// reduced to their first integer.
func Postprocess(answer string, req Request) string {
	answer = strings.TrimSpace(answer)
	if len(req.Options) > 0 {
		return MatchOption(answer, req.Options)
	}
	if req.NumericOnly {
		if n, ok := FirstInteger(answer); ok {
			return n
		}
	}
	return answer
}

// MatchOption resolves a free-text answer to one of the given options. The
// service often replies "3. Conversational" or with a sentence containing
// the option label; a numeric prefix wins, then a substring match in either
// direction, then the first option as the deterministic fallback.
func MatchOption(answer string, options []string) string {
	if len(options) == 0 {
		return answer
	}
	if idx, ok := FirstInteger(answer); ok {
		if i, err := strconv.Atoi(idx); err == nil && i >= 1 && i <= len(options) {
			// Only honor the numeric prefix when the answer starts with it.
			if strings.HasPrefix(answer, idx) {
				return options[i-1]
			}
		}
	}
	lower := strings.ToLower(answer)
	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt), answer) {
			return opt
		}
	}
	for _, opt := range options {
		lo := strings.ToLower(strings.TrimSpace(opt))
		if lo != "" && (strings.Contains(lower, lo) || strings.Contains(lo, lower)) {
			return opt
		}
	}
	return options[0]
}

// FirstInteger extracts the first integer substring of s.
func FirstInteger(s string) (string, bool) {
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return s[start:i], true
		}
	}
	if start >= 0 {
		return s[start:], true
	}
	return "", false
}

// AffirmativeOption picks the option that reads as a yes, falling back to
// the first one. Used when a choice must be committed with no usable answer.
func AffirmativeOption(options []string) string {
	if len(options) == 0 {
		return "Yes"
	}
	for _, opt := range options {
		lo := strings.ToLower(strings.TrimSpace(opt))
		if lo == "yes" || strings.HasPrefix(lo, "yes,") || strings.HasPrefix(lo, "yes ") ||
			strings.Contains(lo, "i agree") || strings.Contains(lo, "i accept") {
			return opt
		}
	}
	return options[0]
}
