package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// StripCodeFences removes a surrounding Markdown code fence (``` or ```lang)
// from s. Text without a fence is returned trimmed.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// Drop the info string ("json", "text", ...) on the opening line.
		if first := strings.TrimSpace(s[:nl]); !strings.ContainsAny(first, " :{[") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// TruncateStr truncates s to maxLen runes and appends "..." when it is longer.
// It never splits a multi-byte character.
func TruncateStr(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	byteCount := 0
	for i := 0; i < maxLen; i++ {
		_, size := utf8.DecodeRuneInString(s[byteCount:])
		if size == 0 {
			break
		}
		byteCount += size
	}
	return s[:byteCount] + "..."
}

var groupedNumber = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+(\.\d*)?$`)

// StripThousands removes comma thousands separators from a number literal.
// It reports false when s has commas that are not groups of three digits
// ahead of the decimal point ("3,14", "1.5,2", "1,,0").
func StripThousands(s string) (string, bool) {
	if !strings.Contains(s, ",") {
		return s, true
	}
	if !groupedNumber.MatchString(s) {
		return s, false
	}
	return strings.ReplaceAll(s, ",", ""), true
}
