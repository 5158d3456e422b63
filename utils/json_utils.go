// Package utils holds small text helpers shared by the loop, the parser and the console.
package utils

// scanBalanced returns the first balanced span delimited by open and close.
// Delimiters inside JSON string literals, including escaped quotes, are ignored.
// It returns "" when no balanced span exists.
func scanBalanced(s string, open, close byte) string {
	start := -1
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}

		switch c {
		case '\\':
			escaped = true
		case '"':
			inString = !inString
		case open:
			if inString {
				continue
			}
			if start == -1 {
				start = i
			}
			depth++
		case close:
			if inString || start == -1 {
				continue
			}
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

// ExtractJSONArray extracts the first JSON array from text that may carry
// trailing commentary, e.g. `["a", "b"]  (two steps)`.
func ExtractJSONArray(s string) string {
	return scanBalanced(s, '[', ']')
}
