package utils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateStr(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"Empty string", "", 10, ""},
		{"Short ASCII", "hello", 10, "hello"},
		{"Exact length ASCII", "hello", 5, "hello"},
		{"Truncate ASCII", "hello world", 5, "hello..."},
		{"Short Unicode", "你好", 5, "你好"},
		{"Truncate Unicode", "你好世界", 2, "你好..."},
		{"Zero length", "hello", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateStr(tt.input, tt.maxLen)
			assert.Equal(t, tt.expected, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"No fence", "  FINAL_ANSWER: [20]  ", "FINAL_ANSWER: [20]"},
		{"Bare fence", "```\nFINAL_ANSWER: [20]\n```", "FINAL_ANSWER: [20]"},
		{"Language fence", "```text\nFUNCTION_CALL: {\"name\":\"calculate\",\"args\":{}}\n```", `FUNCTION_CALL: {"name":"calculate","args":{}}`},
		{"Single line fence", "```FINAL_ANSWER: [7]```", "FINAL_ANSWER: [7]"},
		{"Directive on opening line", "```FUNCTION_CALL: {\"a\":1}\n```", `FUNCTION_CALL: {"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripCodeFences(tt.input))
		})
	}
}

func TestStripThousands(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"210", "210", true},
		{"1,000", "1000", true},
		{"-12,345,678.5", "-12345678.5", true},
		{"3,14", "3,14", false},
		{"1.5,2", "1.5,2", false},
		{"1,,0", "1,,0", false},
		{"1234,567", "1234,567", false},
		{",100", ",100", false},
		{"1,000e3", "1,000e3", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := StripThousands(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
