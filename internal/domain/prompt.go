package domain

import (
	"fmt"
	"strings"
)

// FormatPromptMeta prefixes a question text with its provenance tags so the
// stored prompt is self-describing: "[Difficulty: X][Model: Y] text".
func FormatPromptMeta(difficulty, model, question string) string {
	return fmt.Sprintf("[Difficulty: %s][Model: %s] %s", difficulty, model, question)
}

// ParsePromptMeta strips leading "[key: value]" segments from a stored prompt
// and returns the lowercase-keyed tags plus the remaining display text.
func ParsePromptMeta(prompt string) (map[string]string, string) {
	meta := map[string]string{}
	remainder := prompt
	for strings.HasPrefix(remainder, "[") {
		end := strings.Index(remainder, "]")
		if end == -1 {
			break
		}
		segment := remainder[1:end]
		if key, value, ok := strings.Cut(segment, ":"); ok {
			meta[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(value)
		}
		remainder = strings.TrimLeft(remainder[end+1:], " ")
	}
	return meta, remainder
}
