package domain

import "strings"

// Letters are the canonical choice labels.
var Letters = []string{"A", "B", "C", "D"}

// IsChoice reports whether token is a canonical choice letter.
func IsChoice(token string) bool {
	switch token {
	case "A", "B", "C", "D":
		return true
	}
	return false
}

// NormalizeAnswer converts user supplied answer tokens into canonical A-D
// form. Accepted shapes: bare letters in any case, "b)", "C.", "a -",
// "Option C", "choice D", and numerics "1"-"4" mapped positionally.
// Unrecognized tokens are returned uppercased unchanged; they never match a
// correct letter and score as an ordinary incorrect answer.
func NormalizeAnswer(answer string) string {
	token := strings.ToUpper(strings.TrimSpace(answer))
	if IsChoice(token) {
		return token
	}
	if len(token) > 1 && IsChoice(token[:1]) {
		switch token[1] {
		case ')', '.', ' ', '-':
			return token[:1]
		}
	}
	token = strings.TrimPrefix(token, "OPTION ")
	token = strings.TrimPrefix(token, "CHOICE ")
	if IsChoice(token) {
		return token
	}
	switch token {
	case "1", "2", "3", "4":
		return string(rune('A' + token[0] - '1'))
	}
	return token
}
