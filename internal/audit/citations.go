package audit

import (
	"strings"
	"unicode"
)

// ExtractCitations returns the whitespace-delimited tokens of text that
// start with prefix once surrounding punctuation is trimmed. Order is
// preserved and duplicates are dropped. An empty prefix extracts nothing.
func ExtractCitations(text, prefix string) []string {
	if prefix == "" {
		return nil
	}
	var out []string
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(text) {
		tok = strings.TrimFunc(tok, isCitationPunct)
		if !strings.HasPrefix(tok, prefix) || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

func isCitationPunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
