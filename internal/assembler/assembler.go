package assembler

import (
	"strings"
	"unicode/utf8"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/retrieval"
)

// Separator sits between consecutive chunk texts.
const Separator = "\n\n"

// PreviewLimit is the context length kept in run metadata.
const PreviewLimit = 500

// Assemble joins the stored text of each match, in order. Matches without a
// text field are skipped; no qualifying match yields "".
func Assemble(matches []retrieval.Match) string {
	texts := make([]string, 0, len(matches))
	for _, m := range matches {
		if s, ok := m.Text(); ok {
			texts = append(texts, s)
		}
	}
	return strings.Join(texts, Separator)
}

// Preview returns the first n runes of s, with "..." appended when s was cut.
func Preview(s string, n int) string {
	if n < 0 {
		n = 0
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos] + "..."
		}
		i++
	}
	return s
}
