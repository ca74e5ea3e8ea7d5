package ingestion

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 500
	DefaultBatchSize = 100
)

// Chunk splits text into consecutive size-rune slices with no overlap.
// Slices that are empty or whitespace-only are dropped.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if text == "" {
		return nil
	}
	out := make([]string, 0, utf8.RuneCountInString(text)/size+1)
	start, n := 0, 0
	for i := range text {
		if n == size {
			if s := text[start:i]; strings.TrimSpace(s) != "" {
				out = append(out, s)
			}
			start, n = i, 0
		}
		n++
	}
	if s := text[start:]; strings.TrimSpace(s) != "" {
		out = append(out, s)
	}
	return out
}
