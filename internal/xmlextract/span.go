package xmlextract

import (
	"encoding/xml"
	"io"
	"strings"
)

// elementSpanEnd tokenizes s and returns the byte offset just past the close
// of the first top-level element. Leading prolog tokens are part of the span.
// ok is false when the element never closes or the tokenizer gives up.
func elementSpanEnd(s string) (end int, ok bool) {
	dec := newDecoder(s)
	dec.Strict = false

	depth := 0
	seen := false
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return 0, false
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
			seen = true
		case xml.EndElement:
			depth--
			if depth < 0 {
				return 0, false
			}
		}
		if seen && depth == 0 {
			return int(dec.InputOffset()), true
		}
	}
}

func newDecoder(s string) *xml.Decoder {
	dec := xml.NewDecoder(strings.NewReader(s))
	// Declared encodings are taken at face value; the text is already a Go string.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}
	return dec
}
