// Package xmlextract pulls a behavior-tree XML document out of free-form
// model output.
package xmlextract

import (
	"strings"
)

type Status string

const (
	// StatusParsed means the fragment parsed and XML holds the pretty form.
	StatusParsed Status = "parsed"
	// StatusRaw means a fragment was located but did not parse; XML holds it verbatim.
	StatusRaw Status = "raw"
	// StatusNotFound means no start tag was recognized; XML holds the input.
	StatusNotFound Status = "not_found"
)

type Result struct {
	Status Status `json:"status"`
	XML    string `json:"xml"`
}

func (r Result) Found() bool { return r.Status == StatusParsed || r.Status == StatusRaw }

// startMarkers are tried in priority order, not by position.
var startMarkers = []string{"<?xml", "<behavior", "<root"}

// Extract locates the first XML document in text and pretty-prints it when it
// parses. It never fails; the worst case is the input returned unchanged.
func Extract(text string) (res Result) {
	if text == "" {
		return Result{Status: StatusNotFound}
	}
	defer func() {
		if r := recover(); r != nil {
			res = Result{Status: StatusRaw, XML: text}
		}
	}()

	start := findStart(text)
	if start < 0 {
		return Result{Status: StatusNotFound, XML: text}
	}

	end, ok := elementSpanEnd(text[start:])
	if ok {
		end += start
	} else {
		last := strings.LastIndexByte(text, '>')
		if last < start {
			return Result{Status: StatusRaw, XML: text}
		}
		end = last + 1
	}

	fragment := text[start:end]
	pretty, err := Format(fragment)
	if err != nil {
		return Result{Status: StatusRaw, XML: fragment}
	}
	return Result{Status: StatusParsed, XML: pretty}
}

// ExtractXML is Extract without the status.
func ExtractXML(text string) string {
	return Extract(text).XML
}

func findStart(text string) int {
	for _, m := range startMarkers {
		if i := strings.Index(text, m); i >= 0 {
			return i
		}
	}
	return -1
}
