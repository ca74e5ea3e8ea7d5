package persist

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
	"unicode"
)

const (
	XMLDir      = "xml"
	MetadataDir = "metadata"

	TimestampLayout = "20060102_150405"

	// maxKeyAttempts bounds the suffixes tried when a key is already taken.
	maxKeyAttempts = 100
)

// ErrKeyTaken reports that every candidate key for a record already exists.
var ErrKeyTaken = errors.New("output key already taken")

type GenerationParams struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
}

// Metadata is written next to every artifact under the same name and timestamp.
// FileKey is the base name the two files share.
type Metadata struct {
	Timestamp        string           `json:"timestamp"`
	Scenario         string           `json:"scenario"`
	Prompt           string           `json:"prompt"`
	ContextChunks    int              `json:"context_chunks"`
	ContextUsed      string           `json:"context_used"`
	GenerationParams GenerationParams `json:"generation_params"`
	RunID            string           `json:"run_id,omitempty"`
	XMLStatus        string           `json:"xml_status,omitempty"`
	AdapterEnabled   bool             `json:"adapter_enabled"`
	IndexName        string           `json:"index_name,omitempty"`
	Model            string           `json:"model,omitempty"`
	FileKey          string           `json:"file_key"`
}

type Record struct {
	ScenarioName string
	Timestamp    string
	XML          string
	Metadata     Metadata
}

// Location reports where a record's two payloads ended up.
type Location struct {
	XML      string `json:"xml"`
	Metadata string `json:"metadata"`
}

// Sink persists records. Metadata is committed before the artifact.
type Sink interface {
	Save(ctx context.Context, rec Record) (Location, error)
}

func Timestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// XMLKey and MetadataKey are slash-separated paths relative to the output root.
func XMLKey(base string) string { return path.Join(XMLDir, base+".xml") }

func MetadataKey(base string) string { return path.Join(MetadataDir, base+".json") }

// baseName validates the record and returns "{name}_{timestamp}". The metadata
// name and timestamp are forced to match the key.
func (r *Record) baseName() (string, error) {
	name, err := NameKey(r.ScenarioName)
	if err != nil {
		return "", err
	}
	ts := strings.TrimSpace(r.Timestamp)
	if ts == "" {
		return "", fmt.Errorf("timestamp required")
	}
	if _, err := time.Parse(TimestampLayout, ts); err != nil {
		return "", fmt.Errorf("invalid timestamp %q", ts)
	}
	r.Metadata.Scenario = strings.TrimSpace(r.ScenarioName)
	r.Metadata.Timestamp = ts
	return name + "_" + ts, nil
}

// candidateKey returns base for the first attempt and base_N after that.
func candidateKey(base string, attempt int) string {
	if attempt == 0 {
		return base
	}
	return base + "_" + strconv.Itoa(attempt+1)
}

// NameKey returns the file-name form of a scenario name, or an error when
// nothing usable is left.
func NameKey(name string) (string, error) {
	key := SanitizeName(name)
	if key == "" {
		return "", fmt.Errorf("scenario name %q has no usable file name characters", name)
	}
	return key, nil
}

// SanitizeName reduces s to a single path segment. Letters and digits in any
// script are kept, as are spaces and punctuation. Path separators and control
// characters become "_", and leading or trailing dots are dropped.
func SanitizeName(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '/', r == '\\', unicode.IsControl(r), r == unicode.ReplacementChar:
			b.WriteByte('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(strings.Trim(b.String(), "."))
	if strings.Trim(out, "_. ") == "" {
		return ""
	}
	return out
}
