package retrieval

import "strings"

// TextKey is the metadata field holding a chunk's stored text.
const TextKey = "text"

// Match is one nearest-neighbor hit as returned by the index.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the stored chunk text when the metadata carries one.
func (m Match) Text() (string, bool) {
	if m.Metadata == nil {
		return "", false
	}
	s, ok := m.Metadata[TextKey].(string)
	return s, ok
}

func (m Match) Source() string {
	if m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata["source"].(string)
	return strings.TrimSpace(s)
}
