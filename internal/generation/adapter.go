package generation

import (
	"strings"
	"sync"
)

// AdapterSwitch selects between the base model and its fine-tuned adapter.
// The inference server hosts both under separate model names; toggling only
// changes which name a request targets.
type AdapterSwitch struct {
	mu      sync.Mutex
	name    string
	enabled bool
}

func NewAdapterSwitch(name string, enabled bool) *AdapterSwitch {
	name = strings.TrimSpace(name)
	return &AdapterSwitch{name: name, enabled: enabled && name != ""}
}

func (s *AdapterSwitch) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *AdapterSwitch) Enabled() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// SetEnabled flips the overlay. It blocks while a comparison is running.
func (s *AdapterSwitch) SetEnabled(on bool) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = on && s.name != ""
}

// modelLocked must be called with mu held.
func (s *AdapterSwitch) modelLocked(base string) string {
	if s.enabled && s.name != "" {
		return s.name
	}
	return base
}
