package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
)

type Scenario struct {
	Name   string `json:"name" yaml:"name"`
	Prompt string `json:"prompt" yaml:"prompt"`
	// TopK overrides the configured retrieval depth when positive.
	TopK int `json:"top_k,omitempty" yaml:"top_k,omitempty"`
}

// ScenarioFile is the batch input document: {"scenarios": [{name, prompt}]}.
type ScenarioFile struct {
	Scenarios []Scenario `json:"scenarios" yaml:"scenarios"`
}

// LoadScenarios reads a batch file. .yaml and .yml are decoded as YAML,
// everything else as JSON.
func LoadScenarios(path string) ([]Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenarios file: %w", err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseScenarios(raw, format)
}

func ParseScenarios(raw []byte, format string) ([]Scenario, error) {
	var doc ScenarioFile
	switch format {
	case "yaml":
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode scenarios yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode scenarios json: %w", err)
		}
	}
	if err := ValidateScenarios(doc.Scenarios); err != nil {
		return nil, err
	}
	return doc.Scenarios, nil
}

// ValidateScenarios requires at least one scenario, each with a prompt and a
// name that is usable as a file name. Two names that map to the same file
// key are rejected.
func ValidateScenarios(scenarios []Scenario) error {
	if len(scenarios) == 0 {
		return fmt.Errorf("no scenarios")
	}
	seen := make(map[string]int, len(scenarios))
	for i, sc := range scenarios {
		name := strings.TrimSpace(sc.Name)
		if name == "" {
			return fmt.Errorf("scenario %d: name required", i)
		}
		if strings.TrimSpace(sc.Prompt) == "" {
			return fmt.Errorf("scenario %q: prompt required", name)
		}
		key, err := persist.NameKey(name)
		if err != nil {
			return fmt.Errorf("scenario %d: %w", i, err)
		}
		if j, dup := seen[key]; dup {
			return fmt.Errorf("scenario %q: file name %q already used by %q", name, key, strings.TrimSpace(scenarios[j].Name))
		}
		seen[key] = i
	}
	return nil
}
