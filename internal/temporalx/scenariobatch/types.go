package scenariobatch

import "github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"

const (
	WorkflowName     = "scenario_batch"
	ActivityGenerate = "generate_scenario"
)

type BatchInput struct {
	Scenarios []pipeline.Scenario `json:"scenarios"`
}

type ScenarioResult struct {
	Name         string `json:"name"`
	RunID        string `json:"run_id,omitempty"`
	XMLStatus    string `json:"xml_status,omitempty"`
	XMLPath      string `json:"xml_path,omitempty"`
	MetadataPath string `json:"metadata_path,omitempty"`
	Error        string `json:"error,omitempty"`
}

type BatchResult struct {
	Results   []ScenarioResult `json:"results"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}
