package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadScenariosJSONAndYAML(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "s.json")
	yamlPath := filepath.Join(dir, "s.yaml")
	if err := os.WriteFile(jsonPath, []byte(`{"scenarios":[{"name":"ambush","prompt":"Ambush a convoy"},{"name":"defend","prompt":"Defend the bridge","top_k":5}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(yamlPath, []byte("scenarios:\n  - name: ambush\n    prompt: Ambush a convoy\n  - name: defend\n    prompt: Defend the bridge\n    top_k: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{jsonPath, yamlPath} {
		got, err := LoadScenarios(p)
		if err != nil {
			t.Fatalf("%s: %v", p, err)
		}
		if len(got) != 2 || got[0].Name != "ambush" || got[1].Prompt != "Defend the bridge" || got[1].TopK != 5 {
			t.Fatalf("%s: scenarios=%+v", p, got)
		}
	}
}

func TestParseScenariosRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"empty":     `{"scenarios":[]}`,
		"no name":   `{"scenarios":[{"name":"","prompt":"p"}]}`,
		"no prompt": `{"scenarios":[{"name":"a","prompt":"  "}]}`,
		"duplicate": `{"scenarios":[{"name":"a","prompt":"p"},{"name":"a","prompt":"q"}]}`,
		"key clash": `{"scenarios":[{"name":"a/b","prompt":"p"},{"name":"a_b","prompt":"q"}]}`,
		"unusable":  `{"scenarios":[{"name":"///","prompt":"p"}]}`,
		"malformed": `{"scenarios":`,
	}
	for name, raw := range cases {
		if _, err := ParseScenarios([]byte(raw), "json"); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseScenariosKeepsDistinctNames(t *testing.T) {
	raw := `{"scenarios":[{"name":"recon alpha","prompt":"p1"},{"name":"recon_alpha","prompt":"p2"},{"name":"侦察","prompt":"p3"}]}`
	got, err := ParseScenarios([]byte(raw), "json")
	if err != nil {
		t.Fatalf("ParseScenarios: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("scenarios=%+v", got)
	}
}

func TestLoadScenariosMissingFile(t *testing.T) {
	if _, err := LoadScenarios(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error")
	}
}
