package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func specWithRole(name string, deps ...string) StageSpec {
	return StageSpec{
		Name:      name,
		Agent:     AgentSpec{Role: "analyst"},
		DependsOn: deps,
	}
}

func TestNewGraph_OrdersByDependencies(t *testing.T) {
	t.Parallel()

	// declared out of order on purpose
	g, err := NewGraph([]StageSpec{
		specWithRole("report", "research"),
		specWithRole("research"),
	})
	if err != nil {
		t.Fatalf("NewGraph returned error: %v", err)
	}
	stages := g.Stages()
	if len(stages) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(stages))
	}
	if stages[0].Name != "research" || stages[1].Name != "report" {
		t.Fatalf("expected [research report], got [%s %s]", stages[0].Name, stages[1].Name)
	}
	if g.Final() != "report" {
		t.Fatalf("expected final stage 'report', got %q", g.Final())
	}
}

func TestNewGraph_RejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		specs   []StageSpec
		wantErr string
	}{
		{"empty", nil, "no stages"},
		{"unnamed stage", []StageSpec{specWithRole("")}, "has no name"},
		{"duplicate name", []StageSpec{specWithRole("a"), specWithRole("a")}, "duplicate"},
		{"missing role", []StageSpec{{Name: "a"}}, "no agent role"},
		{"unknown dep", []StageSpec{specWithRole("a", "ghost")}, "unknown stage"},
		{"self dep", []StageSpec{specWithRole("a", "a")}, "depends on itself"},
		{"reserved key", []StageSpec{specWithRole(TopicKey)}, "reserved"},
		{"cycle", []StageSpec{specWithRole("a", "b"), specWithRole("b", "a")}, "cycle"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewGraph(tc.specs)
			if err == nil {
				t.Fatalf("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDefaultSpecs_Valid(t *testing.T) {
	t.Parallel()

	g, err := NewGraph(DefaultSpecs())
	if err != nil {
		t.Fatalf("default specs should validate: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 default stages, got %d", g.Len())
	}
	if g.Stages()[0].Name != "research" {
		t.Fatalf("expected research first, got %q", g.Stages()[0].Name)
	}
	if g.Final() != "write_report" {
		t.Fatalf("expected write_report to produce the result, got %q", g.Final())
	}
}

func TestLoadGraph_FromYAML(t *testing.T) {
	t.Parallel()

	content := `
stages:
  - name: research
    agent:
      role: Senior Research Analyst
      tools: [arxiv_search]
    prompt: "Research {topic} in {current_year}."
  - name: write_report
    agent:
      role: Reporting Analyst
    depends_on: [research]
    prompt: "Write the report."
`
	path := filepath.Join(t.TempDir(), "pipeline.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	g, err := LoadGraph(path)
	if err != nil {
		t.Fatalf("LoadGraph returned error: %v", err)
	}
	if g.Len() != 2 {
		t.Fatalf("expected 2 stages, got %d", g.Len())
	}
	research := g.Stages()[0]
	if len(research.Agent.Tools) != 1 || research.Agent.Tools[0] != "arxiv_search" {
		t.Fatalf("expected arxiv_search tool on research stage, got %v", research.Agent.Tools)
	}
}

func TestLoadGraph_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := LoadGraph(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing descriptor file")
	}
}
