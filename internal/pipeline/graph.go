package pipeline

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Reserved execution-context keys. Stage names may not shadow them.
const (
	TopicKey = "topic"
	YearKey  = "current_year"
)

// AgentSpec is the role/goal/tool configuration one stage hands to the
// agent executor. Prompts are data, not code: they come from the pipeline
// descriptor file and are interpolated with {topic} / {current_year}.
type AgentSpec struct {
	Role      string   `yaml:"role"`
	Goal      string   `yaml:"goal"`
	Backstory string   `yaml:"backstory"`
	Model     string   `yaml:"model"`
	Tools     []string `yaml:"tools"`
}

// StageSpec describes one pipeline stage: which agent runs it, which prior
// stage outputs form its input context, and what it is asked to produce.
type StageSpec struct {
	Name           string    `yaml:"name"`
	Agent          AgentSpec `yaml:"agent"`
	DependsOn      []string  `yaml:"depends_on"`
	Prompt         string    `yaml:"prompt"`
	ExpectedOutput string    `yaml:"expected_output"`
}

// Graph is the validated, immutable task descriptor graph. It is built once
// at startup and never mutated, so every job sees the same pipeline.
type Graph struct {
	stages []StageSpec
	index  map[string]int
}

// NewGraph validates the stage list and computes a dependency-respecting
// execution order. It fails fast on duplicate or empty names, references to
// unknown stages, reserved-key shadowing, and cycles.
func NewGraph(specs []StageSpec) (*Graph, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("pipeline: no stages defined")
	}

	index := make(map[string]int, len(specs))
	for i, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("pipeline: stage %d has no name", i)
		}
		if s.Name == TopicKey || s.Name == YearKey {
			return nil, fmt.Errorf("pipeline: stage name %q shadows a reserved context key", s.Name)
		}
		if _, dup := index[s.Name]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage name %q", s.Name)
		}
		if s.Agent.Role == "" {
			return nil, fmt.Errorf("pipeline: stage %q has no agent role", s.Name)
		}
		index[s.Name] = i
	}
	for _, s := range specs {
		for _, dep := range s.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("pipeline: stage %q depends on unknown stage %q", s.Name, dep)
			}
			if dep == s.Name {
				return nil, fmt.Errorf("pipeline: stage %q depends on itself", s.Name)
			}
		}
	}

	ordered, err := topoSort(specs, index)
	if err != nil {
		return nil, err
	}

	g := &Graph{stages: ordered, index: make(map[string]int, len(ordered))}
	for i, s := range g.stages {
		g.index[s.Name] = i
	}
	return g, nil
}

// topoSort orders stages so every stage runs after its dependencies,
// preserving the declared order among independent stages. DFS with color
// marking detects cycles.
func topoSort(specs []StageSpec, index map[string]int) ([]StageSpec, error) {
	const (
		white = 0 // unvisited
		gray  = 1 // on the current DFS path
		black = 2 // done
	)
	color := make([]int, len(specs))
	out := make([]StageSpec, 0, len(specs))

	var visit func(i int) error
	visit = func(i int) error {
		switch color[i] {
		case gray:
			return fmt.Errorf("pipeline: dependency cycle through stage %q", specs[i].Name)
		case black:
			return nil
		}
		color[i] = gray
		for _, dep := range specs[i].DependsOn {
			if err := visit(index[dep]); err != nil {
				return err
			}
		}
		color[i] = black
		out = append(out, specs[i])
		return nil
	}

	for i := range specs {
		if err := visit(i); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Stages returns the stages in execution order. Callers must not mutate.
func (g *Graph) Stages() []StageSpec { return g.stages }

// Final returns the name of the stage whose output becomes the job result.
// With a linear chain that is simply the last stage in execution order.
func (g *Graph) Final() string { return g.stages[len(g.stages)-1].Name }

// Len returns the number of stages.
func (g *Graph) Len() int { return len(g.stages) }

type graphFile struct {
	Stages []StageSpec `yaml:"stages"`
}

// LoadGraph reads a pipeline descriptor from a YAML file and validates it.
func LoadGraph(path string) (*Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline file: %w", err)
	}
	var f graphFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse pipeline file: %w", err)
	}
	return NewGraph(f.Stages)
}

// DefaultSpecs is the built-in two-stage research pipeline used when no
// descriptor file is configured: an arxiv-backed researcher followed by a
// reporting analyst that writes the final markdown report.
func DefaultSpecs() []StageSpec {
	return []StageSpec{
		{
			Name: "research",
			Agent: AgentSpec{
				Role:      "Senior Research Analyst",
				Goal:      "Uncover the most relevant recent findings about {topic}",
				Backstory: "You are a seasoned researcher who digs through scientific literature and distills what matters.",
				Tools:     []string{"arxiv_search"},
			},
			Prompt: "Conduct thorough research about {topic}. The current year is {current_year}. " +
				"Use the attached papers as primary material and list every source you rely on.",
			ExpectedOutput: "A bullet list of the 10 most relevant findings with source URLs.",
		},
		{
			Name: "write_report",
			Agent: AgentSpec{
				Role:      "Reporting Analyst",
				Goal:      "Turn research findings about {topic} into a detailed report",
				Backstory: "You write clear, well-structured markdown reports from raw research notes.",
			},
			DependsOn: []string{"research"},
			Prompt: "Review the research context you received and expand each finding into a full report section. " +
				"Keep every source URL from the research notes.",
			ExpectedOutput: "A complete markdown report.",
		},
	}
}
