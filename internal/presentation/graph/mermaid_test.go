package graph_test

import (
	"strings"
	"testing"

	"github.com/advancedresearch/agent-safety-layers/internal/presentation/graph"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
	"github.com/stretchr/testify/assert"
)

func crossing() *scenario.Scenario {
	return &scenario.Scenario{
		Name:      "crossing",
		Start:     "A",
		Decisions: map[string]string{"A": "go", "B": "go", "C": "stop"},
		Mutations: map[string]string{"A": "C", "B": "A"},
		Transitions: map[string]map[string]string{
			"A": {"go": "B"},
			"B": {"go": "C"},
		},
	}
}

func TestGenerateMermaid(t *testing.T) {
	tests := []struct {
		name        string
		scenario    *scenario.Scenario
		overlay     *graph.Overlay
		contains    []string
		notContains []string
	}{
		{
			name:     "Shapes and Edges",
			scenario: crossing(),
			contains: []string{
				"graph TD\n",
				`s_A(("A: go"))`,
				`s_B["B: go"]`,
				`s_C["C: stop"]`,
				`s_A -- "go" --> s_B`,
				`s_A -. probe .-> s_C`,
				`s_B -. probe .-> s_A`,
			},
			notContains: []string{
				"s_C -. probe",
				"classDef",
			},
		},
		{
			name: "ID Sanitization",
			scenario: &scenario.Scenario{
				Start:     "4/0",
				Decisions: map[string]string{"4/0": "up", "my-state.x": `say "hi"`},
			},
			contains: []string{
				`s_4_0(("4/0: up"))`,
				`s_my_state_x["my-state.x: say 'hi'"]`,
			},
		},
		{
			name:     "Overlay",
			scenario: crossing(),
			overlay:  &graph.Overlay{Flagged: []string{"A", "A"}, Current: "B"},
			contains: []string{
				"classDef flagged",
				"class s_A flagged;",
				"class s_B current;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := graph.GenerateMermaid(tt.scenario, tt.overlay)
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
			for _, unwanted := range tt.notContains {
				assert.NotContains(t, got, unwanted)
			}
			if tt.overlay != nil {
				assert.Equal(t, 1, strings.Count(got, "class s_A flagged;"))
			}
		})
	}
}
