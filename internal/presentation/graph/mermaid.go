package graph

import (
	"fmt"
	"strings"

	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
)

// Overlay contains decision data to visualize on the graph.
type Overlay struct {
	// Flagged are states whose decision requested a model update.
	Flagged []string
	// Current is the state a session is in.
	Current string
}

// GenerateMermaid produces a Mermaid flowchart of a scenario.
// It applies semantic styling:
// - Start: ((Circle))
// - Default: [Rectangle], labelled with the state's decision
// - Transitions: solid arrows labelled with the action
// - Probe perturbations: dotted arrows
// It also applies overlay styles (Flagged/Current) if provided.
func GenerateMermaid(sc *scenario.Scenario, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, state := range sc.States() {
		safeID := sanitizeMermaidID(state)

		opener, closer := "[", "]"
		if state == sc.Start {
			opener, closer = "((", "))"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s: %s\"%s\n", safeID, opener, escape(state), escape(sc.Decide(state)), closer)

		for _, action := range sortedKeys(sc.Transitions[state]) {
			to := sc.Transitions[state][action]
			fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", safeID, escape(action), sanitizeMermaidID(to))
		}

		if probe := sc.Mutate(state); probe != state {
			fmt.Fprintf(&sb, "    %s -. probe .-> %s\n", safeID, sanitizeMermaidID(probe))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for high-contrast on light backgrounds, regardless of theme (Light/Dark)
		sb.WriteString("    classDef flagged fill:#fff3e0,stroke:#e65100,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.Flagged {
			safeID := sanitizeMermaidID(id)
			if !seen[safeID] && safeID != "" {
				seen[safeID] = true
				fmt.Fprintf(&sb, "    class %s flagged;\n", safeID)
			}
		}

		if overlay.Current != "" {
			fmt.Fprintf(&sb, "    class %s current;\n", sanitizeMermaidID(overlay.Current))
		}
	}

	return sb.String()
}

func sanitizeMermaidID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", "/", "_", "\\", "_", " ", "_")
	return "s_" + r.Replace(id)
}

func escape(label string) string {
	return strings.ReplaceAll(label, "\"", "'")
}
