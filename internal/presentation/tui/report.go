package tui

import (
	"context"
	"fmt"
	"strings"

	safetylayers "github.com/advancedresearch/agent-safety-layers"
	"github.com/advancedresearch/agent-safety-layers/pkg/scenario"
)

// Report builds a markdown overview of how agent decides in every state of sc.
func Report(ctx context.Context, sc *scenario.Scenario, agent *safetylayers.Agent[string, string]) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", sc.Name)
	if sc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", strings.TrimSpace(sc.Description))
	}
	fmt.Fprintf(&b, "Safety layers: **%d**\n\n", agent.Layers())

	b.WriteString("| State | Action | Probe | Outcome | Disagreement layer |\n")
	b.WriteString("|---|---|---|---|---|\n")

	confirmed := 0
	states := sc.States()
	for _, state := range states {
		d := agent.Decide(ctx, state)
		layer := "-"
		if d.DisagreementLayer > 0 {
			layer = fmt.Sprint(d.DisagreementLayer)
		} else {
			confirmed++
		}
		probe := sc.Mutate(state)
		if probe == state {
			probe = "-"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", state, d.Action, probe, d.Outcome, layer)
	}

	fmt.Fprintf(&b, "\n%d of %d states confirmed.\n", confirmed, len(states))
	return b.String()
}
