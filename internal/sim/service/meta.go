package service

import (
	"fmt"
	"strings"

	"github.com/louisbranch/sceneforge/internal/sim/domain"
)

// buildMetaText summarizes outcomes, rolls, and state changes for debugging
// and auditing. It never feeds back into engine logic.
func buildMetaText(outcomes []domain.MoveOutcome, ops []domain.StateOp) string {
	var b strings.Builder
	b.WriteString("Moves:\n")
	for _, outcome := range outcomes {
		fmt.Fprintf(&b, "- %s\n", outcomeSummary(outcome))
		if outcome.Check != nil {
			fmt.Fprintf(&b, "  %s: rolled %v%+d = %d vs DC %d\n",
				outcome.Check.Expression, outcome.Check.Rolls, outcome.Check.Modifier,
				outcome.Check.Total, outcome.Check.Difficulty)
		}
	}
	if len(ops) > 0 {
		b.WriteString("State changes:\n")
		for _, op := range ops {
			fmt.Fprintf(&b, "- %s %s = %v\n", op.Op, op.Path, op.Value)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// outcomeSummary renders one move's resolution in a single line.
func outcomeSummary(outcome domain.MoveOutcome) string {
	result := "failure"
	if outcome.Success {
		result = "success"
	}
	summary := fmt.Sprintf("%s (%s): %s -> %s",
		outcome.Move.ActorID, outcome.Move.Type, outcome.Move.Description, result)
	if outcome.Reasoning != "" {
		summary += " (" + outcome.Reasoning + ")"
	}
	return summary
}
