package scenariobatch

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// Workflow generates each scenario in order, one activity per scenario.
// Activities are attempted once; a failure is recorded and the batch moves on.
func Workflow(ctx workflow.Context, in BatchInput) (BatchResult, error) {
	if len(in.Scenarios) == 0 {
		return BatchResult{}, fmt.Errorf("scenariobatch: no scenarios")
	}

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})
	log := workflow.GetLogger(ctx)

	out := BatchResult{Results: make([]ScenarioResult, 0, len(in.Scenarios))}
	for _, sc := range in.Scenarios {
		var res ScenarioResult
		err := workflow.ExecuteActivity(ctx, ActivityGenerate, sc).Get(ctx, &res)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Warn("Scenario failed", "scenario", sc.Name, "error", err)
			res = ScenarioResult{Name: sc.Name, Error: err.Error()}
			out.Failed++
		} else {
			out.Succeeded++
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
