package scenariobatch

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

type ScenarioRunner interface {
	Run(ctx context.Context, sc pipeline.Scenario) (pipeline.Outcome, error)
}

type Activities struct {
	Log    *logger.Logger
	Runner ScenarioRunner
}

func (a *Activities) Generate(ctx context.Context, sc pipeline.Scenario) (ScenarioResult, error) {
	res := ScenarioResult{Name: sc.Name}
	if a == nil || a.Runner == nil {
		return res, fmt.Errorf("scenariobatch: activity not configured")
	}
	info := activity.GetInfo(ctx)
	a.Log.Info("Generating scenario", "workflow_id", info.WorkflowExecution.ID, "scenario", sc.Name)

	out, err := a.Runner.Run(ctx, sc)
	if err != nil {
		return res, err
	}
	res.RunID = out.RunID
	res.XMLStatus = string(out.Extract.Status)
	res.XMLPath = out.Location.XML
	res.MetadataPath = out.Location.Metadata
	return res, nil
}
