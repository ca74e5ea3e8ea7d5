package scenariobatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
)

// Starter submits scenario batches to a task queue.
type Starter struct {
	tc        temporalsdkclient.Client
	taskQueue string
}

func NewStarter(tc temporalsdkclient.Client, taskQueue string) (*Starter, error) {
	if tc == nil {
		return nil, fmt.Errorf("temporal client is not configured")
	}
	return &Starter{tc: tc, taskQueue: taskQueue}, nil
}

func (s *Starter) StartBatch(ctx context.Context, scenarios []pipeline.Scenario) (string, error) {
	if err := pipeline.ValidateScenarios(scenarios); err != nil {
		return "", err
	}
	run, err := s.tc.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        "btgen-batch-" + uuid.New().String(),
		TaskQueue: s.taskQueue,
	}, WorkflowName, BatchInput{Scenarios: scenarios})
	if err != nil {
		return "", fmt.Errorf("start scenario batch: %w", err)
	}
	return run.GetID(), nil
}
