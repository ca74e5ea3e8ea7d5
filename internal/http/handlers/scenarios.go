package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/response"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

type BatchRunner interface {
	RunBatch(ctx context.Context, scenarios []pipeline.Scenario) pipeline.BatchReport
}

// BatchStarter submits a batch for durable background execution and returns
// its workflow id.
type BatchStarter interface {
	StartBatch(ctx context.Context, scenarios []pipeline.Scenario) (string, error)
}

type ScenariosHandler struct {
	log     *logger.Logger
	runner  BatchRunner
	starter BatchStarter
}

// NewScenariosHandler accepts a nil starter; async requests are then refused.
func NewScenariosHandler(log *logger.Logger, runner BatchRunner, starter BatchStarter) *ScenariosHandler {
	return &ScenariosHandler{log: log.With("handler", "ScenariosHandler"), runner: runner, starter: starter}
}

type scenarioResult struct {
	Name     string            `json:"name"`
	Success  bool              `json:"success"`
	RunID    string            `json:"run_id,omitempty"`
	XML      string            `json:"xml,omitempty"`
	Metadata *persist.Metadata `json:"metadata,omitempty"`
	Files    *generatedFiles   `json:"files,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// POST /v1/scenarios
func (h *ScenariosHandler) Generate(c *gin.Context) {
	var req pipeline.ScenarioFile
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondFailure(c, bodyStatus(err), err)
		return
	}
	if err := pipeline.ValidateScenarios(req.Scenarios); err != nil {
		response.RespondFailure(c, http.StatusBadRequest, err)
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async {
		if h.starter == nil {
			response.RespondFailure(c, http.StatusServiceUnavailable, errors.New("durable batch execution is not configured"))
			return
		}
		id, err := h.starter.StartBatch(c.Request.Context(), req.Scenarios)
		if err != nil {
			response.RespondFailure(c, http.StatusInternalServerError, err)
			return
		}
		h.log.Info("Batch submitted", "workflow_id", id, "scenarios", len(req.Scenarios))
		c.JSON(http.StatusAccepted, gin.H{"success": true, "workflow_id": id})
		return
	}

	report := h.runner.RunBatch(c.Request.Context(), req.Scenarios)
	results := make([]scenarioResult, 0, len(report.Items))
	for _, it := range report.Items {
		r := scenarioResult{Name: it.Scenario.Name}
		if it.Err != nil {
			r.Error = it.Err.Error()
		} else if out := it.Outcome; out != nil {
			md := out.Metadata
			r.Success = true
			r.RunID = out.RunID
			r.XML = out.Extract.XML
			r.Metadata = &md
			r.Files = &generatedFiles{XML: out.Location.XML, Metadata: out.Location.Metadata}
		}
		results = append(results, r)
	}

	status := http.StatusOK
	if report.Succeeded == 0 {
		status = http.StatusInternalServerError
	}
	c.JSON(status, gin.H{
		"success":   report.Succeeded > 0,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"results":   results,
	})
}
