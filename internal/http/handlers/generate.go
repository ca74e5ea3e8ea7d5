package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/response"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/persist"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/pipeline"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// DefaultScenarioName names single generations that arrive without a name.
const DefaultScenarioName = "api_generation"

type ScenarioRunner interface {
	Run(ctx context.Context, sc pipeline.Scenario) (pipeline.Outcome, error)
}

type GenerateHandler struct {
	log    *logger.Logger
	runner ScenarioRunner
}

func NewGenerateHandler(log *logger.Logger, runner ScenarioRunner) *GenerateHandler {
	return &GenerateHandler{log: log.With("handler", "GenerateHandler"), runner: runner}
}

type generateRequest struct {
	Prompt string `json:"prompt"`
	Name   string `json:"name"`
	TopK   int    `json:"top_k"`
}

type generatedFiles struct {
	XML      string `json:"xml"`
	Metadata string `json:"metadata"`
}

// POST /v1/generate
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondFailure(c, bodyStatus(err), err)
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		response.RespondFailure(c, http.StatusBadRequest, errors.New("prompt required"))
		return
	}
	if req.TopK < 0 {
		response.RespondFailure(c, http.StatusBadRequest, errors.New("top_k must not be negative"))
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = DefaultScenarioName
	}
	if _, err := persist.NameKey(name); err != nil {
		response.RespondFailure(c, http.StatusBadRequest, err)
		return
	}

	out, err := h.runner.Run(c.Request.Context(), pipeline.Scenario{Name: name, Prompt: req.Prompt, TopK: req.TopK})
	if err != nil {
		h.log.Warn("Generation failed", "scenario", name, "error", err)
		response.RespondFailure(c, http.StatusInternalServerError, err)
		return
	}
	response.RespondOK(c, gin.H{
		"success":      true,
		"response":     out.Extract.XML,
		"xml_status":   out.Extract.Status,
		"context_used": out.Context != "",
		"run_id":       out.RunID,
		"files":        generatedFiles{XML: out.Location.XML, Metadata: out.Location.Metadata},
	})
}

// bodyStatus maps a bind error to 413 when the body limit tripped.
func bodyStatus(err error) int {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}
