package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/response"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/runlog"
)

const maxRunsLimit = 200

type RunLister interface {
	Recent(ctx context.Context, limit int) ([]runlog.Run, error)
}

type RunsHandler struct {
	runs RunLister
}

// NewRunsHandler accepts a nil lister; the endpoint then reports 503.
func NewRunsHandler(runs RunLister) *RunsHandler {
	return &RunsHandler{runs: runs}
}

// GET /v1/runs?limit=n
func (h *RunsHandler) List(c *gin.Context) {
	if h.runs == nil {
		response.RespondError(c, http.StatusServiceUnavailable, "runlog_disabled", errors.New("run ledger is disabled"))
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_limit", errors.New("limit must be a positive integer"))
			return
		}
		limit = min(n, maxRunsLimit)
	}
	runs, err := h.runs.Recent(c.Request.Context(), limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}
