package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/generation"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/http/response"
)

type AdapterComparer interface {
	CompareAdapter(ctx context.Context, prompt string, cfg generation.DecodingConfig) (generation.Comparison, error)
	VerifyAdapter(ctx context.Context) (generation.Comparison, error)
}

type AdapterHandler struct {
	comparer AdapterComparer
	decoding generation.DecodingConfig
}

func NewAdapterHandler(comparer AdapterComparer, decoding generation.DecodingConfig) *AdapterHandler {
	return &AdapterHandler{comparer: comparer, decoding: decoding}
}

type compareRequest struct {
	Prompt string `json:"prompt"`
}

// POST /v1/adapter/compare
// An empty body or prompt runs the short verification probe.
func (h *AdapterHandler) Compare(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.RespondError(c, bodyStatus(err), "invalid_request", err)
		return
	}

	var (
		cmp generation.Comparison
		err error
	)
	if strings.TrimSpace(req.Prompt) == "" {
		cmp, err = h.comparer.VerifyAdapter(c.Request.Context())
	} else {
		cmp, err = h.comparer.CompareAdapter(c.Request.Context(), req.Prompt, h.decoding)
	}
	if err != nil {
		status := http.StatusInternalServerError
		var gerr *generation.Error
		if errors.As(err, &gerr) && gerr.Code == generation.ErrorInvalidConfig {
			status = http.StatusConflict
		}
		response.RespondError(c, status, "adapter_compare_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"comparison": cmp})
}
