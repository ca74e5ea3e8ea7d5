package engine

import "context"

// CompletionRequest is one raw-prompt completion. The prompt is sent as is;
// no chat template is applied upstream.
type CompletionRequest struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
	TopP        float64
}

type Embedder interface {
	Embed(ctx context.Context, model string, inputs []string) ([][]float32, error)
}

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type Engine interface {
	Embedder
	Completer
}
