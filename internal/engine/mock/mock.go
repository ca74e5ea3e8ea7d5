package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
)

// Engine is a deterministic offline engine. Completions echo the prompt and
// append a small behavior tree tagged with the requested model, so adapter
// and base runs produce different text.
type Engine struct {
	EmbeddingDims int
	Echo          bool
}

func New(dims int) *Engine {
	if dims <= 0 {
		dims = 8
	}
	return &Engine{EmbeddingDims: dims, Echo: true}
}

func (e *Engine) Embed(ctx context.Context, model string, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i, s := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		h := sha256.Sum256([]byte(model + "\n" + s))
		vec := make([]float32, e.EmbeddingDims)
		for j := 0; j < e.EmbeddingDims; j++ {
			off := (j * 4) % (len(h) - 3)
			u := binary.LittleEndian.Uint32(h[off:])
			vec[j] = float32(u%10_000)/10_000.0 - 0.5
		}
		out[i] = vec
	}
	return out, nil
}

func (e *Engine) Complete(ctx context.Context, req engine.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	h := sha256.Sum256([]byte(req.Model + "\n" + req.Prompt))
	tree := fmt.Sprintf(
		`Here is the behavior tree:
<?xml version="1.0"?>
<root main_tree_to_execute="MainTree"><BehaviorTree ID="MainTree" model="%s"><Sequence name="mission-%x"><Action ID="IssueMovementOrdersTask"/><Condition ID="UnitCanEngageTargetCondition"/><Action ID="IssueAttackOrdersTask"/></Sequence></BehaviorTree></root>
This tree moves the unit and engages when able.`,
		escapeAttr(req.Model), h[:4],
	)
	if e.Echo {
		return req.Prompt + tree, nil
	}
	return tree, nil
}

func escapeAttr(s string) string {
	return strings.NewReplacer(`&`, "&amp;", `"`, "&quot;", `<`, "&lt;", `>`, "&gt;").Replace(s)
}
