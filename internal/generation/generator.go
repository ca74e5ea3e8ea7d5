package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// VerifyPrompt is the probe used to check that the adapter changes output.
const VerifyPrompt = "[INST] Write a short military command [/INST]"

const verifyMaxNewTokens = 50

type Generator struct {
	log       *logger.Logger
	completer engine.Completer
	baseModel string
	adapter   *AdapterSwitch
}

func NewGenerator(log *logger.Logger, completer engine.Completer, baseModel string, adapter *AdapterSwitch) (*Generator, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer required")
	}
	if adapter == nil {
		adapter = NewAdapterSwitch("", false)
	}
	return &Generator{
		log:       log.With("component", "Generator"),
		completer: completer,
		baseModel: strings.TrimSpace(baseModel),
		adapter:   adapter,
	}, nil
}

func (g *Generator) Adapter() *AdapterSwitch { return g.adapter }

func (g *Generator) BaseModel() string { return g.baseModel }

func (g *Generator) AdapterEnabled() bool { return g.adapter.Enabled() }

// Model is the model name the next Generate call would target.
func (g *Generator) Model() string {
	g.adapter.mu.Lock()
	defer g.adapter.mu.Unlock()
	return g.adapter.modelLocked(g.baseModel)
}

// Generate runs one completion and returns only the continuation. Zero
// decoding fields take their defaults.
func (g *Generator) Generate(ctx context.Context, prompt string, cfg DecodingConfig) (string, error) {
	return g.generate(ctx, g.Model(), prompt, cfg)
}

func (g *Generator) generate(ctx context.Context, model, prompt string, cfg DecodingConfig) (string, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return "", &Error{Code: ErrorInvalidConfig, Op: "generate", Model: model, Err: err}
	}

	start := time.Now()
	out, err := g.completer.Complete(ctx, engine.CompletionRequest{
		Model:       model,
		Prompt:      prompt,
		MaxTokens:   cfg.MaxNewTokens,
		Temperature: cfg.Temperature,
		TopP:        cfg.TopP,
	})
	if err != nil {
		return "", &Error{Code: ErrorGenerateFailed, Op: "generate", Model: model, Err: err}
	}
	text := StripEcho(prompt, out)
	g.log.Debug("Generated completion",
		"model", model,
		"prompt_chars", len(prompt),
		"output_chars", len(text),
		"echo_stripped", len(text) != len(out),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return text, nil
}

// StripEcho removes a leading copy of prompt from text. Servers that echo may
// drop the <s> and </s> markers, so that form is tried second.
func StripEcho(prompt, text string) string {
	if prompt == "" {
		return text
	}
	if rest, ok := strings.CutPrefix(text, prompt); ok {
		return rest
	}
	bare := strings.NewReplacer("<s>", "", "</s>", "").Replace(prompt)
	if bare != "" && bare != prompt {
		if rest, ok := strings.CutPrefix(text, bare); ok {
			return rest
		}
		if rest, ok := strings.CutPrefix(text, strings.TrimLeft(bare, " ")); ok {
			return rest
		}
	}
	return text
}

// Comparison holds the same prompt generated with and without the adapter.
type Comparison struct {
	Prompt       string `json:"prompt"`
	AdapterModel string `json:"adapter_model"`
	BaseModel    string `json:"base_model"`
	WithAdapter  string `json:"with_adapter"`
	BaseOnly     string `json:"base_only"`
	Differs      bool   `json:"differs"`
}

// CompareAdapter generates with the adapter, then with it disabled. The switch
// stays locked for the whole comparison and its prior state is restored on
// every return path.
func (g *Generator) CompareAdapter(ctx context.Context, prompt string, cfg DecodingConfig) (Comparison, error) {
	s := g.adapter
	if s.name == "" {
		return Comparison{}, &Error{Code: ErrorInvalidConfig, Op: "compare_adapter", Model: g.baseModel, Err: errors.New("no adapter configured")}
	}

	s.mu.Lock()
	prev := s.enabled
	defer func() {
		s.enabled = prev
		s.mu.Unlock()
	}()

	cmp := Comparison{Prompt: prompt, AdapterModel: s.name, BaseModel: g.baseModel}

	s.enabled = true
	withAdapter, err := g.generate(ctx, s.modelLocked(g.baseModel), prompt, cfg)
	if err != nil {
		return Comparison{}, err
	}
	cmp.WithAdapter = withAdapter

	s.enabled = false
	baseOnly, err := g.generate(ctx, s.modelLocked(g.baseModel), prompt, cfg)
	if err != nil {
		return Comparison{}, err
	}
	cmp.BaseOnly = baseOnly
	cmp.Differs = withAdapter != baseOnly

	g.log.Info("Adapter comparison finished",
		"adapter", s.name,
		"base_model", g.baseModel,
		"differs", cmp.Differs,
	)
	return cmp, nil
}

// VerifyAdapter runs a short fixed probe through CompareAdapter.
func (g *Generator) VerifyAdapter(ctx context.Context) (Comparison, error) {
	cfg := DefaultDecoding()
	cfg.MaxNewTokens = verifyMaxNewTokens
	return g.CompareAdapter(ctx, VerifyPrompt, cfg)
}
