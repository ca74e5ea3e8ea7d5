package gemini

import (
	"context"
	"testing"

	"google.golang.org/genai"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/engine"
)

type fakeModels struct {
	gotModel  string
	gotConfig *genai.GenerateContentConfig
	resp      *genai.GenerateContentResponse
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.gotModel = model
	f.gotConfig = cfg
	return f.resp, nil
}

func TestCompleteMapsDecodingAndJoinsParts(t *testing.T) {
	fm := &fakeModels{resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content: &genai.Content{Parts: []*genai.Part{{Text: "<root>"}, {Text: "</root>"}}},
	}}}}
	e := &Engine{models: fm}
	out, err := e.Complete(context.Background(), engine.CompletionRequest{Model: "gemini-2.0-flash", Prompt: "p", MaxTokens: 512, Temperature: 0.7, TopP: 0.95})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "<root></root>" {
		t.Fatalf("out=%q", out)
	}
	if fm.gotModel != "gemini-2.0-flash" || fm.gotConfig.MaxOutputTokens != 512 || *fm.gotConfig.TopP != float32(0.95) {
		t.Fatalf("model=%q cfg=%+v", fm.gotModel, fm.gotConfig)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	e := &Engine{models: &fakeModels{resp: &genai.GenerateContentResponse{}}}
	if _, err := e.Complete(context.Background(), engine.CompletionRequest{Model: "m", Prompt: "p"}); err == nil {
		t.Fatalf("expected error")
	}
}
