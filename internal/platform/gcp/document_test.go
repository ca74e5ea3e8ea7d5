package gcp

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

type fakeProcessor struct {
	got  *documentaipb.ProcessRequest
	resp *documentaipb.ProcessResponse
	err  error
}

func (f *fakeProcessor) ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
	f.got = req
	return f.resp, f.err
}

func anchor(start, end int64) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}}}
}

func TestProcessBytes(t *testing.T) {
	full := "Defend the ridge.\nHold until relieved."
	fp := &fakeProcessor{resp: &documentaipb.ProcessResponse{Document: &documentaipb.Document{
		Text: full,
		Pages: []*documentaipb.Document_Page{{
			PageNumber: 1,
			Paragraphs: []*documentaipb.Document_Page_Paragraph{
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(0, 17)}},
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(18, 200)}},
			},
		}},
	}}}
	d := &Document{log: logger.Nop(), client: fp, processor: "projects/p/locations/us/processors/x"}

	res, err := d.ProcessBytes(context.Background(), DocAIProcessBytesRequest{Data: []byte("%PDF")})
	if err != nil {
		t.Fatalf("ProcessBytes: %v", err)
	}
	raw := fp.got.GetRawDocument()
	if raw == nil || raw.MimeType != "application/pdf" || fp.got.Name != d.processor {
		t.Fatalf("request=%v", fp.got)
	}
	if res.Text != full {
		t.Fatalf("text=%q", res.Text)
	}
	if len(res.Pages) != 1 || res.Pages[0].Text != "Defend the ridge.\nHold until relieved." {
		t.Fatalf("pages=%+v", res.Pages)
	}
}

func TestProcessBytesError(t *testing.T) {
	d := &Document{log: logger.Nop(), client: &fakeProcessor{err: errors.New("quota")}, processor: "p"}
	if _, err := d.ProcessBytes(context.Background(), DocAIProcessBytesRequest{Data: []byte("x")}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestProcessorName(t *testing.T) {
	if got := processorName("p", "us", "abc"); got != "projects/p/locations/us/processors/abc" {
		t.Fatalf("name=%s", got)
	}
	if got := processorName("", "us", "abc"); got != "" {
		t.Fatalf("name=%s", got)
	}
}
