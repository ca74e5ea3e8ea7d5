package gcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/ctxutil"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

type DocumentConfig struct {
	ProjectID   string
	Location    string
	ProcessorID string
}

type DocAIProcessBytesRequest struct {
	MimeType  string
	Data      []byte
	FieldMask []string
}

type DocAIPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type DocAIResult struct {
	Processor string      `json:"processor"`
	MimeType  string      `json:"mime_type"`
	Text      string      `json:"text"`
	Pages     []DocAIPage `json:"pages,omitempty"`
}

type processorClient interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error)
}

type sdkProcessor struct {
	c *documentai.DocumentProcessorClient
}

func (p sdkProcessor) ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
	return p.c.ProcessDocument(ctx, req)
}

// Document runs files through one Document AI OCR processor.
type Document struct {
	log       *logger.Logger
	client    processorClient
	closer    func() error
	processor string
}

func NewDocument(ctx context.Context, log *logger.Logger, cfg DocumentConfig) (*Document, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	location := strings.TrimSpace(cfg.Location)
	if location == "" {
		location = "us"
	}
	name := processorName(cfg.ProjectID, location, cfg.ProcessorID)
	if name == "" {
		return nil, fmt.Errorf("document ai project and processor required")
	}
	endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", location)

	// Document AI needs a regional endpoint.
	opts := append([]option.ClientOption{option.WithEndpoint(endpoint)}, ClientOptionsFromEnv()...)
	c, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("documentai client: %w", err)
	}

	slog := log.With("service", "gcp.Document")
	slog.Info("Document AI initialized", "endpoint", endpoint, "processor", name)
	return &Document{log: slog, client: sdkProcessor{c}, closer: c.Close, processor: name}, nil
}

func (d *Document) Close() error {
	if d == nil || d.closer == nil {
		return nil
	}
	return d.closer()
}

func (d *Document) ProcessBytes(ctx context.Context, req DocAIProcessBytesRequest) (*DocAIResult, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
	defer cancel()

	if req.MimeType == "" {
		req.MimeType = "application/pdf"
	}
	if len(req.Data) == 0 {
		return &DocAIResult{Processor: d.processor, MimeType: req.MimeType}, nil
	}

	r := &documentaipb.ProcessRequest{
		Name: d.processor,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  req.Data,
				MimeType: req.MimeType,
			},
		},
	}
	if len(req.FieldMask) > 0 {
		r.FieldMask = &fieldmaskpb.FieldMask{Paths: req.FieldMask}
	}

	resp, err := d.client.ProcessDocument(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("documentai ProcessDocument: %w", err)
	}
	out := buildDocAIResult(resp.GetDocument(), d.processor, req.MimeType)
	d.log.Debug("Document processed", "pages", len(out.Pages), "chars", len(out.Text))
	return out, nil
}

func buildDocAIResult(doc *documentaipb.Document, processor, mimeType string) *DocAIResult {
	out := &DocAIResult{Processor: processor, MimeType: mimeType}
	if doc == nil {
		return out
	}
	out.Text = doc.GetText()

	for _, p := range doc.GetPages() {
		var pageText strings.Builder
		for _, para := range p.GetParagraphs() {
			t := strings.TrimSpace(textFromAnchor(doc.GetText(), para.GetLayout().GetTextAnchor()))
			if t == "" {
				continue
			}
			pageText.WriteString(t)
			pageText.WriteString("\n")
		}
		if pt := strings.TrimSpace(pageText.String()); pt != "" {
			out.Pages = append(out.Pages, DocAIPage{Number: int(p.GetPageNumber()), Text: pt})
		}
	}
	return out
}

func textFromAnchor(full string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil || len(anchor.TextSegments) == 0 || full == "" {
		return ""
	}
	var b strings.Builder
	for _, seg := range anchor.TextSegments {
		if seg == nil {
			continue
		}
		start := int(seg.StartIndex)
		end := int(seg.EndIndex)
		if start < 0 {
			start = 0
		}
		if end > len(full) {
			end = len(full)
		}
		if start >= end {
			continue
		}
		b.WriteString(full[start:end])
	}
	return b.String()
}

func processorName(project, location, processorID string) string {
	project = strings.TrimSpace(project)
	location = strings.TrimSpace(location)
	processorID = strings.TrimSpace(processorID)
	if project == "" || location == "" || processorID == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", project, location, processorID)
}
