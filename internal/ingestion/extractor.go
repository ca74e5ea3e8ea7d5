package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/gcp"
	"github.com/Abhinav-Kotta/Behavior-Tree-Generation/internal/platform/logger"
)

// Document is the plain text of one source file.
type Document struct {
	ID   string
	Kind string
	Text string
}

type Extractor interface {
	Extract(ctx context.Context, path string) (Document, error)
}

type docProcessor interface {
	ProcessBytes(ctx context.Context, req gcp.DocAIProcessBytesRequest) (*gcp.DocAIResult, error)
}

// FileExtractor reads text files directly and sends PDFs through Document AI.
type FileExtractor struct {
	log   *logger.Logger
	docAI docProcessor
}

// NewFileExtractor accepts a nil processor; PDFs are then rejected.
func NewFileExtractor(log *logger.Logger, docAI docProcessor) *FileExtractor {
	return &FileExtractor{log: log.With("component", "FileExtractor"), docAI: docAI}
}

func (e *FileExtractor) Extract(ctx context.Context, path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read %s: %w", path, err)
	}
	doc := Document{ID: filepath.Base(path), Kind: ClassifyKind(path, data)}

	switch doc.Kind {
	case "pdf":
		if e.docAI == nil {
			return Document{}, fmt.Errorf("%s: pdf extraction requires Document AI (DOCUMENTAI_PROCESSOR_ID)", doc.ID)
		}
		res, err := e.docAI.ProcessBytes(ctx, gcp.DocAIProcessBytesRequest{MimeType: "application/pdf", Data: data})
		if err != nil {
			return Document{}, fmt.Errorf("%s: %w", doc.ID, err)
		}
		doc.Text = res.Text
		e.log.Debug("PDF extracted", "source", doc.ID, "pages", len(res.Pages), "chars", len(doc.Text))
	default:
		txt, err := ExtractTextStrict(path, data)
		if err != nil {
			return Document{}, fmt.Errorf("%s: %w", doc.ID, err)
		}
		doc.Text = txt
	}
	if strings.TrimSpace(doc.Text) == "" {
		return Document{}, fmt.Errorf("%s: no text extracted", doc.ID)
	}
	return doc, nil
}

func ClassifyKind(name string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == ".pdf" || isPDFHeader(head) {
		return "pdf"
	}
	return "text"
}

func isPDFHeader(b []byte) bool {
	return len(b) >= 5 && string(b[:5]) == "%PDF-"
}

var htmlTag = regexp.MustCompile(`(?s)<[^>]*>`)

// ExtractTextStrict returns the text of known text formats, or of any input
// that is at least 90% printable.
func ExtractTextStrict(name string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("no data")
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".html", ".htm":
		return htmlTag.ReplaceAllString(string(data), " "), nil
	case ".txt", ".md", ".csv", ".log", ".json", ".yaml", ".yml", ".xml":
		return string(data), nil
	}

	printable, total := 0, 0
	for _, r := range string(data) {
		total++
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127 && r != '\uFFFD') {
			printable++
		}
	}
	if total > 0 && float64(printable)/float64(total) > 0.90 {
		return string(data), nil
	}
	return "", fmt.Errorf("unsupported file type %q", ext)
}
