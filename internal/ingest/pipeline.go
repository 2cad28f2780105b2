package ingest

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/atelier-ai/atelier/internal/chat"
	"github.com/atelier-ai/atelier/internal/log"
)

// Progress steps of one ingestion run, in order.
const (
	StepPreparing  = "preparing"
	StepExtracting = "extracting"
	StepSplitting  = "splitting"
	StepBuilding   = "building"
	StepCompleted  = "completed"
)

// Event is one ingestion stream event. Progress events carry step fields;
// the run terminates with either a result (chunks set) or an error.
type Event struct {
	Type      string               `json:"type"` // progress | result | error
	Step      string               `json:"step,omitempty"`
	Progress  int                  `json:"progress,omitempty"`
	Message   string               `json:"message,omitempty"`
	Chunks    []chat.DocumentChunk `json:"chunks,omitempty"`
	Error     string               `json:"error,omitempty"`
	Timestamp string               `json:"timestamp"`
}

// Page is one extracted page of a document.
type Page struct {
	Number int
	Text   string
}

// Extractor pulls text out of an uploaded file. Implementations own the
// format specifics (PDF parsing, OCR, plain text).
type Extractor interface {
	// Extract returns the document's pages in order. Supported reports
	// whether the extractor handles the file, by name.
	Extract(ctx context.Context, filename string, data []byte) ([]Page, error)
	Supported(filename string) bool
}

// TextExtractor handles plain text and markdown uploads as one page.
type TextExtractor struct{}

// Supported reports text-like file extensions.
func (TextExtractor) Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".md", ".markdown", ".csv", ".log":
		return true
	}
	return false
}

// Extract returns the whole file as page 1.
func (TextExtractor) Extract(_ context.Context, filename string, data []byte) ([]Page, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", filename)
	}
	return []Page{{Number: 1, Text: string(data)}}, nil
}

// Pipeline runs one document through extraction and chunking. Stateless per
// call; safe for concurrent use.
type Pipeline struct {
	extractors []Extractor
	splitter   *Splitter
	logger     log.Logger
}

// NewPipeline creates a pipeline over the given extractors, tried in order.
func NewPipeline(splitter *Splitter, logger log.Logger, extractors ...Extractor) *Pipeline {
	return &Pipeline{extractors: extractors, splitter: splitter, logger: logger}
}

// Process ingests one document and streams progress. The channel closes
// after a terminal result or error event.
func (p *Pipeline) Process(ctx context.Context, filename string, data []byte) <-chan Event {
	events := make(chan Event, 8)
	go p.process(ctx, filename, data, events)
	return events
}

func (p *Pipeline) process(ctx context.Context, filename string, data []byte, events chan<- Event) {
	defer close(events)

	send := func(ev Event) bool {
		ev.Timestamp = time.Now().Format(time.RFC3339)
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(format string, args ...any) {
		msg := fmt.Sprintf(format, args...)
		p.logger.Warn("ingestion failed", "file", filename, "error", msg)
		send(Event{Type: "error", Error: msg})
	}
	progress := func(step string, pct int, message string) bool {
		return send(Event{Type: "progress", Step: step, Progress: pct, Message: message})
	}

	if !progress(StepPreparing, 10, "Preparing "+filename) {
		return
	}

	var extractor Extractor
	for _, e := range p.extractors {
		if e.Supported(filename) {
			extractor = e
			break
		}
	}
	if extractor == nil {
		fail("unsupported file type: %s", filename)
		return
	}

	if !progress(StepExtracting, 30, "Extracting text") {
		return
	}
	pages, err := extractor.Extract(ctx, filename, data)
	if err != nil {
		fail("extract %s: %v", filename, err)
		return
	}
	if len(pages) == 0 {
		fail("no extractable text in %s", filename)
		return
	}

	if !progress(StepSplitting, 60, "Splitting text into chunks") {
		return
	}
	type pageChunk struct {
		page int
		text string
	}
	var pieces []pageChunk
	for _, page := range pages {
		for _, text := range p.splitter.Split(page.Text) {
			pieces = append(pieces, pageChunk{page: page.Number, text: text})
		}
	}
	if len(pieces) == 0 {
		fail("no extractable text in %s", filename)
		return
	}

	if !progress(StepBuilding, 80, "Building chunk metadata") {
		return
	}
	chunks := make([]chat.DocumentChunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = chat.DocumentChunk{
			ID:      fmt.Sprintf("%s_%d", filename, i),
			Index:   i,
			Content: piece.text,
			Metadata: chat.ChunkMetadata{
				Source:      filename,
				ChunkID:     i,
				Page:        piece.page,
				ReferenceID: fmt.Sprintf("[%d]", i+1),
				SourceInfo:  fmt.Sprintf("%s - page %d", filename, piece.page),
			},
		}
	}

	if !progress(StepCompleted, 100, fmt.Sprintf("Processed %d chunks", len(chunks))) {
		return
	}
	p.logger.Info("document ingested", "file", filename, "pages", len(pages), "chunks", len(chunks))
	send(Event{Type: "result", Chunks: chunks})
}
