package ingest

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/atelier-ai/atelier/internal/log"
)

// ============================================================================
// Splitter Tests
// ============================================================================

func TestSplit_ShortTextSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("a short paragraph")
	if len(chunks) != 1 || chunks[0] != "a short paragraph" {
		t.Errorf("chunks = %q", chunks)
	}
}

func TestSplit_Empty(t *testing.T) {
	s := NewSplitter(1000, 200)
	if chunks := s.Split("   \n  "); chunks != nil {
		t.Errorf("whitespace-only input should yield nil, got %q", chunks)
	}
}

func TestSplit_RespectsChunkSize(t *testing.T) {
	s := NewSplitter(100, 20)

	var b strings.Builder
	for i := 0; i < 40; i++ {
		b.WriteString("sentence number with several words here\n\n")
	}

	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d has %d runes, want <= 100", i, n)
		}
	}
}

func TestSplit_NestedRecursionKeepsSizeBudget(t *testing.T) {
	s := NewSplitter(100, 20)

	// Paragraphs mixing short English lines with a long unbroken CJK run
	// force recursion through every separator level down to the hard cut.
	cjk := strings.Repeat("漢字混在の長い本文", 30)
	var b strings.Builder
	for i := 0; i < 6; i++ {
		b.WriteString("an english lead-in sentence for the section\n")
		b.WriteString(cjk)
		b.WriteString("\n\n")
	}

	chunks := s.Split(b.String())
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := utf8.RuneCountInString(c); n > 100 {
			t.Errorf("chunk %d has %d runes, want <= 100", i, n)
		}
	}
}

func TestSplit_PrefersParagraphBoundaries(t *testing.T) {
	s := NewSplitter(60, 10)
	text := "first paragraph content here\n\nsecond paragraph content here\n\nthird paragraph content here"

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected splitting, got %q", chunks)
	}
	if !strings.HasPrefix(chunks[0], "first paragraph") {
		t.Errorf("first chunk = %q", chunks[0])
	}
}

func TestSplit_HardCutWithoutSeparators(t *testing.T) {
	s := NewSplitter(50, 10)
	text := strings.Repeat("x", 120)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("unbroken text must still be cut, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if utf8.RuneCountInString(c) > 50 {
			t.Errorf("chunk %d exceeds size: %d runes", i, utf8.RuneCountInString(c))
		}
	}
	// Overlap: each later chunk starts with the tail of its predecessor.
	if !strings.HasPrefix(chunks[1], strings.Repeat("x", 10)) {
		t.Errorf("second chunk should start with overlap runes")
	}
}

func TestSplit_OverlapCarriedBetweenChunks(t *testing.T) {
	s := NewSplitter(40, 12)
	text := "alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu"

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %q", chunks)
	}
	// The start of chunk 2 must appear near the end of chunk 1.
	head := strings.Fields(chunks[1])[0]
	if !strings.Contains(chunks[0], head) {
		t.Errorf("no overlap between %q and %q", chunks[0], chunks[1])
	}
}

func TestNewSplitter_Defaults(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.chunkSize != 1000 || s.overlap != 200 {
		t.Errorf("defaults = size %d overlap %d", s.chunkSize, s.overlap)
	}
}

// ============================================================================
// Pipeline Tests
// ============================================================================

func drain(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("timed out draining ingestion events")
		}
	}
}

func TestProcess_TextDocument(t *testing.T) {
	p := NewPipeline(NewSplitter(50, 10), log.NewNop(), TextExtractor{})

	events := drain(t, p.Process(context.Background(), "notes.txt",
		[]byte("first paragraph of the notes\n\nsecond paragraph of the notes\n\nthird paragraph here")))

	var steps []string
	var progresses []int
	var result *Event
	for i := range events {
		switch events[i].Type {
		case "progress":
			steps = append(steps, events[i].Step)
			progresses = append(progresses, events[i].Progress)
		case "result":
			result = &events[i]
		case "error":
			t.Fatalf("unexpected error event: %s", events[i].Error)
		}
		if events[i].Timestamp == "" {
			t.Error("event missing timestamp")
		}
	}

	wantSteps := []string{StepPreparing, StepExtracting, StepSplitting, StepBuilding, StepCompleted}
	if len(steps) != len(wantSteps) {
		t.Fatalf("steps = %v, want %v", steps, wantSteps)
	}
	for i := range wantSteps {
		if steps[i] != wantSteps[i] {
			t.Fatalf("steps = %v, want %v", steps, wantSteps)
		}
	}
	for i := 1; i < len(progresses); i++ {
		if progresses[i] <= progresses[i-1] {
			t.Errorf("progress not monotonic: %v", progresses)
		}
	}
	if progresses[len(progresses)-1] != 100 {
		t.Errorf("final progress = %d, want 100", progresses[len(progresses)-1])
	}

	if result == nil {
		t.Fatal("missing result event")
	}
	if len(result.Chunks) == 0 {
		t.Fatal("result has no chunks")
	}
	first := result.Chunks[0]
	if first.ID != "notes.txt_0" {
		t.Errorf("chunk id = %q", first.ID)
	}
	if first.Metadata.ReferenceID != "[1]" {
		t.Errorf("reference id = %q", first.Metadata.ReferenceID)
	}
	if first.Metadata.SourceInfo != "notes.txt - page 1" {
		t.Errorf("source info = %q", first.Metadata.SourceInfo)
	}
	for i, c := range result.Chunks {
		if c.Index != i {
			t.Errorf("chunk %d has index %d", i, c.Index)
		}
	}
}

func TestProcess_UnsupportedType(t *testing.T) {
	p := NewPipeline(NewSplitter(1000, 200), log.NewNop(), TextExtractor{})

	events := drain(t, p.Process(context.Background(), "binary.exe", []byte{0x4d, 0x5a}))

	last := events[len(events)-1]
	if last.Type != "error" {
		t.Fatalf("terminal = %q, want error", last.Type)
	}
	if !strings.Contains(last.Error, "unsupported") {
		t.Errorf("error = %q", last.Error)
	}
}

func TestProcess_EmptyFile(t *testing.T) {
	p := NewPipeline(NewSplitter(1000, 200), log.NewNop(), TextExtractor{})

	events := drain(t, p.Process(context.Background(), "empty.txt", nil))

	last := events[len(events)-1]
	if last.Type != "error" {
		t.Fatalf("terminal = %q, want error", last.Type)
	}
}
