package chat

import (
	"strings"
	"testing"

	"github.com/atelier-ai/atelier/internal/review"
)

// ============================================================================
// Reference Resolution Tests
// ============================================================================

func testChunks() []DocumentChunk {
	return []DocumentChunk{
		{ID: "report.pdf_0", Content: "first chunk text", Metadata: ChunkMetadata{
			Source: "report.pdf", Page: 1, ReferenceID: "[1]", SourceInfo: "report.pdf - page 1",
		}},
		{ID: "report.pdf_1", Content: strings.Repeat("x", 400), Metadata: ChunkMetadata{
			Source: "report.pdf", Page: 2, ReferenceID: "[2]", SourceInfo: "report.pdf - page 2",
		}},
	}
}

func TestResolveReferences_Chunks(t *testing.T) {
	refs := ResolveReferences("as stated in [1] and expanded in [2].", testChunks(), nil)

	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}
	if refs[0].ID != 1 || refs[0].Text != "first chunk text" || refs[0].ChunkID != "report.pdf_0" {
		t.Errorf("first reference = %+v", refs[0])
	}
	if refs[0].Page != 1 || refs[0].SourceInfo != "report.pdf - page 1" {
		t.Errorf("first reference metadata = %+v", refs[0])
	}
}

func TestResolveReferences_TruncatesLongText(t *testing.T) {
	refs := ResolveReferences("see [2]", testChunks(), nil)
	if len(refs) != 1 {
		t.Fatalf("got %d references", len(refs))
	}
	if len([]rune(refs[0].Text)) != referenceTextLimit+3 {
		t.Errorf("text length = %d runes, want %d + ellipsis", len([]rune(refs[0].Text)), referenceTextLimit)
	}
	if !strings.HasSuffix(refs[0].Text, "...") {
		t.Error("truncated text should end with ellipsis")
	}
}

func TestResolveReferences_DedupeAndOrder(t *testing.T) {
	refs := ResolveReferences("[2] then [1] then [2] again", testChunks(), nil)
	if len(refs) != 2 {
		t.Fatalf("got %d references, want 2", len(refs))
	}
	if refs[0].ID != 2 || refs[1].ID != 1 {
		t.Errorf("order of first appearance not kept: %+v", refs)
	}
}

func TestResolveReferences_OutOfRangeIgnored(t *testing.T) {
	refs := ResolveReferences("valid [1], invalid [7] and [0]", testChunks(), nil)
	if len(refs) != 1 || refs[0].ID != 1 {
		t.Errorf("refs = %+v, want only [1]", refs)
	}
}

func TestResolveReferences_SearchSelection(t *testing.T) {
	searched := []review.Assessment{
		{Entry: review.Entry{Index: 3, Title: "Scheduler docs", Snippet: "goroutine scheduling explained", URL: "https://go.example", Source: "duckduckgo"}},
	}

	refs := ResolveReferences("explained in [1]", nil, searched)

	if len(refs) != 1 {
		t.Fatalf("got %d references", len(refs))
	}
	if refs[0].Title != "Scheduler docs" || refs[0].URL != "https://go.example" {
		t.Errorf("reference = %+v", refs[0])
	}
}

func TestResolveReferences_ChunksTakePrecedence(t *testing.T) {
	searched := []review.Assessment{
		{Entry: review.Entry{Index: 1, Title: "web", Snippet: "web snippet"}},
	}

	refs := ResolveReferences("see [1]", testChunks(), searched)
	if len(refs) != 1 || refs[0].ChunkID != "report.pdf_0" {
		t.Errorf("chunks should win over search selection: %+v", refs)
	}
}

func TestResolveReferences_NoSources(t *testing.T) {
	if refs := ResolveReferences("bare [1] marker", nil, nil); refs != nil {
		t.Errorf("no sources should yield nil, got %+v", refs)
	}
	if refs := ResolveReferences("no markers at all", testChunks(), nil); refs != nil {
		t.Errorf("no markers should yield nil, got %+v", refs)
	}
}
