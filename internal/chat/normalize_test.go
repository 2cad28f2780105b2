package chat

import (
	"strings"
	"testing"

	"github.com/firebase/genkit/go/ai"

	"github.com/atelier-ai/atelier/internal/model"
)

// ============================================================================
// Message Normalization Tests
// ============================================================================

func TestMessages_HistoryRoles(t *testing.T) {
	req := Request{
		Content: "third",
		History: []Turn{
			{Role: "user", Content: "first"},
			{Role: "assistant", Content: "second"},
		},
	}

	msgs := Messages(req, model.Capability{})

	if len(msgs) != 3 {
		t.Fatalf("got %d messages, want 3", len(msgs))
	}
	if msgs[0].Role != ai.RoleUser || msgs[1].Role != ai.RoleModel || msgs[2].Role != ai.RoleUser {
		t.Errorf("roles = %v %v %v", msgs[0].Role, msgs[1].Role, msgs[2].Role)
	}
	if msgs[2].Content[0].Text != "third" {
		t.Errorf("last message text = %q", msgs[2].Content[0].Text)
	}
}

func TestMessages_ImageBlockVisionGating(t *testing.T) {
	req := Request{
		Content: "what is this",
		Blocks: []ContentBlock{
			{Type: BlockImage, Content: "data:image/png;base64,AAAA"},
		},
	}

	// Vision model: media part with the data URL.
	msgs := Messages(req, model.Capability{Vision: true})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	parts := msgs[0].Content
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want text+media", len(parts))
	}
	if !parts[1].IsMedia() {
		t.Errorf("second part should be media, got %+v", parts[1])
	}
	if parts[1].ContentType != "image/png" {
		t.Errorf("media content type = %q", parts[1].ContentType)
	}

	// Non-vision model: text stand-in instead of the image.
	msgs = Messages(req, model.Capability{})
	parts = msgs[0].Content
	if len(parts) != 2 || parts[1].IsMedia() {
		t.Fatalf("non-vision model should get a text stand-in: %+v", parts)
	}
	if !strings.Contains(parts[1].Text, "image attached") {
		t.Errorf("stand-in text = %q", parts[1].Text)
	}
}

func TestMessages_AudioAndDocumentBlocks(t *testing.T) {
	req := Request{
		Blocks: []ContentBlock{
			{Type: BlockAudio, Transcription: "play it again"},
			{Type: BlockDocument, Filename: "report.pdf", FileSize: 2048},
		},
	}

	msgs := Messages(req, model.Capability{Vision: true})
	if len(msgs) != 1 {
		t.Fatalf("got %d messages", len(msgs))
	}
	parts := msgs[0].Content
	if len(parts) != 2 {
		t.Fatalf("got %d parts", len(parts))
	}
	if parts[0].Text != "[audio transcription] play it again" {
		t.Errorf("audio part = %q", parts[0].Text)
	}
	if !strings.Contains(parts[1].Text, "report.pdf") || !strings.Contains(parts[1].Text, "2048") {
		t.Errorf("document part = %q", parts[1].Text)
	}
}

func TestMessages_SkipsEmptyTurns(t *testing.T) {
	req := Request{
		Content: "hello",
		History: []Turn{{Role: "user", Content: "   "}},
	}
	msgs := Messages(req, model.Capability{})
	if len(msgs) != 1 {
		t.Errorf("blank history turn should be skipped, got %d messages", len(msgs))
	}
}

func TestDataURLMediaType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"data:image/png;base64,AAAA", "image/png"},
		{"data:image/jpeg,percentencoded", "image/jpeg"},
		{"https://example.com/x.png", ""},
		{"data:,empty", ""},
	}
	for _, tt := range tests {
		if got := dataURLMediaType(tt.in); got != tt.want {
			t.Errorf("dataURLMediaType(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ============================================================================
// System Prompt Tests
// ============================================================================

func TestSystemPrompt_Variants(t *testing.T) {
	standard := SystemPrompt(model.Capability{Tools: true}, nil)
	if !strings.Contains(standard, "get_current_time") {
		t.Error("standard prompt should mention the clock tool")
	}

	reasoning := SystemPrompt(model.Capability{Reasoning: true}, nil)
	if !strings.Contains(reasoning, "step by step") {
		t.Error("reasoning prompt should ask for stepwise thinking")
	}
	if standard == reasoning {
		t.Error("prompt variants should differ")
	}
}

func TestSystemPrompt_ChunkAppendix(t *testing.T) {
	chunks := []DocumentChunk{
		{ID: "doc_0", Content: "alpha content", Metadata: ChunkMetadata{SourceInfo: "doc.pdf - page 1"}},
		{ID: "doc_1", Content: "beta content", Metadata: ChunkMetadata{Source: "doc.pdf"}},
	}

	got := SystemPrompt(model.Capability{}, chunks)

	if !strings.Contains(got, "[1] (doc.pdf - page 1)\nalpha content") {
		t.Errorf("first excerpt malformed:\n%s", got)
	}
	// SourceInfo falls back to Source when absent.
	if !strings.Contains(got, "[2] (doc.pdf)\nbeta content") {
		t.Errorf("second excerpt malformed:\n%s", got)
	}
}
