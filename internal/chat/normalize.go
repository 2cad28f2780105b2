package chat

import (
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/atelier-ai/atelier/internal/model"
)

// Messages builds the adapter message list from the request history and the
// current input. Image blocks are passed through only for vision-capable
// models; audio and document blocks always degrade to text stand-ins so the
// transcript stays coherent for any model.
func Messages(req Request, cap model.Capability) []*ai.Message {
	msgs := make([]*ai.Message, 0, len(req.History)+1)

	for _, turn := range req.History {
		parts := turnParts(turn.Content, turn.Blocks, cap)
		if len(parts) == 0 {
			continue
		}
		if turn.Role == "assistant" {
			msgs = append(msgs, ai.NewModelMessage(parts...))
		} else {
			msgs = append(msgs, ai.NewUserMessage(parts...))
		}
	}

	if parts := turnParts(req.Content, req.Blocks, cap); len(parts) > 0 {
		msgs = append(msgs, ai.NewUserMessage(parts...))
	}

	return msgs
}

func turnParts(content string, blocks []ContentBlock, cap model.Capability) []*ai.Part {
	var parts []*ai.Part
	if strings.TrimSpace(content) != "" {
		parts = append(parts, ai.NewTextPart(content))
	}

	for _, b := range blocks {
		switch b.Type {
		case BlockText:
			if b.Content != "" {
				parts = append(parts, ai.NewTextPart(b.Content))
			}
		case BlockImage:
			if part, ok := imagePart(b, cap); ok {
				parts = append(parts, part)
			}
		case BlockAudio:
			if b.Transcription != "" {
				parts = append(parts, ai.NewTextPart("[audio transcription] "+b.Transcription))
			}
		case BlockDocument:
			parts = append(parts, ai.NewTextPart(documentStub(b)))
		}
	}

	return parts
}

// imagePart converts a data-URL image block into a media part. Models
// without vision get a text stand-in instead of a silently dropped block.
func imagePart(b ContentBlock, cap model.Capability) (*ai.Part, bool) {
	if !cap.Vision {
		return ai.NewTextPart("[image attached, not supported by the selected model]"), true
	}
	data := b.Content
	if data == "" {
		return nil, false
	}
	mediaType := dataURLMediaType(data)
	if mediaType == "" {
		return nil, false
	}
	return ai.NewMediaPart(mediaType, data), true
}

// dataURLMediaType extracts the media type of a data URL, empty when the
// value is not a data URL.
func dataURLMediaType(u string) string {
	if !strings.HasPrefix(u, "data:") {
		return ""
	}
	rest := u[len("data:"):]
	sep := strings.IndexAny(rest, ";,")
	if sep <= 0 {
		return ""
	}
	return rest[:sep]
}

func documentStub(b ContentBlock) string {
	name := b.Filename
	if name == "" {
		name = "document"
	}
	if b.FileSize > 0 {
		return fmt.Sprintf("[document attached: %s, %d bytes]", name, b.FileSize)
	}
	return fmt.Sprintf("[document attached: %s]", name)
}
