// Package chat implements the streaming orchestration loop: model rounds,
// tool execution, search result review, and citation resolution, emitted as
// a typed event stream.
package chat

import "time"

// BlockType tags a content block.
type BlockType string

const (
	BlockText     BlockType = "text"
	BlockImage    BlockType = "image"
	BlockAudio    BlockType = "audio"
	BlockDocument BlockType = "document"
)

// ContentBlock is one piece of multimodal input. The wire shape is flat with
// a type tag; unused fields stay empty.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// Content holds text, or a data URL for images.
	Content string `json:"content,omitempty"`

	// Thumbnail is an optional reduced preview for images.
	Thumbnail string `json:"thumbnail,omitempty"`

	// Transcription carries the recognized text of an audio block.
	Transcription string `json:"transcription,omitempty"`

	Filename string `json:"filename,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Turn is one prior exchange entry in the conversation history.
type Turn struct {
	Role      string         `json:"role"` // user | assistant
	Content   string         `json:"content"`
	Blocks    []ContentBlock `json:"blocks,omitempty"`
	CreatedAt time.Time      `json:"created_at,omitempty"`
}

// ChunkMetadata carries provenance for one document chunk.
type ChunkMetadata struct {
	Source      string `json:"source"`
	ChunkID     int    `json:"chunk_id"`
	Page        int    `json:"page_number"`
	ReferenceID string `json:"reference_id"`
	SourceInfo  string `json:"source_info"`
}

// DocumentChunk is one ingested slice of an uploaded document. Chunks are
// numbered 1-based in prompts, and citation markers resolve against that
// numbering.
type DocumentChunk struct {
	ID       string        `json:"id"`
	Index    int           `json:"index"`
	Content  string        `json:"content"`
	Metadata ChunkMetadata `json:"metadata"`
}

// Reference is one resolved citation from the final answer.
type Reference struct {
	ID         int    `json:"id"`
	Text       string `json:"text"`
	Source     string `json:"source,omitempty"`
	Page       int    `json:"page,omitempty"`
	ChunkID    string `json:"chunk_id,omitempty"`
	SourceInfo string `json:"source_info,omitempty"`
	Title      string `json:"title,omitempty"`
	URL        string `json:"url,omitempty"`
}

// Request is one chat invocation.
type Request struct {
	SessionID string          `json:"session_id"`
	Model     string          `json:"model"`
	Content   string          `json:"content"`
	Blocks    []ContentBlock  `json:"content_blocks,omitempty"`
	History   []Turn          `json:"history,omitempty"`
	Chunks    []DocumentChunk `json:"document_chunks,omitempty"`

	// KnowledgeBase names the chunk collection the request draws from.
	// Informational for now: chunks arrive inline on the request.
	KnowledgeBase string `json:"knowledge_base,omitempty"`
}
