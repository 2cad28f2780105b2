// Package transcribe converts uploaded audio to text through a
// whisper-compatible transcription endpoint.
package transcribe

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/atelier-ai/atelier/internal/log"
)

// Transcription is the outcome of one audio upload.
type Transcription struct {
	Filename string `json:"filename"`
	Text     string `json:"transcription"`

	// Duration in seconds, when the backend reports it. The plain JSON
	// response format does not, so this is usually zero.
	Duration float64 `json:"duration"`
	Format   string  `json:"format"`
}

// Transcriber converts audio bytes to text.
type Transcriber interface {
	Transcribe(ctx context.Context, filename string, data []byte) (*Transcription, error)
}

// supportedFormats maps audio file extensions to their MIME types.
var supportedFormats = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
	".flac": "audio/flac",
}

// Supported reports whether the filename has a transcribable extension.
func Supported(filename string) bool {
	_, ok := supportedFormats[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// Config configures the whisper client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
}

// Whisper is the openai-go backed Transcriber.
type Whisper struct {
	client openai.Client
	model  string
	logger log.Logger
}

// NewWhisper creates a transcriber against the configured endpoint.
func NewWhisper(cfg Config, logger log.Logger) *Whisper {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.AudioModelWhisper1)
	}
	return &Whisper{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

// Transcribe sends the audio to the endpoint and returns the recognized
// text.
func (w *Whisper) Transcribe(ctx context.Context, filename string, data []byte) (*Transcription, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	mime, ok := supportedFormats[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s is empty", filename)
	}

	resp, err := w.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		Model: openai.AudioModel(w.model),
		File:  openai.File(bytes.NewReader(data), filename, mime),
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe %s: %w", filename, err)
	}

	w.logger.Info("audio transcribed", "file", filename, "bytes", len(data), "text_len", len(resp.Text))
	return &Transcription{
		Filename: filename,
		Text:     resp.Text,
		Format:   strings.TrimPrefix(ext, "."),
	}, nil
}
