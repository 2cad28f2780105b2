package session

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/model"
)

const (
	titleMinRunes = 5
	titleMaxRunes = 15

	titleTimeout = 20 * time.Second
)

// titleStore is the slice of Store the titler needs.
type titleStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Conversation, error)
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
}

// Titler generates a short conversation title after the first exchange.
// Best effort: failures are logged, never surfaced.
type Titler struct {
	invoker model.Invoker
	store   titleStore
	model   string
	logger  log.Logger
}

// NewTitler creates a titler using the given model.
func NewTitler(invoker model.Invoker, store titleStore, modelName string, logger log.Logger) *Titler {
	return &Titler{invoker: invoker, store: store, model: modelName, logger: logger}
}

// MaybeTitle titles the conversation if it has none yet. Intended to be run
// in its own goroutine after a completed exchange; it carries its own
// timeout and never returns an error.
func (t *Titler) MaybeTitle(ctx context.Context, id uuid.UUID, question, answer string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), titleTimeout)
	defer cancel()

	conv, err := t.store.Get(ctx, id)
	if err != nil {
		t.logger.Debug("title skipped, conversation lookup failed", "conversation_id", id, "error", err)
		return
	}
	if conv.Title != "" {
		return
	}

	prompt := fmt.Sprintf(
		"Summarize this exchange as a title of %d to %d characters. Reply with the title only, no quotes or punctuation.\n\nQ: %s\nA: %s",
		titleMinRunes, titleMaxRunes, clip(question, 500), clip(answer, 500))

	res, err := t.invoker.Invoke(ctx, model.Request{Model: t.model, Messages: userMessage(prompt)})
	if err != nil {
		t.logger.Debug("title generation failed", "conversation_id", id, "error", err)
		return
	}

	title := SanitizeTitle(res.Text)
	if title == "" {
		return
	}
	if err := t.store.SetTitle(ctx, id, title); err != nil {
		t.logger.Debug("title save failed", "conversation_id", id, "error", err)
		return
	}
	t.logger.Info("conversation titled", "conversation_id", id, "title", title)
}

// SanitizeTitle trims quotes, surrounding punctuation and whitespace, and
// caps the result at the maximum title length. Returns "" when nothing
// usable remains.
func SanitizeTitle(raw string) string {
	title := strings.TrimSpace(raw)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = title[:idx]
	}
	title = strings.TrimFunc(title, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSpace(r) || r == '"' || r == '\''
	})
	runes := []rune(title)
	if len(runes) > titleMaxRunes {
		runes = runes[:titleMaxRunes]
		title = strings.TrimSpace(string(runes))
	}
	return title
}

func userMessage(text string) []*ai.Message {
	return []*ai.Message{ai.NewUserMessage(ai.NewTextPart(text))}
}

func clip(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
