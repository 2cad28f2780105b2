// Package model wraps model invocation behind a small interface so the
// orchestration loop never talks to a provider SDK directly.
//
// Capability flags are resolved from the configured catalog, not from model
// name matching; callers branch on Capability fields only.
package model

import (
	"context"

	"github.com/firebase/genkit/go/ai"
)

// Capability describes what a catalog model can do.
type Capability struct {
	// Tools reports whether the model may receive tool declarations.
	Tools bool

	// Reasoning reports whether the model emits a separate reasoning
	// channel that should be streamed as thought content.
	Reasoning bool

	// Vision reports whether the model accepts image parts.
	Vision bool
}

// Request is one model invocation.
type Request struct {
	// Model is the catalog name, without provider prefix.
	Model string

	// System is the system prompt, empty for none.
	System string

	// Messages is the conversation so far, user message last.
	Messages []*ai.Message

	// Tools are the declarations offered to the model. Tool requests are
	// returned to the caller, never executed by the adapter.
	Tools []ai.ToolRef
}

// Chunk is one streamed fragment.
type Chunk struct {
	Text string

	// Reasoning marks fragments from the model's reasoning channel.
	Reasoning bool
}

// Result is the complete outcome of one invocation.
type Result struct {
	// Text is the model's text output, empty when it only requested tools.
	Text string

	// ToolRequests are the calls the model wants executed this round.
	ToolRequests []*ai.ToolRequest

	// Message is the full model message, kept so tool responses can be
	// appended to the transcript in the provider's expected shape.
	Message *ai.Message
}

// StreamFunc receives streamed chunks. Returning an error aborts the stream.
type StreamFunc func(ctx context.Context, chunk Chunk) error

// Invoker runs model calls.
type Invoker interface {
	// Invoke runs a blocking generation.
	Invoke(ctx context.Context, req Request) (*Result, error)

	// Stream runs a generation with chunk delivery, returning the final
	// result after the stream completes.
	Stream(ctx context.Context, req Request, fn StreamFunc) (*Result, error)
}

// Catalog resolves model names to capabilities.
type Catalog struct {
	entries      map[string]Capability
	defaultModel string
}

// NewCatalog creates a catalog with the given default model name.
func NewCatalog(defaultModel string) *Catalog {
	return &Catalog{
		entries:      make(map[string]Capability),
		defaultModel: defaultModel,
	}
}

// Add registers a model's capabilities.
func (c *Catalog) Add(name string, cap Capability) {
	c.entries[name] = cap
}

// Default returns the default model name.
func (c *Catalog) Default() string { return c.defaultModel }

// Has reports whether name is in the catalog.
func (c *Catalog) Has(name string) bool {
	_, ok := c.entries[name]
	return ok
}

// Resolve returns the capabilities for name. Unknown names resolve to the
// default model's capabilities with every flag off as the last resort.
func (c *Catalog) Resolve(name string) Capability {
	if cap, ok := c.entries[name]; ok {
		return cap
	}
	if cap, ok := c.entries[c.defaultModel]; ok {
		return cap
	}
	return Capability{}
}

// Names returns all catalog model names.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	return names
}
