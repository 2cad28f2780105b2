// Package tools provides the tool registry and executor for the chat
// orchestration loop.
//
// Tools are registered once at startup. The executor validates arguments
// against each tool's JSON schema and converts every failure (unknown tool,
// invalid arguments, execution error, panic) into a failure-carrying Result
// value. Execution never surfaces an error to the caller; the model sees the
// failure text and can recover.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Kind classifies a tool for the orchestration loop. Search-class results
// are routed through the result reviewer after execution.
type Kind string

const (
	// KindGeneral marks an ordinary tool.
	KindGeneral Kind = "general"

	// KindSearch marks a tool whose output is a formatted search result list.
	KindSearch Kind = "search"
)

// Tool is a callable unit exposed to the model.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string

	// Description tells the model when to call the tool.
	Description() string

	// Kind classifies the tool's output handling.
	Kind() Kind

	// InputSchema describes the accepted arguments.
	InputSchema() *jsonschema.Schema

	// Execute runs the tool. Errors returned here are converted into
	// failure Results by the executor, never propagated.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Call is one tool invocation requested by the model.
type Call struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Failure codes attached to failed Results.
const (
	FailureUnknownTool = "unknown_tool"
	FailureInvalidArgs = "invalid_args"
	FailureExecution   = "execution_failed"
)

// Failure describes why a tool call did not produce content.
type Failure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Result is the outcome of one tool call. Either Content is set, or Failure
// is non-nil; Content then carries a model-readable failure notice.
type Result struct {
	Tool    string        `json:"tool"`
	Content string        `json:"content"`
	Failure *Failure      `json:"failure,omitempty"`
	Elapsed time.Duration `json:"-"`
}

// Failed reports whether the call produced a failure.
func (r Result) Failed() bool { return r.Failure != nil }

// FuncTool adapts a typed handler into the Tool interface. The input type's
// schema is derived once at construction.
type FuncTool[In any] struct {
	name        string
	description string
	kind        Kind
	schema      *jsonschema.Schema
	handler     func(context.Context, In) (string, error)
}

// New creates a tool from a typed handler. The JSON schema for In is derived
// from its struct tags; arguments are converted through a JSON round trip the
// same way the model serializes them.
func New[In any](name, description string, kind Kind, handler func(context.Context, In) (string, error)) (*FuncTool[In], error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("schema for %s: %w", name, err)
	}
	return &FuncTool[In]{
		name:        name,
		description: description,
		kind:        kind,
		schema:      schema,
		handler:     handler,
	}, nil
}

// Name returns the tool's unique identifier.
func (t *FuncTool[In]) Name() string { return t.name }

// Description returns the tool's functionality description.
func (t *FuncTool[In]) Description() string { return t.description }

// Kind returns the tool's output classification.
func (t *FuncTool[In]) Kind() Kind { return t.kind }

// InputSchema returns the derived argument schema.
func (t *FuncTool[In]) InputSchema() *jsonschema.Schema { return t.schema }

// Execute converts args to the typed input and runs the handler.
func (t *FuncTool[In]) Execute(ctx context.Context, args map[string]any) (string, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("marshal args: %w", err)
	}
	var input In
	if err := json.Unmarshal(raw, &input); err != nil {
		return "", fmt.Errorf("invalid input for %s: %w", t.name, err)
	}
	return t.handler(ctx, input)
}
