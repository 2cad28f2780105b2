package tools

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"golang.org/x/sync/errgroup"

	"github.com/atelier-ai/atelier/internal/log"
)

// Registry holds the tools available to the orchestration loop. It is
// populated at startup and read-only afterwards; reads are safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	resolved map[string]*jsonschema.Resolved
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		resolved: make(map[string]*jsonschema.Resolved),
	}
}

// Register adds a tool and resolves its schema for later validation.
// Registering a duplicate name is an error.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}

	res, err := t.InputSchema().Resolve(nil)
	if err != nil {
		return fmt.Errorf("resolve schema for %q: %w", name, err)
	}

	r.tools[name] = t
	r.resolved[name] = res
	return nil
}

// Get returns the named tool, or false when absent.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns the registered tools sorted by name.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Executor runs tool calls against a registry. All failure modes become
// failure Results; Execute never returns an error.
type Executor struct {
	registry *Registry
	logger   log.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, logger log.Logger) *Executor {
	return &Executor{registry: registry, logger: logger}
}

// Execute runs a single tool call. Unknown tools, schema violations,
// handler errors and panics all produce a failure Result whose Content is a
// model-readable notice.
func (e *Executor) Execute(ctx context.Context, call Call) (result Result) {
	start := time.Now()
	result.Tool = call.Name

	defer func() {
		result.Elapsed = time.Since(start)
		if rec := recover(); rec != nil {
			e.logger.Error("tool panicked", "tool", call.Name, "panic", rec, "stack", string(debug.Stack()))
			result = failureResult(call.Name, FailureExecution,
				fmt.Sprintf("tool %s crashed: %v", call.Name, rec), time.Since(start))
		}
	}()

	tool, ok := e.registry.Get(call.Name)
	if !ok {
		e.logger.Warn("unknown tool requested", "tool", call.Name)
		return failureResult(call.Name, FailureUnknownTool,
			fmt.Sprintf("tool %s is not available", call.Name), time.Since(start))
	}

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}

	e.registry.mu.RLock()
	res := e.registry.resolved[call.Name]
	e.registry.mu.RUnlock()
	if err := res.Validate(args); err != nil {
		e.logger.Warn("tool arguments rejected", "tool", call.Name, "error", err)
		return failureResult(call.Name, FailureInvalidArgs,
			fmt.Sprintf("invalid arguments for %s: %v", call.Name, err), time.Since(start))
	}

	content, err := tool.Execute(ctx, args)
	if err != nil {
		e.logger.Warn("tool execution failed", "tool", call.Name, "error", err, "elapsed", time.Since(start))
		return failureResult(call.Name, FailureExecution,
			fmt.Sprintf("tool %s failed: %v", call.Name, err), time.Since(start))
	}

	e.logger.Info("tool executed", "tool", call.Name, "elapsed", time.Since(start))
	result.Content = content
	return result
}

// ExecuteAll runs the calls concurrently and returns results in call order.
// The round completes only when every call has finished.
func (e *Executor) ExecuteAll(ctx context.Context, calls []Call) []Result {
	results := make([]Result, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.Execute(gctx, call)
			return nil
		})
	}
	// Workers never return errors; Wait is a barrier.
	_ = g.Wait()

	return results
}

// Kind returns the kind of the named tool, or KindGeneral when unknown.
func (e *Executor) Kind(name string) Kind {
	if t, ok := e.registry.Get(name); ok {
		return t.Kind()
	}
	return KindGeneral
}

func failureResult(tool, code, message string, elapsed time.Duration) Result {
	return Result{
		Tool:    tool,
		Content: message,
		Failure: &Failure{Code: code, Message: message},
		Elapsed: elapsed,
	}
}
