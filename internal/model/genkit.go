package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/tools"
)

// GenkitInvoker is the Genkit-backed Invoker. Tool requests are returned to
// the caller rather than auto-executed, so the orchestration loop controls
// every tool round.
type GenkitInvoker struct {
	g       *genkit.Genkit
	limiter *rate.Limiter
	logger  log.Logger
}

// NewGenkitInvoker creates an invoker. limiter may be nil to disable
// proactive rate limiting.
func NewGenkitInvoker(g *genkit.Genkit, limiter *rate.Limiter, logger log.Logger) *GenkitInvoker {
	return &GenkitInvoker{g: g, limiter: limiter, logger: logger}
}

// Invoke runs a blocking generation.
func (i *GenkitInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	return i.generate(ctx, req, nil)
}

// Stream runs a generation with chunk delivery.
func (i *GenkitInvoker) Stream(ctx context.Context, req Request, fn StreamFunc) (*Result, error) {
	return i.generate(ctx, req, fn)
}

func (i *GenkitInvoker) generate(ctx context.Context, req Request, fn StreamFunc) (*Result, error) {
	if i.limiter != nil {
		if err := i.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	// Genkit mutates message content in place while rendering; copies keep
	// concurrent requests from racing on shared history.
	opts := []ai.GenerateOption{
		ai.WithModelName(qualifiedName(req.Model)),
		ai.WithMessages(deepCopyMessages(req.Messages)...),
	}
	if req.System != "" {
		opts = append(opts, ai.WithSystem(req.System))
	}
	if len(req.Tools) > 0 {
		opts = append(opts, ai.WithTools(req.Tools...), ai.WithReturnToolRequests(true))
	}
	if fn != nil {
		opts = append(opts, ai.WithStreaming(func(cctx context.Context, chunk *ai.ModelResponseChunk) error {
			for _, part := range chunk.Content {
				if part.Text == "" {
					continue
				}
				if err := fn(cctx, Chunk{Text: part.Text, Reasoning: part.IsReasoning()}); err != nil {
					return err
				}
			}
			return nil
		}))
	}

	resp, err := genkit.Generate(ctx, i.g, opts...)
	if err != nil {
		return nil, fmt.Errorf("generate with %s: %w", req.Model, err)
	}

	return &Result{
		Text:         resp.Text(),
		ToolRequests: resp.ToolRequests(),
		Message:      resp.Message,
	}, nil
}

// qualifiedName prefixes the provider namespace unless already present.
func qualifiedName(name string) string {
	if strings.Contains(name, "/") {
		return name
	}
	return "googleai/" + name
}

// DefineToolStubs registers declaration-only Genkit tools for everything in
// the registry. The handlers never run: generation uses
// WithReturnToolRequests, so requests come back to the loop, which validates
// and executes through the tools.Executor.
func DefineToolStubs(g *genkit.Genkit, registry *tools.Registry) []ai.ToolRef {
	all := registry.All()
	refs := make([]ai.ToolRef, 0, len(all))
	for _, t := range all {
		name := t.Name()
		refs = append(refs, genkit.DefineTool(g, name, t.Description(),
			func(_ *ai.ToolContext, _ map[string]any) (string, error) {
				return "", fmt.Errorf("tool %s must be executed by the orchestration loop", name)
			}))
	}
	return refs
}

func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
			Input: p.ToolRequest.Input,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Ref:    p.ToolResponse.Ref,
			Output: p.ToolResponse.Output,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
