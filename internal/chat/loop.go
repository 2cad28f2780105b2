package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/atelier-ai/atelier/internal/log"
	"github.com/atelier-ai/atelier/internal/model"
	"github.com/atelier-ai/atelier/internal/review"
	"github.com/atelier-ai/atelier/internal/tools"
)

const (
	// eventBuffer smooths bursts between the loop and the SSE writer.
	eventBuffer = 64

	// toolRoundTimeout bounds one round of tool execution. Tools keep
	// running to completion on client disconnect, so the bound must hold
	// without help from the request context.
	toolRoundTimeout = 2 * time.Minute

	// fallbackAnswer is emitted when the model returns nothing at all.
	fallbackAnswer = "I couldn't produce an answer for this request. Please try rephrasing your question."
)

// Config wires the orchestrator's collaborators.
type Config struct {
	Invoker  model.Invoker
	Catalog  *model.Catalog
	Executor *tools.Executor
	ToolRefs []ai.ToolRef
	Reviewer *review.Reviewer
	Logger   log.Logger

	// MaxRounds caps tool rounds before the answer is forced. Default 2.
	MaxRounds int
}

func (cfg Config) validate() error {
	if cfg.Invoker == nil {
		return errors.New("invoker is required")
	}
	if cfg.Catalog == nil {
		return errors.New("model catalog is required")
	}
	if cfg.Executor == nil {
		return errors.New("tool executor is required")
	}
	if cfg.Reviewer == nil {
		return errors.New("reviewer is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	return nil
}

// Orchestrator runs the chat loop: bounded tool rounds followed by a
// streamed final answer. Stateless across requests; safe for concurrent use.
type Orchestrator struct {
	invoker   model.Invoker
	catalog   *model.Catalog
	executor  *tools.Executor
	toolRefs  []ai.ToolRef
	reviewer  *review.Reviewer
	logger    log.Logger
	maxRounds int
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = 2
	}
	return &Orchestrator{
		invoker:   cfg.Invoker,
		catalog:   cfg.Catalog,
		executor:  cfg.Executor,
		toolRefs:  cfg.ToolRefs,
		reviewer:  cfg.Reviewer,
		logger:    cfg.Logger,
		maxRounds: maxRounds,
	}, nil
}

// Run starts the loop and returns its event stream. The channel is closed
// after exactly one terminal event (message_complete or error). Canceling
// ctx abandons the stream; in-flight tools still run to completion and their
// results are discarded.
func (o *Orchestrator) Run(ctx context.Context, req Request) <-chan Event {
	events := make(chan Event, eventBuffer)
	go o.run(ctx, req, events)
	return events
}

// emitter tracks terminal-event bookkeeping for one run.
type emitter struct {
	ctx      context.Context
	events   chan<- Event
	terminal bool
}

// send delivers an event unless the stream was abandoned. Events after the
// terminal one are dropped.
func (e *emitter) send(t EventType, payload any) {
	if e.terminal {
		return
	}
	ev := Event{Type: t, Time: time.Now(), Payload: payload}
	if ev.Terminal() {
		e.terminal = true
	}
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}

func (o *Orchestrator) run(ctx context.Context, req Request, events chan<- Event) {
	em := &emitter{ctx: ctx, events: events}
	defer close(events)
	defer func() {
		if rec := recover(); rec != nil {
			o.logger.Error("orchestration panicked", "session_id", req.SessionID, "panic", rec)
			em.send(EventError, ErrorPayload{Error: "internal error"})
			return
		}
		// The terminal event is guaranteed even on unexpected exits.
		if !em.terminal {
			em.send(EventError, ErrorPayload{Error: "stream ended unexpectedly"})
		}
	}()

	modelName := req.Model
	if modelName == "" || !o.catalog.Has(modelName) {
		modelName = o.catalog.Default()
	}
	cap := o.catalog.Resolve(modelName)

	em.send(EventSessionInit, SessionInitPayload{SessionID: req.SessionID, Model: modelName})

	system := SystemPrompt(cap, req.Chunks)
	messages := Messages(req, cap)

	// Reviewed search selection of the most recent round; citation markers
	// resolve against it when no document chunks were supplied.
	var searched []review.Assessment

	if cap.Tools && len(o.toolRefs) > 0 {
		var failed bool
		messages, searched, failed = o.toolRounds(ctx, em, req, modelName, system, messages)
		if failed {
			return
		}
	}

	full, err := o.streamAnswer(ctx, em, modelName, system, messages)
	if err != nil {
		if ctx.Err() != nil {
			o.logger.Info("stream abandoned", "session_id", req.SessionID)
			em.send(EventError, ErrorPayload{Error: "request canceled"})
			return
		}
		o.logger.Error("final answer failed", "session_id", req.SessionID, "error", err)
		em.send(EventError, ErrorPayload{Error: err.Error()})
		return
	}

	references := ResolveReferences(full, req.Chunks, searched)
	em.send(EventMessageComplete, MessageCompletePayload{FullContent: full, References: references})
}

// toolRounds runs bounded tool rounds. It returns the extended transcript,
// the reviewed selection of the last search round, and whether the run
// already terminated with an error event.
func (o *Orchestrator) toolRounds(ctx context.Context, em *emitter, req Request, modelName, system string, messages []*ai.Message) ([]*ai.Message, []review.Assessment, bool) {
	var searched []review.Assessment

	for round := 0; round < o.maxRounds; round++ {
		res, err := o.invoker.Invoke(ctx, model.Request{
			Model:    modelName,
			System:   system,
			Messages: messages,
			Tools:    o.toolRefs,
		})
		if err != nil {
			o.logger.Error("tool round invocation failed", "session_id", req.SessionID, "round", round, "error", err)
			em.send(EventError, ErrorPayload{Error: err.Error()})
			return messages, searched, true
		}
		if len(res.ToolRequests) == 0 {
			// The model is ready to answer.
			return messages, searched, false
		}

		calls := make([]tools.Call, len(res.ToolRequests))
		infos := make([]ToolCallInfo, len(res.ToolRequests))
		for i, tr := range res.ToolRequests {
			args, _ := tr.Input.(map[string]any)
			calls[i] = tools.Call{Name: tr.Name, Args: args}
			infos[i] = ToolCallInfo{Name: tr.Name, Args: args}
		}
		em.send(EventToolCalls, ToolCallsPayload{Tools: infos})

		// Tools run detached from the request context so a disconnect
		// mid-round cannot leave a half-finished side effect; a timeout
		// keeps the round bounded instead.
		toolCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), toolRoundTimeout)
		results := o.executor.ExecuteAll(toolCtx, calls)
		cancel()

		if ctx.Err() != nil {
			em.send(EventError, ErrorPayload{Error: "request canceled"})
			return messages, searched, true
		}

		// Search results are reviewed and replaced by the filtered,
		// annotated rendition before folding into the transcript.
		for i := range results {
			if results[i].Failed() || o.executor.Kind(results[i].Tool) != tools.KindSearch {
				continue
			}
			report := o.reviewer.Review(req.Content, results[i].Content)
			searched = o.reviewer.Select(report)
			results[i].Content = o.reviewer.Reformat(report)
		}

		resultInfos := make([]ToolResultInfo, len(results))
		responseParts := make([]*ai.Part, len(results))
		for i, r := range results {
			resultInfos[i] = ToolResultInfo{Tool: r.Tool, Content: r.Content}
			responseParts[i] = ai.NewToolResponsePart(&ai.ToolResponse{
				Name:   res.ToolRequests[i].Name,
				Ref:    res.ToolRequests[i].Ref,
				Output: r.Content,
			})
		}
		em.send(EventToolResults, ToolResultsPayload{Results: resultInfos})

		if res.Message != nil {
			messages = append(messages, res.Message)
		}
		messages = append(messages, ai.NewMessage(ai.RoleTool, nil, responseParts...))
	}

	// Round cap reached; the final streamed call runs without tools, which
	// forces an answer from what was gathered.
	return messages, searched, false
}

// streamAnswer streams the final answer, bracketing reasoning fragments with
// thought events and emitting answer_start before the first content delta.
func (o *Orchestrator) streamAnswer(ctx context.Context, em *emitter, modelName, system string, messages []*ai.Message) (string, error) {
	var (
		full           strings.Builder
		answerStarted  bool
		thoughtStarted bool
	)

	res, err := o.invoker.Stream(ctx, model.Request{
		Model:    modelName,
		System:   system,
		Messages: messages,
	}, func(_ context.Context, chunk model.Chunk) error {
		if chunk.Reasoning {
			if answerStarted {
				// The thought phase closed when the answer began; a late
				// reasoning fragment cannot be bracketed anymore.
				return nil
			}
			if !thoughtStarted {
				thoughtStarted = true
				em.send(EventThoughtStart, nil)
			}
			em.send(EventThoughtContent, ThoughtContentPayload{Content: chunk.Text})
			return nil
		}
		if thoughtStarted && !answerStarted {
			em.send(EventThoughtEnd, nil)
		}
		if !answerStarted {
			answerStarted = true
			em.send(EventAnswerStart, nil)
		}
		full.WriteString(chunk.Text)
		em.send(EventContentDelta, ContentDeltaPayload{Content: chunk.Text})
		return nil
	})
	if err != nil {
		return "", err
	}

	if thoughtStarted && !answerStarted {
		em.send(EventThoughtEnd, nil)
	}

	content := full.String()
	if content == "" && res != nil {
		// Non-streaming providers may deliver everything in the result.
		content = res.Text
		if content != "" {
			if !answerStarted {
				answerStarted = true
				em.send(EventAnswerStart, nil)
			}
			em.send(EventContentDelta, ContentDeltaPayload{Content: content})
		}
	}
	if !answerStarted {
		em.send(EventAnswerStart, nil)
	}
	if strings.TrimSpace(content) == "" {
		content = fallbackAnswer
		em.send(EventContentDelta, ContentDeltaPayload{Content: content})
	}
	return content, nil
}
