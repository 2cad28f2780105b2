package model

import (
	"context"
	"fmt"
	"sync"
)

// FakeStep scripts one invocation of the FakeInvoker.
type FakeStep struct {
	// Result is returned after any chunks are delivered.
	Result *Result

	// Chunks are streamed when the caller uses Stream.
	Chunks []Chunk

	// Err aborts the invocation instead.
	Err error
}

// FakeInvoker is a scripted Invoker for tests. Each call consumes the next
// step; running past the script is an error.
type FakeInvoker struct {
	mu       sync.Mutex
	steps    []FakeStep
	Requests []Request
}

// NewFakeInvoker creates a fake that plays back the given steps in order.
func NewFakeInvoker(steps ...FakeStep) *FakeInvoker {
	return &FakeInvoker{steps: steps}
}

// Invoke consumes the next step, ignoring its chunks.
func (f *FakeInvoker) Invoke(ctx context.Context, req Request) (*Result, error) {
	return f.Stream(ctx, req, nil)
}

// Stream consumes the next step, delivering its chunks first.
func (f *FakeInvoker) Stream(ctx context.Context, req Request, fn StreamFunc) (*Result, error) {
	f.mu.Lock()
	f.Requests = append(f.Requests, req)
	if len(f.steps) == 0 {
		f.mu.Unlock()
		return nil, fmt.Errorf("fake invoker: no step scripted for call %d", len(f.Requests))
	}
	step := f.steps[0]
	f.steps = f.steps[1:]
	f.mu.Unlock()

	if step.Err != nil {
		return nil, step.Err
	}
	if fn != nil {
		for _, chunk := range step.Chunks {
			if err := fn(ctx, chunk); err != nil {
				return nil, err
			}
		}
	}
	return step.Result, nil
}
