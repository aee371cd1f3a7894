package agent

import (
	"context"
	"io"
	"sync"

	"github.com/foodguardai/foodguard/internal/report"
)

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ToolResult is the serialized output of one tool invocation.
type ToolResult struct {
	Name    string
	Content string
}

// Step is one observable transition of an analysis run. Exactly one field
// is set. A Step carrying Report is terminal; nothing follows it.
type Step struct {
	ToolCalls  []ToolCall
	ToolResult *ToolResult
	Thinking   string
	Report     *report.Report
}

// StepStream is a single-pass pull iterator over the steps of one run.
// Recv blocks until the next step is available and returns io.EOF after
// the terminal step. Close releases the producer; it is safe to call at
// any point, including mid-stream.
type StepStream interface {
	Recv() (*Step, error)
	Close()
}

// runStream carries steps from the producer goroutine to the consumer
// over a bounded channel, so a slow consumer backpressures the run.
type runStream struct {
	steps  chan *Step
	cancel context.CancelFunc

	mu  sync.Mutex
	err error
}

func newRunStream(cancel context.CancelFunc) *runStream {
	return &runStream{
		steps:  make(chan *Step, 16),
		cancel: cancel,
	}
}

func (s *runStream) Recv() (*Step, error) {
	step, ok := <-s.steps
	if !ok {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	return step, nil
}

func (s *runStream) Close() {
	s.cancel()
}

// emit delivers a step unless the run context is gone. Returns false when
// the consumer has abandoned the stream.
func (s *runStream) emit(ctx context.Context, step *Step) bool {
	select {
	case s.steps <- step:
		return true
	case <-ctx.Done():
		return false
	}
}

// finish records the stream outcome and closes the channel. err must be
// set before the close so Recv never observes a closed channel without it.
func (s *runStream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.steps)
}
