package agent

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
)

func TestRunStreamDeliversStepsThenEOF(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	rs := newRunStream(cancel)

	go func() {
		rs.emit(context.Background(), &Step{Thinking: "first"})
		rs.emit(context.Background(), &Step{Thinking: "second"})
		rs.finish(nil)
	}()

	step, err := rs.Recv()
	if err != nil || step.Thinking != "first" {
		t.Fatalf("Recv = %v, %v", step, err)
	}
	step, err = rs.Recv()
	if err != nil || step.Thinking != "second" {
		t.Fatalf("Recv = %v, %v", step, err)
	}
	if _, err := rs.Recv(); err != io.EOF {
		t.Fatalf("Recv after finish = %v, want io.EOF", err)
	}
	// Drained stream stays drained.
	if _, err := rs.Recv(); err != io.EOF {
		t.Fatalf("second Recv after finish = %v, want io.EOF", err)
	}
}

func TestRunStreamSurfacesProducerError(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	rs := newRunStream(cancel)
	wantErr := errors.New("agent generate: boom")

	go func() {
		rs.emit(context.Background(), &Step{Thinking: "partial"})
		rs.finish(wantErr)
	}()

	if _, err := rs.Recv(); err != nil {
		t.Fatalf("Recv = %v, want buffered step first", err)
	}
	if _, err := rs.Recv(); !errors.Is(err, wantErr) {
		t.Fatalf("Recv = %v, want %v", err, wantErr)
	}
}

func TestRunStreamCloseUnblocksProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rs := newRunStream(cancel)

	produced := make(chan int, 1)
	go func() {
		n := 0
		// The channel holds 16 steps; a consumer that closes without
		// draining must stop the producer via ctx, not block it.
		for rs.emit(ctx, &Step{Thinking: "x"}) {
			n++
		}
		produced <- n
		rs.finish(ctx.Err())
	}()

	rs.Close()

	select {
	case n := <-produced:
		if n > 16 {
			t.Errorf("producer emitted %d steps into a closed stream", n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("producer still blocked after Close")
	}
}

func TestModelStepsEmitsBothForMixedMessage(t *testing.T) {
	msg := &schema.Message{
		Role:    schema.Assistant,
		Content: "Checking weather before assessing risk.",
		ToolCalls: []schema.ToolCall{
			{ID: "call-1", Function: schema.FunctionCall{Name: "get_weather_data", Arguments: `{"district":"Lahore"}`}},
		},
	}

	steps := modelSteps(msg)
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	if len(steps[0].ToolCalls) != 1 || steps[0].ToolCalls[0].Name != "get_weather_data" {
		t.Errorf("steps[0] = %+v", steps[0])
	}
	if steps[1].Thinking != "Checking weather before assessing risk." {
		t.Errorf("steps[1] = %+v", steps[1])
	}
}

func TestModelStepsSingleKindMessages(t *testing.T) {
	steps := modelSteps(&schema.Message{Role: schema.Assistant, Content: "just text"})
	if len(steps) != 1 || steps[0].Thinking != "just text" {
		t.Fatalf("steps = %+v", steps)
	}

	steps = modelSteps(&schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: "call-2", Function: schema.FunctionCall{Name: "get_market_prices", Arguments: `{"crop":"wheat"}`}},
		},
	})
	if len(steps) != 1 || len(steps[0].ToolCalls) != 1 {
		t.Fatalf("steps = %+v", steps)
	}

	if steps := modelSteps(&schema.Message{Role: schema.Assistant}); len(steps) != 0 {
		t.Fatalf("empty message produced %d steps", len(steps))
	}
}

func TestAnalysisPromptDefaultsDateRange(t *testing.T) {
	got := analysisPrompt(AnalysisRequest{Regions: []string{"Punjab", "Sindh"}})
	want := "Analyze food security for regions: Punjab, Sindh. Date range: next 30 days"
	if got != want {
		t.Errorf("analysisPrompt = %q, want %q", got, want)
	}

	got = analysisPrompt(AnalysisRequest{Regions: []string{"KPK"}, DateRange: "Q3 2026"})
	if got != "Analyze food security for regions: KPK. Date range: Q3 2026" {
		t.Errorf("analysisPrompt = %q", got)
	}
}

func TestUsedSetDedupesAndKeepsOrder(t *testing.T) {
	var u usedSet
	u.add("get_weather_data")
	u.add("get_market_prices")
	u.add("get_weather_data")
	u.add("")

	names := u.names()
	if len(names) != 2 || names[0] != "get_weather_data" || names[1] != "get_market_prices" {
		t.Errorf("names = %v", names)
	}
}
