package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/foodguardai/foodguard/internal/agent"
	"github.com/foodguardai/foodguard/internal/report"
)

// toolLabels maps tool names to their dashboard display labels. Unknown
// tools fall back to the upper-cased name.
var toolLabels = map[string]string{
	"get_weather_data":             "WEATHER DATA",
	"get_market_prices":            "MARKET PRICES",
	"get_warehouse_stock":          "WAREHOUSE INVENTORY",
	"get_production_forecast":      "PRODUCTION FORECAST",
	"get_crop_health":              "CROP HEALTH STATUS",
	"get_historical_shortage_data": "HISTORICAL DATA",
}

func labelFor(name string) string {
	if label, ok := toolLabels[name]; ok {
		return label
	}
	return strings.ToUpper(name)
}

// Encoder turns a run's step stream into wire events.
type Encoder struct {
	logger *slog.Logger
}

// NewEncoder creates an Encoder.
func NewEncoder(logger *slog.Logger) *Encoder {
	return &Encoder{logger: logger}
}

// Run consumes steps until the terminal step and feeds events to sink.
// It emits exactly one terminal event: complete on success, error when the
// stream fails, and stops consuming once a terminal has gone out. The
// returned report is nil whenever the error is non-nil. Sink failures
// abort the run without an error event; there is nobody left to read it.
func (e *Encoder) Run(steps agent.StepStream, regions []string, sink Sink) (*report.Report, error) {
	defer steps.Close()

	if err := sink(Event{Type: EventStatus, Message: "INITIALIZING FOODGUARD AI ANALYSIS SYSTEM"}); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}
	opening := fmt.Sprintf("ANALYZING %d REGION(S): %s",
		len(regions), strings.ToUpper(strings.Join(regions, ", ")))
	if err := sink(Event{Type: EventStatus, Message: opening}); err != nil {
		return nil, fmt.Errorf("write status: %w", err)
	}

	seen := make(map[string]bool)
	cache := make(map[string]json.RawMessage)

	for {
		step, err := steps.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = fmt.Errorf("stream ended without a report")
			}
			e.logger.Error("analysis stream failed", "error", err)
			if werr := sink(Event{Type: EventError, Error: err.Error()}); werr != nil {
				return nil, fmt.Errorf("write error event: %w", werr)
			}
			return nil, err
		}

		switch {
		case len(step.ToolCalls) > 0:
			for _, call := range step.ToolCalls {
				if seen[call.ID] {
					continue
				}
				seen[call.ID] = true
				ev := Event{
					Type:    EventToolStart,
					Tool:    call.Name,
					Message: "[FETCHING] " + labelFor(call.Name),
				}
				if err := sink(ev); err != nil {
					return nil, fmt.Errorf("write tool_start: %w", err)
				}
			}

		case step.ToolResult != nil:
			name := step.ToolResult.Name
			raw := json.RawMessage(step.ToolResult.Content)
			if !json.Valid(raw) {
				e.logger.Error("tool returned malformed output", "tool", name)
				continue
			}
			cache[name] = raw
			if err := sink(Event{Type: EventToolData, ToolName: name, Data: raw}); err != nil {
				return nil, fmt.Errorf("write tool_data: %w", err)
			}
			ev := Event{
				Type:    EventToolEnd,
				Tool:    name,
				Message: "[COMPLETE] " + labelFor(name),
			}
			if err := sink(ev); err != nil {
				return nil, fmt.Errorf("write tool_end: %w", err)
			}

		case step.Report != nil:
			if err := sink(Event{Type: EventStatus, Message: "[FINALIZING] GENERATING COMPREHENSIVE REPORT"}); err != nil {
				return nil, fmt.Errorf("write status: %w", err)
			}
			ev := Event{
				Type:     EventComplete,
				Report:   step.Report,
				ToolData: cache,
			}
			if err := sink(ev); err != nil {
				return nil, fmt.Errorf("write complete: %w", err)
			}
			return step.Report, nil

		case step.Thinking != "":
			if err := sink(Event{Type: EventThinking, Message: "[PROCESSING] ANALYZING DATA PATTERNS AND RISK FACTORS"}); err != nil {
				return nil, fmt.Errorf("write thinking: %w", err)
			}
		}
	}
}
