package stream

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/foodguardai/foodguard/internal/agent"
	"github.com/foodguardai/foodguard/internal/report"
)

type fakeStream struct {
	steps  []*agent.Step
	err    error
	idx    int
	closed bool
}

func (f *fakeStream) Recv() (*agent.Step, error) {
	if f.idx >= len(f.steps) {
		if f.err != nil {
			return nil, f.err
		}
		return nil, io.EOF
	}
	step := f.steps[f.idx]
	f.idx++
	return step, nil
}

func (f *fakeStream) Close() { f.closed = true }

func collect(events *[]Event) Sink {
	return func(ev Event) error {
		*events = append(*events, ev)
		return nil
	}
}

func testReport() *report.Report {
	return &report.Report{
		ReportID:         "rpt-1",
		GeneratedAt:      "2026-08-30T10:00:00Z",
		OverallRiskLevel: report.RiskMedium,
		Summary:          "Stable with localized stress.",
		Regions: []report.RegionAssessment{
			{Name: "Punjab", RiskLevel: report.RiskMedium, ConfidenceScore: 75, DataQuality: "High"},
		},
	}
}

func types(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func testEncoder() *Encoder {
	return NewEncoder(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestEncoderHappyPath(t *testing.T) {
	steps := &fakeStream{steps: []*agent.Step{
		{ToolCalls: []agent.ToolCall{{ID: "c1", Name: "get_weather_data", Arguments: `{"district":"Lahore"}`}}},
		{ToolResult: &agent.ToolResult{Name: "get_weather_data", Content: `{"district":"Lahore"}`}},
		{Thinking: "weighing risk factors"},
		{Report: testReport()},
	}}

	var events []Event
	rep, err := testEncoder().Run(steps, []string{"Punjab", "Sindh"}, collect(&events))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rep == nil || rep.ReportID != "rpt-1" {
		t.Fatalf("report = %+v", rep)
	}
	if !steps.closed {
		t.Error("encoder must close the step stream")
	}

	want := []string{EventStatus, EventStatus, EventToolStart, EventToolData, EventToolEnd, EventThinking, EventStatus, EventComplete}
	if fmt.Sprint(types(events)) != fmt.Sprint(want) {
		t.Fatalf("event types = %v, want %v", types(events), want)
	}

	if events[1].Message != "ANALYZING 2 REGION(S): PUNJAB, SINDH" {
		t.Errorf("opening status = %q", events[1].Message)
	}
	if events[2].Message != "[FETCHING] WEATHER DATA" || events[2].Tool != "get_weather_data" {
		t.Errorf("tool_start = %+v", events[2])
	}
	if events[4].Message != "[COMPLETE] WEATHER DATA" {
		t.Errorf("tool_end = %+v", events[4])
	}
	if events[5].Message != "[PROCESSING] ANALYZING DATA PATTERNS AND RISK FACTORS" {
		t.Errorf("thinking = %+v", events[5])
	}

	complete := events[len(events)-1]
	if complete.Report.ReportID != "rpt-1" {
		t.Errorf("complete.report = %+v", complete.Report)
	}
	if string(complete.ToolData["get_weather_data"]) != `{"district":"Lahore"}` {
		t.Errorf("complete.toolData = %v", complete.ToolData)
	}
}

func TestEncoderDedupesToolStarts(t *testing.T) {
	calls := []agent.ToolCall{{ID: "c1", Name: "get_market_prices"}}
	steps := &fakeStream{steps: []*agent.Step{
		{ToolCalls: calls},
		{ToolCalls: calls}, // model state replayed the same call
		{ToolCalls: []agent.ToolCall{{ID: "c2", Name: "get_market_prices"}}},
		{Report: testReport()},
	}}

	var events []Event
	if _, err := testEncoder().Run(steps, []string{"Punjab"}, collect(&events)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	starts := 0
	for _, ev := range events {
		if ev.Type == EventToolStart {
			starts++
		}
	}
	if starts != 2 {
		t.Errorf("tool_start count = %d, want 2 (c1 deduped, c2 distinct)", starts)
	}
}

func TestEncoderCacheLastWriteWins(t *testing.T) {
	steps := &fakeStream{steps: []*agent.Step{
		{ToolResult: &agent.ToolResult{Name: "get_weather_data", Content: `{"v":1}`}},
		{ToolResult: &agent.ToolResult{Name: "get_weather_data", Content: `{"v":2}`}},
		{Report: testReport()},
	}}

	var events []Event
	if _, err := testEncoder().Run(steps, []string{"Punjab"}, collect(&events)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	complete := events[len(events)-1]
	if string(complete.ToolData["get_weather_data"]) != `{"v":2}` {
		t.Errorf("toolData = %s, want the later result", complete.ToolData["get_weather_data"])
	}
}

func TestEncoderSkipsMalformedToolOutput(t *testing.T) {
	steps := &fakeStream{steps: []*agent.Step{
		{ToolResult: &agent.ToolResult{Name: "get_crop_health", Content: `not json`}},
		{ToolResult: &agent.ToolResult{Name: "get_weather_data", Content: `{"ok":true}`}},
		{Report: testReport()},
	}}

	var events []Event
	if _, err := testEncoder().Run(steps, []string{"Punjab"}, collect(&events)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	for _, ev := range events {
		if ev.Tool == "get_crop_health" || ev.ToolName == "get_crop_health" {
			t.Errorf("malformed tool output leaked event %+v", ev)
		}
	}
	complete := events[len(events)-1]
	if _, ok := complete.ToolData["get_crop_health"]; ok {
		t.Error("malformed output must not be cached")
	}
	if _, ok := complete.ToolData["get_weather_data"]; !ok {
		t.Error("valid output missing from cache")
	}
}

func TestEncoderStopsAfterTerminal(t *testing.T) {
	steps := &fakeStream{steps: []*agent.Step{
		{Report: testReport()},
		{Thinking: "late step that must never be read"},
	}}

	var events []Event
	if _, err := testEncoder().Run(steps, []string{"Punjab"}, collect(&events)); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if steps.idx != 1 {
		t.Errorf("encoder consumed %d steps, want 1 (stop at terminal)", steps.idx)
	}
	terminal := 0
	for _, ev := range events {
		if ev.Type == EventComplete || ev.Type == EventError {
			terminal++
		}
	}
	if terminal != 1 {
		t.Errorf("terminal events = %d, want exactly 1", terminal)
	}
}

func TestEncoderEmitsErrorOnStreamFailure(t *testing.T) {
	steps := &fakeStream{
		steps: []*agent.Step{{Thinking: "partial progress"}},
		err:   errors.New("agent generate: upstream timeout"),
	}

	var events []Event
	rep, err := testEncoder().Run(steps, []string{"Punjab"}, collect(&events))
	if err == nil || rep != nil {
		t.Fatalf("Run = %v, %v; want error and nil report", rep, err)
	}

	last := events[len(events)-1]
	if last.Type != EventError || !strings.Contains(last.Error, "upstream timeout") {
		t.Errorf("last event = %+v, want error frame", last)
	}
	for _, ev := range events {
		if ev.Type == EventComplete {
			t.Error("complete must not follow a failed stream")
		}
	}
}

func TestEncoderTreatsEOFWithoutReportAsFailure(t *testing.T) {
	steps := &fakeStream{steps: []*agent.Step{{Thinking: "thinking"}}}

	var events []Event
	_, err := testEncoder().Run(steps, []string{"Punjab"}, collect(&events))
	if err == nil {
		t.Fatal("want error when stream drains without a report")
	}
	last := events[len(events)-1]
	if last.Type != EventError {
		t.Errorf("last event = %+v, want error frame", last)
	}
}

func TestEncoderAbortsOnSinkFailure(t *testing.T) {
	steps := &fakeStream{steps: []*agent.Step{
		{Thinking: "a"},
		{Report: testReport()},
	}}

	writes := 0
	sink := func(Event) error {
		writes++
		if writes > 1 {
			return errors.New("client went away")
		}
		return nil
	}

	if _, err := testEncoder().Run(steps, []string{"Punjab"}, sink); err == nil {
		t.Fatal("want error when sink fails")
	}
	if !steps.closed {
		t.Error("stream must be closed after sink failure")
	}
}
