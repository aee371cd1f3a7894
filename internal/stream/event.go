// Package stream translates analysis steps into the wire events the
// dashboard consumes, and frames them for server-sent events transport.
package stream

import (
	"encoding/json"

	"github.com/foodguardai/foodguard/internal/report"
)

// Event types on the wire.
const (
	EventStatus    = "status"
	EventToolStart = "tool_start"
	EventToolData  = "tool_data"
	EventToolEnd   = "tool_end"
	EventThinking  = "thinking"
	EventComplete  = "complete"
	EventError     = "error"
)

// Event is one wire frame. Only the fields for its type are set; the rest
// stay empty and are omitted from the JSON.
type Event struct {
	Type     string                     `json:"type"`
	Tool     string                     `json:"tool,omitempty"`
	ToolName string                     `json:"toolName,omitempty"`
	Message  string                     `json:"message,omitempty"`
	Data     json.RawMessage            `json:"data,omitempty"`
	Report   *report.Report             `json:"report,omitempty"`
	ToolData map[string]json.RawMessage `json:"toolData,omitempty"`
	Error    string                     `json:"error,omitempty"`
}

// Sink receives encoded events. A non-nil error aborts the run; the usual
// cause is the HTTP client going away.
type Sink func(Event) error
