// Package client reassembles a server-sent event stream back into typed
// events and folds them into the dashboard state. The watch TUI consumes
// it; it is also the reference for any other client of the analyze stream.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/foodguardai/foodguard/internal/report"
	"github.com/foodguardai/foodguard/internal/stream"
)

var framePrefix = []byte("data: ")

// Reassembler buffers raw stream bytes and yields complete events. Chunk
// boundaries carry no meaning: a frame split across any number of reads
// comes out identical to one delivered whole.
type Reassembler struct {
	buf    []byte
	logger *slog.Logger
}

// NewReassembler creates a Reassembler.
func NewReassembler(logger *slog.Logger) *Reassembler {
	return &Reassembler{logger: logger}
}

// Feed appends a chunk and returns every event completed by it. Frames
// that are not valid JSON are logged and dropped; the stream continues.
func (r *Reassembler) Feed(chunk []byte) []stream.Event {
	r.buf = append(r.buf, chunk...)

	frames := bytes.Split(r.buf, []byte("\n\n"))
	// The last element is an unterminated fragment, possibly empty.
	r.buf = frames[len(frames)-1]
	frames = frames[:len(frames)-1]

	var events []stream.Event
	for _, frame := range frames {
		frame = bytes.TrimSpace(frame)
		if len(frame) == 0 || !bytes.HasPrefix(frame, framePrefix) {
			continue
		}
		var ev stream.Event
		if err := json.Unmarshal(bytes.TrimPrefix(frame, framePrefix), &ev); err != nil {
			r.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events
}

// State is the folded dashboard state of one analysis run.
type State struct {
	ProgressLog []string
	ToolCache   map[string]json.RawMessage
	Report      *report.Report
	Err         string
	Done        bool
}

// Reset clears the state for a fresh run.
func (s *State) Reset() {
	*s = State{ToolCache: make(map[string]json.RawMessage)}
}

// Apply folds one event into the state. Events after a terminal are
// ignored. Folding is pure per event, so replaying the same stream from a
// fresh state always lands on the same result.
func (s *State) Apply(ev stream.Event) {
	if s.Done {
		return
	}
	if s.ToolCache == nil {
		s.ToolCache = make(map[string]json.RawMessage)
	}

	switch ev.Type {
	case stream.EventStatus, stream.EventToolStart, stream.EventToolEnd, stream.EventThinking:
		if ev.Message != "" {
			s.ProgressLog = append(s.ProgressLog, ev.Message)
		}

	case stream.EventToolData:
		if ev.ToolName != "" {
			s.ToolCache[ev.ToolName] = ev.Data
		}

	case stream.EventComplete:
		s.Report = ev.Report
		// The snapshot is authoritative for any tool it carries.
		for name, data := range ev.ToolData {
			s.ToolCache[name] = data
		}
		s.ProgressLog = append(s.ProgressLog, "[COMPLETE] ANALYSIS FINISHED SUCCESSFULLY")
		s.Done = true

	case stream.EventError:
		s.Err = ev.Error
		s.ProgressLog = append(s.ProgressLog, "[ERROR] "+ev.Error)
		s.Done = true
	}
}

// Consume reads the stream to completion, folding into state. A transport
// failure before the terminal event becomes a connectivity error on the
// state so the UI can show it the same way as a server-reported one.
func Consume(ctx context.Context, rd io.Reader, s *State, logger *slog.Logger) error {
	re := NewReassembler(logger)
	buf := make([]byte, 4096)

	for {
		if err := ctx.Err(); err != nil {
			return s.connectivityFailure(err)
		}

		n, err := rd.Read(buf)
		if n > 0 {
			for _, ev := range re.Feed(buf[:n]) {
				s.Apply(ev)
			}
			if s.Done {
				return nil
			}
		}
		if err != nil {
			if err == io.EOF {
				if s.Done {
					return nil
				}
				return s.connectivityFailure(fmt.Errorf("stream ended before analysis completed"))
			}
			return s.connectivityFailure(err)
		}
	}
}

func (s *State) connectivityFailure(err error) error {
	if !s.Done {
		s.Err = "Connection lost: " + err.Error()
		s.ProgressLog = append(s.ProgressLog, "[ERROR] "+s.Err)
		s.Done = true
	}
	return err
}
