// Package trace emits build steps in the Trace Event Format understood by
// chrome://tracing and Perfetto.
package trace

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sofmeright/buildtrace/src/buildlog"
)

const (
	// Category is the default event category.
	Category = "targets"
	// PhaseComplete marks an event carrying both timestamp and duration.
	PhaseComplete = "X"
)

// Event is one complete event. Numeric fields are serialized as decimal
// strings, which the trace viewer accepts.
type Event struct {
	Name      string         `json:"name"`
	Category  string         `json:"cat"`
	Phase     string         `json:"ph"`
	Timestamp string         `json:"ts"`  // microseconds
	Duration  string         `json:"dur"` // microseconds
	ProcessID string         `json:"pid"`
	ThreadID  string         `json:"tid"`
	Args      map[string]any `json:"args"`
}

// FromPlacement converts one placed record into an event for process pid.
func FromPlacement(p buildlog.Placement, pid int, category string) Event {
	if category == "" {
		category = Category
	}
	return Event{
		Name:      strings.Join(p.Outputs, ", "),
		Category:  category,
		Phase:     PhaseComplete,
		Timestamp: strconv.FormatInt(p.Start*1000, 10),
		Duration:  strconv.FormatInt(p.Duration()*1000, 10),
		ProcessID: strconv.Itoa(pid),
		ThreadID:  strconv.Itoa(p.Thread),
		Args:      map[string]any{},
	}
}

// FromPlacements converts placements in order.
func FromPlacements(ps []buildlog.Placement, pid int, category string) []Event {
	events := make([]Event, 0, len(ps))
	for _, p := range ps {
		events = append(events, FromPlacement(p, pid, category))
	}
	return events
}

// Write serializes events as a single JSON array. A non-empty indent
// pretty-prints one element per line.
func Write(w io.Writer, events []Event, indent string) error {
	if events == nil {
		events = []Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(events); err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	return nil
}
