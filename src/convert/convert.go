// Package convert runs build logs through the read, thread assignment and
// emission stages and concatenates the resulting trace events.
package convert

import (
	"log/slog"
	"time"

	"github.com/sofmeright/buildtrace/src/buildlog"
	"github.com/sofmeright/buildtrace/src/trace"
)

// Converter turns build logs into trace events.
type Converter struct {
	ShowAll  bool
	Category string
	Logger   *slog.Logger
}

// LogSummary describes what was extracted from one log.
type LogSummary struct {
	Path       string
	PID        int
	Tool       string
	Version    int
	Steps      int
	Outputs    int
	Threads    int
	Builds     int
	Mismatches int
	Span       time.Duration // first start to last end of the reported steps
	Busy       time.Duration // sum of step durations
}

// Parallelism returns Busy/Span, the average number of steps in flight.
func (s LogSummary) Parallelism() float64 {
	if s.Span <= 0 {
		return 0
	}
	return float64(s.Busy) / float64(s.Span)
}

// Result holds the events of every log, in input order.
type Result struct {
	Events []trace.Event
	Logs   []LogSummary
}

// Run converts each log in paths; the log's index is its process id. The
// first failure aborts the run and no events are returned.
func (c *Converter) Run(paths []string) (*Result, error) {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	res := &Result{}
	for pid, path := range paths {
		l, err := buildlog.ReadFile(path, buildlog.Options{
			ShowAll: c.ShowAll,
			Logger:  logger.With("log", path),
		})
		if err != nil {
			return nil, err
		}

		placements := buildlog.Assign(l.Records)
		res.Events = append(res.Events, trace.FromPlacements(placements, pid, c.Category)...)

		sum := summarize(path, pid, l, placements)
		res.Logs = append(res.Logs, sum)
		logger.Debug("converted log",
			"log", path, "pid", pid, "steps", sum.Steps, "threads", sum.Threads, "builds", sum.Builds)
	}
	return res, nil
}

func summarize(path string, pid int, l *buildlog.Log, ps []buildlog.Placement) LogSummary {
	s := LogSummary{
		Path:       path,
		PID:        pid,
		Tool:       l.Tool,
		Version:    l.Version,
		Steps:      len(ps),
		Builds:     l.Builds,
		Mismatches: l.Mismatches,
	}
	if len(ps) == 0 {
		return s
	}

	first, last := ps[0].Start, ps[0].End
	var busy int64
	for _, p := range ps {
		s.Outputs += len(p.Outputs)
		if p.Thread+1 > s.Threads {
			s.Threads = p.Thread + 1
		}
		if p.Start < first {
			first = p.Start
		}
		if p.End > last {
			last = p.End
		}
		busy += p.Duration()
	}
	s.Span = time.Duration(last-first) * time.Millisecond
	s.Busy = time.Duration(busy) * time.Millisecond
	return s
}
