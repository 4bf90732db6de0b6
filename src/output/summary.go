package output

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/sofmeright/buildtrace/src/convert"
)

// LogSection renders the statistics of one converted log.
func LogSection(w io.Writer, s convert.LogSummary, color bool) {
	sec := NewSection(w, filepath.Base(s.Path), s.Span, color)
	sec.KV("pid", s.PID)
	sec.KV("format", fmt.Sprintf("%s log v%d", s.Tool, s.Version))
	sec.KV("builds", s.Builds)
	sec.Separator()
	sec.KV("steps", fmt.Sprintf("%d (%d outputs)", s.Steps, s.Outputs))
	sec.KV("threads", s.Threads)
	sec.KV("busy", FormatElapsed(s.Busy))
	sec.KV("parallelism", fmt.Sprintf("%.2f", s.Parallelism()))
	if s.Mismatches > 0 {
		sec.KV("mismatches", Dimmed(fmt.Sprintf("%d lines kept first timing", s.Mismatches), color))
	}
	sec.Close()
}

// Summary renders one section per log followed by a run total.
func Summary(w io.Writer, logs []convert.LogSummary, events int, elapsed time.Duration, color bool) {
	SectionStart(w, "buildtrace_summary", "Build trace summary")
	defer SectionEnd(w, "buildtrace_summary")

	for _, s := range logs {
		LogSection(w, s, color)
	}
	sec := NewSection(w, "Total", elapsed, color)
	sec.KV("logs", len(logs))
	sec.KV("events", events)
	sec.Close()
}
