package convert

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sofmeright/buildtrace/src/buildlog"
)

func writeLog(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	return path
}

func quietConverter() *Converter {
	return &Converter{Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}
}

func TestRunSingleLog(t *testing.T) {
	path := writeLog(t, t.TempDir(), "a.log", "# ninja log v5\n"+
		"0\t10\t0\tout1\tHASH1\n"+
		"20\t25\t0\tout2\tHASH2\n")

	res, err := quietConverter().Run([]string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Events) != 2 {
		t.Fatalf("got %d events, want 2", len(res.Events))
	}
	if res.Events[0].Name != "out2" || res.Events[1].Name != "out1" {
		t.Errorf("event order = %q, %q", res.Events[0].Name, res.Events[1].Name)
	}
	for _, e := range res.Events {
		if e.ThreadID != "0" || e.ProcessID != "0" {
			t.Errorf("event %q on pid %s tid %s, want 0/0", e.Name, e.ProcessID, e.ThreadID)
		}
	}
}

func TestRunTagsLogsWithProcessIDs(t *testing.T) {
	dir := t.TempDir()
	a := writeLog(t, dir, "a.log", "# ninja log v5\n0\t10\t0\ta\tA\n")
	b := writeLog(t, dir, "b.log", "# ninja log v6\nmeta\n5\t8\t0\tb2\tB2\n0\t10\t0\tb1\tB1\n")

	res, err := quietConverter().Run([]string{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	wantPIDs := []string{"0", "1", "1"}
	wantTIDs := []string{"0", "0", "1"}
	if len(res.Events) != len(wantPIDs) {
		t.Fatalf("got %d events", len(res.Events))
	}
	for i, e := range res.Events {
		if e.ProcessID != wantPIDs[i] || e.ThreadID != wantTIDs[i] {
			t.Errorf("event %d (%s) pid/tid = %s/%s, want %s/%s",
				i, e.Name, e.ProcessID, e.ThreadID, wantPIDs[i], wantTIDs[i])
		}
	}
	if len(res.Logs) != 2 || res.Logs[1].Threads != 2 || res.Logs[1].Version != 6 {
		t.Errorf("summaries = %+v", res.Logs)
	}
}

func TestRunShowAll(t *testing.T) {
	path := writeLog(t, t.TempDir(), "inc.log", "# ninja log v5\n"+
		"0\t100\t0\ta\tA\n"+
		"10\t150\t0\tb\tB\n"+
		"0\t80\t0\tc\tC\n"+
		"20\t120\t0\td\tD\n")

	c := quietConverter()
	res, err := c.Run([]string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Events) != 2 {
		t.Errorf("last build: got %d events, want 2", len(res.Events))
	}

	c.ShowAll = true
	res, err = c.Run([]string{path})
	if err != nil {
		t.Fatalf("Run showAll: %v", err)
	}
	if len(res.Events) != 4 {
		t.Errorf("all builds: got %d events, want 4", len(res.Events))
	}
}

func TestRunFailsFast(t *testing.T) {
	dir := t.TempDir()
	good := writeLog(t, dir, "good.log", "# ninja log v5\n0\t10\t0\ta\tA\n")
	bad := writeLog(t, dir, "bad.log", "# ninja log v5\n0\t10\ta\tA\n")

	res, err := quietConverter().Run([]string{good, bad, good})
	if res != nil {
		t.Errorf("expected no result on failure, got %+v", res)
	}
	var fe *buildlog.FormatError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FormatError, got %v", err)
	}
}

func TestSummaryStatistics(t *testing.T) {
	path := writeLog(t, t.TempDir(), "s.log", "# ninja log v5\n"+
		"0\t100\t0\ta\tA\n"+
		"0\t100\t0\ta2\tA\n"+
		"50\t150\t0\tb\tB\n"+
		"150\t200\t0\tc\tC\n")

	res, err := quietConverter().Run([]string{path})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	s := res.Logs[0]
	if s.Steps != 3 || s.Outputs != 4 || s.Threads != 2 || s.Builds != 1 {
		t.Errorf("summary = %+v", s)
	}
	if s.Span != 200*time.Millisecond || s.Busy != 250*time.Millisecond {
		t.Errorf("span/busy = %v/%v", s.Span, s.Busy)
	}
	if got := s.Parallelism(); got != 1.25 {
		t.Errorf("parallelism = %v, want 1.25", got)
	}
}

func TestParallelismEmptyLog(t *testing.T) {
	if got := (LogSummary{}).Parallelism(); got != 0 {
		t.Errorf("parallelism = %v, want 0", got)
	}
}
