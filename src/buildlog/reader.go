package buildlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Record is one logical build step, keyed by its command signature.
type Record struct {
	Start     int64    // milliseconds since build start
	End       int64    // milliseconds since build start
	Outputs   []string // outputs sharing the signature, in first-seen order
	Signature string
}

// Duration returns End - Start in milliseconds.
func (r Record) Duration() int64 {
	return r.End - r.Start
}

// Log is the result of reading one build log.
type Log struct {
	Tool       string   // tool name from the header, e.g. "ninja"
	Version    int      // header schema version
	Records    []Record // ordered by End descending
	Builds     int      // build segments seen while scanning
	Mismatches int      // merged lines whose timing disagreed with the first line
}

// Options controls how a log is read.
type Options struct {
	// ShowAll reports every build in the log instead of only the most recent one.
	ShowAll bool
	Logger  *slog.Logger
}

// FormatError reports a log that does not follow the supported schema.
type FormatError struct {
	Line int // 1-based, 0 when the input is empty
	Msg  string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

const fieldCount = 5

var (
	// # ninja log v5
	headerRe = regexp.MustCompile(`^# (\S+) log v(\d+)$`)

	supportedVersions = mustConstraint(">= 5, <= 6")
)

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ReadFile opens path and reads it as a build log.
func ReadFile(path string, opts Options) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening log: %w", err)
	}
	defer f.Close()

	l, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return l, nil
}

// Read parses a build log into deduplicated records ordered by descending end
// time. Unless opts.ShowAll is set, only the steps of the last build in the log
// survive: a line whose end time is earlier than the previous line's starts a
// new build and discards everything accumulated so far.
func Read(r io.Reader, opts Options) (*Log, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0

	next := func() (string, bool) {
		if !sc.Scan() {
			return "", false
		}
		lineNo++
		return strings.TrimRight(sc.Text(), "\r\n"), true
	}

	header, ok := next()
	if !ok {
		if err := sc.Err(); err != nil {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		return nil, &FormatError{Msg: "empty log, missing header"}
	}
	tool, version, err := parseHeader(header)
	if err != nil {
		return nil, &FormatError{Line: lineNo, Msg: err.Error()}
	}

	// v6 stores an extra metadata line after the header.
	if version == 6 {
		next()
	}

	l := &Log{Tool: tool, Version: version, Builds: 1}
	s := newScan()

	for {
		line, ok := next()
		if !ok {
			break
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		e, err := parseEntry(line)
		if err != nil {
			return nil, &FormatError{Line: lineNo, Msg: err.Error()}
		}

		if e.end < s.lastEnd {
			logger.Debug("build boundary", "line", lineNo, "end", e.end, "previous_end", s.lastEnd)
			l.Builds++
			s.build++
			if !opts.ShowAll {
				s.reset()
			}
		}
		s.lastEnd = e.end

		if ok, rebuilt := s.add(e); !ok {
			l.Mismatches++
			// A step rebuilt in a later build is expected under ShowAll.
			level := slog.LevelWarn
			if rebuilt {
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, "signature timing mismatch, keeping first",
				"line", lineNo, "signature", e.signature, "output", e.output)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading log: %w", err)
	}

	l.Records = s.finalize()
	return l, nil
}

func parseHeader(line string) (string, int, error) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return "", 0, fmt.Errorf("unrecognized header %q", line)
	}
	version, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, fmt.Errorf("bad version in header %q", line)
	}
	v, err := semver.NewVersion(strconv.Itoa(version))
	if err != nil || !supportedVersions.Check(v) {
		return "", 0, fmt.Errorf("unsupported log version %d (want 5 or 6)", version)
	}
	return m[1], version, nil
}

// entry is one data line of the log.
type entry struct {
	start, end int64
	output     string
	signature  string
}

func parseEntry(line string) (entry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != fieldCount {
		return entry{}, fmt.Errorf("expected %d tab-separated fields, got %d", fieldCount, len(fields))
	}

	var nums [3]int64
	for i := range nums {
		n, err := strconv.ParseInt(fields[i], 10, 64)
		if err != nil {
			return entry{}, fmt.Errorf("field %d: invalid integer %q", i+1, fields[i])
		}
		nums[i] = n
	}
	// nums[2] is the restat mtime, which says nothing about execution time.

	e := entry{start: nums[0], end: nums[1], output: fields[3], signature: fields[4]}
	if e.start < 0 || e.end < e.start {
		return entry{}, fmt.Errorf("invalid interval [%d, %d]", e.start, e.end)
	}
	return e, nil
}

// scan holds the state of one Read call.
type scan struct {
	bySig   map[string]int // signature -> index into records
	records []Record       // insertion order
	builtIn []int          // build segment each record was created in
	build   int
	lastEnd int64
}

func newScan() *scan {
	return &scan{bySig: make(map[string]int)}
}

func (s *scan) reset() {
	s.bySig = make(map[string]int)
	s.records = nil
	s.builtIn = nil
}

// add merges e into the record for its signature. ok is false when the record
// already existed with different timing; rebuilt reports that the record came
// from an earlier build segment.
func (s *scan) add(e entry) (ok, rebuilt bool) {
	if i, found := s.bySig[e.signature]; found {
		rec := &s.records[i]
		rec.Outputs = append(rec.Outputs, e.output)
		return rec.Start == e.start && rec.End == e.end, s.builtIn[i] != s.build
	}
	s.bySig[e.signature] = len(s.records)
	s.builtIn = append(s.builtIn, s.build)
	s.records = append(s.records, Record{
		Start:     e.start,
		End:       e.end,
		Outputs:   []string{e.output},
		Signature: e.signature,
	})
	return true, false
}

// finalize returns the records by descending end time. Equal end times keep
// the order in which their signatures were first seen.
func (s *scan) finalize() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	SortByEndDesc(out)
	return out
}

// SortByEndDesc stable-sorts records by descending end time.
func SortByEndDesc(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].End > records[j].End
	})
}
