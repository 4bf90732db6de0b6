package buildlog

// Timeline packs build steps onto synthetic threads. The log records no
// worker ids, so threads are reconstructed: a step reuses the first thread
// that is idle for its whole interval, otherwise a new thread is opened.
//
// Steps must be fed to Alloc by descending end time. Walking the build
// backwards, occupiedUntil[i] is the start of the last step placed on thread
// i, i.e. the thread is free for any step ending at or before that time.
type Timeline struct {
	occupiedUntil []int64
}

// Alloc places r on a thread and returns the thread id.
func (t *Timeline) Alloc(r Record) int {
	for i, until := range t.occupiedUntil {
		if until >= r.End {
			t.occupiedUntil[i] = r.Start
			return i
		}
	}
	t.occupiedUntil = append(t.occupiedUntil, r.Start)
	return len(t.occupiedUntil) - 1
}

// Threads returns the number of threads opened so far.
func (t *Timeline) Threads() int {
	return len(t.occupiedUntil)
}

// Placement is a record together with its reconstructed thread.
type Placement struct {
	Record
	Thread int
}

// Assign places every record on a thread using a fresh Timeline. Records are
// processed in descending end order regardless of the input order; the
// returned placements follow that order.
func Assign(records []Record) []Placement {
	sorted := make([]Record, len(records))
	copy(sorted, records)
	SortByEndDesc(sorted)

	var tl Timeline
	out := make([]Placement, len(sorted))
	for i, r := range sorted {
		out[i] = Placement{Record: r, Thread: tl.Alloc(r)}
	}
	return out
}
