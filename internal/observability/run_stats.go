package observability

import (
	"sort"
	"sync"
	"time"
)

// FileStats records the outcome of one source file.
type FileStats struct {
	Name     string
	Index    int
	Worker   string
	Duration time.Duration
	Rows     int64
	Failed   bool
}

// RunStats collects per-file statistics across all workers of a build.
type RunStats struct {
	mu      sync.Mutex
	files   map[string]*FileStats
	started time.Time
}

// NewRunStats creates an empty tracker.
func NewRunStats() *RunStats {
	return &RunStats{
		files:   make(map[string]*FileStats),
		started: time.Now(),
	}
}

// RecordFile records the outcome of a file. A later record for the same
// file replaces the earlier one. This method is thread-safe.
func (r *RunStats) RecordFile(fs FileStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := fs
	r.files[fs.Name] = &cp
}

// Slowest returns the n slowest files, slowest first.
func (r *RunStats) Slowest(n int) []FileStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 || len(r.files) == 0 {
		return []FileStats{}
	}

	stats := make([]FileStats, 0, len(r.files))
	for _, s := range r.files {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Duration != stats[j].Duration {
			return stats[i].Duration > stats[j].Duration
		}
		return stats[i].Name < stats[j].Name
	})

	if n > len(stats) {
		n = len(stats)
	}
	return stats[:n]
}

// Failed returns the names of failed files in index order.
func (r *RunStats) Failed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var failed []*FileStats
	for _, s := range r.files {
		if s.Failed {
			failed = append(failed, s)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].Index < failed[j].Index })

	names := make([]string, len(failed))
	for i, s := range failed {
		names[i] = s.Name
	}
	return names
}

// Files returns the number of files recorded.
func (r *RunStats) Files() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.files)
}

// Elapsed returns the time since the tracker was created.
func (r *RunStats) Elapsed() time.Duration {
	return time.Since(r.started)
}
