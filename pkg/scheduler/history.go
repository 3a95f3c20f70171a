package scheduler

import (
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RunStatus is the outcome of a billing run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusSkipped   RunStatus = "skipped"
)

// RunRecord describes one billing run
type RunRecord struct {
	ID         string     `json:"id"`
	Trigger    string     `json:"trigger"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Duration is zero while the run is in progress
func (r RunRecord) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// DefaultHistorySize is used when NewHistory gets a size below one
const DefaultHistorySize = 50

// History keeps the most recent run records. The oldest records are evicted
// first once the size is reached.
type History struct {
	mu      sync.Mutex
	records *lru.Cache[string, RunRecord]
}

// NewHistory creates a History holding up to size records
func NewHistory(size int) *History {
	if size < 1 {
		size = DefaultHistorySize
	}
	// size is positive so New cannot fail
	records, _ := lru.New[string, RunRecord](size)
	return &History{records: records}
}

// Add stores or replaces a record
func (h *History) Add(record RunRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records.Add(record.ID, record)
}

// Get returns the record with the given run id
func (h *History) Get(id string) (RunRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.records.Peek(id)
}

// List returns the records, most recently started first
func (h *History) List() []RunRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	keys := h.records.Keys()
	out := make([]RunRecord, 0, len(keys))
	for _, k := range keys {
		if r, ok := h.records.Peek(k); ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}
