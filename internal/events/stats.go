package events

import (
	"sync"
	"time"
)

// Stats tracks publisher activity.
type Stats struct {
	TotalEvents     int64     `json:"total_events"`
	WriteErrorCount int64     `json:"write_error_count"`
	LastWriteAt     time.Time `json:"last_write_at"`
	LastError       string    `json:"last_error,omitempty"`
}

// StatsReporter is implemented by publishers that track their activity.
type StatsReporter interface {
	Stats() Stats
}

type statsTracker struct {
	mu    sync.RWMutex
	stats Stats
}

func (t *statsTracker) recordWrite() {
	t.mu.Lock()
	t.stats.TotalEvents++
	t.stats.LastWriteAt = time.Now()
	t.mu.Unlock()
}

func (t *statsTracker) recordError(err error) {
	t.mu.Lock()
	t.stats.WriteErrorCount++
	t.stats.LastError = err.Error()
	t.mu.Unlock()
}

func (t *statsTracker) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
