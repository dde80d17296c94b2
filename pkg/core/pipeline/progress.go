package pipeline

import (
	"sync"

	"quarter_metrics/pkg/models"
)

// ProgressSink receives a full snapshot of per-company progress plus the
// run log after every orchestrator mutation - not batched. The surrounding
// job layer owns storage and polling semantics.
type ProgressSink interface {
	Update(progress []models.CompanyProgress, logLines []string)
}

// MemorySink keeps the latest snapshot in memory. Used by the CLI and in
// tests.
type MemorySink struct {
	mu       sync.Mutex
	progress []models.CompanyProgress
	logLines []string
	updates  int
}

var _ ProgressSink = (*MemorySink)(nil)

func (s *MemorySink) Update(progress []models.CompanyProgress, logLines []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append([]models.CompanyProgress(nil), progress...)
	s.logLines = append([]string(nil), logLines...)
	s.updates++
}

// Snapshot returns the most recent progress and log state.
func (s *MemorySink) Snapshot() ([]models.CompanyProgress, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.CompanyProgress(nil), s.progress...),
		append([]string(nil), s.logLines...)
}

// Updates reports how many snapshots were received.
func (s *MemorySink) Updates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates
}
