package engine

import (
	"sync"

	"github.com/roach88/relaymigrate/internal/domain"
)

// Observer receives engine records after they are persisted.
//
// Calls are synchronous and happen while the engine holds its lock, so an
// Observer must not call back into the engine.
type Observer interface {
	MigrationFailed(rec domain.MigrationError)
	StageAdvanced(tr domain.Transition)
}

// Recorder is an Observer that keeps everything it sees.
type Recorder struct {
	mu          sync.Mutex
	failures    []domain.MigrationError
	transitions []domain.Transition
}

// MigrationFailed implements Observer.
func (r *Recorder) MigrationFailed(rec domain.MigrationError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, rec)
}

// StageAdvanced implements Observer.
func (r *Recorder) StageAdvanced(tr domain.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transitions = append(r.transitions, tr)
}

// Failures returns a copy of the recorded migration errors.
func (r *Recorder) Failures() []domain.MigrationError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.MigrationError, len(r.failures))
	copy(out, r.failures)
	return out
}

// Transitions returns a copy of the recorded stage advances.
func (r *Recorder) Transitions() []domain.Transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Transition, len(r.transitions))
	copy(out, r.transitions)
	return out
}
