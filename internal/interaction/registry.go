// -- internal/interaction/registry.go --
package interaction

import (
	"fmt"
	"sync"
	"time"

	"github.com/Mukuloli/browser-automation-1/api/schemas"
)

// ErrAutomationBusy is returned when a second automation is started while one
// is already running. The process hosts at most one automation at a time.
var ErrAutomationBusy = fmt.Errorf("an automation is already running")

// Registry is the process-wide session status register. Every state
// transition flows through it so the HTTP surface and the CLI see the same
// picture.
type Registry struct {
	mu     sync.Mutex
	snap   schemas.StatusSnapshot
	active bool
}

// NewRegistry starts in the idle state.
func NewRegistry() *Registry {
	return &Registry{
		snap: schemas.StatusSnapshot{State: schemas.StateIdle, UpdatedAt: time.Now()},
	}
}

// Begin claims the automation slot. It fails when a run is already active.
func (r *Registry) Begin(sessionID, goal string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return ErrAutomationBusy
	}
	r.active = true
	r.snap = schemas.StatusSnapshot{
		SessionID: sessionID,
		State:     schemas.StateRunning,
		Goal:      goal,
		UpdatedAt: time.Now(),
	}
	return nil
}

// SetStep records plan progress.
func (r *Registry) SetStep(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.CurrentStep = current
	r.snap.TotalSteps = total
	r.snap.UpdatedAt = time.Now()
}

// SetWaiting flips the session into waiting_for_user with the open question.
func (r *Registry) SetWaiting(question string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.State = schemas.StateWaitingForUser
	r.snap.Question = question
	r.snap.UpdatedAt = time.Now()
}

// Resume returns from waiting_for_user to running and clears the question.
func (r *Registry) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snap.State == schemas.StateWaitingForUser {
		r.snap.State = schemas.StateRunning
	}
	r.snap.Question = ""
	r.snap.UpdatedAt = time.Now()
}

// SetDetail updates the free-form progress line.
func (r *Registry) SetDetail(detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snap.Detail = detail
	r.snap.UpdatedAt = time.Now()
}

// Finish releases the automation slot, recording success or failure.
func (r *Registry) Finish(runErr error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = false
	if runErr != nil {
		r.snap.State = schemas.StateError
		r.snap.Detail = runErr.Error()
	} else {
		r.snap.State = schemas.StateCompleted
	}
	r.snap.Question = ""
	r.snap.UpdatedAt = time.Now()
}

// Reset returns an inactive registry to idle, keeping nothing of the old run.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return
	}
	r.snap = schemas.StatusSnapshot{State: schemas.StateIdle, UpdatedAt: time.Now()}
}

// Active reports whether an automation currently holds the slot.
func (r *Registry) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Snapshot returns a copy of the current status.
func (r *Registry) Snapshot() schemas.StatusSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}
