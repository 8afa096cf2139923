package task

import (
	"context"
	"sync"
	"time"
)

// State is the lifecycle position of a task
type State int

const (
	Running State = iota
	Completed
	Cancelled
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the human readable phase and completed fraction
type Status struct {
	Phase    string
	Fraction float64
}

// maxRunningFraction keeps a running task strictly below completion
const maxRunningFraction = 0.999

// Task is a named unit of installation work
type Task struct {
	ID      string
	Name    string
	Created time.Time

	sup    *Supervisor
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.RWMutex
	status     Status
	state      State
	err        error
	jobRunning bool
}

// Status returns the current phase and fraction
func (t *Task) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// State returns the lifecycle state
func (t *Task) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Err is the failure reason of a failed task
func (t *Task) Err() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.err
}

// Done is closed once the task reached a terminal state
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Context is cancelled with the task
func (t *Task) Context() context.Context {
	return t.ctx
}

// Cancel requests cooperative cancellation
func (t *Task) Cancel() {
	t.cancel()
}

// Progress updates the phase and fraction. The fraction never decreases and
// stays below 1.0 until the task completes.
func (t *Task) Progress(phase string, fraction float64) {
	t.mu.Lock()
	if t.state != Running {
		t.mu.Unlock()
		return
	}
	if phase != "" {
		t.status.Phase = phase
	}
	if fraction > maxRunningFraction {
		fraction = maxRunningFraction
	}
	if fraction > t.status.Fraction {
		t.status.Fraction = fraction
	}
	ev := t.event()
	t.mu.Unlock()

	t.sup.publish(ev)
}

// Wait blocks until the task is terminal or ctx is done.
// It returns nil for a completed task, ErrCancelled or the failure reason.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	switch t.state {
	case Completed:
		return nil
	case Cancelled:
		return ErrCancelled
	default:
		return t.err
	}
}

func (t *Task) terminal() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

func (t *Task) finish(state State, err error) Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = state
	t.err = err
	if state == Completed {
		t.status.Fraction = 1.0
	}
	return t.event()
}

// event must be called with t.mu held
func (t *Task) event() Event {
	return Event{
		TaskID: t.ID,
		Name:   t.Name,
		Status: t.status,
		State:  t.state,
		Err:    t.err,
	}
}
