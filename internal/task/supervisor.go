package task

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var ErrCancelled = errors.New("task cancelled")

// IllegalStateError rejects a job for an unknown task or a task that already runs one
type IllegalStateError struct {
	TaskID string
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("illegal task state for %s: %s", e.TaskID, e.Reason)
}

// Event is published on every status change and once on termination
type Event struct {
	TaskID string
	Name   string
	Status Status
	State  State
	Err    error
}

// Span maps a job's own 0..1 progress into a slice of the task's progress
type Span struct {
	From float64
	To   float64
}

func (s Span) scale(fraction float64) float64 {
	return s.From + fraction*(s.To-s.From)
}

type subscriber struct {
	ch   chan Event
	done chan struct{}
}

// Supervisor is the registry of live tasks. Tasks are keyed by id and
// deduplicated by display name.
type Supervisor struct {
	mu     sync.Mutex
	ctx    context.Context
	runner Runner
	log    *log.Logger
	tasks  map[string]*Task
	byName map[string]*Task
	subs   map[*subscriber]struct{}
}

// NewSupervisor creates a supervisor whose tasks derive from ctx
func NewSupervisor(ctx context.Context, runner Runner, logger *log.Logger) *Supervisor {
	return &Supervisor{
		ctx:    ctx,
		runner: runner,
		log:    logger,
		tasks:  make(map[string]*Task),
		byName: make(map[string]*Task),
		subs:   make(map[*subscriber]struct{}),
	}
}

// Do starts body as a new task named name, or returns the live task with that
// name. created reports whether body will run.
func (s *Supervisor) Do(name string, body func(ctx context.Context, t *Task) error) (t *Task, created bool) {
	s.mu.Lock()
	if existing, ok := s.byName[name]; ok && !existing.terminal() {
		s.mu.Unlock()
		s.log.Debug("Attaching to running task", "task", name, "id", existing.ID)
		return existing, false
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t = &Task{
		ID:      uuid.NewString(),
		Name:    name,
		Created: time.Now().UTC(),
		sup:     s,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	s.tasks[t.ID] = t
	s.byName[name] = t
	s.mu.Unlock()

	s.log.Debug("Task created", "task", name, "id", t.ID)
	s.publish(t.event())

	go s.run(t, body)
	return t, true
}

func (s *Supervisor) run(t *Task, body func(ctx context.Context, t *Task) error) {
	defer t.cancel()

	err := body(t.ctx, t)

	state := Completed
	switch {
	case err == nil:
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		state = Cancelled
	default:
		state = Failed
	}

	ev := t.finish(state, err)
	if state == Failed {
		s.log.Error("Task failed", "task", t.Name, "error", err)
	} else {
		s.log.Debug("Task finished", "task", t.Name, "state", state)
	}

	s.publish(ev)
	close(t.done)

	s.mu.Lock()
	delete(s.tasks, t.ID)
	if s.byName[t.Name] == t {
		delete(s.byName, t.Name)
	}
	s.mu.Unlock()
}

// Get returns a live task by id
func (s *Supervisor) Get(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Find returns the live task with the given display name
func (s *Supervisor) Find(name string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byName[name]
	if !ok || t.terminal() {
		return nil, false
	}
	return t, true
}

// Active lists the live tasks
func (s *Supervisor) Active() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		tasks = append(tasks, t)
	}
	return tasks
}

// RunJob runs one job for the task with the given id and blocks until it ends.
// Job progress is mapped into span of the task's progress.
func (s *Supervisor) RunJob(ctx context.Context, taskID string, payload Payload, span Span) error {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	if !ok {
		s.mu.Unlock()
		return &IllegalStateError{TaskID: taskID, Reason: "task does not exist"}
	}
	t.mu.Lock()
	if t.jobRunning {
		t.mu.Unlock()
		s.mu.Unlock()
		return &IllegalStateError{TaskID: taskID, Reason: "a job is already running"}
	}
	t.jobRunning = true
	t.mu.Unlock()
	s.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.jobRunning = false
		t.mu.Unlock()
	}()

	input, err := Encode(payload)
	if err != nil {
		return err
	}

	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(t.ctx, cancel)
	defer stop()

	kind := payload.Kind()
	s.log.Debug("Starting job", "task", t.Name, "job", kind)

	err = s.runner.Run(jobCtx, input, func(m Message) {
		if m.Progress != nil {
			t.Progress(m.Task, span.scale(*m.Progress))
		}
		if m.Log != "" {
			s.log.Info(m.Log, "task", t.Name, "job", kind)
		}
	})
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			return err
		}
		return fmt.Errorf("%s job failed: %w", kind, err)
	}

	t.Progress("", span.To)
	return nil
}

// Subscribe streams task events until the returned function is called
func (s *Supervisor) Subscribe() (<-chan Event, func()) {
	sub := &subscriber{
		ch:   make(chan Event, 64),
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, sub)
			s.mu.Unlock()
			close(sub.done)
		})
	}
}

// publish delivers ev to every subscriber. Progress events are dropped for a
// full subscriber, terminal events wait for it.
func (s *Supervisor) publish(ev Event) {
	s.mu.Lock()
	subs := make([]*subscriber, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		if ev.State == Running {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			default:
			}
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}
