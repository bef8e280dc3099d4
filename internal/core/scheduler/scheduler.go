// Package scheduler activates deferred tasks at a due time, with
// optional repeats (component C14).
package scheduler

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arlofen/fetchcore/internal/utils"
)

// RepeatInterval describes how a ScheduledTask reschedules itself
// after firing.
type RepeatInterval struct {
	Kind   RepeatKind
	Custom time.Duration // only meaningful when Kind == RepeatCustom
}

type RepeatKind int

const (
	RepeatNone RepeatKind = iota
	RepeatHourly
	RepeatDaily
	RepeatWeekly
	RepeatMonthly
	RepeatCustom
)

// ToDuration returns the interval's duration, approximating a month
// as 30 days.
func (r RepeatInterval) ToDuration() time.Duration {
	switch r.Kind {
	case RepeatHourly:
		return time.Hour
	case RepeatDaily:
		return 24 * time.Hour
	case RepeatWeekly:
		return 7 * 24 * time.Hour
	case RepeatMonthly:
		return 30 * 24 * time.Hour
	case RepeatCustom:
		return r.Custom
	default:
		return 0
	}
}

// ScheduledTask is a time-based activation request targeting an
// existing download task.
type ScheduledTask struct {
	ID           string
	TargetTaskID string
	DueTime      time.Time
	Repeat       RepeatInterval
	Enabled      bool
}

// Fired is emitted on the scheduler's channel when a task becomes due.
type Fired struct {
	ScheduledTaskID string
	TargetTaskID    string
}

const tickInterval = time.Second

// Scheduler ticks at 1s granularity, emitting due tasks on its
// channel and either removing (non-repeating) or rescheduling
// (repeating) them.
type Scheduler struct {
	mu      sync.RWMutex
	tasks   map[string]*ScheduledTask
	fired   chan Fired
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns a Scheduler with no tasks, not yet started.
func New() *Scheduler {
	return &Scheduler{
		tasks: make(map[string]*ScheduledTask),
		fired: make(chan Fired, 16),
	}
}

// Fired returns the channel due tasks are emitted on; the caller that
// started the scheduler listens on it (the engine itself does not).
func (s *Scheduler) Fired() <-chan Fired {
	return s.fired
}

// Add registers a new scheduled task and returns its id.
func (s *Scheduler) Add(targetTaskID string, due time.Time, repeat RepeatInterval) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.NewString()
	s.tasks[id] = &ScheduledTask{
		ID:           id,
		TargetTaskID: targetTaskID,
		DueTime:      due,
		Repeat:       repeat,
		Enabled:      true,
	}
	return id
}

// Update replaces the stored scheduled task with the same id.
func (s *Scheduler) Update(t ScheduledTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.ID] = &t
}

// Remove deletes a scheduled task.
func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, id)
}

// Get returns the scheduled task with the given id, if any.
func (s *Scheduler) Get(id string) (ScheduledTask, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return ScheduledTask{}, false
	}
	return *t, true
}

// List returns every scheduled task.
func (s *Scheduler) List() []ScheduledTask {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ScheduledTask, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, *t)
	}
	return out
}

// Start begins the 1s tick loop in a background goroutine. Calling
// Start twice without an intervening Stop is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run()
}

// Stop halts the tick loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
}

// Running reports whether the tick loop is currently active.
func (s *Scheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) run() {
	defer close(s.done)
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

func (s *Scheduler) tick(now time.Time) {
	var due []*ScheduledTask

	s.mu.Lock()
	for _, t := range s.tasks {
		if t.Enabled && !t.DueTime.After(now) {
			due = append(due, t)
		}
	}
	for _, t := range due {
		if t.Repeat.Kind == RepeatNone {
			delete(s.tasks, t.ID)
		} else {
			t.DueTime = now.Add(t.Repeat.ToDuration())
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		utils.Debug("scheduler: task %s due, firing for target %s", t.ID, t.TargetTaskID)
		select {
		case s.fired <- Fired{ScheduledTaskID: t.ID, TargetTaskID: t.TargetTaskID}:
		default:
			utils.Debug("scheduler: fired channel full, dropping event for %s", t.ID)
		}
	}
}
