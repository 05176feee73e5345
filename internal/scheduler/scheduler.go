// Package scheduler keeps the in-memory timers behind stored moderation
// timeouts. Every stored row has exactly one armed timer while the process
// runs; Reconcile rebuilds the timers from the rows after a restart.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"modwarden/internal/moderation"

	"go.uber.org/zap"
)

var ErrClosed = errors.New("scheduler closed")

type Store interface {
	ListTimeouts(ctx context.Context) ([]moderation.TimeoutEntry, error)
	UpsertTimeout(ctx context.Context, entry moderation.TimeoutEntry) error
	RemoveTimeoutHandle(ctx context.Context, key moderation.TimeoutKey, handle moderation.TimerHandle) (bool, error)
}

// ReverseFunc lifts the action behind an expired entry.
type ReverseFunc func(ctx context.Context, entry moderation.TimeoutEntry)

type State int

const (
	StatePending State = iota
	StateFired
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFired:
		return "fired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

type timer struct {
	entry moderation.TimeoutEntry
	state State
	t     Timer
}

type Scheduler struct {
	mu          sync.Mutex
	store       Store
	reverse     ReverseFunc
	clock       Clock
	logger      *zap.Logger
	fireTimeout time.Duration

	next   moderation.TimerHandle
	timers map[moderation.TimerHandle]*timer
	byKey  map[moderation.TimeoutKey]moderation.TimerHandle
	closed bool
	fires  sync.WaitGroup
}

func New(store Store, reverse ReverseFunc, logger *zap.Logger, fireTimeout time.Duration) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if fireTimeout <= 0 {
		fireTimeout = 30 * time.Second
	}
	return &Scheduler{
		store:       store,
		reverse:     reverse,
		clock:       realClock{},
		logger:      logger,
		fireTimeout: fireTimeout,
		timers:      make(map[moderation.TimerHandle]*timer),
		byKey:       make(map[moderation.TimeoutKey]moderation.TimerHandle),
	}
}

func (s *Scheduler) WithClock(clock Clock) {
	s.clock = clock
}

// Reconcile arms a timer for every stored row. Rows already past their end
// time fire before Reconcile returns. Persisted handles are kept so the rows
// and the new timers stay correlated; fresh handles start above them.
func (s *Scheduler) Reconcile(ctx context.Context) error {
	entries, err := s.store.ListTimeouts(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	for _, entry := range entries {
		if entry.Handle > s.next {
			s.next = entry.Handle
		}
	}
	s.mu.Unlock()

	now := s.clock.Now()
	var future []moderation.TimeoutEntry
	due := 0
	for _, entry := range entries {
		if entry.EndTime.After(now) {
			future = append(future, entry)
			continue
		}
		if err := s.fireDue(entry); err != nil {
			return err
		}
		due++
		reconciledEntries.WithLabelValues("due").Inc()
	}

	for _, entry := range future {
		if err := s.rearm(ctx, entry); err != nil {
			return err
		}
		reconciledEntries.WithLabelValues("rearmed").Inc()
	}

	s.logger.Info("timeouts reconciled", zap.Int("rearmed", len(future)), zap.Int("due", due))
	return nil
}

func (s *Scheduler) rearm(ctx context.Context, entry moderation.TimeoutEntry) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, taken := s.timers[entry.Handle]; taken {
		s.next++
		old := entry.Handle
		entry.Handle = s.next
		s.mu.Unlock()
		// Two rows shared a handle; give this one its own before arming.
		if err := s.store.UpsertTimeout(ctx, entry); err != nil {
			return err
		}
		s.logger.Warn("duplicate timer handle reassigned", zap.Stringer("key", entry.Key), zap.Int64("old", int64(old)), zap.Int64("new", int64(entry.Handle)))
		s.mu.Lock()
	}
	s.armLocked(entry)
	s.mu.Unlock()
	return nil
}

// fireDue runs a missed expiry on the caller's goroutine.
func (s *Scheduler) fireDue(entry moderation.TimeoutEntry) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.timers[entry.Handle] = &timer{entry: entry, state: StatePending}
	s.byKey[entry.Key] = entry.Handle
	pendingTimers.Inc()
	s.mu.Unlock()

	s.fire(entry.Handle)
	return nil
}

// Schedule arms a timer for key, replacing any timer already pending for it.
func (s *Scheduler) Schedule(key moderation.TimeoutKey, endTime time.Time) (moderation.TimerHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	if current, ok := s.byKey[key]; ok {
		s.cancelLocked(current)
	}

	s.next++
	entry := moderation.TimeoutEntry{Key: key, EndTime: endTime, Handle: s.next}
	s.armLocked(entry)
	return entry.Handle, nil
}

func (s *Scheduler) armLocked(entry moderation.TimeoutEntry) {
	tm := &timer{entry: entry, state: StatePending}
	s.timers[entry.Handle] = tm
	s.byKey[entry.Key] = entry.Handle
	pendingTimers.Inc()

	delay := entry.EndTime.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	handle := entry.Handle
	tm.t = s.clock.AfterFunc(delay, func() { s.fire(handle) })
}

// Cancel stops a pending timer. It reports false for handles that already
// fired, were cancelled or never existed.
func (s *Scheduler) Cancel(handle moderation.TimerHandle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked(handle)
}

func (s *Scheduler) cancelLocked(handle moderation.TimerHandle) bool {
	tm, ok := s.timers[handle]
	if !ok || tm.state != StatePending {
		return false
	}
	tm.state = StateCancelled
	if tm.t != nil {
		tm.t.Stop()
	}
	s.forgetLocked(tm)
	return true
}

// Pending returns the handle of the timer currently armed for key.
func (s *Scheduler) Pending(key moderation.TimeoutKey) (moderation.TimerHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	handle, ok := s.byKey[key]
	return handle, ok
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) forgetLocked(tm *timer) {
	delete(s.timers, tm.entry.Handle)
	if s.byKey[tm.entry.Key] == tm.entry.Handle {
		delete(s.byKey, tm.entry.Key)
	}
	pendingTimers.Dec()
}

func (s *Scheduler) fire(handle moderation.TimerHandle) {
	s.mu.Lock()
	tm, ok := s.timers[handle]
	if !ok || tm.state != StatePending || s.closed {
		s.mu.Unlock()
		return
	}
	tm.state = StateFired
	s.forgetLocked(tm)
	s.fires.Add(1)
	s.mu.Unlock()
	defer s.fires.Done()

	entry := tm.entry
	ctx, cancel := context.WithTimeout(context.Background(), s.fireTimeout)
	defer cancel()

	if s.reverse != nil {
		s.reverse(ctx, entry)
	}
	removed, err := s.store.RemoveTimeoutHandle(ctx, entry.Key, entry.Handle)
	if err != nil {
		s.logger.Error("remove fired timeout", zap.Stringer("key", entry.Key), zap.Error(err))
		return
	}
	firedTimers.Inc()
	if !removed {
		s.logger.Debug("fired timeout row already gone", zap.Stringer("key", entry.Key))
	}
}

// Close stops every pending timer and waits for running reversals. Stored
// rows are left for the next process to reconcile.
func (s *Scheduler) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for _, tm := range s.timers {
		if tm.t != nil {
			tm.t.Stop()
		}
		pendingTimers.Dec()
	}
	s.timers = make(map[moderation.TimerHandle]*timer)
	s.byKey = make(map[moderation.TimeoutKey]moderation.TimerHandle)
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.fires.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
