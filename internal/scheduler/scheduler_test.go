package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"modwarden/internal/moderation"
	"modwarden/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clock: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	var due []*fakeTimer
	var rest []*fakeTimer
	for _, t := range f.timers {
		switch {
		case t.stopped:
		case !t.at.After(f.now):
			t.fired = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	f.timers = rest
	f.mu.Unlock()
	for _, t := range due {
		t.fn()
	}
}

type reversals struct {
	mu      sync.Mutex
	entries []moderation.TimeoutEntry
}

func (r *reversals) reverse(_ context.Context, entry moderation.TimeoutEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *reversals) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())
	return store
}

func newTestScheduler(t *testing.T, store *storage.Store, rev *reversals) (*Scheduler, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	sched := New(store, rev.reverse, zap.NewNop(), time.Second)
	sched.WithClock(clock)
	return sched, clock
}

func muteKey(user string) moderation.TimeoutKey {
	return moderation.TimeoutKey{ServerID: "s1", UserID: user, Type: moderation.ActionMute}
}

func TestReconcileFiresPastDueEntryOnce(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rev := &reversals{}
	sched, clock := newTestScheduler(t, store, rev)
	now := clock.Now()

	require.NoError(t, store.UpsertTimeout(ctx, moderation.TimeoutEntry{Key: muteKey("late"), EndTime: now.Add(-10 * time.Second), Handle: 7}))
	require.NoError(t, store.UpsertTimeout(ctx, moderation.TimeoutEntry{Key: muteKey("later"), EndTime: now.Add(time.Hour), Handle: 3}))

	require.NoError(t, sched.Reconcile(ctx))

	require.Equal(t, 1, rev.count())
	assert.Equal(t, muteKey("late"), rev.entries[0].Key)

	rows, err := store.ListTimeouts(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, muteKey("later"), rows[0].Key)

	handle, ok := sched.Pending(muteKey("later"))
	require.True(t, ok)
	assert.Equal(t, moderation.TimerHandle(3), handle)
	assert.Equal(t, 1, sched.Len())

	fresh, err := sched.Schedule(muteKey("new"), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Greater(t, int64(fresh), int64(7))

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 3, rev.count())

	rows, err = store.ListTimeouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestScheduleReplacesPendingTimer(t *testing.T) {
	store := newTestStore(t)
	rev := &reversals{}
	sched, clock := newTestScheduler(t, store, rev)

	first, err := sched.Schedule(muteKey("u1"), clock.Now().Add(time.Minute))
	require.NoError(t, err)
	second, err := sched.Schedule(muteKey("u1"), clock.Now().Add(time.Hour))
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	assert.False(t, sched.Cancel(first))
	current, ok := sched.Pending(muteKey("u1"))
	require.True(t, ok)
	assert.Equal(t, second, current)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, 0, rev.count())

	clock.Advance(time.Hour)
	require.Equal(t, 1, rev.count())
	assert.Equal(t, second, rev.entries[0].Handle)
}

func TestCancelIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	rev := &reversals{}
	sched, clock := newTestScheduler(t, store, rev)

	handle, err := sched.Schedule(muteKey("u1"), clock.Now().Add(time.Minute))
	require.NoError(t, err)

	assert.True(t, sched.Cancel(handle))
	assert.False(t, sched.Cancel(handle))
	assert.False(t, sched.Cancel(handle+100))

	clock.Advance(time.Hour)
	assert.Equal(t, 0, rev.count())
	assert.Equal(t, 0, sched.Len())
}

func TestFireAndCancelRace(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		store := newTestStore(t)
		rev := &reversals{}
		sched, clock := newTestScheduler(t, store, rev)
		key := muteKey("u1")

		handle, err := sched.Schedule(key, clock.Now())
		require.NoError(t, err)
		require.NoError(t, store.UpsertTimeout(ctx, moderation.TimeoutEntry{Key: key, EndTime: clock.Now(), Handle: handle}))

		var cancelled bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			clock.Advance(0)
		}()
		go func() {
			defer wg.Done()
			stored, found, err := store.RemoveTimeout(ctx, key)
			if err == nil && found {
				cancelled = sched.Cancel(stored)
			}
		}()
		wg.Wait()

		completed := rev.count()
		if cancelled {
			completed++
		}
		require.Equal(t, 1, completed, "iteration %d", i)

		rows, err := store.ListTimeouts(ctx)
		require.NoError(t, err)
		require.Empty(t, rows, "iteration %d", i)
	}
}

func TestCloseKeepsRowsAndRejectsSchedule(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rev := &reversals{}
	sched, clock := newTestScheduler(t, store, rev)

	handle, err := sched.Schedule(muteKey("u1"), clock.Now().Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.UpsertTimeout(ctx, moderation.TimeoutEntry{Key: muteKey("u1"), EndTime: clock.Now().Add(time.Minute), Handle: handle}))

	require.NoError(t, sched.Close(ctx))
	_, err = sched.Schedule(muteKey("u2"), clock.Now().Add(time.Minute))
	require.ErrorIs(t, err, ErrClosed)

	clock.Advance(time.Hour)
	assert.Equal(t, 0, rev.count())

	rows, err := store.ListTimeouts(ctx)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestReconcileReassignsDuplicateHandles(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	rev := &reversals{}
	sched, clock := newTestScheduler(t, store, rev)
	end := clock.Now().Add(time.Hour)

	require.NoError(t, store.UpsertTimeout(ctx, moderation.TimeoutEntry{Key: muteKey("a"), EndTime: end, Handle: 4}))
	require.NoError(t, store.UpsertTimeout(ctx, moderation.TimeoutEntry{Key: muteKey("b"), EndTime: end, Handle: 4}))

	require.NoError(t, sched.Reconcile(ctx))
	assert.Equal(t, 2, sched.Len())

	a, _ := sched.Pending(muteKey("a"))
	b, _ := sched.Pending(muteKey("b"))
	assert.NotEqual(t, a, b)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 2, rev.count())
	rows, err := store.ListTimeouts(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
