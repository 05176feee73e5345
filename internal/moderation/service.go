package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modwarden/internal/keylock"

	"go.uber.org/zap"
)

type ActionLog interface {
	AppendAction(ctx context.Context, action Action) (Action, error)
	CountActions(ctx context.Context, serverID, userID string) (int, error)
}

type TimeoutStore interface {
	UpsertTimeout(ctx context.Context, entry TimeoutEntry) error
	RemoveTimeout(ctx context.Context, key TimeoutKey) (TimerHandle, bool, error)
}

type WarnTable interface {
	LookupWarnAction(ctx context.Context, serverID string, numWarns int) (WarnRule, bool, error)
}

// Scheduler arms in-memory timers. It never touches the timeout store.
type Scheduler interface {
	Schedule(key TimeoutKey, endTime time.Time) (TimerHandle, error)
	Cancel(handle TimerHandle) bool
	Pending(key TimeoutKey) (TimerHandle, bool)
}

// Enforcer applies actions on the chat platform.
type Enforcer interface {
	Apply(ctx context.Context, action Action) error
	Revert(ctx context.Context, key TimeoutKey) error
}

type Observer interface {
	ActionRecorded(ctx context.Context, action Action)
	TimeoutExpired(ctx context.Context, entry TimeoutEntry, err error)
}

type Deps struct {
	Log      ActionLog
	Timeouts TimeoutStore
	Warns    WarnTable
	Enforcer Enforcer
	Observer Observer
	Logger   *zap.Logger
}

type Service struct {
	log       ActionLog
	timeouts  TimeoutStore
	warns     WarnTable
	enforcer  Enforcer
	observer  Observer
	scheduler Scheduler
	logger    *zap.Logger
	now       func() time.Time
	servers   *keylock.Map[string]
	keys      *keylock.Map[TimeoutKey]
}

type Request struct {
	ServerID     string
	ModeratorID  string
	TargetUserID string
	Type         ActionType
	Reason       *string
	Timeout      time.Duration
}

// Outcome describes a recorded action. TimeoutErr and EnforceErr are
// warnings: the action stands in the log even when they are set.
type Outcome struct {
	Action           Action
	Timeout          *TimeoutEntry
	CancelledTimeout bool
	TimeoutErr       error
	EnforceErr       error
}

func (o Outcome) Degraded() bool {
	return o.TimeoutErr != nil || o.EnforceErr != nil
}

type EscalationOutcome struct {
	Warn       Outcome
	WarnCount  int
	Escalated  bool
	Escalation *Outcome
}

func NewService(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		log:      deps.Log,
		timeouts: deps.Timeouts,
		warns:    deps.Warns,
		enforcer: deps.Enforcer,
		observer: deps.Observer,
		logger:   logger,
		now:      time.Now,
		servers:  keylock.New[string](),
		keys:     keylock.New[TimeoutKey](),
	}
}

func (s *Service) SetScheduler(scheduler Scheduler) {
	s.scheduler = scheduler
}

func (s *Service) WithClock(now func() time.Time) {
	s.now = now
}

// Moderate records one action, applies it and registers its expiry.
// An error means nothing was recorded.
func (s *Service) Moderate(ctx context.Context, req Request) (Outcome, error) {
	actionType, ok := ParseActionType(string(req.Type))
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownAction, req.Type)
	}
	req.Type = actionType
	if req.Timeout > 0 && req.Timeout < time.Second {
		return Outcome{}, fmt.Errorf("%w: %s", ErrInvalidTimeout, req.Timeout)
	}
	// The ledger keeps whole seconds; the timer matches it.
	req.Timeout = req.Timeout.Truncate(time.Second)

	action := Action{
		ServerID:     req.ServerID,
		ModeratorID:  req.ModeratorID,
		TargetUserID: req.TargetUserID,
		Type:         req.Type,
		Reason:       req.Reason,
		Timestamp:    s.now(),
	}
	if req.Timeout > 0 {
		seconds := int64(req.Timeout / time.Second)
		action.Timeout = &seconds
	}

	unlock := s.servers.Lock(req.ServerID)
	recorded, err := s.log.AppendAction(ctx, action)
	unlock.Unlock()
	if err != nil {
		actionFailures.WithLabelValues(string(req.Type)).Inc()
		s.logger.Error("moderation action not recorded",
			zap.String("server_id", req.ServerID),
			zap.String("user_id", req.TargetUserID),
			zap.String("type", string(req.Type)),
			zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: record %s: %w", ErrStorageUnavailable, req.Type, err)
	}

	actionsRecorded.WithLabelValues(string(recorded.Type)).Inc()
	s.logger.Info("moderation action recorded",
		zap.String("server_id", recorded.ServerID),
		zap.Int64("case_id", recorded.CaseID),
		zap.String("moderator_id", recorded.ModeratorID),
		zap.String("user_id", recorded.TargetUserID),
		zap.String("type", string(recorded.Type)))
	if s.observer != nil {
		s.observer.ActionRecorded(ctx, recorded)
	}

	out := Outcome{Action: recorded}
	if s.enforcer != nil {
		if err := s.enforcer.Apply(ctx, recorded); err != nil {
			enforceFailures.WithLabelValues(string(recorded.Type)).Inc()
			s.logger.Warn("moderation action not applied", zap.Int64("case_id", recorded.CaseID), zap.Error(err))
			out.EnforceErr = err
		}
	}

	if undone, ok := recorded.Type.Undoes(); ok {
		cancelled, err := s.CancelTimeout(ctx, recorded.ServerID, recorded.TargetUserID, undone)
		if err != nil {
			out.TimeoutErr = fmt.Errorf("%w: cancel pending %s: %w", ErrSchedulingFailure, undone, err)
		}
		out.CancelledTimeout = cancelled
	}

	// A permanent mute or ban replaces any timed one still pending.
	if req.Timeout <= 0 && recorded.Type.Timed() {
		cancelled, err := s.CancelTimeout(ctx, recorded.ServerID, recorded.TargetUserID, recorded.Type)
		if err != nil {
			out.TimeoutErr = fmt.Errorf("%w: cancel pending %s: %w", ErrSchedulingFailure, recorded.Type, err)
		}
		out.CancelledTimeout = cancelled
	}

	if req.Timeout > 0 {
		key := TimeoutKey{ServerID: recorded.ServerID, UserID: recorded.TargetUserID, Type: recorded.Type}
		entry, err := s.arm(ctx, key, recorded.Timestamp.Add(req.Timeout))
		if err != nil {
			schedulingFailures.Inc()
			s.logger.Warn("moderation timeout not scheduled", zap.Stringer("key", key), zap.Error(err))
			out.TimeoutErr = err
		} else {
			out.Timeout = &entry
		}
	}

	return out, nil
}

// arm registers the timer first and the row second, holding the key lock so
// a timer that fires immediately waits for its row before reverting.
func (s *Service) arm(ctx context.Context, key TimeoutKey, endTime time.Time) (TimeoutEntry, error) {
	if s.scheduler == nil {
		return TimeoutEntry{}, fmt.Errorf("%w: no scheduler", ErrSchedulingFailure)
	}

	unlock := s.keys.Lock(key)
	defer unlock.Unlock()

	handle, err := s.scheduler.Schedule(key, endTime)
	if err != nil {
		return TimeoutEntry{}, fmt.Errorf("%w: arm timer for %s: %w", ErrSchedulingFailure, key, err)
	}

	entry := TimeoutEntry{Key: key, EndTime: endTime, Handle: handle}
	if err := s.timeouts.UpsertTimeout(ctx, entry); err != nil {
		s.scheduler.Cancel(handle)
		return TimeoutEntry{}, fmt.Errorf("%w: persist timeout for %s: %w", ErrSchedulingFailure, key, err)
	}
	timeoutsScheduled.Inc()
	return entry, nil
}

// CancelTimeout removes a pending timeout and stops its timer. It reports
// whether a pending timer was actually stopped; a missing key is not an error.
func (s *Service) CancelTimeout(ctx context.Context, serverID, userID string, actionType ActionType) (bool, error) {
	key := TimeoutKey{ServerID: serverID, UserID: userID, Type: actionType}

	unlock := s.keys.Lock(key)
	defer unlock.Unlock()

	handle, found, err := s.timeouts.RemoveTimeout(ctx, key)
	if err != nil {
		return false, fmt.Errorf("%w: remove timeout %s: %w", ErrStorageUnavailable, key, err)
	}
	if !found {
		return false, nil
	}
	if s.scheduler == nil || !s.scheduler.Cancel(handle) {
		s.logger.Debug("timeout row removed without a pending timer", zap.Stringer("key", key))
		return false, nil
	}
	timeoutsCancelled.Inc()
	s.logger.Info("moderation timeout cancelled", zap.Stringer("key", key))
	return true, nil
}

// WarnAndEscalate records a warning and, when the user's action count matches
// a configured rule, issues the follow-up action through Moderate.
func (s *Service) WarnAndEscalate(ctx context.Context, serverID, moderatorID, userID string, reason *string) (EscalationOutcome, error) {
	warn, err := s.Moderate(ctx, Request{
		ServerID:     serverID,
		ModeratorID:  moderatorID,
		TargetUserID: userID,
		Type:         ActionWarn,
		Reason:       reason,
	})
	if err != nil {
		return EscalationOutcome{}, err
	}
	out := EscalationOutcome{Warn: warn}

	count, err := s.log.CountActions(ctx, serverID, userID)
	if err != nil {
		return out, fmt.Errorf("%w: count actions: %w", ErrStorageUnavailable, err)
	}
	out.WarnCount = count

	rule, ok, err := s.warns.LookupWarnAction(ctx, serverID, count)
	if err != nil {
		return out, fmt.Errorf("%w: lookup warn action: %w", ErrStorageUnavailable, err)
	}
	if !ok {
		return out, nil
	}

	escalationReason := fmt.Sprintf("Automatic %s after %d warnings", strings.ToLower(string(rule.Action)), count)
	escalation, err := s.Moderate(ctx, Request{
		ServerID:     serverID,
		ModeratorID:  moderatorID,
		TargetUserID: userID,
		Type:         rule.Action,
		Reason:       &escalationReason,
		Timeout:      rule.Duration,
	})
	if err != nil {
		return out, err
	}
	escalations.WithLabelValues(string(rule.Action)).Inc()
	out.Escalated = true
	out.Escalation = &escalation
	return out, nil
}

// Expire is the scheduler's reversal callback. A timer superseded by a newer
// registration for the same key does not revert anything.
func (s *Service) Expire(ctx context.Context, entry TimeoutEntry) {
	unlock := s.keys.Lock(entry.Key)
	defer unlock.Unlock()

	if s.scheduler != nil {
		if current, ok := s.scheduler.Pending(entry.Key); ok && current != entry.Handle {
			timeoutsExpired.WithLabelValues(string(entry.Key.Type), "superseded").Inc()
			s.logger.Info("moderation timeout superseded", zap.Stringer("key", entry.Key))
			return
		}
	}

	var err error
	if s.enforcer != nil {
		err = s.enforcer.Revert(ctx, entry.Key)
	}
	if err != nil {
		timeoutsExpired.WithLabelValues(string(entry.Key.Type), "error").Inc()
		s.logger.Error("moderation timeout reversal failed", zap.Stringer("key", entry.Key), zap.Error(err))
	} else {
		timeoutsExpired.WithLabelValues(string(entry.Key.Type), "ok").Inc()
		s.logger.Info("moderation timeout expired", zap.Stringer("key", entry.Key), zap.Time("end_time", entry.EndTime))
	}
	if s.observer != nil {
		s.observer.TimeoutExpired(ctx, entry, err)
	}
}
