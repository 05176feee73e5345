package moderation

import (
	"strings"
	"time"
)

type ActionType string

const (
	ActionWarn   ActionType = "WARN"
	ActionMute   ActionType = "MUTE"
	ActionUnmute ActionType = "UNMUTE"
	ActionKick   ActionType = "KICK"
	ActionBan    ActionType = "BAN"
	ActionUnban  ActionType = "UNBAN"
)

var actionTypes = []ActionType{ActionWarn, ActionMute, ActionUnmute, ActionKick, ActionBan, ActionUnban}

// ParseActionType accepts any casing of a known action name.
func ParseActionType(value string) (ActionType, bool) {
	upper := ActionType(strings.ToUpper(strings.TrimSpace(value)))
	for _, t := range actionTypes {
		if t == upper {
			return t, true
		}
	}
	return "", false
}

// Timed reports whether the action can carry an expiry that reverts it.
func (t ActionType) Timed() bool {
	return t == ActionMute || t == ActionBan
}

// Undoes reports which timed action a manual reversal lifts.
func (t ActionType) Undoes() (ActionType, bool) {
	switch t {
	case ActionUnmute:
		return ActionMute, true
	case ActionUnban:
		return ActionBan, true
	default:
		return "", false
	}
}

// Action is one row of the append-only moderation ledger.
type Action struct {
	ServerID     string
	CaseID       int64
	ModeratorID  string
	TargetUserID string
	Type         ActionType
	Reason       *string
	Timeout      *int64
	Timestamp    time.Time
}

type TimerHandle int64

type TimeoutKey struct {
	ServerID string
	UserID   string
	Type     ActionType
}

func (k TimeoutKey) String() string {
	return k.ServerID + ":" + k.UserID + ":" + string(k.Type)
}

// TimeoutEntry is a pending reversal. Handle correlates the row with a live
// scheduler timer and is never used to resume anything after a restart.
type TimeoutEntry struct {
	Key     TimeoutKey
	EndTime time.Time
	Handle  TimerHandle
}

type WarnRule struct {
	ServerID string
	NumWarns int
	Action   ActionType
	Duration time.Duration
}
