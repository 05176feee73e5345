package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"modwarden/internal/moderation"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
	LevelCrit = "CRIT"
)

type Entry struct {
	ServerID  string
	UserID    string
	Level     string
	Event     string
	Details   string
	CreatedAt time.Time
}

type Logger struct {
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, serverID, userID, event, details string) {
	entry := Entry{
		ServerID:  serverID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("audit", zap.String("level", level), zap.String("server_id", serverID), zap.String("user_id", userID), zap.String("event", event), zap.String("details", details))
}

func (l *Logger) ActionRecorded(ctx context.Context, action moderation.Action) {
	level := LevelInfo
	switch action.Type {
	case moderation.ActionBan, moderation.ActionKick:
		level = LevelWarn
	}
	l.Log(ctx, level, action.ServerID, action.TargetUserID, "moderation_action", FormatAction(action))
}

func (l *Logger) TimeoutExpired(ctx context.Context, entry moderation.TimeoutEntry, err error) {
	if err != nil {
		l.Log(ctx, LevelCrit, entry.Key.ServerID, entry.Key.UserID, "timeout_expired",
			fmt.Sprintf("%s for <@%s> expired but could not be lifted: %v", entry.Key.Type, entry.Key.UserID, err))
		return
	}
	l.Log(ctx, LevelInfo, entry.Key.ServerID, entry.Key.UserID, "timeout_expired",
		fmt.Sprintf("%s for <@%s> expired", entry.Key.Type, entry.Key.UserID))
}

// FormatAction renders one mod-log line.
func FormatAction(action moderation.Action) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Case %d | %s | <@%s> by <@%s>", action.CaseID, action.Type, action.TargetUserID, action.ModeratorID)
	if action.Timeout != nil && *action.Timeout > 0 {
		fmt.Fprintf(&b, " | %s", time.Duration(*action.Timeout)*time.Second)
	}
	if action.Reason != nil {
		fmt.Fprintf(&b, " | %s", *action.Reason)
	}
	return b.String()
}

var _ moderation.Observer = (*Logger)(nil)
