package audit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"modwarden/internal/moderation"

	"go.uber.org/zap"
)

func TestActionRecordedNotifies(t *testing.T) {
	logger := NewLogger(zap.NewNop())
	var got []Entry
	logger.SetNotifier(func(_ context.Context, entry Entry) { got = append(got, entry) })

	reason := "spam"
	timeout := int64(3600)
	logger.ActionRecorded(context.Background(), moderation.Action{
		ServerID: "s1", CaseID: 5, ModeratorID: "m1", TargetUserID: "u1",
		Type: moderation.ActionBan, Reason: &reason, Timeout: &timeout,
	})

	if len(got) != 1 {
		t.Fatalf("expected one notification, got %d", len(got))
	}
	if got[0].Level != LevelWarn || got[0].ServerID != "s1" || got[0].UserID != "u1" {
		t.Fatalf("unexpected entry: %+v", got[0])
	}
	want := "Case 5 | BAN | <@u1> by <@m1> | 1h0m0s | spam"
	if got[0].Details != want {
		t.Fatalf("expected %q, got %q", want, got[0].Details)
	}
}

func TestTimeoutExpiredReportsFailure(t *testing.T) {
	logger := NewLogger(nil)
	var got Entry
	logger.SetNotifier(func(_ context.Context, entry Entry) { got = entry })

	key := moderation.TimeoutKey{ServerID: "s1", UserID: "u1", Type: moderation.ActionMute}
	logger.TimeoutExpired(context.Background(), moderation.TimeoutEntry{Key: key, EndTime: time.Now()}, errors.New("forbidden"))

	if got.Level != LevelCrit || !strings.Contains(got.Details, "forbidden") {
		t.Fatalf("unexpected entry: %+v", got)
	}
}
