package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"modwarden/internal/moderation"

	"github.com/DATA-DOG/go-sqlmock"
)

func strPtr(v string) *string { return &v }

func TestAppendActionAllocatesCaseIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	next, err := store.NextCaseID(ctx, "s1")
	if err != nil || next != 1 {
		t.Fatalf("expected first case id 1, got %d err=%v", next, err)
	}

	for i := 1; i <= 3; i++ {
		action, err := store.AppendAction(ctx, moderation.Action{
			ServerID: "s1", ModeratorID: "m1", TargetUserID: "u1", Type: moderation.ActionWarn,
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		if action.CaseID != int64(i) {
			t.Fatalf("expected case %d, got %d", i, action.CaseID)
		}
	}

	other, err := store.AppendAction(ctx, moderation.Action{ServerID: "s2", ModeratorID: "m1", TargetUserID: "u1", Type: moderation.ActionBan})
	if err != nil {
		t.Fatalf("append other server: %v", err)
	}
	if other.CaseID != 1 {
		t.Fatalf("case ids are per server, got %d", other.CaseID)
	}

	next, err = store.NextCaseID(ctx, "s1")
	if err != nil || next != 4 {
		t.Fatalf("expected next case id 4, got %d err=%v", next, err)
	}
}

func TestAppendActionConcurrentWriters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	ids := make(chan int64, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			action, err := store.AppendAction(ctx, moderation.Action{ServerID: "s1", ModeratorID: "m", TargetUserID: "u", Type: moderation.ActionWarn})
			if err != nil {
				t.Errorf("append: %v", err)
				return
			}
			ids <- action.CaseID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate case id %d", id)
		}
		seen[id] = true
	}
	for i := int64(1); i <= writers; i++ {
		if !seen[i] {
			t.Fatalf("missing case id %d", i)
		}
	}
}

func TestReasonAndTimeoutNullability(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	timeout := int64(60)

	if _, err := store.AppendAction(ctx, moderation.Action{ServerID: "s1", ModeratorID: "m", TargetUserID: "u", Type: moderation.ActionWarn, Reason: strPtr("")}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := store.AppendAction(ctx, moderation.Action{ServerID: "s1", ModeratorID: "m", TargetUserID: "u", Type: moderation.ActionMute, Reason: strPtr("spam"), Timeout: &timeout}); err != nil {
		t.Fatalf("append: %v", err)
	}

	actions, err := store.ListActions(ctx, "s1", "u", time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(actions))
	}
	if actions[0].CaseID != 2 || actions[0].Reason == nil || *actions[0].Reason != "spam" || actions[0].Timeout == nil || *actions[0].Timeout != 60 {
		t.Fatalf("unexpected newest action %+v", actions[0])
	}
	if actions[1].Reason != nil || actions[1].Timeout != nil {
		t.Fatalf("empty reason should be stored as NULL, got %+v", actions[1])
	}
}

// CountActions counts all types, not only warns; escalation relies on that.
func TestCountActionsCountsEveryType(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, actionType := range []moderation.ActionType{moderation.ActionWarn, moderation.ActionMute, moderation.ActionUnmute} {
		if _, err := store.AppendAction(ctx, moderation.Action{ServerID: "s1", ModeratorID: "m", TargetUserID: "u1", Type: actionType}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if _, err := store.AppendAction(ctx, moderation.Action{ServerID: "s1", ModeratorID: "m", TargetUserID: "u2", Type: moderation.ActionWarn}); err != nil {
		t.Fatalf("append: %v", err)
	}

	count, err := store.CountActions(ctx, "s1", "u1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3, got %d", count)
	}
}

func TestAppendActionRollsBackOnInsertFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	store := NewWithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(case_id\), 0\) FROM moderation_logs`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(7))
	mock.ExpectExec(`INSERT INTO moderation_logs`).WillReturnError(errors.New("connection refused"))
	mock.ExpectRollback()

	_, err = store.AppendAction(context.Background(), moderation.Action{ServerID: "s1", ModeratorID: "m", TargetUserID: "u", Type: moderation.ActionWarn})
	if err == nil {
		t.Fatalf("expected append failure")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
