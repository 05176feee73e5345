package storage

import (
	"context"
	"database/sql"
	"time"

	"modwarden/internal/moderation"
)

// NextCaseID returns the case number the next action in a server will get.
func (s *Store) NextCaseID(ctx context.Context, serverID string) (int64, error) {
	return nextCaseID(ctx, s.db, s.q, serverID)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func nextCaseID(ctx context.Context, db queryRower, q func(string) string, serverID string) (int64, error) {
	var last int64
	row := db.QueryRowContext(ctx, q(`SELECT COALESCE(MAX(case_id), 0) FROM moderation_logs WHERE server_id = ?`), serverID)
	if err := row.Scan(&last); err != nil {
		return 0, err
	}
	return last + 1, nil
}

// AppendAction allocates the next case ID and inserts the action in one
// transaction. The returned action carries the allocated case ID.
func (s *Store) AppendAction(ctx context.Context, action moderation.Action) (moderation.Action, error) {
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		caseID, err := nextCaseID(ctx, tx, s.q, action.ServerID)
		if err != nil {
			return err
		}

		var reason, timeout any
		if action.Reason != nil && *action.Reason != "" {
			reason = *action.Reason
		}
		if action.Timeout != nil {
			timeout = *action.Timeout
		}

		_, err = tx.ExecContext(ctx, s.q(`
			INSERT INTO moderation_logs (server_id, case_id, mod_id, user_id, type, reason, timeout, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`), action.ServerID, caseID, action.ModeratorID, action.TargetUserID, string(action.Type), reason, timeout, action.Timestamp.Unix())
		if err != nil {
			return err
		}
		action.CaseID = caseID
		return nil
	})
	if err != nil {
		return moderation.Action{}, err
	}
	if action.Reason != nil && *action.Reason == "" {
		action.Reason = nil
	}
	return action, nil
}

// CountActions counts every logged action for a user, whatever its type.
func (s *Store) CountActions(ctx context.Context, serverID, userID string) (int, error) {
	var count int
	row := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM moderation_logs WHERE server_id = ? AND user_id = ?`), serverID, userID)
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListActions returns actions newest first. An empty userID lists the whole server.
func (s *Store) ListActions(ctx context.Context, serverID, userID string, since time.Time) ([]moderation.Action, error) {
	query := `
		SELECT server_id, case_id, mod_id, user_id, type, reason, timeout, timestamp
		FROM moderation_logs
		WHERE server_id = ? AND timestamp >= ?`
	args := []any{serverID, since.Unix()}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY case_id DESC`

	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []moderation.Action
	for rows.Next() {
		var action moderation.Action
		var actionType string
		var reason sql.NullString
		var timeout sql.NullInt64
		var ts int64
		if err := rows.Scan(&action.ServerID, &action.CaseID, &action.ModeratorID, &action.TargetUserID, &actionType, &reason, &timeout, &ts); err != nil {
			return nil, err
		}
		action.Type = moderation.ActionType(actionType)
		if reason.Valid {
			value := reason.String
			action.Reason = &value
		}
		if timeout.Valid {
			value := timeout.Int64
			action.Timeout = &value
		}
		action.Timestamp = time.Unix(ts, 0)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}
