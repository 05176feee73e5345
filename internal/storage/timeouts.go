package storage

import (
	"context"
	"time"

	"modwarden/internal/moderation"
)

// UpsertTimeout inserts a pending timeout or, for an existing key, replaces
// only its end time and timer handle.
func (s *Store) UpsertTimeout(ctx context.Context, entry moderation.TimeoutEntry) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO moderation_timeouts (server_id, user_id, type, end_time, timer_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(server_id, user_id, type) DO UPDATE SET
			end_time = excluded.end_time,
			timer_id = excluded.timer_id
	`), entry.Key.ServerID, entry.Key.UserID, string(entry.Key.Type), entry.EndTime.Unix(), int64(entry.Handle))
	return err
}

// RemoveTimeout deletes the row for key and returns the handle it held.
// The delete is a single statement so concurrent callers cannot both see it.
func (s *Store) RemoveTimeout(ctx context.Context, key moderation.TimeoutKey) (moderation.TimerHandle, bool, error) {
	var handle int64
	row := s.db.QueryRowContext(ctx, s.q(`
		DELETE FROM moderation_timeouts
		WHERE server_id = ? AND user_id = ? AND type = ?
		RETURNING timer_id
	`), key.ServerID, key.UserID, string(key.Type))
	if err := row.Scan(&handle); err != nil {
		if isNoRows(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return moderation.TimerHandle(handle), true, nil
}

// RemoveTimeoutHandle deletes the row only while it still belongs to handle.
func (s *Store) RemoveTimeoutHandle(ctx context.Context, key moderation.TimeoutKey, handle moderation.TimerHandle) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`
		DELETE FROM moderation_timeouts
		WHERE server_id = ? AND user_id = ? AND type = ? AND timer_id = ?
	`), key.ServerID, key.UserID, string(key.Type), int64(handle))
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListTimeouts(ctx context.Context) ([]moderation.TimeoutEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT server_id, user_id, type, end_time, timer_id FROM moderation_timeouts ORDER BY end_time`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []moderation.TimeoutEntry
	for rows.Next() {
		var entry moderation.TimeoutEntry
		var actionType string
		var end, handle int64
		if err := rows.Scan(&entry.Key.ServerID, &entry.Key.UserID, &actionType, &end, &handle); err != nil {
			return nil, err
		}
		entry.Key.Type = moderation.ActionType(actionType)
		entry.EndTime = time.Unix(end, 0)
		entry.Handle = moderation.TimerHandle(handle)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
