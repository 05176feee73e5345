package storage

import (
	"context"
	"time"

	"modwarden/internal/moderation"
)

func (s *Store) LookupWarnAction(ctx context.Context, serverID string, numWarns int) (moderation.WarnRule, bool, error) {
	row := s.db.QueryRowContext(ctx, s.q(`
		SELECT action, duration FROM moderation_warn_settings
		WHERE server_id = ? AND num_warns = ?
	`), serverID, numWarns)

	var action string
	var seconds int64
	if err := row.Scan(&action, &seconds); err != nil {
		if isNoRows(err) {
			return moderation.WarnRule{}, false, nil
		}
		return moderation.WarnRule{}, false, err
	}
	return moderation.WarnRule{
		ServerID: serverID,
		NumWarns: numWarns,
		Action:   moderation.ActionType(action),
		Duration: time.Duration(seconds) * time.Second,
	}, true, nil
}

func (s *Store) SetWarnAction(ctx context.Context, rule moderation.WarnRule) error {
	_, err := s.db.ExecContext(ctx, s.q(`
		INSERT INTO moderation_warn_settings (server_id, num_warns, action, duration)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(server_id, num_warns) DO UPDATE SET
			action = excluded.action,
			duration = excluded.duration
	`), rule.ServerID, rule.NumWarns, string(rule.Action), int64(rule.Duration/time.Second))
	return err
}

func (s *Store) RemoveWarnAction(ctx context.Context, serverID string, numWarns int) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM moderation_warn_settings WHERE server_id = ? AND num_warns = ?`), serverID, numWarns)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s *Store) ListWarnActions(ctx context.Context, serverID string) ([]moderation.WarnRule, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`
		SELECT num_warns, action, duration FROM moderation_warn_settings
		WHERE server_id = ? ORDER BY num_warns
	`), serverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []moderation.WarnRule
	for rows.Next() {
		rule := moderation.WarnRule{ServerID: serverID}
		var action string
		var seconds int64
		if err := rows.Scan(&rule.NumWarns, &action, &seconds); err != nil {
			return nil, err
		}
		rule.Action = moderation.ActionType(action)
		rule.Duration = time.Duration(seconds) * time.Second
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}
