package storage

import (
	"context"
	"database/sql"

	"modwarden/internal/settings"
)

var _ settings.Backend = (*Store)(nil)

// LoadServer reads a server's settings. found is false when the server has
// never been saved.
func (s *Store) LoadServer(ctx context.Context, serverID string) (*settings.Server, bool, error) {
	var exists int
	row := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM servers WHERE server_id = ?`), serverID)
	if err := row.Scan(&exists); err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}

	server := settings.NewServer(serverID)

	var deleteMessage, autoWarn int
	row = s.db.QueryRowContext(ctx, s.q(`
		SELECT reporting_channel_id, response_message, delete_message, auto_warn
		FROM message_checker_settings WHERE server_id = ?
	`), serverID)
	err := row.Scan(&server.MessageChecker.ReportingChannelID, &server.MessageChecker.ResponseMessage, &deleteMessage, &autoWarn)
	if err != nil && !isNoRows(err) {
		return nil, false, err
	}
	server.MessageChecker.DeleteMessage = deleteMessage == 1
	server.MessageChecker.AutoWarn = autoWarn == 1

	words, err := s.queryStrings(ctx, `SELECT word FROM message_checker_banned_words WHERE server_id = ? ORDER BY position, word`, serverID)
	if err != nil {
		return nil, false, err
	}
	server.MessageChecker.BannedWords = words

	row = s.db.QueryRowContext(ctx, s.q(`SELECT channel_id, threshold FROM starboard_settings WHERE server_id = ?`), serverID)
	if err := row.Scan(&server.Starboard.ChannelID, &server.Starboard.Threshold); err != nil && !isNoRows(err) {
		return nil, false, err
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id, name FROM starboard_emojis WHERE server_id = ? ORDER BY name`), serverID)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()
	for rows.Next() {
		var emoji settings.Emoji
		if err := rows.Scan(&emoji.ID, &emoji.Name); err != nil {
			return nil, false, err
		}
		server.Starboard.Emojis = append(server.Starboard.Emojis, emoji)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	row = s.db.QueryRowContext(ctx, s.q(`SELECT mute_role_id FROM moderation_settings WHERE server_id = ?`), serverID)
	if err := row.Scan(&server.Moderation.MuteRoleID); err != nil && !isNoRows(err) {
		return nil, false, err
	}

	return server, true, nil
}

// SaveServer writes every settings table of one server in a single transaction.
func (s *Store) SaveServer(ctx context.Context, server *settings.Server) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmts := []struct {
			query string
			args  []any
		}{
			{`INSERT INTO servers (server_id) VALUES (?) ON CONFLICT(server_id) DO NOTHING`, []any{server.ID}},
			{`
			INSERT INTO message_checker_settings (server_id, reporting_channel_id, response_message, delete_message, auto_warn)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(server_id) DO UPDATE SET
				reporting_channel_id = excluded.reporting_channel_id,
				response_message = excluded.response_message,
				delete_message = excluded.delete_message,
				auto_warn = excluded.auto_warn
			`, []any{
				server.ID,
				server.MessageChecker.ReportingChannelID,
				server.MessageChecker.ResponseMessage,
				boolToInt(server.MessageChecker.DeleteMessage),
				boolToInt(server.MessageChecker.AutoWarn),
			}},
			{`
			INSERT INTO starboard_settings (server_id, channel_id, threshold) VALUES (?, ?, ?)
			ON CONFLICT(server_id) DO UPDATE SET
				channel_id = excluded.channel_id,
				threshold = excluded.threshold
			`, []any{server.ID, server.Starboard.ChannelID, server.Starboard.Threshold}},
			{`
			INSERT INTO moderation_settings (server_id, mute_role_id) VALUES (?, ?)
			ON CONFLICT(server_id) DO UPDATE SET mute_role_id = excluded.mute_role_id
			`, []any{server.ID, server.Moderation.MuteRoleID}},
			{`DELETE FROM message_checker_banned_words WHERE server_id = ?`, []any{server.ID}},
			{`DELETE FROM starboard_emojis WHERE server_id = ?`, []any{server.ID}},
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, s.q(stmt.query), stmt.args...); err != nil {
				return err
			}
		}

		for i, word := range server.MessageChecker.BannedWords {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO message_checker_banned_words (server_id, word, position) VALUES (?, ?, ?)`), server.ID, word, i); err != nil {
				return err
			}
		}
		for _, emoji := range server.Starboard.Emojis {
			if _, err := tx.ExecContext(ctx, s.q(`INSERT INTO starboard_emojis (server_id, id, name) VALUES (?, ?, ?)`), server.ID, emoji.ID, emoji.Name); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, rows.Err()
}
