// Package settings holds per-server configuration and the repository that
// loads, caches and persists it.
package settings

import (
	"slices"
	"strings"
)

const DefaultStarboardThreshold = 3

type Server struct {
	ID             string                 `msgpack:"id"`
	MessageChecker MessageCheckerSettings `msgpack:"message_checker"`
	Starboard      StarboardSettings      `msgpack:"starboard"`
	Moderation     ModerationSettings     `msgpack:"moderation"`
}

type MessageCheckerSettings struct {
	BannedWords        []string `msgpack:"banned_words"`
	ReportingChannelID string   `msgpack:"reporting_channel_id"`
	ResponseMessage    string   `msgpack:"response_message"`
	DeleteMessage      bool     `msgpack:"delete_message"`
	AutoWarn           bool     `msgpack:"auto_warn"`
}

type StarboardSettings struct {
	ChannelID string  `msgpack:"channel_id"`
	Threshold int     `msgpack:"threshold"`
	Emojis    []Emoji `msgpack:"emojis"`
}

type Emoji struct {
	ID   string `msgpack:"id"`
	Name string `msgpack:"name"`
}

type ModerationSettings struct {
	MuteRoleID string `msgpack:"mute_role_id"`
}

func NewServer(id string) *Server {
	return &Server{
		ID:        id,
		Starboard: StarboardSettings{Threshold: DefaultStarboardThreshold},
	}
}

// Clone returns a deep copy so callers can mutate without touching cached state.
func (s *Server) Clone() *Server {
	out := *s
	out.MessageChecker.BannedWords = slices.Clone(s.MessageChecker.BannedWords)
	out.Starboard.Emojis = slices.Clone(s.Starboard.Emojis)
	return &out
}

// AddBannedWord stores word lower-cased; it reports false for blanks and duplicates.
func (m *MessageCheckerSettings) AddBannedWord(word string) bool {
	word = normalizeWord(word)
	if word == "" || slices.Contains(m.BannedWords, word) {
		return false
	}
	m.BannedWords = append(m.BannedWords, word)
	return true
}

func (m *MessageCheckerSettings) RemoveBannedWord(word string) bool {
	word = normalizeWord(word)
	idx := slices.Index(m.BannedWords, word)
	if idx < 0 {
		return false
	}
	m.BannedWords = slices.Delete(m.BannedWords, idx, idx+1)
	return true
}

func normalizeWord(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}
