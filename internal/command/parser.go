package command

import (
	"strings"
	"unicode"

	"modwarden/internal/settings"
)

const DefaultPrefix = "!"

type Parser struct {
	Prefix string
	BotID  string
}

// Parse splits a command message into its lower-cased name and arguments.
// A message is a command when it starts with the prefix or mentions the bot.
func (p Parser) Parse(content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	prefix := p.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	var rest string
	switch {
	case strings.HasPrefix(content, prefix):
		rest = content[len(prefix):]
	case p.BotID != "" && strings.HasPrefix(content, "<@"+p.BotID+">"):
		rest = content[len("<@"+p.BotID+">"):]
	case p.BotID != "" && strings.HasPrefix(content, "<@!"+p.BotID+">"):
		rest = content[len("<@!"+p.BotID+">"):]
	default:
		return "", nil, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}
	return strings.ToLower(fields[0]), fields[1:], true
}

// ParseUserID accepts a raw snowflake or a user mention.
func ParseUserID(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<@") && strings.HasSuffix(arg, ">") {
		arg = strings.TrimPrefix(arg[2:len(arg)-1], "!")
	}
	return arg, isSnowflake(arg)
}

// ParseChannelID accepts a raw snowflake or a channel mention.
func ParseChannelID(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<#") && strings.HasSuffix(arg, ">") {
		arg = arg[2 : len(arg)-1]
	}
	return arg, isSnowflake(arg)
}

// ParseRoleID accepts a raw snowflake or a role mention.
func ParseRoleID(arg string) (string, bool) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<@&") && strings.HasSuffix(arg, ">") {
		arg = arg[3 : len(arg)-1]
	}
	return arg, isSnowflake(arg)
}

func isSnowflake(value string) bool {
	if value == "" || len(value) > 20 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseEmoji accepts a custom emoji mention (<:name:id> or <a:name:id>) or a
// bare unicode emoji, which is stored with an empty ID.
func ParseEmoji(arg string) (settings.Emoji, bool) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "<") && strings.HasSuffix(arg, ">") {
		parts := strings.Split(arg[1:len(arg)-1], ":")
		if len(parts) != 3 || (parts[0] != "" && parts[0] != "a") || parts[1] == "" || !isSnowflake(parts[2]) {
			return settings.Emoji{}, false
		}
		return settings.Emoji{ID: parts[2], Name: parts[1]}, true
	}
	if arg == "" || len(arg) > 32 {
		return settings.Emoji{}, false
	}
	for _, r := range arg {
		if r < 0x80 || unicode.IsSpace(r) {
			return settings.Emoji{}, false
		}
	}
	return settings.Emoji{Name: arg}, true
}
