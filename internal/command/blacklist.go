package command

import (
	"context"
	"fmt"
	"strings"

	"modwarden/internal/settings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const blacklistPermissions = discordgo.PermissionKickMembers | discordgo.PermissionBanMembers

const noArguments = "No arguments supplied."

func blacklistCommands() []Command {
	return []Command{
		commandFunc{
			name:        "addwords",
			usage:       "addwords <word> [word...]",
			description: "Add word(s) to the blacklist.",
			permissions: blacklistPermissions,
			run:         runAddWords,
		},
		commandFunc{
			name:        "removewords",
			usage:       "removewords <word> [word...]",
			description: "Remove word(s) from the blacklist.",
			permissions: blacklistPermissions,
			run:         runRemoveWords,
		},
		commandFunc{
			name:        "listwords",
			usage:       "listwords",
			description: "List the blacklisted words.",
			permissions: blacklistPermissions,
			run:         runListWords,
		},
		commandFunc{
			name:        "setdeletemessage",
			usage:       "setdeletemessage <true|false>",
			description: "Sets whether the bot should delete messages containing blacklisted words.",
			permissions: blacklistPermissions,
			run:         runSetDeleteMessage,
		},
		commandFunc{
			name:        "setresponsemessage",
			usage:       "setresponsemessage [text...]",
			description: "Sets the direct message sent to members who use blacklisted words. No text clears it.",
			permissions: blacklistPermissions,
			run:         runSetResponseMessage,
		},
		commandFunc{
			name:        "setreportingchannel",
			usage:       "setreportingchannel [#channel]",
			description: "Sets the channel that receives blacklist reports. No channel clears it.",
			permissions: blacklistPermissions,
			run:         runSetReportingChannel,
		},
		commandFunc{
			name:        "setautowarn",
			usage:       "setautowarn <true|false>",
			description: "Sets whether members using blacklisted words are warned automatically.",
			permissions: blacklistPermissions,
			run:         runSetAutoWarn,
		},
	}
}

func runAddWords(ctx context.Context, server *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		c.Reply(ctx, noArguments)
		return settingsSaved
	}

	var added, skipped []string
	for _, word := range c.Args {
		if server.MessageChecker.AddBannedWord(word) {
			added = append(added, word)
		} else {
			skipped = append(skipped, word)
		}
	}

	var out strings.Builder
	if len(added) > 0 {
		fmt.Fprintf(&out, "✅ Added: %s\n", strings.Join(added, ", "))
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&out, "❌ Unable to add: %s\nPerhaps those word(s) are already added?", strings.Join(skipped, ", "))
	}
	c.Reply(ctx, out.String())
	return settingsSaved
}

func runRemoveWords(ctx context.Context, server *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		c.Reply(ctx, noArguments)
		return settingsSaved
	}

	var removed, missing []string
	for _, word := range c.Args {
		if server.MessageChecker.RemoveBannedWord(word) {
			removed = append(removed, word)
		} else {
			missing = append(missing, word)
		}
	}

	var out strings.Builder
	if len(removed) > 0 {
		fmt.Fprintf(&out, "✅ Removed: %s\n", strings.Join(removed, ", "))
	}
	if len(missing) > 0 {
		fmt.Fprintf(&out, "❌ Unable to remove: %s\nPerhaps those word(s) are not on the list?", strings.Join(missing, ", "))
	}
	c.Reply(ctx, out.String())
	return settingsSaved
}

func runListWords(ctx context.Context, server *settings.Server, c *Context) Result {
	words := server.MessageChecker.BannedWords
	if len(words) == 0 {
		c.Reply(ctx, "The blacklist is empty.")
		return handled
	}
	c.Reply(ctx, "Blacklisted words: "+strings.Join(words, ", "))
	return handled
}

func runSetDeleteMessage(ctx context.Context, server *settings.Server, c *Context) Result {
	value, ok := boolArg(ctx, c)
	if !ok {
		return invalidInput
	}
	server.MessageChecker.DeleteMessage = value
	c.Reply(ctx, fmt.Sprintf("Delete Message set to: **%s**", strings.ToUpper(fmt.Sprint(value))))
	return settingsChecked
}

func runSetAutoWarn(ctx context.Context, server *settings.Server, c *Context) Result {
	value, ok := boolArg(ctx, c)
	if !ok {
		return invalidInput
	}
	server.MessageChecker.AutoWarn = value
	c.Reply(ctx, fmt.Sprintf("Auto Warn set to: **%s**", strings.ToUpper(fmt.Sprint(value))))
	return settingsSaved
}

func runSetResponseMessage(ctx context.Context, server *settings.Server, c *Context) Result {
	message := strings.Join(c.Args, " ")
	server.MessageChecker.ResponseMessage = message
	if message == "" {
		c.Reply(ctx, "Response message has been cleared.")
	} else {
		c.Reply(ctx, "Response message set to: "+message)
	}
	return settingsSaved
}

func runSetReportingChannel(ctx context.Context, server *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		server.MessageChecker.ReportingChannelID = ""
		c.Reply(ctx, "Reporting channel has been reset.")
		return settingsSaved
	}

	channelID, ok := validTextChannel(ctx, c, c.Args[0])
	if !ok {
		return invalidInput
	}
	server.MessageChecker.ReportingChannelID = channelID
	c.Reply(ctx, fmt.Sprintf("Reporting channel set to <#%s>.", channelID))
	return settingsSaved
}

func boolArg(ctx context.Context, c *Context) (bool, bool) {
	if len(c.Args) == 0 {
		c.Reply(ctx, noArguments)
		return false, false
	}
	switch strings.ToLower(c.Args[0]) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		c.Reply(ctx, `Incorrect format. Use only "true" or "false".`)
		return false, false
	}
}

// validTextChannel replies with the reason and returns false when arg is not
// a text channel of the current server.
func validTextChannel(ctx context.Context, c *Context, arg string) (string, bool) {
	channelID, ok := ParseChannelID(arg)
	if !ok {
		c.Reply(ctx, "Channel was not found. Please submit a valid channel ID.")
		return "", false
	}
	if c.Channels == nil {
		return channelID, true
	}

	exists, text, err := c.Channels.TextChannel(ctx, c.Event.ServerID, channelID)
	switch {
	case err != nil:
		c.Logger.Warn("channel lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		c.Reply(ctx, "Could not look up that channel right now.")
		return "", false
	case !exists:
		c.Reply(ctx, "Channel was not found. Please submit a valid channel ID.")
		return "", false
	case !text:
		c.Reply(ctx, "Channel is not a Text Channel. Make sure the Channel you are submitting is a Text Channel.")
		return "", false
	}
	return channelID, true
}
