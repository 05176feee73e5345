package command

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"modwarden/internal/settings"
)

func starboardCommands() []Command {
	return []Command{
		commandFunc{
			name:        "setstarboardchannel",
			usage:       "setstarboardchannel [#channel]",
			description: "Sets the Starboard channel where the bot will star messages.",
			permissions: blacklistPermissions,
			run:         runSetStarboardChannel,
		},
		commandFunc{
			name:        "setstarboardthreshold",
			usage:       "setstarboardthreshold <count>",
			description: "Sets how many reactions a message needs to reach the Starboard.",
			permissions: blacklistPermissions,
			run:         runSetStarboardThreshold,
		},
		commandFunc{
			name:        "setstarboardemojis",
			usage:       "setstarboardemojis [emoji...]",
			description: "Sets which reactions count towards the Starboard. No arguments clears the list.",
			permissions: blacklistPermissions,
			run:         runSetStarboardEmojis,
		},
	}
}

func runSetStarboardChannel(ctx context.Context, server *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		server.Starboard.ChannelID = ""
		c.Reply(ctx, "Starboard Channel has been reset because there were no arguments. Please set a new one.")
		return settingsChecked
	}

	channelID, ok := validTextChannel(ctx, c, c.Args[0])
	if !ok {
		return settingsChecked
	}
	server.Starboard.ChannelID = channelID
	c.Reply(ctx, fmt.Sprintf("Starboard Channel set to <#%s>.", channelID))
	return settingsChecked
}

func runSetStarboardThreshold(ctx context.Context, server *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		c.Reply(ctx, noArguments)
		return invalidInput
	}
	threshold, err := strconv.Atoi(c.Args[0])
	if err != nil || threshold < 1 {
		c.Reply(ctx, "Threshold must be a whole number of at least 1.")
		return invalidInput
	}
	server.Starboard.Threshold = threshold
	c.Reply(ctx, fmt.Sprintf("Starboard threshold set to **%d**.", threshold))
	return settingsSaved
}

func runSetStarboardEmojis(ctx context.Context, server *settings.Server, c *Context) Result {
	emojis := make([]settings.Emoji, 0, len(c.Args))
	names := make([]string, 0, len(c.Args))
	for _, arg := range c.Args {
		emoji, ok := ParseEmoji(arg)
		if !ok {
			c.Reply(ctx, fmt.Sprintf("%s is not an emoji.", arg))
			return invalidInput
		}
		if slices.Contains(emojis, emoji) {
			continue
		}
		emojis = append(emojis, emoji)
		names = append(names, arg)
	}

	server.Starboard.Emojis = emojis
	if len(emojis) == 0 {
		c.Reply(ctx, "Starboard emojis cleared.")
		return settingsSaved
	}
	c.Reply(ctx, "Starboard emojis set to "+strings.Join(names, " ")+".")
	return settingsSaved
}
