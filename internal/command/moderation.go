package command

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"modwarden/internal/moderation"
	"modwarden/internal/modules/audit"
	"modwarden/internal/settings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	modLogsLimit       = 10
	defaultStatsWindow = 30 * 24 * time.Hour
)

var actionVerbs = map[moderation.ActionType]string{
	moderation.ActionWarn:   "warned",
	moderation.ActionMute:   "muted",
	moderation.ActionUnmute: "unmuted",
	moderation.ActionKick:   "kicked",
	moderation.ActionBan:    "banned",
	moderation.ActionUnban:  "unbanned",
}

func moderationCommands() []Command {
	return []Command{
		commandFunc{
			name:        "warn",
			usage:       "warn <@user> [reason...]",
			description: "Warn a member. Configured warn actions are applied automatically.",
			permissions: discordgo.PermissionKickMembers,
			run:         runWarn,
		},
		actionCommand("mute", "mute <@user> [duration] [reason...]", "Mute a member, optionally for a limited time.",
			discordgo.PermissionManageRoles, moderation.ActionMute, true),
		actionCommand("unmute", "unmute <@user> [reason...]", "Lift a mute and cancel its pending expiry.",
			discordgo.PermissionManageRoles, moderation.ActionUnmute, false),
		actionCommand("kick", "kick <@user> [reason...]", "Kick a member from the server.",
			discordgo.PermissionKickMembers, moderation.ActionKick, false),
		actionCommand("ban", "ban <@user> [duration] [reason...]", "Ban a member, optionally for a limited time.",
			discordgo.PermissionBanMembers, moderation.ActionBan, true),
		actionCommand("unban", "unban <user> [reason...]", "Lift a ban and cancel its pending expiry.",
			discordgo.PermissionBanMembers, moderation.ActionUnban, false),
		commandFunc{
			name:        "modlogs",
			usage:       "modlogs <@user>",
			description: "Show the most recent moderation cases of a member.",
			permissions: discordgo.PermissionKickMembers,
			run:         runModLogs,
		},
		commandFunc{
			name:        "modstats",
			usage:       "modstats [days]",
			description: "Summarise recent moderation actions by type and moderator.",
			permissions: discordgo.PermissionKickMembers,
			run:         runModStats,
		},
		commandFunc{
			name:        "setmuterole",
			usage:       "setmuterole <@role>",
			description: "Sets the role given to muted members.",
			permissions: discordgo.PermissionManageRoles,
			run:         runSetMuteRole,
		},
		commandFunc{
			name:        "setwarnaction",
			usage:       "setwarnaction <warns> <mute|kick|ban> [duration]",
			description: "Apply an action automatically when a member reaches a number of warnings.",
			permissions: blacklistPermissions,
			run:         runSetWarnAction,
		},
		commandFunc{
			name:        "removewarnaction",
			usage:       "removewarnaction <warns>",
			description: "Remove the automatic action for a number of warnings.",
			permissions: blacklistPermissions,
			run:         runRemoveWarnAction,
		},
		commandFunc{
			name:        "warnactions",
			usage:       "warnactions",
			description: "List the automatic warn actions.",
			permissions: blacklistPermissions,
			run:         runWarnActions,
		},
	}
}

func actionCommand(name, usage, description string, permissions int64, actionType moderation.ActionType, timed bool) Command {
	return commandFunc{
		name:        name,
		usage:       usage,
		description: description,
		permissions: permissions,
		run: func(ctx context.Context, server *settings.Server, c *Context) Result {
			return runAction(ctx, server, c, actionType, timed)
		},
	}
}

func runWarn(ctx context.Context, _ *settings.Server, c *Context) Result {
	userID, ok := targetArg(ctx, c)
	if !ok {
		return handled
	}

	out, err := c.Moderator.WarnAndEscalate(ctx, c.Event.ServerID, c.Event.AuthorID, userID, reasonArg(c.Args[1:]))
	if err != nil && out.Warn.Action.CaseID == 0 {
		c.Reply(ctx, failureMessage(err))
		return handled
	}

	lines := []string{describeOutcome(out.Warn)}
	lines = append(lines, fmt.Sprintf("<@%s> now has %d logged case(s).", userID, out.WarnCount))
	if out.Escalation != nil {
		lines = append(lines, "Warn action: "+describeOutcome(*out.Escalation))
	}
	if err != nil {
		c.Logger.Warn("warn escalation failed", zap.String("server_id", c.Event.ServerID), zap.String("user_id", userID), zap.Error(err))
		lines = append(lines, "⚠️ The warning was logged but the warn action could not be checked.")
	}
	c.Reply(ctx, strings.Join(lines, "\n"))
	return handled
}

func runAction(ctx context.Context, server *settings.Server, c *Context, actionType moderation.ActionType, timed bool) Result {
	userID, ok := targetArg(ctx, c)
	if !ok {
		return handled
	}
	if (actionType == moderation.ActionMute || actionType == moderation.ActionUnmute) && server.Moderation.MuteRoleID == "" {
		c.Reply(ctx, "No mute role is configured. Use setmuterole first.")
		return handled
	}

	rest := c.Args[1:]
	var timeout time.Duration
	if timed && len(rest) > 0 {
		d, err := ParseDuration(rest[0])
		switch {
		case errors.Is(err, errDurationTooLong):
			c.Reply(ctx, "Durations can be at most "+FormatDuration(MaxDuration)+".")
			return handled
		case err == nil:
			timeout = d
			rest = rest[1:]
		}
	}

	out, err := c.Moderator.Moderate(ctx, moderation.Request{
		ServerID:     c.Event.ServerID,
		ModeratorID:  c.Event.AuthorID,
		TargetUserID: userID,
		Type:         actionType,
		Reason:       reasonArg(rest),
		Timeout:      timeout,
	})
	if err != nil {
		c.Reply(ctx, failureMessage(err))
		return handled
	}
	c.Reply(ctx, describeOutcome(out))
	return handled
}

func runModLogs(ctx context.Context, _ *settings.Server, c *Context) Result {
	userID, ok := targetArg(ctx, c)
	if !ok {
		return handled
	}

	actions, err := c.Actions.ListActions(ctx, c.Event.ServerID, userID, time.Time{})
	if err != nil {
		c.Logger.Error("list actions", zap.String("server_id", c.Event.ServerID), zap.Error(err))
		c.Reply(ctx, "Could not read the moderation log right now.")
		return handled
	}
	if len(actions) == 0 {
		c.Reply(ctx, fmt.Sprintf("<@%s> has no moderation cases.", userID))
		return handled
	}

	lines := []string{fmt.Sprintf("Moderation cases for <@%s> (%d total):", userID, len(actions))}
	for i, action := range actions {
		if i == modLogsLimit {
			lines = append(lines, fmt.Sprintf("... and %d older case(s)", len(actions)-modLogsLimit))
			break
		}
		lines = append(lines, audit.FormatAction(action))
	}
	c.Reply(ctx, strings.Join(lines, "\n"))
	return handled
}

func runModStats(ctx context.Context, _ *settings.Server, c *Context) Result {
	window := defaultStatsWindow
	if len(c.Args) > 0 {
		days, err := strconv.Atoi(c.Args[0])
		if err != nil || days < 1 {
			c.Reply(ctx, "Days must be a whole number of at least 1.")
			return handled
		}
		window = time.Duration(days) * 24 * time.Hour
	}

	report, err := c.Reporter.Report(ctx, c.Event.ServerID, "", time.Now().Add(-window))
	if err != nil {
		c.Logger.Error("moderation report", zap.String("server_id", c.Event.ServerID), zap.Error(err))
		c.Reply(ctx, "Could not read the moderation log right now.")
		return handled
	}

	lines := []string{fmt.Sprintf("Moderation actions in the last %s: %d", FormatDuration(window), report.Total)}
	for _, actionType := range []moderation.ActionType{
		moderation.ActionWarn, moderation.ActionMute, moderation.ActionUnmute,
		moderation.ActionKick, moderation.ActionBan, moderation.ActionUnban,
	} {
		if n := report.ByType[actionType]; n > 0 {
			lines = append(lines, fmt.Sprintf("%s: %d", actionType, n))
		}
	}

	moderators := make([]string, 0, len(report.ByModerator))
	for id := range report.ByModerator {
		moderators = append(moderators, id)
	}
	// Busiest first, ties by ID.
	slices.SortFunc(moderators, func(a, b string) int {
		if n := cmp.Compare(report.ByModerator[b], report.ByModerator[a]); n != 0 {
			return n
		}
		return cmp.Compare(a, b)
	})
	if len(moderators) > 0 {
		lines = append(lines, "By moderator:")
	}
	for _, id := range moderators {
		lines = append(lines, fmt.Sprintf("<@%s>: %d", id, report.ByModerator[id]))
	}
	c.Reply(ctx, strings.Join(lines, "\n"))
	return handled
}

func runSetMuteRole(ctx context.Context, server *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		c.Reply(ctx, noArguments)
		return invalidInput
	}
	roleID, ok := ParseRoleID(c.Args[0])
	if !ok {
		c.Reply(ctx, "Please mention a role or submit a valid role ID.")
		return invalidInput
	}
	server.Moderation.MuteRoleID = roleID
	c.Reply(ctx, fmt.Sprintf("Mute role set to <@&%s>.", roleID))
	return settingsSaved
}

func runSetWarnAction(ctx context.Context, _ *settings.Server, c *Context) Result {
	if len(c.Args) < 2 {
		c.Reply(ctx, "Usage: setwarnaction <warns> <mute|kick|ban> [duration]")
		return handled
	}
	numWarns, err := strconv.Atoi(c.Args[0])
	if err != nil || numWarns < 1 {
		c.Reply(ctx, "Number of warnings must be a whole number of at least 1.")
		return handled
	}
	action, ok := moderation.ParseActionType(c.Args[1])
	if !ok || (action != moderation.ActionMute && action != moderation.ActionKick && action != moderation.ActionBan) {
		c.Reply(ctx, "Warn actions can only mute, kick or ban.")
		return handled
	}

	rule := moderation.WarnRule{ServerID: c.Event.ServerID, NumWarns: numWarns, Action: action}
	if len(c.Args) > 2 && action != moderation.ActionKick {
		d, err := ParseDuration(c.Args[2])
		if err != nil {
			c.Reply(ctx, "Invalid duration. Use values like 30m, 2h or 7d.")
			return handled
		}
		rule.Duration = d
	}

	if err := c.WarnRules.SetWarnAction(ctx, rule); err != nil {
		c.Logger.Error("set warn action", zap.String("server_id", c.Event.ServerID), zap.Error(err))
		c.Reply(ctx, "Could not save the warn action right now.")
		return handled
	}
	c.Reply(ctx, "Warn action set: "+describeRule(rule))
	return handled
}

func runRemoveWarnAction(ctx context.Context, _ *settings.Server, c *Context) Result {
	if len(c.Args) == 0 {
		c.Reply(ctx, noArguments)
		return handled
	}
	numWarns, err := strconv.Atoi(c.Args[0])
	if err != nil {
		c.Reply(ctx, "Number of warnings must be a whole number.")
		return handled
	}

	removed, err := c.WarnRules.RemoveWarnAction(ctx, c.Event.ServerID, numWarns)
	switch {
	case err != nil:
		c.Logger.Error("remove warn action", zap.String("server_id", c.Event.ServerID), zap.Error(err))
		c.Reply(ctx, "Could not remove the warn action right now.")
	case removed:
		c.Reply(ctx, fmt.Sprintf("Warn action for %d warning(s) removed.", numWarns))
	default:
		c.Reply(ctx, fmt.Sprintf("There is no warn action for %d warning(s).", numWarns))
	}
	return handled
}

func runWarnActions(ctx context.Context, _ *settings.Server, c *Context) Result {
	rules, err := c.WarnRules.ListWarnActions(ctx, c.Event.ServerID)
	if err != nil {
		c.Logger.Error("list warn actions", zap.String("server_id", c.Event.ServerID), zap.Error(err))
		c.Reply(ctx, "Could not read the warn actions right now.")
		return handled
	}
	if len(rules) == 0 {
		c.Reply(ctx, "No warn actions are configured.")
		return handled
	}
	lines := []string{"Warn actions:"}
	for _, rule := range rules {
		lines = append(lines, describeRule(rule))
	}
	c.Reply(ctx, strings.Join(lines, "\n"))
	return handled
}

func targetArg(ctx context.Context, c *Context) (string, bool) {
	if len(c.Args) == 0 {
		c.Reply(ctx, "Please mention a member or submit a valid user ID.")
		return "", false
	}
	userID, ok := ParseUserID(c.Args[0])
	if !ok {
		c.Reply(ctx, "Please mention a member or submit a valid user ID.")
		return "", false
	}
	return userID, true
}

func reasonArg(args []string) *string {
	reason := strings.TrimSpace(strings.Join(args, " "))
	if reason == "" {
		return nil
	}
	return &reason
}

func failureMessage(err error) string {
	if errors.Is(err, moderation.ErrStorageUnavailable) {
		return "❌ The action could not be recorded, so nothing was done. Please try again later."
	}
	return "❌ " + err.Error()
}

func describeOutcome(out moderation.Outcome) string {
	action := out.Action
	line := fmt.Sprintf("Case #%d: %s <@%s>", action.CaseID, actionVerbs[action.Type], action.TargetUserID)
	if out.Timeout != nil && action.Timeout != nil {
		line += " for " + FormatDuration(time.Duration(*action.Timeout)*time.Second)
	}
	if action.Reason != nil {
		line += ": " + *action.Reason
	}
	if out.CancelledTimeout {
		line += "\nThe pending expiry was cancelled."
	}
	if out.EnforceErr != nil {
		line += "\n⚠️ The action was logged but could not be applied on the server."
	}
	if out.TimeoutErr != nil {
		line += "\n⚠️ The action was logged but its expiry could not be scheduled; it will not be lifted automatically."
	}
	return line
}

func describeRule(rule moderation.WarnRule) string {
	text := fmt.Sprintf("%d warning(s) → %s", rule.NumWarns, rule.Action)
	if rule.Duration > 0 {
		text += " for " + FormatDuration(rule.Duration)
	}
	return text
}
