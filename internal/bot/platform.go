package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"modwarden/internal/command"
	"modwarden/internal/moderation"
	"modwarden/internal/modules/audit"
	"modwarden/internal/settings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var errNoMuteRole = errors.New("no mute role configured")

// restAPI is the part of the Discord REST surface the platform needs.
type restAPI interface {
	SendMessage(channelID, content string) error
	OpenDM(userID string) (string, error)
	DeleteMessage(channelID, messageID string) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	Ban(guildID, userID, reason string) error
	Unban(guildID, userID string) error
	Kick(guildID, userID, reason string) error
	Channel(channelID string) (*discordgo.Channel, error)
}

type sessionAPI struct {
	session *discordgo.Session
}

func (s sessionAPI) SendMessage(channelID, content string) error {
	_, err := s.session.ChannelMessageSend(channelID, content)
	return err
}

func (s sessionAPI) OpenDM(userID string) (string, error) {
	channel, err := s.session.UserChannelCreate(userID)
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (s sessionAPI) DeleteMessage(channelID, messageID string) error {
	return s.session.ChannelMessageDelete(channelID, messageID)
}

func (s sessionAPI) AddRole(guildID, userID, roleID string) error {
	return s.session.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (s sessionAPI) RemoveRole(guildID, userID, roleID string) error {
	return s.session.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (s sessionAPI) Ban(guildID, userID, reason string) error {
	return s.session.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (s sessionAPI) Unban(guildID, userID string) error {
	return s.session.GuildBanDelete(guildID, userID)
}

func (s sessionAPI) Kick(guildID, userID, reason string) error {
	return s.session.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (s sessionAPI) Channel(channelID string) (*discordgo.Channel, error) {
	if s.session.State != nil {
		if channel, err := s.session.State.Channel(channelID); err == nil {
			return channel, nil
		}
	}
	return s.session.Channel(channelID)
}

type settingsReader interface {
	Get(ctx context.Context, serverID string) (*settings.Server, error)
}

// Platform carries out messaging and enforcement on Discord.
type Platform struct {
	api      restAPI
	settings settingsReader
	logger   *zap.Logger
}

func newPlatform(api restAPI, settings settingsReader, logger *zap.Logger) *Platform {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Platform{api: api, settings: settings, logger: logger}
}

func (p *Platform) Send(_ context.Context, channelID, text string) error {
	return p.api.SendMessage(channelID, text)
}

func (p *Platform) SendDirect(_ context.Context, userID, text string) error {
	channelID, err := p.api.OpenDM(userID)
	if err != nil {
		return fmt.Errorf("open dm: %w", err)
	}
	return p.api.SendMessage(channelID, text)
}

func (p *Platform) Delete(_ context.Context, channelID, messageID string) error {
	return p.api.DeleteMessage(channelID, messageID)
}

func (p *Platform) TextChannel(_ context.Context, serverID, channelID string) (bool, bool, error) {
	channel, err := p.api.Channel(channelID)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return false, false, nil
		}
		return false, false, err
	}
	if channel.GuildID != serverID {
		return false, false, nil
	}
	return true, channel.Type == discordgo.ChannelTypeGuildText, nil
}

func (p *Platform) Apply(ctx context.Context, action moderation.Action) error {
	reason := ""
	if action.Reason != nil {
		reason = *action.Reason
	}

	switch action.Type {
	case moderation.ActionWarn:
		text := "You have been warned."
		if reason != "" {
			text += " Reason: " + reason
		}
		return p.SendDirect(ctx, action.TargetUserID, text)
	case moderation.ActionMute:
		roleID, err := p.muteRole(ctx, action.ServerID)
		if err != nil {
			return err
		}
		return p.api.AddRole(action.ServerID, action.TargetUserID, roleID)
	case moderation.ActionUnmute:
		return p.unmute(ctx, action.ServerID, action.TargetUserID)
	case moderation.ActionKick:
		return p.api.Kick(action.ServerID, action.TargetUserID, reason)
	case moderation.ActionBan:
		return p.api.Ban(action.ServerID, action.TargetUserID, reason)
	case moderation.ActionUnban:
		return p.api.Unban(action.ServerID, action.TargetUserID)
	default:
		return fmt.Errorf("%w: %s", moderation.ErrUnknownAction, action.Type)
	}
}

// Revert lifts the timed action behind key. Types without a timed form are no-ops.
func (p *Platform) Revert(ctx context.Context, key moderation.TimeoutKey) error {
	switch key.Type {
	case moderation.ActionMute:
		return p.unmute(ctx, key.ServerID, key.UserID)
	case moderation.ActionBan:
		return p.api.Unban(key.ServerID, key.UserID)
	default:
		p.logger.Debug("nothing to revert", zap.Stringer("key", key))
		return nil
	}
}

func (p *Platform) unmute(ctx context.Context, serverID, userID string) error {
	roleID, err := p.muteRole(ctx, serverID)
	if err != nil {
		return err
	}
	return p.api.RemoveRole(serverID, userID, roleID)
}

func (p *Platform) muteRole(ctx context.Context, serverID string) (string, error) {
	server, err := p.settings.Get(ctx, serverID)
	if err != nil {
		return "", err
	}
	if server.Moderation.MuteRoleID == "" {
		return "", errNoMuteRole
	}
	return server.Moderation.MuteRoleID, nil
}

// AuditNotifier posts audit entries to the server's reporting channel.
func (p *Platform) AuditNotifier() func(context.Context, audit.Entry) {
	return func(ctx context.Context, entry audit.Entry) {
		if entry.ServerID == "" {
			return
		}
		server, err := p.settings.Get(ctx, entry.ServerID)
		if err != nil {
			p.logger.Warn("audit notify settings", zap.String("server_id", entry.ServerID), zap.Error(err))
			return
		}
		channelID := server.MessageChecker.ReportingChannelID
		if channelID == "" {
			return
		}
		if err := p.api.SendMessage(channelID, fmt.Sprintf("[%s] %s", entry.Level, entry.Details)); err != nil {
			p.logger.Warn("audit notify send", zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

var (
	_ command.Responder     = (*Platform)(nil)
	_ command.ChannelLookup = (*Platform)(nil)
	_ moderation.Enforcer   = (*Platform)(nil)
)
