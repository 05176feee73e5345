package command

import (
	"context"
	"fmt"
	"strings"

	"modwarden/internal/modules/checker"
	"modwarden/internal/settings"

	"go.uber.org/zap"
)

type SettingsStore interface {
	Get(ctx context.Context, serverID string) (*settings.Server, error)
	Save(ctx context.Context, server *settings.Server) error
}

type Deps struct {
	Parser    Parser
	Registry  *Registry
	Settings  SettingsStore
	Responder Responder
	Channels  ChannelLookup
	Moderator Moderator
	WarnRules WarnRules
	Actions   ActionLister
	Reporter  Reporter
	Logger    *zap.Logger
}

// Pipeline handles one inbound message: command dispatch, settings save and
// the banned-word check, in that order.
type Pipeline struct {
	deps Deps
}

func NewPipeline(deps Deps) *Pipeline {
	if deps.Registry == nil {
		deps.Registry = DefaultRegistry()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps}
}

func (p *Pipeline) SetBotID(botID string) {
	p.deps.Parser.BotID = botID
}

func (p *Pipeline) Handle(ctx context.Context, ev Event) error {
	if ev.ServerID == "" || ev.AuthorIsBot {
		return nil
	}

	server, err := p.deps.Settings.Get(ctx, ev.ServerID)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	result := DefaultResult
	if name, args, ok := p.deps.Parser.Parse(ev.Content); ok {
		result = p.dispatch(ctx, server, ev, name, args)
	}

	if result.ShouldSaveServers {
		if err := p.deps.Settings.Save(ctx, server); err != nil {
			p.deps.Logger.Error("save settings", zap.String("server_id", ev.ServerID), zap.Error(err))
			p.send(ctx, ev.ChannelID, "⚠️ The change could not be saved. Please try again later.")
		}
	}

	if result.ShouldCheckMessage {
		p.check(ctx, server, ev)
	}
	return nil
}

func (p *Pipeline) dispatch(ctx context.Context, server *settings.Server, ev Event, name string, args []string) Result {
	cmd, ok := p.deps.Registry.Lookup(name)
	if !ok {
		commandsHandled.WithLabelValues("unknown", "unknown").Inc()
		p.send(ctx, ev.ChannelID, fmt.Sprintf("Unknown command `%s`. Use `%shelp` to list commands.", name, p.prefix()))
		return DefaultResult
	}

	if !HasPermissions(ev.Permissions, cmd.RequiredPermissions()) {
		commandsHandled.WithLabelValues(cmd.Name(), "forbidden").Inc()
		p.send(ctx, ev.ChannelID, "You do not have permission to use this command.")
		return NoPermission
	}

	c := &Context{
		Event:     ev,
		Name:      name,
		Args:      args,
		Responder: p.deps.Responder,
		Channels:  p.deps.Channels,
		Moderator: p.deps.Moderator,
		WarnRules: p.deps.WarnRules,
		Actions:   p.deps.Actions,
		Reporter:  p.deps.Reporter,
		Registry:  p.deps.Registry,
		Logger:    p.deps.Logger.With(zap.String("command", cmd.Name()), zap.String("server_id", ev.ServerID)),
	}
	result := cmd.Execute(ctx, server, c)
	commandsHandled.WithLabelValues(cmd.Name(), "ok").Inc()
	p.deps.Logger.Debug("command handled",
		zap.String("command", cmd.Name()),
		zap.String("server_id", ev.ServerID),
		zap.String("user_id", ev.AuthorID),
		zap.Bool("save", result.ShouldSaveServers),
		zap.Bool("check", result.ShouldCheckMessage))
	return result
}

func (p *Pipeline) check(ctx context.Context, server *settings.Server, ev Event) {
	mc := server.MessageChecker
	verdict := checker.Check(ev.Content, mc.BannedWords)
	if !verdict.Guilty {
		return
	}
	messagesFlagged.Inc()
	p.deps.Logger.Info("blacklisted words used",
		zap.String("server_id", ev.ServerID),
		zap.String("user_id", ev.AuthorID),
		zap.Strings("words", verdict.MatchedWords))

	if mc.ReportingChannelID != "" {
		report := fmt.Sprintf("🚩 <@%s> used blacklisted word(s) in <#%s>: %s\n> %s",
			ev.AuthorID, ev.ChannelID, strings.Join(verdict.MatchedWords, ", "), ev.Content)
		p.send(ctx, mc.ReportingChannelID, report)
	}
	if mc.ResponseMessage != "" && p.deps.Responder != nil {
		if err := p.deps.Responder.SendDirect(ctx, ev.AuthorID, mc.ResponseMessage); err != nil {
			p.deps.Logger.Warn("response message failed", zap.String("user_id", ev.AuthorID), zap.Error(err))
		}
	}
	if mc.DeleteMessage && p.deps.Responder != nil {
		if err := p.deps.Responder.Delete(ctx, ev.ChannelID, ev.MessageID); err != nil {
			p.deps.Logger.Warn("delete message failed", zap.String("message_id", ev.MessageID), zap.Error(err))
		}
	}
	if mc.AutoWarn && p.deps.Moderator != nil {
		reason := "Used blacklisted word(s): " + strings.Join(verdict.MatchedWords, ", ")
		moderatorID := p.deps.Parser.BotID
		if _, err := p.deps.Moderator.WarnAndEscalate(ctx, ev.ServerID, moderatorID, ev.AuthorID, &reason); err != nil {
			p.deps.Logger.Error("auto warn failed", zap.String("server_id", ev.ServerID), zap.String("user_id", ev.AuthorID), zap.Error(err))
		}
	}
}

func (p *Pipeline) send(ctx context.Context, channelID, text string) {
	if p.deps.Responder == nil {
		return
	}
	if err := p.deps.Responder.Send(ctx, channelID, text); err != nil {
		p.deps.Logger.Warn("send failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (p *Pipeline) prefix() string {
	if p.deps.Parser.Prefix == "" {
		return DefaultPrefix
	}
	return p.deps.Parser.Prefix
}
