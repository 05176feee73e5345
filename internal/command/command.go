// Package command turns chat messages into settings changes and moderation
// actions, then runs the banned-word check on whatever is left to check.
package command

import (
	"context"
	"sort"
	"strings"
	"time"

	"modwarden/internal/analytics"
	"modwarden/internal/moderation"
	"modwarden/internal/settings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Result tells the pipeline what to do once a command has run.
type Result struct {
	ShouldSaveServers  bool
	ShouldCheckMessage bool
}

var (
	// DefaultResult applies to messages that are not commands.
	DefaultResult   = Result{ShouldSaveServers: false, ShouldCheckMessage: true}
	NoPermission    = Result{ShouldSaveServers: false, ShouldCheckMessage: false}
	settingsSaved   = Result{ShouldSaveServers: true, ShouldCheckMessage: false}
	settingsChecked = Result{ShouldSaveServers: true, ShouldCheckMessage: true}
	invalidInput    = Result{ShouldSaveServers: false, ShouldCheckMessage: true}
	handled         = Result{ShouldSaveServers: false, ShouldCheckMessage: false}
)

type Event struct {
	ServerID    string
	ChannelID   string
	MessageID   string
	AuthorID    string
	AuthorIsBot bool
	Content     string
	Permissions int64
}

type Responder interface {
	Send(ctx context.Context, channelID, text string) error
	SendDirect(ctx context.Context, userID, text string) error
	Delete(ctx context.Context, channelID, messageID string) error
}

// ChannelLookup reports whether a channel exists in a server and accepts text.
type ChannelLookup interface {
	TextChannel(ctx context.Context, serverID, channelID string) (exists bool, text bool, err error)
}

type Moderator interface {
	Moderate(ctx context.Context, req moderation.Request) (moderation.Outcome, error)
	WarnAndEscalate(ctx context.Context, serverID, moderatorID, userID string, reason *string) (moderation.EscalationOutcome, error)
}

type WarnRules interface {
	SetWarnAction(ctx context.Context, rule moderation.WarnRule) error
	RemoveWarnAction(ctx context.Context, serverID string, numWarns int) (bool, error)
	ListWarnActions(ctx context.Context, serverID string) ([]moderation.WarnRule, error)
}

type ActionLister interface {
	ListActions(ctx context.Context, serverID, userID string, since time.Time) ([]moderation.Action, error)
}

type Reporter interface {
	Report(ctx context.Context, serverID, userID string, since time.Time) (analytics.Report, error)
}

// Context is what a command sees while it runs.
type Context struct {
	Event     Event
	Name      string
	Args      []string
	Responder Responder
	Channels  ChannelLookup
	Moderator Moderator
	WarnRules WarnRules
	Actions   ActionLister
	Reporter  Reporter
	Registry  *Registry
	Logger    *zap.Logger
}

func (c *Context) Reply(ctx context.Context, text string) {
	if c.Responder == nil || text == "" {
		return
	}
	if err := c.Responder.Send(ctx, c.Event.ChannelID, text); err != nil {
		c.Logger.Warn("reply failed", zap.String("channel_id", c.Event.ChannelID), zap.Error(err))
	}
}

type Command interface {
	Name() string
	Usage() string
	Description() string
	RequiredPermissions() int64
	Execute(ctx context.Context, server *settings.Server, c *Context) Result
}

type commandFunc struct {
	name        string
	usage       string
	description string
	permissions int64
	run         func(ctx context.Context, server *settings.Server, c *Context) Result
}

func (f commandFunc) Name() string               { return f.name }
func (f commandFunc) Usage() string              { return f.usage }
func (f commandFunc) Description() string        { return f.description }
func (f commandFunc) RequiredPermissions() int64 { return f.permissions }

func (f commandFunc) Execute(ctx context.Context, server *settings.Server, c *Context) Result {
	return f.run(ctx, server, c)
}

type Registry struct {
	commands map[string]Command
}

func NewRegistry(commands ...Command) *Registry {
	r := &Registry{commands: make(map[string]Command, len(commands))}
	for _, cmd := range commands {
		r.Register(cmd)
	}
	return r
}

func (r *Registry) Register(cmd Command) {
	r.commands[strings.ToLower(cmd.Name())] = cmd
}

func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[strings.ToLower(name)]
	return cmd, ok
}

// Commands returns the registered commands sorted by name.
func (r *Registry) Commands() []Command {
	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// HasPermissions treats Administrator as holding every permission.
func HasPermissions(granted, required int64) bool {
	if granted&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return granted&required == required
}

// DefaultRegistry holds every built-in command.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, cmd := range blacklistCommands() {
		r.Register(cmd)
	}
	for _, cmd := range starboardCommands() {
		r.Register(cmd)
	}
	for _, cmd := range moderationCommands() {
		r.Register(cmd)
	}
	r.Register(helpCommand())
	return r
}
