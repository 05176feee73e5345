package bot

import (
	"context"
	"time"

	"modwarden/internal/command"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const eventTimeout = 15 * time.Second

type Bot struct {
	logger   *zap.Logger
	session  *discordgo.Session
	pipeline *command.Pipeline
	platform *Platform
}

func New(token string, settings settingsReader, logger *zap.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent
	// One message at a time, in arrival order.
	session.SyncEvents = true

	return &Bot{
		logger:   logger,
		session:  session,
		platform: newPlatform(sessionAPI{session: session}, settings, logger),
	}, nil
}

func (b *Bot) Platform() *Platform {
	return b.platform
}

// Start registers handlers and connects. Call it only after stored timeouts
// have been reconciled.
func (b *Bot) Start(pipeline *command.Pipeline) error {
	b.pipeline = pipeline
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	return b.session.Open()
}

func (b *Bot) Close(_ context.Context) {
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.pipeline.SetBotID(event.User.ID)
	b.logger.Info("discord ready", zap.String("user", event.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}

	perms, err := session.UserChannelPermissions(msg.Author.ID, msg.ChannelID)
	if err != nil {
		b.logger.Debug("permissions lookup failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()
	if err := b.pipeline.Handle(ctx, eventFromMessage(msg, perms)); err != nil {
		b.logger.Error("message handling failed", zap.String("guild_id", msg.GuildID), zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func eventFromMessage(msg *discordgo.MessageCreate, perms int64) command.Event {
	ev := command.Event{
		ServerID:    msg.GuildID,
		ChannelID:   msg.ChannelID,
		MessageID:   msg.ID,
		Content:     msg.Content,
		Permissions: perms,
	}
	if msg.Author != nil {
		ev.AuthorID = msg.Author.ID
		ev.AuthorIsBot = msg.Author.Bot
	}
	return ev
}
