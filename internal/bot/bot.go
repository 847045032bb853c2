package bot

import (
	"context"
	"sync"
	"time"

	"github.com/mickeymth28-del/mickey-bot/internal/audit"
	"github.com/mickeymth28-del/mickey-bot/internal/config"
	"github.com/mickeymth28-del/mickey-bot/internal/confstore"
	"github.com/mickeymth28-del/mickey-bot/internal/giveaway"
	"github.com/mickeymth28-del/mickey-bot/internal/scheduler"
	"github.com/mickeymth28-del/mickey-bot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	namespaceLogs     = "logs"
	namespaceBoosters = "boosters"
)

// Bot owns the Discord session and the two namespaces the command layer
// maintains itself (log routing, boosters). nsMu serializes their
// read-modify-write cycles; gateway handlers each run on their own goroutine.
type Bot struct {
	cfg     config.Config
	logger  *zap.Logger
	store   *confstore.Store
	audit   *audit.Logger
	service *giveaway.Service
	session *discordgo.Session
	nsMu    sync.Mutex
}

func New(cfg config.Config, logger *zap.Logger, store *confstore.Store, sched *scheduler.Scheduler, auditLogger *audit.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessageReactions |
		discordgo.IntentsMessageContent

	b := &Bot{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		audit:   auditLogger,
		session: session,
	}

	announcer := NewAnnouncer(session, cfg, logger)
	defaults := giveaway.Settings{
		Color:      cfg.Giveaway.DefaultColor,
		JoinSignal: cfg.Giveaway.DefaultJoinSignal,
	}
	b.service = giveaway.NewService(store, sched, announcer, auditLogger, logger, defaults, cfg.Giveaway.MaxWinners)

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, entry storage.Event) {
			b.mirrorAudit(ctx, entry)
		})
	}

	return b, nil
}

func (b *Bot) Service() *giveaway.Service {
	return b.service
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteractionCreate)
	b.session.AddHandler(b.onReactionAdd)
	b.session.AddHandler(b.onReactionRemove)
	b.session.AddHandler(b.onGuildMemberUpdate)

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.registerCommands(); err != nil {
		return err
	}

	recovered := b.service.Recover(context.Background())
	if recovered > 0 {
		b.logger.Info("giveaways rescheduled", zap.Int("count", recovered))
	}

	return nil
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onReactionAdd(session *discordgo.Session, event *discordgo.MessageReactionAdd) {
	if event.GuildID == "" || b.isSelf(session, event.UserID) {
		return
	}
	b.service.HandleSignalAdded(context.Background(), event.ChannelID, event.MessageID, event.Emoji.APIName(), event.UserID)
}

func (b *Bot) onReactionRemove(session *discordgo.Session, event *discordgo.MessageReactionRemove) {
	if event.GuildID == "" || b.isSelf(session, event.UserID) {
		return
	}
	b.service.HandleSignalRemoved(context.Background(), event.ChannelID, event.MessageID, event.Emoji.APIName(), event.UserID)
}

func (b *Bot) isSelf(session *discordgo.Session, userID string) bool {
	return session.State != nil && session.State.User != nil && session.State.User.ID == userID
}

// onGuildMemberUpdate keeps the boosters namespace current: a member with a
// premium timestamp is boosting, one without has stopped.
func (b *Bot) onGuildMemberUpdate(session *discordgo.Session, event *discordgo.GuildMemberUpdate) {
	_ = session
	if event.Member == nil || event.Member.User == nil || event.GuildID == "" {
		return
	}
	b.setBooster(event.GuildID, event.Member.User.ID, event.Member.PremiumSince != nil)
}

func (b *Bot) setBooster(guildID, userID string, boosting bool) {
	b.nsMu.Lock()
	defer b.nsMu.Unlock()

	boosters := make(map[string][]string)
	b.store.Load(namespaceBoosters, &boosters)

	current := boosters[guildID]
	idx := -1
	for i, id := range current {
		if id == userID {
			idx = i
			break
		}
	}
	switch {
	case boosting && idx < 0:
		boosters[guildID] = append(current, userID)
	case !boosting && idx >= 0:
		boosters[guildID] = append(current[:idx], current[idx+1:]...)
	default:
		return
	}
	b.store.Save(namespaceBoosters, boosters)
}

func (b *Bot) boosters(guildID string) []string {
	boosters := make(map[string][]string)
	b.store.Load(namespaceBoosters, &boosters)
	return boosters[guildID]
}

func (b *Bot) logChannel(guildID string) string {
	routes := make(map[string]string)
	b.store.Load(namespaceLogs, &routes)
	if channelID := routes[guildID]; channelID != "" {
		return channelID
	}
	return b.cfg.DefaultLogChannel
}

func (b *Bot) setLogChannel(guildID, channelID string) {
	b.nsMu.Lock()
	defer b.nsMu.Unlock()

	routes := make(map[string]string)
	b.store.Load(namespaceLogs, &routes)
	routes[guildID] = channelID
	b.store.Save(namespaceLogs, routes)
}

func (b *Bot) mirrorAudit(ctx context.Context, entry storage.Event) {
	_ = ctx
	channelID := b.logChannel(entry.GuildID)
	if channelID == "" {
		return
	}

	color := b.cfg.Embeds.Primary
	if entry.Level == audit.LevelWarn {
		color = b.cfg.Embeds.Warning
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Event", Value: entry.Event, Inline: true},
		{Name: "Level", Value: entry.Level, Inline: true},
	}
	if entry.UserID != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "User", Value: "<@" + entry.UserID + ">", Inline: true})
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: entry.Details, Inline: false})
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Giveaway log",
		Color:     color,
		Footer:    &discordgo.MessageEmbedFooter{Text: b.cfg.Embeds.Footer},
		Timestamp: entry.CreatedAt.Format(time.RFC3339),
		Fields:    fields,
	}
	if _, err := b.session.ChannelMessageSendEmbed(channelID, embed); err != nil {
		b.logger.Warn("audit mirror failed", zap.String("guild_id", entry.GuildID), zap.Error(err))
	}
}

func (b *Bot) respondEmbed(session *discordgo.Session, interaction *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Embeds: []*discordgo.MessageEmbed{embed},
			Flags:  flags,
		},
	})
}

func (b *Bot) commandEmbed(title, description string, color int, fields []*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Footer:      &discordgo.MessageEmbedFooter{Text: b.cfg.Embeds.Footer},
		Timestamp:   time.Now().Format(time.RFC3339),
		Fields:      fields,
	}
}
