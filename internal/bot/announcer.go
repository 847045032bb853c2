package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mickeymth28-del/mickey-bot/internal/config"
	"github.com/mickeymth28-del/mickey-bot/internal/giveaway"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Announcer renders the public giveaway surface over the Discord session. It
// satisfies giveaway.Announcer; the service treats everything but
// PostAnnouncement as best-effort.
type Announcer struct {
	session *discordgo.Session
	cfg     config.Config
	logger  *zap.Logger
}

func NewAnnouncer(session *discordgo.Session, cfg config.Config, logger *zap.Logger) *Announcer {
	return &Announcer{session: session, cfg: cfg, logger: logger}
}

func (a *Announcer) PostAnnouncement(ctx context.Context, rec giveaway.Record) (string, error) {
	_ = ctx
	msg, err := a.session.ChannelMessageSendEmbed(rec.ChannelID, a.buildGiveawayEmbed(rec))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (a *Announcer) RegisterJoinSignal(ctx context.Context, channelID, messageID, signal string) error {
	_ = ctx
	return a.session.MessageReactionAdd(channelID, messageID, signal)
}

func (a *Announcer) UpdateAnnouncement(ctx context.Context, rec giveaway.Record) error {
	_ = ctx
	_, err := a.session.ChannelMessageEditEmbed(rec.ChannelID, rec.MessageID, a.buildGiveawayEmbed(rec))
	return err
}

func (a *Announcer) AnnounceWinners(ctx context.Context, rec giveaway.Record, winners []string) error {
	_ = ctx
	var content string
	if len(winners) == 0 {
		content = fmt.Sprintf("No valid entries for **%s**, nobody wins this one.", rec.Prize)
	} else {
		mentions := make([]string, 0, len(winners))
		for _, userID := range winners {
			mentions = append(mentions, "<@"+userID+">")
		}
		content = fmt.Sprintf("\U0001F389 Congratulations %s! You won **%s**!", strings.Join(mentions, ", "), rec.Prize)
	}
	_, err := a.session.ChannelMessageSend(rec.ChannelID, content)
	return err
}

func (a *Announcer) NotifyWinner(ctx context.Context, userID string, rec giveaway.Record) error {
	_ = ctx
	channel, err := a.session.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	embed := &discordgo.MessageEmbed{
		Title:       "\U0001F389 You won a giveaway!",
		Description: fmt.Sprintf("You won **%s** in <#%s>.", rec.Prize, rec.ChannelID),
		Color:       rec.Color,
		Footer:      a.footer(rec.ID),
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	_, err = a.session.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

func (a *Announcer) buildGiveawayEmbed(rec giveaway.Record) *discordgo.MessageEmbed {
	var description string
	if rec.Ended {
		description = fmt.Sprintf("**Giveaway ended.**\nEntries: **%d**\nWinners: **%d**", len(rec.Participants), rec.Winners)
	} else {
		description = fmt.Sprintf("React with %s to enter!\nEntries: **%d**\nWinners: **%d**\nEnds: <t:%d:R>",
			rec.JoinSignal, len(rec.Participants), rec.Winners, rec.EndsAt/1000)
	}
	return &discordgo.MessageEmbed{
		Title:       "\U0001F389 " + rec.Prize,
		Description: description,
		Color:       rec.Color,
		Footer:      a.footer(rec.ID),
		Timestamp:   time.UnixMilli(rec.CreatedAt).Format(time.RFC3339),
	}
}

func (a *Announcer) footer(id string) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: a.cfg.Embeds.Footer + " | " + id}
}
