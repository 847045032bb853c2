package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mickeymth28-del/mickey-bot/internal/giveaway"

	"github.com/bwmarrin/discordgo"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		data := interaction.ApplicationCommandData()
		if interaction.GuildID == "" {
			b.respondEmbed(session, interaction, b.commandEmbed("Error", "This command only works in a server.", b.cfg.Embeds.Error, nil), true)
			return
		}
		switch data.Name {
		case "giveaway":
			b.handleGiveawayCommand(ctx, session, interaction, data)
		case "logs":
			b.handleLogsCommand(ctx, session, interaction, data)
		case "boosters":
			b.handleBoostersCommand(session, interaction)
		case "setuproles":
			b.handleSetupRoles(session, interaction)
		}
	case discordgo.InteractionMessageComponent:
		b.handleRoleMenu(session, interaction)
	}
}

func (b *Bot) handleGiveawayCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	options := optionMap(sub.Options)

	switch sub.Name {
	case "start":
		prize := options["prize"].StringValue()
		winners := int(options["winners"].IntValue())
		duration, err := time.ParseDuration(options["duration"].StringValue())
		if err != nil {
			b.respondEmbed(session, interaction, b.commandEmbed("Giveaway", "Could not parse the duration. Use forms like 30m, 2h, 24h.", b.cfg.Embeds.Error, nil), true)
			return
		}
		rec, err := b.service.Create(ctx, interaction.GuildID, interaction.ChannelID, prize, winners, duration)
		if err != nil {
			b.respondError(session, interaction, "Giveaway", err)
			return
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Id", Value: rec.ID, Inline: false},
			{Name: "Prize", Value: rec.Prize, Inline: true},
			{Name: "Winners", Value: fmt.Sprintf("%d", rec.Winners), Inline: true},
			{Name: "Ends", Value: fmt.Sprintf("<t:%d:R>", rec.EndsAt/1000), Inline: true},
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Giveaway started", "The announcement has been posted.", b.cfg.Embeds.Primary, fields), true)
	case "end":
		id := options["id"].StringValue()
		if err := b.service.ForceEnd(ctx, id); err != nil {
			b.respondError(session, interaction, "Giveaway", err)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Giveaway ended", "Winners have been drawn and announced.", b.cfg.Embeds.Primary, nil), true)
	case "reroll":
		id := options["id"].StringValue()
		winners, err := b.service.Reroll(ctx, id)
		if err != nil {
			b.respondError(session, interaction, "Giveaway", err)
			return
		}
		mentions := make([]string, 0, len(winners))
		for _, userID := range winners {
			mentions = append(mentions, "<@"+userID+">")
		}
		fields := []*discordgo.MessageEmbedField{{Name: "New winners", Value: strings.Join(mentions, ", "), Inline: false}}
		b.respondEmbed(session, interaction, b.commandEmbed("Giveaway rerolled", "A fresh winner set has been announced.", b.cfg.Embeds.Primary, fields), true)
	case "delete":
		id := options["id"].StringValue()
		if err := b.service.Delete(ctx, id); err != nil {
			b.respondError(session, interaction, "Giveaway", err)
			return
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Giveaway deleted", "The record is gone and its timer cancelled.", b.cfg.Embeds.Primary, nil), true)
	case "list":
		records := b.service.List(interaction.GuildID)
		if len(records) == 0 {
			b.respondEmbed(session, interaction, b.commandEmbed("Giveaways", "No giveaways in this server.", b.cfg.Embeds.Primary, nil), true)
			return
		}
		fields := make([]*discordgo.MessageEmbedField, 0, len(records))
		for _, rec := range records {
			status := fmt.Sprintf("ends <t:%d:R>", rec.EndsAt/1000)
			if rec.Ended {
				status = "ended"
			}
			value := fmt.Sprintf("`%s`\n%s, entries: %d, winners: %d", rec.ID, status, len(rec.Participants), rec.Winners)
			fields = append(fields, &discordgo.MessageEmbedField{Name: rec.Prize, Value: value, Inline: false})
		}
		b.respondEmbed(session, interaction, b.commandEmbed("Giveaways", "", b.cfg.Embeds.Primary, fields), true)
	case "settings":
		settings := b.service.SettingsFor(interaction.GuildID)
		changed := false
		if option, ok := options["signal"]; ok {
			settings.JoinSignal = option.StringValue()
			changed = true
		}
		if option, ok := options["color"]; ok {
			settings.Color = int(option.IntValue())
			changed = true
		}
		title := "Giveaway settings"
		description := "Current defaults for new giveaways."
		if changed {
			b.service.UpdateSettings(interaction.GuildID, settings)
			description = "Defaults updated. Existing giveaways keep their snapshot."
		}
		fields := []*discordgo.MessageEmbedField{
			{Name: "Join signal", Value: settings.JoinSignal, Inline: true},
			{Name: "Color", Value: fmt.Sprintf("#%06X", settings.Color), Inline: true},
		}
		b.respondEmbed(session, interaction, b.commandEmbed(title, description, b.cfg.Embeds.Primary, fields), true)
	}
}

func (b *Bot) handleLogsCommand(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	_ = ctx
	if len(data.Options) == 0 {
		value := b.logChannel(interaction.GuildID)
		if value == "" {
			value = "not set"
		} else {
			value = "<#" + value + ">"
		}
		fields := []*discordgo.MessageEmbedField{{Name: "Channel", Value: value, Inline: true}}
		b.respondEmbed(session, interaction, b.commandEmbed("Log routing", "Current log channel.", b.cfg.Embeds.Primary, fields), true)
		return
	}
	channel := data.Options[0].ChannelValue(session)
	if channel == nil {
		b.respondEmbed(session, interaction, b.commandEmbed("Log routing", "Could not resolve that channel.", b.cfg.Embeds.Error, nil), true)
		return
	}
	b.setLogChannel(interaction.GuildID, channel.ID)
	fields := []*discordgo.MessageEmbedField{{Name: "Channel", Value: "<#" + channel.ID + ">", Inline: true}}
	b.respondEmbed(session, interaction, b.commandEmbed("Log routing", "Giveaway logs will be mirrored there.", b.cfg.Embeds.Primary, fields), true)
}

func (b *Bot) handleBoostersCommand(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	boosters := b.boosters(interaction.GuildID)
	if len(boosters) == 0 {
		b.respondEmbed(session, interaction, b.commandEmbed("Boosters", "No boosters on record.", b.cfg.Embeds.Primary, nil), true)
		return
	}
	lines := make([]string, 0, len(boosters))
	for _, userID := range boosters {
		lines = append(lines, "<@"+userID+">")
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Boosters", strings.Join(lines, "\n"), b.cfg.Embeds.Primary, nil), true)
}

// respondError maps the giveaway error taxonomy to operator-facing text.
func (b *Bot) respondError(session *discordgo.Session, interaction *discordgo.InteractionCreate, title string, err error) {
	var message string
	switch {
	case errors.Is(err, giveaway.ErrNotFound):
		message = "No giveaway with that id."
	case errors.Is(err, giveaway.ErrAlreadyEnded):
		message = "That giveaway has already ended."
	case errors.Is(err, giveaway.ErrNotEnded):
		message = "That giveaway is still running. End it first."
	case errors.Is(err, giveaway.ErrNoParticipants):
		message = "Nobody entered that giveaway, nothing to draw."
	case errors.Is(err, giveaway.ErrInvalidParameter):
		message = err.Error()
	default:
		message = "Something went wrong: " + err.Error()
	}
	b.respondEmbed(session, interaction, b.commandEmbed(title, message, b.cfg.Embeds.Error, nil), true)
}

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, option := range options {
		out[option.Name] = option
	}
	return out
}
