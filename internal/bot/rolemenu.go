package bot

import (
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type roleOption struct {
	Label string
	Value string
	Emoji string
	Role  string // guild role name when it differs from the menu label
}

type roleCatalog struct {
	CustomID string
	Title    string
	Prompt   string
	Image    string
	Options  []roleOption
}

// The three self-assignable role catalogs. Menu values map to role names; the
// actual roles must exist in the guild with exactly these names.
var roleCatalogs = []roleCatalog{
	{
		CustomID: "character_roles",
		Title:    "Character Catalog",
		Prompt:   "Pick the characters that fit you!",
		Image:    "https://imgur.com/LLi6XfL.png",
		Options: []roleOption{
			{Label: "Fineshyt", Value: "fineshyt", Emoji: "\U0001F60D"},
			{Label: "Sigma", Value: "sigma", Emoji: "\U0001F60E"},
			{Label: "Imup", Value: "imup", Emoji: "\U0001F97A"},
			{Label: "Narcissist", Value: "narcissist", Emoji: "\U0001F60F"},
			{Label: "Mpruyy", Value: "mpruyy", Emoji: "\U0001F61C"},
			{Label: "Chalant", Value: "chalant", Emoji: "\U0001F606"},
			{Label: "Otaku", Value: "otaku", Emoji: "\U0001F9D0"},
			{Label: "Yapper", Value: "yapper", Emoji: "\U0001F5E3️"},
			{Label: "Kalcer", Value: "kalcer", Emoji: "\U0001F929"},
			{Label: "Suki", Value: "suki", Emoji: "\U0001F913"},
			{Label: "Performative", Value: "performative", Emoji: "\U0001F4BF"},
			{Label: "Delulu", Value: "delulu", Emoji: "\U0001F974"},
			{Label: "Nonchalant", Value: "nonchalant", Emoji: "\U0001F612"},
		},
	},
	{
		CustomID: "gaming_roles",
		Title:    "Games Catalog",
		Prompt:   "Pick the games you play!",
		Image:    "https://i.imgur.com/LwqQEPT.png",
		Options: []roleOption{
			{Label: "Valorant", Value: "valorant", Emoji: "\U0001F52B"},
			{Label: "Mobile Legends", Value: "mobile_legends", Emoji: "⚔️"},
			{Label: "PUBG Mobile", Value: "pubg_mobile", Emoji: "\U0001F3AF"},
			{Label: "Genshin Impact", Value: "genshin", Emoji: "⚡"},
			{Label: "Minecraft", Value: "minecraft", Emoji: "⛏️"},
			{Label: "Roblox", Value: "roblox", Emoji: "\U0001F3AE"},
			{Label: "Free Fire", Value: "free_fire", Emoji: "\U0001F525"},
			{Label: "Call of Duty Mobile", Value: "codm", Emoji: "\U0001F4A3", Role: "COD Mobile"},
			{Label: "Apex Legends", Value: "apex", Emoji: "\U0001F3AA"},
			{Label: "Fortnite", Value: "fortnite", Emoji: "\U0001F3D7️"},
		},
	},
	{
		CustomID: "hobbies_roles",
		Title:    "Hobbies Catalog",
		Prompt:   "Pick your hobbies!",
		Image:    "https://i.imgur.com/UFP0ybB.png",
		Options: []roleOption{
			{Label: "Fashion", Value: "fashion", Emoji: "\U0001F454"},
			{Label: "Entertainment", Value: "entertainment", Emoji: "\U0001F3AC"},
			{Label: "Music", Value: "music", Emoji: "\U0001F3B5"},
			{Label: "Sports", Value: "sports", Emoji: "⚽"},
			{Label: "Art & Design", Value: "art", Emoji: "\U0001F3A8"},
		},
	},
}

func catalogByID(customID string) (roleCatalog, bool) {
	for _, catalog := range roleCatalogs {
		if catalog.CustomID == customID {
			return catalog, true
		}
	}
	return roleCatalog{}, false
}

// diffSelection reconciles a menu submission against the member's current
// roles within one catalog: chosen values the member lacks are added, category
// values left unchosen that the member holds are removed. Roles outside the
// catalog are never touched.
func diffSelection(category []string, selected []string, has func(string) bool) (add, remove []string) {
	chosen := make(map[string]struct{}, len(selected))
	for _, value := range selected {
		chosen[value] = struct{}{}
	}
	for _, value := range category {
		_, ok := chosen[value]
		switch {
		case ok && !has(value):
			add = append(add, value)
		case !ok && has(value):
			remove = append(remove, value)
		}
	}
	return add, remove
}

func (b *Bot) handleSetupRoles(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	for _, catalog := range roleCatalogs {
		lines := make([]string, 0, len(catalog.Options))
		for _, option := range catalog.Options {
			lines = append(lines, option.Emoji+" | **"+option.Label+"**")
		}
		embed := &discordgo.MessageEmbed{
			Title:       catalog.Title,
			Description: catalog.Prompt + "\n\n" + strings.Join(lines, "\n"),
			Color:       b.cfg.Embeds.Primary,
			Image:       &discordgo.MessageEmbedImage{URL: catalog.Image},
			Footer:      &discordgo.MessageEmbedFooter{Text: b.cfg.Embeds.Footer},
			Timestamp:   time.Now().Format(time.RFC3339),
		}

		menuOptions := make([]discordgo.SelectMenuOption, 0, len(catalog.Options))
		for _, option := range catalog.Options {
			menuOptions = append(menuOptions, discordgo.SelectMenuOption{
				Label: option.Label,
				Value: option.Value,
				Emoji: discordgo.ComponentEmoji{Name: option.Emoji},
			})
		}
		zero := 0
		menu := discordgo.SelectMenu{
			CustomID:    catalog.CustomID,
			Placeholder: "Click this menu to pick your roles!",
			MinValues:   &zero,
			MaxValues:   len(catalog.Options),
			Options:     menuOptions,
		}

		_, err := session.ChannelMessageSendComplex(interaction.ChannelID, &discordgo.MessageSend{
			Embeds:     []*discordgo.MessageEmbed{embed},
			Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{menu}}},
		})
		if err != nil {
			b.logger.Warn("role menu post failed", zap.String("catalog", catalog.CustomID), zap.Error(err))
			b.respondEmbed(session, interaction, b.commandEmbed("Role menus", "Could not post the menus. Check the bot's permissions in this channel.", b.cfg.Embeds.Error, nil), true)
			return
		}
	}
	b.respondEmbed(session, interaction, b.commandEmbed("Role menus", "Role selection menus have been set up!", b.cfg.Embeds.Primary, nil), true)
}

func (b *Bot) handleRoleMenu(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	catalog, ok := catalogByID(data.CustomID)
	if !ok || interaction.Member == nil || interaction.GuildID == "" {
		return
	}

	roleIDs := b.guildRoleIDs(session, interaction.GuildID, catalog)
	memberRoles := make(map[string]struct{}, len(interaction.Member.Roles))
	for _, roleID := range interaction.Member.Roles {
		memberRoles[roleID] = struct{}{}
	}
	has := func(value string) bool {
		roleID, ok := roleIDs[value]
		if !ok {
			return false
		}
		_, held := memberRoles[roleID]
		return held
	}

	category := make([]string, 0, len(catalog.Options))
	for _, option := range catalog.Options {
		category = append(category, option.Value)
	}
	add, remove := diffSelection(category, data.Values, has)

	userID := interaction.Member.User.ID
	var added, removed []string
	for _, value := range add {
		roleID, ok := roleIDs[value]
		if !ok {
			continue
		}
		if err := session.GuildMemberRoleAdd(interaction.GuildID, userID, roleID); err != nil {
			b.roleMenuError(session, interaction, err)
			return
		}
		added = append(added, "✅ <@&"+roleID+">")
	}
	for _, value := range remove {
		roleID := roleIDs[value]
		if err := session.GuildMemberRoleRemove(interaction.GuildID, userID, roleID); err != nil {
			b.roleMenuError(session, interaction, err)
			return
		}
		removed = append(removed, "❌ <@&"+roleID+">")
	}

	embed := &discordgo.MessageEmbed{Color: b.cfg.Embeds.Primary}
	if len(added) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "\U0001F4E5 Added Roles", Value: strings.Join(added, "\n")})
	}
	if len(removed) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "\U0001F4E4 Removed Roles", Value: strings.Join(removed, "\n")})
	}
	if len(added) == 0 && len(removed) == 0 {
		embed.Color = b.cfg.Embeds.Warning
		embed.Description = "✅ No changes made!"
	}
	b.respondEmbed(session, interaction, embed, true)
}

// catalogRoleNames maps each menu value to the guild role name it targets.
func catalogRoleNames(catalog roleCatalog) map[string]string {
	out := make(map[string]string, len(catalog.Options))
	for _, option := range catalog.Options {
		name := option.Role
		if name == "" {
			name = option.Label
		}
		out[option.Value] = name
	}
	return out
}

// guildRoleIDs resolves catalog values to role ids by role name.
func (b *Bot) guildRoleIDs(session *discordgo.Session, guildID string, catalog roleCatalog) map[string]string {
	var roles []*discordgo.Role
	if guild, err := session.State.Guild(guildID); err == nil && guild != nil {
		roles = guild.Roles
	}
	if len(roles) == 0 {
		roles, _ = session.GuildRoles(guildID)
	}

	byName := make(map[string]string, len(roles))
	for _, role := range roles {
		if role != nil {
			byName[role.Name] = role.ID
		}
	}
	names := catalogRoleNames(catalog)
	out := make(map[string]string, len(catalog.Options))
	for value, name := range names {
		if roleID, ok := byName[name]; ok {
			out[value] = roleID
		}
	}
	return out
}

func (b *Bot) roleMenuError(session *discordgo.Session, interaction *discordgo.InteractionCreate, err error) {
	b.logger.Warn("role update failed", zap.Error(err))
	embed := &discordgo.MessageEmbed{
		Title:       "❌ Error",
		Description: "Could not update your roles. Make sure the bot has enough permissions!",
		Color:       b.cfg.Embeds.Error,
		Timestamp:   time.Now().Format(time.RFC3339),
	}
	b.respondEmbed(session, interaction, embed, true)
}
