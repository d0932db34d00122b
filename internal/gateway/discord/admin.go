package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/palette/internal/router"
)

const (
	bannedWordCommandName = "palette-bannedword"
	purgeCommandName      = "palette-purge"
)

var adminCommands = []*discordgo.ApplicationCommand{
	{
		Name:        bannedWordCommandName,
		Description: "Manage the content guard's banned word list (owner only)",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a banned word or phrase",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "phrase", Description: "Phrase to ban", Required: true},
					{Type: discordgo.ApplicationCommandOptionBoolean, Name: "partial", Description: "Match as substring instead of whole word"},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a banned word or phrase",
				Options: []*discordgo.ApplicationCommandOption{
					{Type: discordgo.ApplicationCommandOptionString, Name: "phrase", Description: "Phrase to remove", Required: true},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List all banned words",
			},
		},
	},
	{
		Name:        purgeCommandName,
		Description: "Run an immediate retention purge (owner only)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "max_age_hours", Description: "Override the configured max age, in hours"},
		},
	},
}

func (g *Gateway) registerAdminCommands() {
	for _, cmd := range adminCommands {
		if _, err := g.session.ApplicationCommandCreate(g.config.Discord.AppID, g.config.Discord.ScopeID, cmd); err != nil {
			g.logger.Warn().Err(err).Str("command", cmd.Name).Msg("Failed to register admin command")
		}
	}
}

func (g *Gateway) handleBannedWordCommand(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := interactionUser(i)
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	var resp router.Response
	switch sub.Name {
	case "add":
		phrase, partial := stringOpt(sub.Options, "phrase"), boolOpt(sub.Options, "partial")
		resp = g.router.AddBannedWordCommand(ctx, userID, phrase, partial)
	case "remove":
		phrase := stringOpt(sub.Options, "phrase")
		resp = g.router.RemoveBannedWordCommand(ctx, userID, phrase)
	case "list":
		resp = g.router.ListBannedWordsCommand(ctx, userID)
	}

	content := resp.Message
	if len(resp.BannedWords) > 0 {
		var names []string
		for _, w := range resp.BannedWords {
			names = append(names, w.Phrase)
		}
		content = fmt.Sprintf("%s\nCurrent list: %s", content, strings.Join(names, ", "))
	}

	_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
}

func (g *Gateway) handlePurgeCommand(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	userID := interactionUser(i)
	var maxAge time.Duration
	if hours := intOpt(data.Options, "max_age_hours"); hours > 0 {
		maxAge = time.Duration(hours) * time.Hour
	}

	resp := g.router.PurgeCommand(ctx, userID, maxAge)
	content := resp.Message
	if resp.Kind == router.KindPurgeResult {
		content = fmt.Sprintf("Purged %d job(s) and %d upscale job(s)", resp.JobsDeleted, resp.UpscaleDeleted)
	}

	_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: content, Flags: discordgo.MessageFlagsEphemeral},
	})
}

func stringOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}

func boolOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	for _, o := range opts {
		if o.Name == name {
			return o.BoolValue()
		}
	}
	return false
}

func intOpt(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) int {
	for _, o := range opts {
		if o.Name == name {
			return int(o.IntValue())
		}
	}
	return 0
}
