package discord

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/palette/internal/router"
)

func (g *Gateway) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx := context.Background()

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		g.handleCommand(ctx, i)
	case discordgo.InteractionMessageComponent:
		g.handleComponent(ctx, i)
	case discordgo.InteractionModalSubmit:
		g.handleModalSubmit(ctx, i)
	}
}

func interactionUser(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func (g *Gateway) isModerator(i *discordgo.InteractionCreate) bool {
	if i.Member == nil {
		return false
	}
	return i.Member.Permissions&discordgo.PermissionManageMessages != 0
}

func (g *Gateway) handleCommand(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	userID := interactionUser(i)

	switch data.Name {
	case entryCommandName:
		resp := g.router.EntryCommand(userID, i.GuildID, i.ChannelID)
		g.applyResponse(i, resp)
	case bannedWordCommandName:
		g.handleBannedWordCommand(ctx, i, data)
	case purgeCommandName:
		g.handlePurgeCommand(ctx, i, data)
	}
}

func (g *Gateway) handleComponent(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.MessageComponentData()
	act, id := parseCustomID(data.CustomID)
	userID := interactionUser(i)

	var resp router.Response
	switch act {
	case actionDropdownModel:
		resp = g.router.DropdownChange(userID, "model", firstValue(data.Values))
	case actionDropdownSampler:
		resp = g.router.DropdownChange(userID, "sampler", firstValue(data.Values))
	case actionDropdownScheduler:
		resp = g.router.DropdownChange(userID, "scheduler", firstValue(data.Values))
	case actionDropdownSize:
		resp = g.router.DropdownChange(userID, "size", firstValue(data.Values))
	case actionEditPrompts:
		resp = g.router.EditPromptsButton(userID)
	case actionGenerate:
		resp = g.router.GenerateButton(ctx, userID)
	case actionSharePrompt:
		resp = g.router.SharePromptButton(ctx, userID, id)
	case actionReroll:
		resp = g.router.RerollButton(ctx, userID, id)
	case actionEdit:
		resp = g.router.EditButton(ctx, userID, id)
	case actionDelete:
		resp = g.router.DeleteButton(ctx, userID, id, g.isModerator(i))
	case actionUpscale:
		resp = g.router.UpscaleButton(ctx, userID, id, "")
	default:
		return
	}
	g.applyResponse(i, resp)

	if resp.Kind == router.KindEnqueued && resp.JobID != "" {
		g.registerEphemeralToken(resp.JobID, i.Interaction.Token)
	}
	if resp.Kind == router.KindDeleted {
		_ = g.session.ChannelMessageDelete(i.ChannelID, i.Message.ID)
	}
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func (g *Gateway) handleModalSubmit(ctx context.Context, i *discordgo.InteractionCreate) {
	data := i.ModalSubmitData()
	act, _ := parseCustomID(data.CustomID)
	if act != modalPrompts {
		return
	}

	userID := interactionUser(i)
	req := router.PromptsModalRequest{
		RequesterID: userID,
		Positive:    modalValue(data, "positive"),
		Negative:    modalValue(data, "negative"),
		StepsRaw:    modalValue(data, "steps"),
		CFGRaw:      modalValue(data, "cfg"),
		SeedRaw:     modalValue(data, "seed"),
	}
	resp := g.router.PromptsModalSubmit(req)
	g.applyResponse(i, resp)
}

func modalValue(data discordgo.ModalSubmitInteractionData, customID string) string {
	for _, row := range data.Components {
		actionsRow, ok := row.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, comp := range actionsRow.Components {
			if input, ok := comp.(*discordgo.TextInput); ok && input.CustomID == customID {
				return input.Value
			}
		}
	}
	return ""
}

// applyResponse renders a Router Response back through the originating
// interaction: modals respond directly, everything else becomes either an
// in-place component update (dropdown/modal-driven draft refreshes) or a
// fresh ephemeral reply.
func (g *Gateway) applyResponse(i *discordgo.InteractionCreate, resp router.Response) {
	switch resp.Kind {
	case router.KindOpenModal:
		_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: promptsModal(resp.Draft),
		})
	case router.KindRefreshEmbed:
		err := g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{g.draftEmbed(resp.Draft)},
				Components: g.draftComponents(resp.Draft),
			},
		})
		if err != nil {
			g.logger.Warn().Err(err).Msg("Failed to refresh draft embed")
		}
	case router.KindPolicyRefusal:
		_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Embeds: []*discordgo.MessageEmbed{policyRefusalEmbed(resp.MatchedWords)},
				Flags:  discordgo.MessageFlagsEphemeral,
			},
		})
	case router.KindRevealPrompts:
		var original *discordgo.MessageEmbed
		if i.Message != nil && len(i.Message.Embeds) > 0 {
			original = i.Message.Embeds[0]
		}
		var components []discordgo.MessageComponent
		if i.Message != nil {
			components = i.Message.Components
		}
		err := g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{
				Embeds:     []*discordgo.MessageEmbed{revealedResultEmbed(original, resp.Message)},
				Components: components,
			},
		})
		if err != nil {
			g.logger.Warn().Err(err).Msg("Failed to reveal prompts in place")
		}
	case router.KindEnqueued, router.KindEphemeralInfo, router.KindBannedWordResult, router.KindPurgeResult:
		_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: responseText(resp),
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	case router.KindDeleted:
		_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		})
	case router.KindEphemeralError:
		_ = g.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: resp.Message,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	}
}

func responseText(resp router.Response) string {
	if resp.Message != "" {
		return resp.Message
	}
	return "Done"
}
