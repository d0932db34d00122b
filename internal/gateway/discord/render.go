package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/palette/internal/models"
)

// draftEmbed renders the current draft's non-prompt fields. Positive and
// negative prompts are deliberately omitted, keeping them hidden all the
// way through the draft form itself.
func (g *Gateway) draftEmbed(d *models.Draft) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "New generation request",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Model", Value: valueOr(d.Model, "(none)"), Inline: true},
			{Name: "Sampler", Value: valueOr(d.Sampler, "(none)"), Inline: true},
			{Name: "Scheduler", Value: valueOr(d.Scheduler, "(none)"), Inline: true},
			{Name: "Size", Value: string(d.Size), Inline: true},
			{Name: "Steps", Value: fmt.Sprintf("%d", d.Steps), Inline: true},
			{Name: "CFG", Value: fmt.Sprintf("%.1f", d.CFG), Inline: true},
			{Name: "Seed", Value: fmt.Sprintf("%d", d.Seed), Inline: true},
		},
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

// draftComponents renders the model/sampler/scheduler/size dropdowns plus
// the edit-prompts and generate action row.
func (g *Gateway) draftComponents(d *models.Draft) []discordgo.MessageComponent {
	rows := []discordgo.MessageComponent{
		selectRow(actionDropdownModel, "Model", g.catalog.Checkpoints, d.Model),
		selectRow(actionDropdownSampler, "Sampler", g.catalog.Samplers, d.Sampler),
		selectRow(actionDropdownScheduler, "Scheduler", g.catalog.Schedulers, d.Scheduler),
		selectRow(actionDropdownSize, "Size", []string{string(models.SizePortrait), string(models.SizeSquare), string(models.SizeLandscape)}, string(d.Size)),
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Edit Prompts", Style: discordgo.SecondaryButton, CustomID: customID(actionEditPrompts, "")},
			discordgo.Button{Label: "Generate", Style: discordgo.SuccessButton, CustomID: customID(actionGenerate, "")},
		}},
	}
	return rows
}

func selectRow(a action, placeholder string, choices []string, current string) discordgo.ActionsRow {
	choices = models.Truncate(choices, models.MaxEnumChoices)
	options := make([]discordgo.SelectMenuOption, 0, len(choices))
	for _, c := range choices {
		options = append(options, discordgo.SelectMenuOption{
			Label:   c,
			Value:   c,
			Default: c == current,
		})
	}
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.SelectMenu{
			CustomID:    customID(a, ""),
			Placeholder: placeholder,
			Options:     options,
		},
	}}
}

// promptsModal builds the prompts-and-numerics modal pre-filled from d.
func promptsModal(d *models.Draft) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: customID(modalPrompts, ""),
		Title:    "Prompts",
		Components: []discordgo.MessageComponent{
			textInputRow("positive", "Positive prompt", d.PositivePrompt, true, discordgo.TextInputParagraph),
			textInputRow("negative", "Negative prompt", d.NegativePrompt, false, discordgo.TextInputParagraph),
			textInputRow("steps", "Steps (1-150)", fmt.Sprintf("%d", d.Steps), true, discordgo.TextInputShort),
			textInputRow("cfg", "CFG (1-30)", fmt.Sprintf("%.1f", d.CFG), true, discordgo.TextInputShort),
			textInputRow("seed", "Seed (blank or \"random\" for random)", fmt.Sprintf("%d", d.Seed), false, discordgo.TextInputShort),
		},
	}
}

func textInputRow(customID, label, value string, required bool, style discordgo.TextInputStyle) discordgo.ActionsRow {
	return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
		discordgo.TextInput{
			CustomID: customID,
			Label:    label,
			Style:    style,
			Value:    value,
			Required: required,
		},
	}}
}

// revealedResultEmbed clones a completed result embed and rewrites it in
// place to carry the prompts, for the share-prompt flow. The edit is
// permanent: once revealed, the prompts stay visible in the public message.
func revealedResultEmbed(original *discordgo.MessageEmbed, promptsText string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  "Generation complete",
		Color:  0x5865F2,
		Fields: []*discordgo.MessageEmbedField{{Name: "Prompts", Value: promptsText}},
	}
	if original != nil {
		embed.Title = original.Title
		embed.Fields = append(append([]*discordgo.MessageEmbedField{}, original.Fields...), embed.Fields...)
	}
	return embed
}

func policyRefusalEmbed(matched []models.BannedWord) *discordgo.MessageEmbed {
	desc := "Your request contains a banned term:"
	for _, w := range matched {
		desc += fmt.Sprintf("\n||%s||", w.Phrase)
	}
	return &discordgo.MessageEmbed{
		Title:       "Request blocked",
		Description: desc,
		Color:       0xED4245,
	}
}
