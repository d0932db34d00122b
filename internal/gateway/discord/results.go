package discord

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/bobmcallan/palette/internal/interfaces"
)

// PostResult sends the public result message for a completed generation Job,
// requester mention, one attachment per filename, a structured summary, and
// action buttons carrying the job id.
func (g *Gateway) PostResult(ctx context.Context, post interfaces.ResultPost) error {
	files := make([]*discordgo.File, 0, len(post.Images))
	for i, data := range post.Images {
		name := "image.png"
		if i < len(post.Filenames) {
			name = post.Filenames[i]
		}
		files = append(files, &discordgo.File{Name: name, Reader: bytes.NewReader(data)})
	}

	embed := &discordgo.MessageEmbed{
		Title: "Generation complete",
		Color: 0x5865F2,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Model", Value: post.Model, Inline: true},
			{Name: "Sampler", Value: post.Sampler, Inline: true},
			{Name: "Scheduler", Value: post.Scheduler, Inline: true},
			{Name: "Steps", Value: fmt.Sprintf("%d", post.Steps), Inline: true},
			{Name: "CFG", Value: fmt.Sprintf("%.1f", post.CFG), Inline: true},
			{Name: "Seed", Value: fmt.Sprintf("%d", post.Seed), Inline: true},
			{Name: "Size", Value: string(post.Size), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: "Prompt hidden — use Share Prompt to reveal"},
	}

	_, err := g.session.ChannelMessageSendComplex(post.OriginChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s>", post.RequesterID),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files:   files,
		Components: []discordgo.MessageComponent{
			resultActionRow(post.JobID, post.UpscaleEnabled),
		},
	})
	return err
}

// PostUpscaleResult sends the trimmed result message for a completed
// UpscaleJob: a single attachment and a delete button only.
func (g *Gateway) PostUpscaleResult(ctx context.Context, post interfaces.UpscaleResultPost) error {
	embed := &discordgo.MessageEmbed{
		Title: "Upscale complete",
		Color: 0x5865F2,
	}

	_, err := g.session.ChannelMessageSendComplex(post.OriginChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s>", post.RequesterID),
		Embeds:  []*discordgo.MessageEmbed{embed},
		Files:   []*discordgo.File{{Name: post.Filename, Reader: bytes.NewReader(post.Image)}},
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.Button{Label: "Delete", Style: discordgo.DangerButton, CustomID: customID(actionDelete, post.JobID)},
			}},
		},
	})
	return err
}

// PostFailure sends a public failure notice for a job that errored or timed out.
func (g *Gateway) PostFailure(ctx context.Context, originChannelID, requesterID, message string) error {
	embed := &discordgo.MessageEmbed{
		Title:       "Generation failed",
		Description: message,
		Color:       0xED4245,
	}
	_, err := g.session.ChannelMessageSendComplex(originChannelID, &discordgo.MessageSend{
		Content: fmt.Sprintf("<@%s>", requesterID),
		Embeds:  []*discordgo.MessageEmbed{embed},
	})
	return err
}

func resultActionRow(jobID string, upscaleEnabled bool) discordgo.ActionsRow {
	buttons := []discordgo.MessageComponent{
		discordgo.Button{Label: "Share Prompt", Style: discordgo.SecondaryButton, CustomID: customID(actionSharePrompt, jobID)},
		discordgo.Button{Label: "Re-roll", Style: discordgo.PrimaryButton, CustomID: customID(actionReroll, jobID)},
		discordgo.Button{Label: "Edit", Style: discordgo.SecondaryButton, CustomID: customID(actionEdit, jobID)},
	}
	if upscaleEnabled {
		buttons = append(buttons, discordgo.Button{Label: "Upscale", Style: discordgo.SecondaryButton, CustomID: customID(actionUpscale, jobID)})
	}
	buttons = append(buttons, discordgo.Button{Label: "Delete", Style: discordgo.DangerButton, CustomID: customID(actionDelete, jobID)})
	return discordgo.ActionsRow{Components: buttons}
}
