package router

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

// GenerateButton validates the current draft, runs the Content Guard,
// revalidates the base template, persists a Job, and enqueues it.
func (r *Router) GenerateButton(ctx context.Context, requesterID string) Response {
	d, err := r.drafts.Get(requesterID)
	if err != nil {
		return ephemeralError("your session has expired, please start again")
	}

	if fe := validatePositivePrompt(d.PositivePrompt); fe != nil {
		return ephemeralError(fe.Error())
	}
	for _, a := range d.ActiveAdapters() {
		if fe := validateAdapterStrength(a.Strength); fe != nil {
			return ephemeralError(fe.Error())
		}
	}

	matched, err := r.guard.Check(ctx, d.PositivePrompt+" "+d.NegativePrompt)
	if err != nil {
		return ephemeralError("content policy check failed, please try again")
	}
	if len(matched) > 0 {
		return Response{Kind: KindPolicyRefusal, MatchedWords: matched}
	}

	if err := r.binder.ValidateBaseTemplate(); err != nil {
		return ephemeralError(fmt.Sprintf("template is misconfigured: %v", err))
	}

	job, err := r.store.InsertJob(ctx, draftToJobParams(uuid.NewString(), d))
	if err != nil {
		return ephemeralError("failed to queue your request, please try again")
	}

	position, _ := r.store.CountQueuedBefore(ctx, job.ID)
	r.runner.EnqueueGeneration(job.ID)

	return Response{Kind: KindEnqueued, JobID: job.ID, QueuePosition: position,
		Message: fmt.Sprintf("Queued at position %d", position+1)}
}

func draftToJobParams(id string, d *models.Draft) interfaces.JobParams {
	adapters := make([]models.AdapterSlot, 0, len(d.Adapters))
	for _, a := range d.ActiveAdapters() {
		adapters = append(adapters, models.AdapterSlot{Name: a.Name, Strength: a.Strength})
	}
	return interfaces.JobParams{
		ID:              id,
		RequesterID:     d.RequesterID,
		OriginScopeID:   d.OriginScopeID,
		OriginChannelID: d.OriginChannelID,
		Model:           d.Model,
		Sampler:         d.Sampler,
		Scheduler:       d.Scheduler,
		Steps:           d.Steps,
		CFG:             d.CFG,
		Seed:            d.Seed,
		Size:            d.Size,
		PositivePrompt:  d.PositivePrompt,
		NegativePrompt:  d.NegativePrompt,
		Adapters:        adapters,
	}
}

// SharePromptButton reveals a completed job's prompts in place, truncated
// truncated to 1000 chars for positive and 500 for negative.
func (r *Router) SharePromptButton(ctx context.Context, requesterID, jobID string) Response {
	job, resp, ok := r.getJob(ctx, jobID)
	if !ok {
		return resp
	}
	if resp, ok := requireRequester(job, requesterID); !ok {
		return resp
	}

	return Response{
		Kind:    KindRevealPrompts,
		JobID:   jobID,
		Job:     job,
		Message: truncate(job.PositivePrompt, 1000) + "\n" + truncate(job.NegativePrompt, 500),
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

// RerollButton synthesizes a fresh Job from the original with a new seed.
func (r *Router) RerollButton(ctx context.Context, requesterID, jobID string) Response {
	job, resp, ok := r.getJob(ctx, jobID)
	if !ok {
		return resp
	}
	if resp, ok := requireRequester(job, requesterID); !ok {
		return resp
	}

	params := interfaces.JobParams{
		ID:              uuid.NewString(),
		RequesterID:     job.RequesterID,
		OriginScopeID:   job.OriginScopeID,
		OriginChannelID: job.OriginChannelID,
		Model:           job.Model,
		Sampler:         job.Sampler,
		Scheduler:       job.Scheduler,
		Steps:           job.Steps,
		CFG:             job.CFG,
		Seed:            randomSeed(),
		Size:            job.Size,
		PositivePrompt:  job.PositivePrompt,
		NegativePrompt:  job.NegativePrompt,
		Adapters:        job.Adapters,
	}

	newJob, err := r.store.InsertJob(ctx, params)
	if err != nil {
		return ephemeralError("failed to queue re-roll, please try again")
	}
	position, _ := r.store.CountQueuedBefore(ctx, newJob.ID)
	r.runner.EnqueueGeneration(newJob.ID)

	return Response{Kind: KindEnqueued, JobID: newJob.ID, QueuePosition: position,
		Message: fmt.Sprintf("Re-rolled, queued at position %d", position+1)}
}

// EditButton seeds a fresh draft from a completed job and reopens the form.
func (r *Router) EditButton(ctx context.Context, requesterID, jobID string) Response {
	job, resp, ok := r.getJob(ctx, jobID)
	if !ok {
		return resp
	}
	if resp, ok := requireRequester(job, requesterID); !ok {
		return resp
	}

	d := r.drafts.InitFromJob(requesterID, job.OriginScopeID, job.OriginChannelID, job)
	return Response{Kind: KindOpenModal, Draft: d}
}

// DeleteButton allows the requester or a moderator to delete a result message.
func (r *Router) DeleteButton(ctx context.Context, requesterID, jobID string, isModerator bool) Response {
	job, resp, ok := r.getJob(ctx, jobID)
	if !ok {
		return resp
	}
	if job.RequesterID != requesterID && !isModerator {
		return ephemeralError("only the requester or a moderator can delete this")
	}
	return Response{Kind: KindDeleted, JobID: jobID}
}

// UpscaleButton fetches a completed job's chosen output image, re-uploads it
// to the renderer's input folder, persists an UpscaleJob, and enqueues it.
func (r *Router) UpscaleButton(ctx context.Context, requesterID, jobID, filename string) Response {
	if !r.config.Upscale.Enabled {
		return ephemeralError("upscaling is not enabled")
	}

	job, resp, ok := r.getJob(ctx, jobID)
	if !ok {
		return resp
	}
	if resp, ok := requireRequester(job, requesterID); !ok {
		return resp
	}
	if job.BackendPromptID == nil {
		return ephemeralError("no backend record exists for that job")
	}

	historyEntry, err := r.renderer.History(ctx, *job.BackendPromptID)
	if err != nil || historyEntry == nil {
		return ephemeralError("could not rediscover the source image")
	}
	img, found := findImage(historyEntry, filename)
	if !found {
		return ephemeralError("that image is no longer available")
	}

	data, err := r.renderer.FetchImage(ctx, img.Filename, img.Subfolder, img.Type)
	if err != nil {
		return ephemeralError("failed to fetch the source image")
	}

	uploaded, err := r.renderer.UploadImage(ctx, data, img.Filename)
	if err != nil {
		return ephemeralError("failed to upload the source image to the renderer")
	}

	upJob, err := r.store.InsertUpscaleJob(ctx, interfaces.UpscaleJobParams{
		ID:              uuid.NewString(),
		SourceJobID:     job.ID,
		SourceImage:     uploaded.Name,
		RequesterID:     requesterID,
		OriginScopeID:   job.OriginScopeID,
		OriginChannelID: job.OriginChannelID,
		Model:           r.config.Upscale.Model,
		Workflow:        r.config.Upscale.Workflow,
	})
	if err != nil {
		return ephemeralError("failed to queue upscale, please try again")
	}

	r.runner.EnqueueUpscale(upJob.ID)
	return Response{Kind: KindEnqueued, JobID: upJob.ID, Message: "Upscale queued"}
}

func findImage(entry *interfaces.HistoryEntry, filename string) (interfaces.HistoryImage, bool) {
	for _, images := range entry.Outputs {
		for _, img := range images {
			if img.Filename == filename {
				return img, true
			}
		}
	}
	// No filename requested (or it didn't match) — fall back to the first image found.
	for _, images := range entry.Outputs {
		if len(images) > 0 {
			return images[0], true
		}
	}
	return interfaces.HistoryImage{}, false
}
