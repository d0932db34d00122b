package jobqueue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

// processGeneration implements the per-job procedure for a
// generation job: load, consume token, bind, submit, poll, record, notify.
func (r *Runner) processGeneration(ctx context.Context, jobID string) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		r.logger.Warn().Str("job_id", jobID).Err(err).Msg("Dropping queued job: row not found")
		return
	}

	token, hasToken := r.notifier.TakeEphemeralToken(jobID)

	lookup := func(adapterName string) []string {
		return r.metadata.Lookup(ctx, adapterName)
	}

	graph, err := r.binder.Bind(job, lookup)
	if err != nil {
		r.failGeneration(ctx, job, token, hasToken, err.Error())
		return
	}

	backendPromptID, err := r.renderer.Submit(ctx, graph)
	if err != nil {
		r.failGeneration(ctx, job, token, hasToken, fmt.Sprintf("submit failed: %v", err))
		return
	}

	if err := r.store.SetJobRunning(ctx, job.ID, backendPromptID); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to record job as running")
	}
	if hasToken {
		r.notifier.UpdateEphemeral(ctx, token, "Your request is running...")
	}

	historyEntry, timedOut := r.pollHistory(ctx, backendPromptID)
	if timedOut {
		r.failGeneration(ctx, job, "", false, fmt.Sprintf("timed out waiting for backend prompt %s", backendPromptID))
		return
	}

	images := flattenImages(historyEntry)
	filenames := make([]string, 0, len(images))
	for _, img := range images {
		filenames = append(filenames, img.Filename)
	}

	if err := r.store.SetJobCompleted(ctx, job.ID, filenames); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to record job completion")
	}

	post := interfaces.ResultPost{
		JobID:           job.ID,
		OriginScopeID:   job.OriginScopeID,
		OriginChannelID: job.OriginChannelID,
		RequesterID:     job.RequesterID,
		Filenames:       filenames,
		Model:           job.Model,
		Sampler:         job.Sampler,
		Scheduler:       job.Scheduler,
		Steps:           job.Steps,
		CFG:             job.CFG,
		Seed:            job.Seed,
		Size:            job.Size,
	}
	for _, img := range images {
		data, err := r.renderer.FetchImage(ctx, img.Filename, img.Subfolder, img.Type)
		if err != nil {
			r.logger.Warn().Str("job_id", job.ID).Str("filename", img.Filename).Err(err).Msg("Failed to fetch output image")
			continue
		}
		post.Images = append(post.Images, data)
	}

	if err := r.notifier.PostResult(ctx, post); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to post job result")
	}
}

func (r *Runner) failGeneration(ctx context.Context, job *models.Job, token string, hasToken bool, reason string) {
	if err := r.store.SetJobFailed(ctx, job.ID, reason); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to record job failure")
	}
	if err := r.notifier.PostFailure(ctx, job.OriginChannelID, job.RequesterID, reason); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to post job failure notice")
	}
	if hasToken {
		r.notifier.UpdateEphemeral(ctx, token, "Generation failed: "+reason)
	}
}

// processUpscale implements the same procedure, trimmed, for an upscale job.
// The source image is uploaded to the renderer's input folder by the
// interaction router before the job is persisted and enqueued; SourceImage
// already names that uploaded file.
func (r *Runner) processUpscale(ctx context.Context, jobID string) {
	job, err := r.store.GetUpscaleJob(ctx, jobID)
	if err != nil {
		r.logger.Warn().Str("job_id", jobID).Err(err).Msg("Dropping queued upscale job: row not found")
		return
	}

	graph, err := r.binder.BindUpscale(job, job.SourceImage)
	if err != nil {
		r.failUpscale(ctx, job, err.Error())
		return
	}

	backendPromptID, err := r.renderer.Submit(ctx, graph)
	if err != nil {
		r.failUpscale(ctx, job, fmt.Sprintf("submit failed: %v", err))
		return
	}

	if err := r.store.SetUpscaleJobRunning(ctx, job.ID, backendPromptID); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to record upscale job as running")
	}

	historyEntry, timedOut := r.pollHistory(ctx, backendPromptID)
	if timedOut {
		r.failUpscale(ctx, job, fmt.Sprintf("timed out waiting for backend prompt %s", backendPromptID))
		return
	}

	images := flattenImages(historyEntry)
	if len(images) == 0 {
		r.failUpscale(ctx, job, "renderer reported completion with no output image")
		return
	}
	out := images[0]

	if err := r.store.SetUpscaleJobCompleted(ctx, job.ID, out.Filename); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to record upscale job completion")
	}

	data, err := r.renderer.FetchImage(ctx, out.Filename, out.Subfolder, out.Type)
	if err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to fetch upscaled image")
		return
	}

	post := interfaces.UpscaleResultPost{
		JobID:           job.ID,
		OriginScopeID:   job.OriginScopeID,
		OriginChannelID: job.OriginChannelID,
		RequesterID:     job.RequesterID,
		Image:           data,
		Filename:        out.Filename,
	}
	if err := r.notifier.PostUpscaleResult(ctx, post); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to post upscale result")
	}
}

func (r *Runner) failUpscale(ctx context.Context, job *models.UpscaleJob, reason string) {
	if err := r.store.SetUpscaleJobFailed(ctx, job.ID, reason); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to record upscale job failure")
	}
	if err := r.notifier.PostFailure(ctx, job.OriginChannelID, job.RequesterID, reason); err != nil {
		r.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to post upscale failure notice")
	}
}

// pollHistory polls the renderer's history endpoint every PollInterval
// until the entry reports completion or the configured deadline elapses.
func (r *Runner) pollHistory(ctx context.Context, backendPromptID string) (result *interfaces.HistoryEntry, timedOut bool) {
	deadline := r.config.Backend.GetTimeout()
	elapsed := time.Duration(0)

	for {
		e, err := r.renderer.History(ctx, backendPromptID)
		if err == nil && e != nil && e.Completed {
			return e, false
		}

		if elapsed >= deadline {
			return nil, true
		}

		select {
		case <-ctx.Done():
			return nil, true
		case <-time.After(PollInterval):
			elapsed += PollInterval
		}
	}
}

// flattenImages collects every output image across all nodes in a history
// entry, in a stable node-id order.
func flattenImages(result *interfaces.HistoryEntry) []interfaces.HistoryImage {
	if result == nil {
		return nil
	}
	nodeIDs := make([]string, 0, len(result.Outputs))
	for id := range result.Outputs {
		nodeIDs = append(nodeIDs, id)
	}
	sort.Strings(nodeIDs)

	var images []interfaces.HistoryImage
	for _, id := range nodeIDs {
		images = append(images, result.Outputs[id]...)
	}
	return images
}
