package router

import (
	"github.com/bobmcallan/palette/internal/models"
)

// EntryCommand opens a fresh draft in an allowed channel, or refuses
// ephemerally elsewhere.
func (r *Router) EntryCommand(requesterID, originScopeID, originChannelID string) Response {
	if !r.IsAllowedChannel(originChannelID) {
		return ephemeralError("generation commands are not allowed in this channel")
	}

	d := r.drafts.Init(requesterID, originScopeID, originChannelID, r.catalog, "", "")
	return Response{Kind: KindOpenModal, Draft: d}
}

// DropdownChange merges a single field change into the requester's draft.
func (r *Router) DropdownChange(requesterID, field, value string) Response {
	d, err := r.drafts.Merge(requesterID, func(d *models.Draft) {
		switch field {
		case "model":
			d.Model = value
		case "sampler":
			d.Sampler = value
		case "scheduler":
			d.Scheduler = value
		case "size":
			d.Size = models.Size(value).Normalize()
		}
	})
	if err != nil {
		return ephemeralError("your session has expired, please start again")
	}
	return Response{Kind: KindRefreshEmbed, Draft: d}
}

// EditPromptsButton reopens the prompts modal pre-filled from the current draft.
func (r *Router) EditPromptsButton(requesterID string) Response {
	d, err := r.drafts.Get(requesterID)
	if err != nil {
		return ephemeralError("your session has expired, please start again")
	}
	return Response{Kind: KindOpenModal, Draft: d}
}

// PromptsModalRequest is everything the prompts modal submits in one batch.
type PromptsModalRequest struct {
	RequesterID string
	Positive    string
	Negative    string
	StepsRaw    string
	CFGRaw      string
	SeedRaw     string
}

// PromptsModalSubmit validates and merges a full modal submission.
func (r *Router) PromptsModalSubmit(req PromptsModalRequest) Response {
	steps, fe := validateSteps(req.StepsRaw)
	if fe != nil {
		return ephemeralError(fe.Error())
	}
	cfg, fe := validateCFG(req.CFGRaw)
	if fe != nil {
		return ephemeralError(fe.Error())
	}
	seed, fe := validateSeed(req.SeedRaw)
	if fe != nil {
		return ephemeralError(fe.Error())
	}

	d, err := r.drafts.Merge(req.RequesterID, func(d *models.Draft) {
		d.PositivePrompt = req.Positive
		d.NegativePrompt = req.Negative
		d.Steps = steps
		d.CFG = cfg
		d.Seed = seed
	})
	if err != nil {
		return ephemeralError("your session has expired, please start again")
	}
	return Response{Kind: KindRefreshEmbed, Draft: d}
}
