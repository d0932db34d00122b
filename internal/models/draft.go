package models

import "time"

// DraftAdapterSlot is an adapter chosen during drafting. Unlike the
// persisted AdapterSlot, it carries TriggerWords for immediate display —
// the Draft never touches the Store, so there is no persistence boundary
// to strip them at.
type DraftAdapterSlot struct {
	Name         string
	Strength     float64
	TriggerWords []string
}

// Draft is a user's in-progress generation request, held in memory between
// Discord interactions until submitted or abandoned. Never persisted.
type Draft struct {
	RequesterID     string
	OriginScopeID   string
	OriginChannelID string

	Model     string
	Sampler   string
	Scheduler string
	Steps     int
	CFG       float64
	Seed      uint32
	Size      Size

	PositivePrompt string
	NegativePrompt string

	Adapters []DraftAdapterSlot

	UpdatedAt time.Time
}

// ActiveAdapters returns the non-empty adapter slots, in order, capped at MaxAdapterSlots.
func (d *Draft) ActiveAdapters() []DraftAdapterSlot {
	out := make([]DraftAdapterSlot, 0, len(d.Adapters))
	for _, a := range d.Adapters {
		if a.Name == "" {
			continue
		}
		out = append(out, a)
		if len(out) == MaxAdapterSlots {
			break
		}
	}
	return out
}
