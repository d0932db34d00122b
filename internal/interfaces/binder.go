package interfaces

import "github.com/bobmcallan/palette/internal/models"

// TriggerWordsLookup resolves an adapter's cached trigger words at bind
// time, keeping the persisted Job row free of in-memory-only fields.
type TriggerWordsLookup func(adapterName string) []string

// Binder loads template graphs, validates them, and binds per-job
// parameters into a deep-cloned copy.
type Binder interface {
	ValidateBaseTemplate() error
	ValidateUpscaleTemplate() error

	Bind(job *models.Job, lookup TriggerWordsLookup) (Graph, error)
	BindUpscale(job *models.UpscaleJob, uploadedFilename string) (Graph, error)
}
