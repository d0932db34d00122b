package models

// UpscaleJob is a follow-on job that re-renders one of a completed Job's
// output images at higher resolution. It shares the Runner's queue and FIFO
// contract with Job but carries its own row and its own workflow template.
type UpscaleJob struct {
	ID              string
	SourceJobID     string
	SourceImage     string
	RequesterID     string
	OriginScopeID   string
	OriginChannelID string
	Status          Status

	Model    string
	Workflow string // "ultimate" | "simple", fixed at submit time from config

	BackendPromptID *string
	OutputImage     *string
	ErrorMessage    *string

	CreatedAtMS   int64
	StartedAtMS   *int64
	CompletedAtMS *int64
}
