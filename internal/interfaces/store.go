// Package interfaces defines the contracts the core components depend on,
// so that storage, transport, and chat-gateway concerns stay swappable and
// testable behind doubles.
package interfaces

import (
	"context"

	"github.com/bobmcallan/palette/internal/models"
)

// JobParams is the set of fields needed to insert a new Job row.
type JobParams struct {
	ID              string
	RequesterID     string
	OriginScopeID   string
	OriginChannelID string
	Model           string
	Sampler         string
	Scheduler       string
	Steps           int
	CFG             float64
	Seed            uint32
	Size            models.Size
	PositivePrompt  string
	NegativePrompt  string
	Adapters        []models.AdapterSlot
}

// UpscaleJobParams is the set of fields needed to insert a new UpscaleJob row.
type UpscaleJobParams struct {
	ID              string
	SourceJobID     string
	SourceImage     string
	RequesterID     string
	OriginScopeID   string
	OriginChannelID string
	Model           string
	Workflow        string
}

// Store is durable persistence for jobs, upscale-jobs, and banned words.
type Store interface {
	InsertJob(ctx context.Context, p JobParams) (*models.Job, error)
	SetJobRunning(ctx context.Context, id, backendPromptID string) error
	SetJobCompleted(ctx context.Context, id string, filenames []string) error
	SetJobFailed(ctx context.Context, id, message string) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	CountQueuedBefore(ctx context.Context, id string) (int, error)
	ListQueuedJobs(ctx context.Context) ([]*models.Job, error)

	InsertUpscaleJob(ctx context.Context, p UpscaleJobParams) (*models.UpscaleJob, error)
	SetUpscaleJobRunning(ctx context.Context, id, backendPromptID string) error
	SetUpscaleJobCompleted(ctx context.Context, id, filename string) error
	SetUpscaleJobFailed(ctx context.Context, id, message string) error
	GetUpscaleJob(ctx context.Context, id string) (*models.UpscaleJob, error)
	ListQueuedUpscaleJobs(ctx context.Context) ([]*models.UpscaleJob, error)

	PurgeOld(ctx context.Context, cutoffMS int64) (jobsDeleted, upscaleDeleted int, err error)

	AddBannedWord(ctx context.Context, phrase string, mode models.MatchMode, addedBy string) (*models.BannedWord, error)
	RemoveBannedWord(ctx context.Context, phrase string) error
	ListBannedWords(ctx context.Context) ([]models.BannedWord, error)

	Close() error
}

// ErrNotFound is returned by GetJob/GetUpscaleJob when the row does not exist.
var ErrNotFound = &notFoundError{}

type notFoundError struct{}

func (*notFoundError) Error() string { return "not found" }
