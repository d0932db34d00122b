package interfaces

import (
	"context"

	"github.com/bobmcallan/palette/internal/models"
)

// ResultPost is everything the Runner hands the gateway to render a
// completed job's result message.
type ResultPost struct {
	JobID           string
	OriginScopeID   string
	OriginChannelID string
	RequesterID     string
	Images          [][]byte
	Filenames       []string
	Model           string
	Sampler         string
	Scheduler       string
	Steps           int
	CFG             float64
	Seed            uint32
	Size            models.Size
	UpscaleEnabled  bool
}

// UpscaleResultPost is the trimmed equivalent for a completed UpscaleJob.
type UpscaleResultPost struct {
	JobID           string
	OriginScopeID   string
	OriginChannelID string
	RequesterID     string
	Image           []byte
	Filename        string
}

// Notifier is what the Runner uses to post job outcomes and ephemeral
// progress updates back to the chat platform. Failures are swallowed by
// implementations (logged) since the ephemeral token may have expired.
type Notifier interface {
	PostResult(ctx context.Context, post ResultPost) error
	PostUpscaleResult(ctx context.Context, post UpscaleResultPost) error
	PostFailure(ctx context.Context, originChannelID, requesterID, message string) error
	UpdateEphemeral(ctx context.Context, token string, message string) (ok bool)
	TakeEphemeralToken(jobID string) (token string, ok bool)
}
