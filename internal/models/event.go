package models

// EventKind is the lifecycle stage a JobEvent describes.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
)

// JobEvent describes a job lifecycle notification with enough fields to
// render a result without a second Store round-trip. No component builds or
// consumes it: the Runner reports outcomes through interfaces.Notifier's
// PostResult, PostFailure and UpdateEphemeral methods.
type JobEvent struct {
	Kind EventKind

	JobID           string
	OriginScopeID   string
	OriginChannelID string
	RequesterID     string

	OutputImages []string
	ErrorMessage string
}
