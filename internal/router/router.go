// Package router is the Interaction Router: pure dispatch from typed chat
// interaction events to the core components. It holds no chat-platform
// knowledge — request and response shapes here are translated to and from
// platform widgets by the gateway adapter.
package router

import (
	"context"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/draft"
	"github.com/bobmcallan/palette/internal/guard"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/jobqueue"
	"github.com/bobmcallan/palette/internal/models"
	"github.com/bobmcallan/palette/internal/purge"
)

// ResponseKind names the shape of action the gateway adapter should take.
type ResponseKind string

const (
	KindEphemeralError   ResponseKind = "ephemeral_error"
	KindEphemeralInfo    ResponseKind = "ephemeral_info"
	KindPolicyRefusal    ResponseKind = "policy_refusal"
	KindOpenModal        ResponseKind = "open_modal"
	KindRefreshEmbed     ResponseKind = "refresh_embed"
	KindEnqueued         ResponseKind = "enqueued"
	KindRevealPrompts    ResponseKind = "reveal_prompts"
	KindDeleted          ResponseKind = "deleted"
	KindBannedWordResult ResponseKind = "banned_word_result"
	KindPurgeResult      ResponseKind = "purge_result"
)

// Response is the Router's uniform reply. Only the fields relevant to Kind
// are populated.
type Response struct {
	Kind          ResponseKind
	Message       string
	Draft         *models.Draft
	Job           *models.Job
	JobID         string
	QueuePosition int
	MatchedWords  []models.BannedWord
	BannedWords   []models.BannedWord
	JobsDeleted    int
	UpscaleDeleted int
}

func ephemeralError(message string) Response {
	return Response{Kind: KindEphemeralError, Message: message}
}

// Router dispatches interaction events to the components that act on them.
type Router struct {
	drafts   *draft.Store
	guard    *guard.Guard
	binder   interfaces.Binder
	store    interfaces.Store
	runner   *jobqueue.Runner
	renderer interfaces.RendererClient
	purge    *purge.Scheduler
	catalog  *models.NodeCatalog
	config   *common.Config
	logger   *common.Logger
}

// New constructs a Router. catalog must already be resolved at boot.
func New(drafts *draft.Store, g *guard.Guard, binder interfaces.Binder, store interfaces.Store, runner *jobqueue.Runner, renderer interfaces.RendererClient, purgeScheduler *purge.Scheduler, catalog *models.NodeCatalog, config *common.Config, logger *common.Logger) *Router {
	return &Router{
		drafts:   drafts,
		guard:    g,
		binder:   binder,
		store:    store,
		runner:   runner,
		renderer: renderer,
		purge:    purgeScheduler,
		catalog:  catalog,
		config:   config,
		logger:   logger,
	}
}

// IsAllowedChannel reports whether originChannelID may invoke the entry
// command, per the configured allow-list.
func (r *Router) IsAllowedChannel(originChannelID string) bool {
	return r.config.IsAllowedChannel(originChannelID)
}

func (r *Router) isOwner(userID string) bool {
	return r.config.IsOwner(userID)
}

// requireRequester returns an ephemeral refusal unless userID is the job's
// original requester.
func requireRequester(job *models.Job, userID string) (Response, bool) {
	if job.RequesterID != userID {
		return ephemeralError("only the original requester can do that"), false
	}
	return Response{}, true
}

func (r *Router) getJob(ctx context.Context, jobID string) (*models.Job, Response, bool) {
	job, err := r.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, ephemeralError("that job no longer exists"), false
	}
	return job, Response{}, true
}
