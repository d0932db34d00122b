// Package draft is the Draft Session Store: a per-requester, in-memory,
// non-durable mapping that drives the multi-step interactive form. Unlike
// a single-goroutine-owned in-memory map, this one is reachable
// from concurrent Discord interaction callbacks, so it guards its map with
// a mutex rather than relying on single-threaded ownership.
package draft

import (
	"math/rand"
	"sync"
	"time"

	"github.com/bobmcallan/palette/internal/models"
)

// ErrSessionExpired is returned by Get/Merge when no draft exists for the
// requester. Not an internal error — surfaced to the user as "session
// expired, reissue the entry command".
var ErrSessionExpired = &sessionExpiredError{}

type sessionExpiredError struct{}

func (*sessionExpiredError) Error() string { return "draft session expired" }

// Store is the process-memory mapping from requester-id to Draft.
type Store struct {
	mu      sync.Mutex
	drafts  map[string]*models.Draft
}

// New constructs an empty Store.
func New() *Store {
	return &Store{drafts: make(map[string]*models.Draft)}
}

// Init populates a fresh draft with sane defaults: first
// model, a preferred sampler/scheduler if available otherwise first, steps
// 28, cfg 5, a fresh random seed, empty prompts, no adapters.
func (s *Store) Init(requesterID, originScopeID, originChannelID string, catalog *models.NodeCatalog, preferredSampler, preferredScheduler string) *models.Draft {
	d := &models.Draft{
		RequesterID:     requesterID,
		OriginScopeID:   originScopeID,
		OriginChannelID: originChannelID,
		Model:           firstOr(catalog.Checkpoints, ""),
		Sampler:         preferOrFirst(catalog.Samplers, preferredSampler),
		Scheduler:       preferOrFirst(catalog.Schedulers, preferredScheduler),
		Steps:           28,
		CFG:             5,
		Seed:            randomSeed(),
		Size:            models.SizePortrait,
		UpdatedAt:       time.Now(),
	}

	s.mu.Lock()
	s.drafts[requesterID] = d
	s.mu.Unlock()
	return d
}

// InitFromJob seeds a draft from a completed Job's mutable subset, for the
// Edit flow. Adapters carry no trigger words here — the Runner looks them up
// in the Metadata Cache when it binds the job.
func (s *Store) InitFromJob(requesterID, originScopeID, originChannelID string, job *models.Job) *models.Draft {
	adapters := make([]models.DraftAdapterSlot, 0, len(job.Adapters))
	for _, a := range job.Adapters {
		adapters = append(adapters, models.DraftAdapterSlot{Name: a.Name, Strength: a.Strength})
	}

	d := &models.Draft{
		RequesterID:     requesterID,
		OriginScopeID:   originScopeID,
		OriginChannelID: originChannelID,
		Model:           job.Model,
		Sampler:         job.Sampler,
		Scheduler:       job.Scheduler,
		Steps:           job.Steps,
		CFG:             job.CFG,
		Seed:            job.Seed,
		Size:            job.Size,
		PositivePrompt:  job.PositivePrompt,
		NegativePrompt:  job.NegativePrompt,
		Adapters:        adapters,
		UpdatedAt:       time.Now(),
	}

	s.mu.Lock()
	s.drafts[requesterID] = d
	s.mu.Unlock()
	return d
}

// Get returns the requester's draft, or ErrSessionExpired if none exists.
func (s *Store) Get(requesterID string) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[requesterID]
	if !ok {
		return nil, ErrSessionExpired
	}
	return d, nil
}

// Merge applies a mutation function to the requester's existing draft,
// stamping UpdatedAt. Returns ErrSessionExpired if none exists.
func (s *Store) Merge(requesterID string, mutate func(*models.Draft)) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.drafts[requesterID]
	if !ok {
		return nil, ErrSessionExpired
	}
	mutate(d)
	d.UpdatedAt = time.Now()
	return d, nil
}

// Delete removes the requester's draft, if any.
func (s *Store) Delete(requesterID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.drafts, requesterID)
}

func firstOr(list []string, fallback string) string {
	if len(list) == 0 {
		return fallback
	}
	return list[0]
}

func preferOrFirst(list []string, preferred string) string {
	for _, v := range list {
		if v == preferred {
			return preferred
		}
	}
	return firstOr(list, "")
}

func randomSeed() uint32 {
	return rand.Uint32()
}
