package jobqueue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/palette/internal/clients/civitai"
	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/metadata"
	"github.com/bobmcallan/palette/internal/models"
)

// fakeStore implements interfaces.Store in memory for runner tests.
type fakeStore struct {
	mu       sync.Mutex
	jobs     map[string]*models.Job
	upscales map[string]*models.UpscaleJob
}

func newFakeStore() *fakeStore {
	return &fakeStore{jobs: map[string]*models.Job{}, upscales: map[string]*models.UpscaleJob{}}
}

func (s *fakeStore) InsertJob(ctx context.Context, p interfaces.JobParams) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &models.Job{ID: p.ID, RequesterID: p.RequesterID, OriginScopeID: p.OriginScopeID, OriginChannelID: p.OriginChannelID,
		Status: models.StatusQueued, Model: p.Model, Sampler: p.Sampler, Scheduler: p.Scheduler, Steps: p.Steps, CFG: p.CFG,
		Seed: p.Seed, Size: p.Size, PositivePrompt: p.PositivePrompt, NegativePrompt: p.NegativePrompt, Adapters: p.Adapters}
	s.jobs[p.ID] = job
	return job, nil
}

func (s *fakeStore) SetJobRunning(ctx context.Context, id, backendPromptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	j.Status = models.StatusRunning
	j.BackendPromptID = &backendPromptID
	return nil
}

func (s *fakeStore) SetJobCompleted(ctx context.Context, id string, filenames []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	j.Status = models.StatusCompleted
	j.OutputImages = filenames
	return nil
}

func (s *fakeStore) SetJobFailed(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	j.Status = models.StatusFailed
	j.ErrorMessage = &message
	return nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return j, nil
}

func (s *fakeStore) CountQueuedBefore(ctx context.Context, id string) (int, error) { return 0, nil }

func (s *fakeStore) ListQueuedJobs(ctx context.Context) ([]*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Job
	for _, j := range s.jobs {
		if j.Status == models.StatusQueued {
			out = append(out, j)
		}
	}
	return out, nil
}

func (s *fakeStore) InsertUpscaleJob(ctx context.Context, p interfaces.UpscaleJobParams) (*models.UpscaleJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job := &models.UpscaleJob{ID: p.ID, SourceJobID: p.SourceJobID, SourceImage: p.SourceImage, RequesterID: p.RequesterID,
		OriginScopeID: p.OriginScopeID, OriginChannelID: p.OriginChannelID, Model: p.Model, Workflow: p.Workflow, Status: models.StatusQueued}
	s.upscales[p.ID] = job
	return job, nil
}

func (s *fakeStore) SetUpscaleJobRunning(ctx context.Context, id, backendPromptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.upscales[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	j.Status = models.StatusRunning
	j.BackendPromptID = &backendPromptID
	return nil
}

func (s *fakeStore) SetUpscaleJobCompleted(ctx context.Context, id, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.upscales[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	j.Status = models.StatusCompleted
	j.OutputImage = &filename
	return nil
}

func (s *fakeStore) SetUpscaleJobFailed(ctx context.Context, id, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.upscales[id]
	if !ok {
		return interfaces.ErrNotFound
	}
	j.Status = models.StatusFailed
	j.ErrorMessage = &message
	return nil
}

func (s *fakeStore) GetUpscaleJob(ctx context.Context, id string) (*models.UpscaleJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.upscales[id]
	if !ok {
		return nil, interfaces.ErrNotFound
	}
	return j, nil
}

func (s *fakeStore) ListQueuedUpscaleJobs(ctx context.Context) ([]*models.UpscaleJob, error) {
	return nil, nil
}

func (s *fakeStore) PurgeOld(ctx context.Context, cutoffMS int64) (int, int, error) { return 0, 0, nil }

func (s *fakeStore) AddBannedWord(ctx context.Context, phrase string, mode models.MatchMode, addedBy string) (*models.BannedWord, error) {
	return nil, nil
}
func (s *fakeStore) RemoveBannedWord(ctx context.Context, phrase string) error { return nil }
func (s *fakeStore) ListBannedWords(ctx context.Context) ([]models.BannedWord, error) {
	return nil, nil
}
func (s *fakeStore) Close() error { return nil }

// fakeRenderer implements interfaces.RendererClient with a scripted history sequence.
type fakeRenderer struct {
	mu            sync.Mutex
	submitCount   int
	submitDelay   time.Duration
	historyCalls  map[string]int
	completeAfter int // number of History calls before reporting completion
}

func newFakeRenderer() *fakeRenderer {
	return &fakeRenderer{historyCalls: map[string]int{}, completeAfter: 1}
}

func (f *fakeRenderer) Ping(ctx context.Context) bool { return true }
func (f *fakeRenderer) ObjectInfo(ctx context.Context) (map[string]interfaces.NodeSchema, error) {
	return nil, nil
}

func (f *fakeRenderer) Submit(ctx context.Context, graph interfaces.Graph) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCount++
	return "prompt-1", nil
}

func (f *fakeRenderer) History(ctx context.Context, backendPromptID string) (*interfaces.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls[backendPromptID]++
	if f.historyCalls[backendPromptID] < f.completeAfter {
		return nil, nil
	}
	return &interfaces.HistoryEntry{
		Completed: true,
		Outputs: map[string][]interfaces.HistoryImage{
			"9": {{Filename: "output_001.png", Subfolder: "", Type: "output"}},
		},
	}, nil
}

func (f *fakeRenderer) FetchImage(ctx context.Context, filename, subfolder, typ string) ([]byte, error) {
	return []byte("fake-bytes"), nil
}
func (f *fakeRenderer) UploadImage(ctx context.Context, data []byte, filename string) (*interfaces.UploadResult, error) {
	return &interfaces.UploadResult{Name: filename}, nil
}
func (f *fakeRenderer) AdapterHash(ctx context.Context, filename string) (string, bool, error) {
	return "", false, nil
}
func (f *fakeRenderer) AdapterTriggerWordsLocal(ctx context.Context, filename string) ([]string, bool, error) {
	return nil, false, nil
}

// fakeBinder implements interfaces.Binder, optionally failing Bind.
type fakeBinder struct {
	bindErr error
}

func (b *fakeBinder) ValidateBaseTemplate() error    { return nil }
func (b *fakeBinder) ValidateUpscaleTemplate() error { return nil }
func (b *fakeBinder) Bind(job *models.Job, lookup interfaces.TriggerWordsLookup) (interfaces.Graph, error) {
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	return interfaces.Graph{"1": {ClassType: "Stub"}}, nil
}
func (b *fakeBinder) BindUpscale(job *models.UpscaleJob, uploadedFilename string) (interfaces.Graph, error) {
	if b.bindErr != nil {
		return nil, b.bindErr
	}
	return interfaces.Graph{"1": {ClassType: "Stub"}}, nil
}

// fakeNotifier implements interfaces.Notifier, recording every post.
type fakeNotifier struct {
	mu             sync.Mutex
	results        []interfaces.ResultPost
	upscaleResults []interfaces.UpscaleResultPost
	failures       []string
	tokens         map[string]string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{tokens: map[string]string{}}
}

func (n *fakeNotifier) PostResult(ctx context.Context, post interfaces.ResultPost) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, post)
	return nil
}
func (n *fakeNotifier) PostUpscaleResult(ctx context.Context, post interfaces.UpscaleResultPost) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.upscaleResults = append(n.upscaleResults, post)
	return nil
}
func (n *fakeNotifier) PostFailure(ctx context.Context, originChannelID, requesterID, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failures = append(n.failures, message)
	return nil
}
func (n *fakeNotifier) UpdateEphemeral(ctx context.Context, token string, message string) bool {
	return true
}
func (n *fakeNotifier) TakeEphemeralToken(jobID string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	token, ok := n.tokens[jobID]
	delete(n.tokens, jobID)
	return token, ok
}

func newTestRunner(store *fakeStore, renderer *fakeRenderer, binder interfaces.Binder, notifier *fakeNotifier) *Runner {
	cfg := common.NewDefaultConfig()
	cfg.Backend.TimeoutMS = 2000 // short poll deadline so a stuck job cannot hang a test
	metaCache := metadata.New(renderer, civitai.NewClient(civitai.WithLogger(common.NewSilentLogger())), common.NewSilentLogger())
	return New(store, renderer, binder, notifier, metaCache, cfg, common.NewSilentLogger())
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestProcessGenerationHappyPathCompletesAndPostsResult(t *testing.T) {
	store := newFakeStore()
	store.jobs["job-1"] = &models.Job{ID: "job-1", Status: models.StatusQueued, RequesterID: "user-1", OriginChannelID: "chan-1"}
	renderer := newFakeRenderer()
	notifier := newFakeNotifier()
	r := newTestRunner(store, renderer, &fakeBinder{}, notifier)

	r.Start()
	defer r.Stop()
	r.EnqueueGeneration("job-1")

	waitFor(t, 2*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.jobs["job-1"].Status == models.StatusCompleted
	})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.results, 1, "expected one result posted")
	require.Equal(t, "output_001.png", notifier.results[0].Filenames[0])
}

func TestProcessGenerationBindFailureMarksJobFailed(t *testing.T) {
	store := newFakeStore()
	store.jobs["job-2"] = &models.Job{ID: "job-2", Status: models.StatusQueued, RequesterID: "user-1", OriginChannelID: "chan-1"}
	renderer := newFakeRenderer()
	notifier := newFakeNotifier()
	r := newTestRunner(store, renderer, &fakeBinder{bindErr: errBindFailed}, notifier)

	r.Start()
	defer r.Stop()
	r.EnqueueGeneration("job-2")

	waitFor(t, 2*time.Second, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return store.jobs["job-2"].Status == models.StatusFailed
	})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.failures, 1, "expected one failure notice")
}

func TestFIFOOrderingProcessesJobsInEnqueueOrder(t *testing.T) {
	store := newFakeStore()
	for _, id := range []string{"a", "b", "c"} {
		store.jobs[id] = &models.Job{ID: id, Status: models.StatusQueued, RequesterID: "user-1", OriginChannelID: "chan-1"}
	}
	renderer := newFakeRenderer()
	notifier := newFakeNotifier()
	r := newTestRunner(store, renderer, &fakeBinder{}, notifier)

	r.Start()
	defer r.Stop()
	r.EnqueueGeneration("a")
	r.EnqueueGeneration("b")
	r.EnqueueGeneration("c")

	waitFor(t, 3*time.Second, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.results) == 3
	})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	order := []string{notifier.results[0].JobID, notifier.results[1].JobID, notifier.results[2].JobID}
	require.Equal(t, []string{"a", "b", "c"}, order, "expected FIFO order")
}

func TestRecoverQueuedReenqueuesRowsAtStartInCreatedAtOrder(t *testing.T) {
	store := newFakeStore()
	store.jobs["later"] = &models.Job{ID: "later", Status: models.StatusQueued, CreatedAtMS: 200, RequesterID: "u", OriginChannelID: "c"}
	store.jobs["earlier"] = &models.Job{ID: "earlier", Status: models.StatusQueued, CreatedAtMS: 100, RequesterID: "u", OriginChannelID: "c"}
	renderer := newFakeRenderer()
	notifier := newFakeNotifier()
	r := newTestRunner(store, renderer, &fakeBinder{}, notifier)

	r.Start()
	defer r.Stop()

	waitFor(t, 3*time.Second, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.results) == 2
	})

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Equal(t, "earlier", notifier.results[0].JobID, "expected recovery in created_at order")
	require.Equal(t, "later", notifier.results[1].JobID, "expected recovery in created_at order")
}

type testError string

func (e testError) Error() string { return string(e) }

const errBindFailed = testError("template validation failed: node missing field")
