package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/palette/internal/common"
	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "palette.db")
	s, err := Open(path, common.NewSilentLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertJobThenGetJobRoundTrips(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	params := interfaces.JobParams{
		ID:              "job-1",
		RequesterID:     "user-1",
		OriginScopeID:   "guild-1",
		OriginChannelID: "chan-1",
		Model:           "sdxl.safetensors",
		Sampler:         "dpmpp_2m_sde",
		Scheduler:       "karras",
		Steps:           28,
		CFG:             5,
		Seed:            42,
		Size:            models.SizePortrait,
		PositivePrompt:  "a cat",
		NegativePrompt:  "",
		Adapters:        []models.AdapterSlot{{Name: "styleA", Strength: 0.8}},
	}

	inserted, err := s.InsertJob(ctx, params)
	require.NoError(t, err)
	require.Equal(t, models.StatusQueued, inserted.Status)

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, params.Model, got.Model)
	require.Equal(t, params.Seed, got.Seed)
	require.Equal(t, params.PositivePrompt, got.PositivePrompt)
	require.Len(t, got.Adapters, 1)
	require.Equal(t, "styleA", got.Adapters[0].Name)
	require.Nil(t, got.StartedAtMS, "queued job should have nil started_at")
	require.Nil(t, got.CompletedAtMS, "queued job should have nil completed_at")
}

func TestGetJobNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, interfaces.ErrNotFound)
}

func TestJobStatusTimestampInvariants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertJob(ctx, interfaces.JobParams{ID: "job-2", Model: "m", Size: models.SizeSquare})
	require.NoError(t, err)

	require.NoError(t, s.SetJobRunning(ctx, "job-2", "prompt-123"))
	j, err := s.GetJob(ctx, "job-2")
	require.NoError(t, err)
	require.NotNil(t, j.StartedAtMS, "expected started_at set after running")
	require.NotNil(t, j.BackendPromptID, "expected backend_prompt_id set after running")
	require.Equal(t, "prompt-123", *j.BackendPromptID)

	require.NoError(t, s.SetJobCompleted(ctx, "job-2", []string{"out.png"}))
	j, err = s.GetJob(ctx, "job-2")
	require.NoError(t, err)
	require.NotNil(t, j.CompletedAtMS, "expected completed_at set after completion")
	require.Equal(t, []string{"out.png"}, j.OutputImages)
}

func TestPurgeOldIsAtomicAndIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := int64(1000)
	fresh := int64(9_000_000_000_000)

	for i, createdAt := range []int64{old, old, old, fresh, fresh} {
		id := "job-" + string(rune('a'+i))
		_, err := s.InsertJob(ctx, interfaces.JobParams{ID: id, Model: "m", Size: models.SizeSquare})
		require.NoError(t, err)
		// backdate created_at directly; InsertJob always stamps "now"
		_, err = s.db.ExecContext(ctx, `UPDATE jobs SET created_at = ? WHERE id = ?`, createdAt, id)
		require.NoError(t, err, "backdating job")
	}
	// first three complete, last two remain queued ("running now")
	for _, id := range []string{"job-a", "job-b", "job-c"} {
		require.NoError(t, s.SetJobCompleted(ctx, id, nil))
		_, err := s.db.ExecContext(ctx, `UPDATE jobs SET created_at = ? WHERE id = ?`, old, id)
		require.NoError(t, err, "backdating job")
	}

	cutoff := int64(500_000) // between old and fresh
	jobsDeleted, upscaleDeleted, err := s.PurgeOld(ctx, cutoff)
	require.NoError(t, err)
	require.Equal(t, 3, jobsDeleted)
	require.Equal(t, 0, upscaleDeleted)

	jobsDeleted, upscaleDeleted, err = s.PurgeOld(ctx, cutoff)
	require.NoError(t, err, "PurgeOld second run")
	require.Equal(t, 0, jobsDeleted, "expected idempotent second purge")
	require.Equal(t, 0, upscaleDeleted, "expected idempotent second purge")

	_, err = s.GetJob(ctx, "job-d")
	require.NoError(t, err, "running job should survive purge")
}

func TestBannedWordsCRUDIsCaseInsensitive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.AddBannedWord(ctx, "BadTerm", models.MatchWhole, "owner-1")
	require.NoError(t, err)

	words, err := s.ListBannedWords(ctx)
	require.NoError(t, err)
	require.Len(t, words, 1)
	require.Equal(t, "BadTerm", words[0].Phrase)

	require.NoError(t, s.RemoveBannedWord(ctx, "badterm"), "RemoveBannedWord (case-insensitive)")

	words, err = s.ListBannedWords(ctx)
	require.NoError(t, err)
	require.Empty(t, words, "expected banned word list empty after removal")
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.migrate(context.Background()), "re-running migrate on up-to-date db should be a no-op")
}
