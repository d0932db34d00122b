package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

// InsertJob creates a queued row and returns the domain struct.
func (s *Store) InsertJob(ctx context.Context, p interfaces.JobParams) (*models.Job, error) {
	adaptersJSON, err := json.Marshal(p.Adapters)
	if err != nil {
		return nil, fmt.Errorf("marshaling adapters: %w", err)
	}

	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			id, requester_id, origin_scope_id, origin_channel_id, status,
			model, sampler, scheduler, steps, cfg, seed, size,
			positive_prompt, negative_prompt, adapters, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.RequesterID, p.OriginScopeID, p.OriginChannelID, models.StatusQueued,
		p.Model, p.Sampler, p.Scheduler, p.Steps, p.CFG, p.Seed, string(p.Size),
		p.PositivePrompt, p.NegativePrompt, string(adaptersJSON), now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting job: %w", err)
	}

	return s.GetJob(ctx, p.ID)
}

// SetJobRunning stamps a job running with its backend prompt id and started_at.
func (s *Store) SetJobRunning(ctx context.Context, id, backendPromptID string) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, backend_prompt_id = ?, started_at = ?
		WHERE id = ?`, models.StatusRunning, backendPromptID, now, id)
	return checkAffected(res, err)
}

// SetJobCompleted stamps a job completed with its output filenames and completed_at.
func (s *Store) SetJobCompleted(ctx context.Context, id string, filenames []string) error {
	imagesJSON, err := json.Marshal(filenames)
	if err != nil {
		return fmt.Errorf("marshaling output images: %w", err)
	}
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, output_images = ?, completed_at = ?
		WHERE id = ?`, models.StatusCompleted, string(imagesJSON), now, id)
	return checkAffected(res, err)
}

// SetJobFailed stamps a job failed with a reason and completed_at.
func (s *Store) SetJobFailed(ctx context.Context, id, message string) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?`, models.StatusFailed, message, now, id)
	return checkAffected(res, err)
}

// GetJob fetches one job row, or ErrNotFound if absent.
func (s *Store) GetJob(ctx context.Context, id string) (*models.Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, requester_id, origin_scope_id, origin_channel_id, status,
			model, sampler, scheduler, steps, cfg, seed, size,
			positive_prompt, negative_prompt, adapters,
			backend_prompt_id, output_images, error_message,
			created_at, started_at, completed_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// CountQueuedBefore counts queued jobs strictly older than id's own row.
func (s *Store) CountQueuedBefore(ctx context.Context, id string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE status = ? AND created_at < (SELECT created_at FROM jobs WHERE id = ?)`,
		models.StatusQueued, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting queued jobs before %s: %w", id, err)
	}
	return count, nil
}

// ListQueuedJobs returns all queued jobs in created_at order, for the boot
// recovery sweep that re-enqueues rows the in-memory queue forgot on restart.
func (s *Store) ListQueuedJobs(ctx context.Context) ([]*models.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, requester_id, origin_scope_id, origin_channel_id, status,
			model, sampler, scheduler, steps, cfg, seed, size,
			positive_prompt, negative_prompt, adapters,
			backend_prompt_id, output_images, error_message,
			created_at, started_at, completed_at
		FROM jobs WHERE status = ? ORDER BY created_at ASC`, models.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("listing queued jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var size string
	var adaptersJSON string
	var backendPromptID, outputImagesJSON, errMsg sql.NullString
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&j.ID, &j.RequesterID, &j.OriginScopeID, &j.OriginChannelID, &j.Status,
		&j.Model, &j.Sampler, &j.Scheduler, &j.Steps, &j.CFG, &j.Seed, &size,
		&j.PositivePrompt, &j.NegativePrompt, &adaptersJSON,
		&backendPromptID, &outputImagesJSON, &errMsg,
		&j.CreatedAtMS, &startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning job row: %w", err)
	}

	j.Size = models.Size(size)
	if err := json.Unmarshal([]byte(adaptersJSON), &j.Adapters); err != nil {
		return nil, fmt.Errorf("unmarshaling adapters: %w", err)
	}
	if backendPromptID.Valid {
		v := backendPromptID.String
		j.BackendPromptID = &v
	}
	if outputImagesJSON.Valid {
		if err := json.Unmarshal([]byte(outputImagesJSON.String), &j.OutputImages); err != nil {
			return nil, fmt.Errorf("unmarshaling output images: %w", err)
		}
	}
	if errMsg.Valid {
		v := errMsg.String
		j.ErrorMessage = &v
	}
	if startedAt.Valid {
		v := startedAt.Int64
		j.StartedAtMS = &v
	}
	if completedAt.Valid {
		v := completedAt.Int64
		j.CompletedAtMS = &v
	}

	return &j, nil
}

func checkAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}
