package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/palette/internal/interfaces"
	"github.com/bobmcallan/palette/internal/models"
)

// InsertUpscaleJob creates a queued upscale row and returns the domain struct.
func (s *Store) InsertUpscaleJob(ctx context.Context, p interfaces.UpscaleJobParams) (*models.UpscaleJob, error) {
	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO upscale_jobs (
			id, source_job_id, source_image_filename, requester_id,
			origin_scope_id, origin_channel_id, status, upscale_model, workflow, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.SourceJobID, p.SourceImage, p.RequesterID,
		p.OriginScopeID, p.OriginChannelID, models.StatusQueued, p.Model, p.Workflow, now,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting upscale job: %w", err)
	}
	return s.GetUpscaleJob(ctx, p.ID)
}

// SetUpscaleJobRunning stamps an upscale job running.
func (s *Store) SetUpscaleJobRunning(ctx context.Context, id, backendPromptID string) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE upscale_jobs SET status = ?, backend_prompt_id = ?, started_at = ?
		WHERE id = ?`, models.StatusRunning, backendPromptID, now, id)
	return checkAffected(res, err)
}

// SetUpscaleJobCompleted stamps an upscale job completed with its output filename.
func (s *Store) SetUpscaleJobCompleted(ctx context.Context, id, filename string) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE upscale_jobs SET status = ?, output_image = ?, completed_at = ?
		WHERE id = ?`, models.StatusCompleted, filename, now, id)
	return checkAffected(res, err)
}

// SetUpscaleJobFailed stamps an upscale job failed with a reason.
func (s *Store) SetUpscaleJobFailed(ctx context.Context, id, message string) error {
	now := time.Now().UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE upscale_jobs SET status = ?, error_message = ?, completed_at = ?
		WHERE id = ?`, models.StatusFailed, message, now, id)
	return checkAffected(res, err)
}

// GetUpscaleJob fetches one upscale job row, or ErrNotFound if absent.
func (s *Store) GetUpscaleJob(ctx context.Context, id string) (*models.UpscaleJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_job_id, source_image_filename, requester_id,
			origin_scope_id, origin_channel_id, status, upscale_model, workflow,
			backend_prompt_id, output_image, error_message,
			created_at, started_at, completed_at
		FROM upscale_jobs WHERE id = ?`, id)
	return scanUpscaleJob(row)
}

// ListQueuedUpscaleJobs returns all queued upscale jobs in created_at order.
func (s *Store) ListQueuedUpscaleJobs(ctx context.Context) ([]*models.UpscaleJob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_job_id, source_image_filename, requester_id,
			origin_scope_id, origin_channel_id, status, upscale_model, workflow,
			backend_prompt_id, output_image, error_message,
			created_at, started_at, completed_at
		FROM upscale_jobs WHERE status = ? ORDER BY created_at ASC`, models.StatusQueued)
	if err != nil {
		return nil, fmt.Errorf("listing queued upscale jobs: %w", err)
	}
	defer rows.Close()

	var out []*models.UpscaleJob
	for rows.Next() {
		u, err := scanUpscaleJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUpscaleJob(row rowScanner) (*models.UpscaleJob, error) {
	var u models.UpscaleJob
	var backendPromptID, outputImage, errMsg sql.NullString
	var startedAt, completedAt sql.NullInt64

	err := row.Scan(
		&u.ID, &u.SourceJobID, &u.SourceImage, &u.RequesterID,
		&u.OriginScopeID, &u.OriginChannelID, &u.Status, &u.Model, &u.Workflow,
		&backendPromptID, &outputImage, &errMsg,
		&u.CreatedAtMS, &startedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning upscale job row: %w", err)
	}

	if backendPromptID.Valid {
		v := backendPromptID.String
		u.BackendPromptID = &v
	}
	if outputImage.Valid {
		v := outputImage.String
		u.OutputImage = &v
	}
	if errMsg.Valid {
		v := errMsg.String
		u.ErrorMessage = &v
	}
	if startedAt.Valid {
		v := startedAt.Int64
		u.StartedAtMS = &v
	}
	if completedAt.Valid {
		v := completedAt.Int64
		u.CompletedAtMS = &v
	}

	return &u, nil
}

// PurgeOld deletes eligible terminal rows older than cutoffMS in a single
// transaction: upscale rows first (their foreign key references jobs), then
// job rows. Atomic — a crash mid-transaction leaves the prior state intact.
func (s *Store) PurgeOld(ctx context.Context, cutoffMS int64) (jobsDeleted, upscaleDeleted int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("beginning purge transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `
		DELETE FROM upscale_jobs
		WHERE status IN (?, ?) AND created_at < ?`,
		models.StatusCompleted, models.StatusFailed, cutoffMS)
	if err != nil {
		return 0, 0, fmt.Errorf("purging upscale jobs: %w", err)
	}
	upscaleCount, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx, `
		DELETE FROM jobs
		WHERE status IN (?, ?) AND created_at < ?`,
		models.StatusCompleted, models.StatusFailed, cutoffMS)
	if err != nil {
		return 0, 0, fmt.Errorf("purging jobs: %w", err)
	}
	jobsCount, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing purge transaction: %w", err)
	}

	return int(jobsCount), int(upscaleCount), nil
}
