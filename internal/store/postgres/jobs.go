package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"outpost/internal/store"
)

const jobColumns = `tenant_id, job_id, agent, command, status, priority,
	created_at, started_at, completed_at, output_location, error_message`

// CreateJob inserts the initial pending record for a job.
// The submission gateway is the only caller.
func (s *Store) CreateJob(ctx context.Context, job *store.Job) error {
	query := `
		INSERT INTO jobs (tenant_id, job_id, agent, command, status, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.db.ExecContext(ctx, query,
		job.TenantID,
		job.JobID,
		job.Agent,
		job.Command,
		job.Status,
		job.Priority,
		job.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.JobID, err)
	}
	return nil
}

// GetJob returns a single job scoped to its tenant.
func (s *Store) GetJob(ctx context.Context, tenantID, jobID string) (*store.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE tenant_id = $1 AND job_id = $2", jobColumns)

	var j store.Job
	err := s.db.QueryRowContext(ctx, query, tenantID, jobID).Scan(
		&j.TenantID,
		&j.JobID,
		&j.Agent,
		&j.Command,
		&j.Status,
		&j.Priority,
		&j.CreatedAt,
		&j.StartedAt,
		&j.CompletedAt,
		&j.OutputLocation,
		&j.ErrorMessage,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job %s: %w", jobID, err)
	}
	return &j, nil
}

// ListJobs returns the tenant's jobs newest-first. job_id is a ULID, so
// ordering by it descending yields reverse submission order.
func (s *Store) ListJobs(ctx context.Context, tenantID string, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM jobs
		WHERE tenant_id = $1
		ORDER BY job_id DESC
		LIMIT $2
	`, jobColumns)

	rows, err := s.db.QueryContext(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []store.Job
	for rows.Next() {
		var j store.Job
		if err := rows.Scan(
			&j.TenantID,
			&j.JobID,
			&j.Agent,
			&j.Command,
			&j.Status,
			&j.Priority,
			&j.CreatedAt,
			&j.StartedAt,
			&j.CompletedAt,
			&j.OutputLocation,
			&j.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// StartJob is the conditional transition pending -> running. The WHERE clause
// on the current status is the only concurrency control: if a cancel (or
// another worker) got there first, zero rows match and ErrConflict is
// returned. Single attempt, no retry.
func (s *Store) StartJob(ctx context.Context, tenantID, jobID string, startedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, started_at = $2
		WHERE tenant_id = $3 AND job_id = $4 AND status = $5
	`, store.JobStatusRunning, startedAt, tenantID, jobID, store.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to start job %s: %w", jobID, err)
	}
	return requireOneRow(res)
}

// CancelJob is the conditional transition pending -> cancelled.
func (s *Store) CancelJob(ctx context.Context, tenantID, jobID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = NOW()
		WHERE tenant_id = $2 AND job_id = $3 AND status = $4
	`, store.JobStatusCancelled, tenantID, jobID, store.JobStatusPending)
	if err != nil {
		return fmt.Errorf("failed to cancel job %s: %w", jobID, err)
	}
	return requireOneRow(res)
}

// FinishJob performs the atomic terminal write running -> to. Status,
// completion time, error, and output land in one statement so no observer
// can see a terminal status without its completion timestamp.
func (s *Store) FinishJob(ctx context.Context, tenantID, jobID string, to store.JobStatus, upd store.TerminalUpdate) error {
	if !store.ValidTransition(store.JobStatusRunning, to) {
		return store.ErrInvalidTransition
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, completed_at = $2, error_message = $3, output_location = $4
		WHERE tenant_id = $5 AND job_id = $6 AND status = $7
	`, to, upd.CompletedAt, upd.ErrorMessage, upd.Output, tenantID, jobID, store.JobStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to finish job %s: %w", jobID, err)
	}
	return requireOneRow(res)
}

// requireOneRow maps an unmatched conditional update to ErrConflict.
func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrConflict
	}
	return nil
}
