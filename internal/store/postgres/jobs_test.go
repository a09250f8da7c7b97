package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"outpost/internal/store"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return &Store{db: db, visibility: DefaultVisibilityTimeout}, mock
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"tenant_id", "job_id", "agent", "command", "status", "priority",
		"created_at", "started_at", "completed_at", "output_location", "error_message",
	})
}

func TestCreateJob_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`INSERT INTO jobs`).
		WithArgs("ten_abc", "01JF5", "claude", "fix tests", store.JobStatusPending, "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.CreateJob(ctx, &store.Job{
		TenantID:  "ten_abc",
		JobID:     "01JF5",
		Agent:     store.AgentClaude,
		Command:   "fix tests",
		Status:    store.JobStatusPending,
		CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJob_NotFound(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectQuery(`SELECT .* FROM jobs WHERE tenant_id`).
		WithArgs("ten_abc", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := st.GetJob(context.Background(), "ten_abc", "missing")
	if err != store.ErrNotFound {
		t.Errorf("got %v, want store.ErrNotFound", err)
	}
}

func TestGetJob_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT .* FROM jobs WHERE tenant_id`).
		WithArgs("ten_abc", "01JF5").
		WillReturnRows(jobRows().
			AddRow("ten_abc", "01JF5", "claude", "fix tests", "pending", "", now, nil, nil, nil, nil))

	job, err := st.GetJob(context.Background(), "ten_abc", "01JF5")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if job.Status != store.JobStatusPending {
		t.Errorf("got status %s, want pending", job.Status)
	}
	if job.StartedAt != nil {
		t.Errorf("expected nil StartedAt, got %v", job.StartedAt)
	}
}

func TestListJobs_NewestFirstQueryStructure(t *testing.T) {
	// sqlmock verifies the generated SQL orders by job_id descending. ULIDs
	// sort lexicographically by creation time, so this is reverse
	// submission order. Catches regression if someone drops the ordering.
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectQuery(`SELECT .* FROM jobs\s+WHERE tenant_id = \$1\s+ORDER BY job_id DESC\s+LIMIT \$2`).
		WithArgs("ten_abc", 10).
		WillReturnRows(jobRows().
			AddRow("ten_abc", "01JF6", "claude", "b", "pending", "", time.Now(), nil, nil, nil, nil).
			AddRow("ten_abc", "01JF5", "claude", "a", "success", "", time.Now(), nil, nil, nil, nil))

	jobs, err := st.ListJobs(context.Background(), "ten_abc", 10)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].JobID != "01JF6" {
		t.Errorf("got first job %s, want 01JF6", jobs[0].JobID)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestListJobs_LimitDefaultsToFifty(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectQuery(`SELECT .* FROM jobs`).
		WithArgs("ten_abc", 50).
		WillReturnRows(jobRows())

	jobs, err := st.ListJobs(context.Background(), "ten_abc", 0)
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(jobs) != 0 {
		t.Errorf("expected 0 jobs, got %d", len(jobs))
	}
}

func TestStartJob_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	startedAt := time.Now()

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStatusRunning, startedAt, "ten_abc", "01JF5", store.JobStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.StartJob(context.Background(), "ten_abc", "01JF5", startedAt); err != nil {
		t.Fatalf("StartJob failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestStartJob_Conflict(t *testing.T) {
	// Zero rows matched means the job was no longer pending: another worker
	// claimed it or a cancel landed first.
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.StartJob(context.Background(), "ten_abc", "01JF5", time.Now())
	if err != store.ErrConflict {
		t.Errorf("got %v, want store.ErrConflict", err)
	}
}

func TestCancelJob_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStatusCancelled, "ten_abc", "01JF5", store.JobStatusPending).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.CancelJob(context.Background(), "ten_abc", "01JF5"); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
}

func TestCancelJob_Conflict(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.CancelJob(context.Background(), "ten_abc", "01JF5")
	if err != store.ErrConflict {
		t.Errorf("got %v, want store.ErrConflict", err)
	}
}

func TestFinishJob_Success(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	completedAt := time.Now()
	output := "/tmp/outpost/workspaces/ten_abc/01JF5"

	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(store.JobStatusSuccess, completedAt, nil, &output, "ten_abc", "01JF5", store.JobStatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := st.FinishJob(context.Background(), "ten_abc", "01JF5", store.JobStatusSuccess, store.TerminalUpdate{
		CompletedAt: completedAt,
		Output:      &output,
	})
	if err != nil {
		t.Fatalf("FinishJob failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestFinishJob_InvalidTransition(t *testing.T) {
	// A terminal write can only land on success or failed. No SQL should be
	// issued for anything else.
	st, mock := newMockStore(t)
	defer st.db.Close()

	tests := []struct {
		name string
		to   store.JobStatus
	}{
		{name: "to pending", to: store.JobStatusPending},
		{name: "to running", to: store.JobStatusRunning},
		{name: "to cancelled", to: store.JobStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := st.FinishJob(context.Background(), "ten_abc", "01JF5", tt.to, store.TerminalUpdate{CompletedAt: time.Now()})
			if err != store.ErrInvalidTransition {
				t.Errorf("got %v, want store.ErrInvalidTransition", err)
			}
		})
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected SQL issued: %v", err)
	}
}

func TestFinishJob_Conflict(t *testing.T) {
	st, mock := newMockStore(t)
	defer st.db.Close()

	mock.ExpectExec(`UPDATE jobs`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := st.FinishJob(context.Background(), "ten_abc", "01JF5", store.JobStatusFailed, store.TerminalUpdate{CompletedAt: time.Now()})
	if err != store.ErrConflict {
		t.Errorf("got %v, want store.ErrConflict", err)
	}
}
