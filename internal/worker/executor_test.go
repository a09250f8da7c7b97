package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"outpost/internal/audit"
	"outpost/internal/store"
	"outpost/internal/worker/runtime"
)

// fakeJobStore records transition calls and lets tests force conflicts.
type fakeJobStore struct {
	startErr  error
	finishErr error
	current   *store.Job
	getErr    error

	started    []string
	finished   []store.JobStatus
	lastUpdate store.TerminalUpdate
}

func (f *fakeJobStore) CreateJob(ctx context.Context, job *store.Job) error { return nil }

func (f *fakeJobStore) GetJob(ctx context.Context, tenantID, jobID string) (*store.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.current == nil {
		return nil, store.ErrNotFound
	}
	return f.current, nil
}

func (f *fakeJobStore) ListJobs(ctx context.Context, tenantID string, limit int) ([]store.Job, error) {
	return nil, nil
}

func (f *fakeJobStore) StartJob(ctx context.Context, tenantID, jobID string, startedAt time.Time) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, jobID)
	return nil
}

func (f *fakeJobStore) CancelJob(ctx context.Context, tenantID, jobID string) error { return nil }

func (f *fakeJobStore) FinishJob(ctx context.Context, tenantID, jobID string, to store.JobStatus, upd store.TerminalUpdate) error {
	if f.finishErr != nil {
		return f.finishErr
	}
	f.finished = append(f.finished, to)
	f.lastUpdate = upd
	return nil
}

// recordingAuditStore captures audit actions emitted during execution.
type recordingAuditStore struct {
	actions []string
}

func (r *recordingAuditStore) AppendAudit(ctx context.Context, entry *store.AuditEntry) error {
	r.actions = append(r.actions, entry.Action)
	return nil
}

func (r *recordingAuditStore) ListAudit(ctx context.Context, tenantID string, limit int) ([]store.AuditEntry, error) {
	return nil, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestExecutor(t *testing.T, jobs *fakeJobStore, cfg ExecutorConfig) (*Executor, *recordingAuditStore) {
	t.Helper()
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = t.TempDir()
	}
	rec := &recordingAuditStore{}
	auditSvc := audit.NewService(rec, discardLogger())
	exec := NewExecutor(jobs, auditSvc, runtime.NewExecRuntime(), nil, cfg, discardLogger())
	return exec, rec
}

func testJob() *store.Job {
	return &store.Job{
		JobID:    "01JF5TESTJOB",
		TenantID: "ten_abc",
		Agent:    store.AgentClaude,
		Command:  "true",
		Status:   store.JobStatusPending,
	}
}

func TestExecute_Success(t *testing.T) {
	jobs := &fakeJobStore{}
	exec, rec := newTestExecutor(t, jobs, ExecutorConfig{})

	job := testJob()
	job.Command = "echo hello"

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobs.finished) != 1 || jobs.finished[0] != store.JobStatusSuccess {
		t.Fatalf("expected success transition, got %v", jobs.finished)
	}
	if jobs.lastUpdate.Output == nil || !strings.Contains(*jobs.lastUpdate.Output, job.JobID) {
		t.Errorf("expected workspace output location, got %v", jobs.lastUpdate.Output)
	}
	if jobs.lastUpdate.CompletedAt.IsZero() {
		t.Error("terminal write missing completion time")
	}

	want := []string{audit.ActionStartJob, audit.ActionJobSuccess}
	if len(rec.actions) != 2 || rec.actions[0] != want[0] || rec.actions[1] != want[1] {
		t.Errorf("got audit actions %v, want %v", rec.actions, want)
	}
}

func TestExecute_NonZeroExitCapturesStderr(t *testing.T) {
	jobs := &fakeJobStore{}
	exec, rec := newTestExecutor(t, jobs, ExecutorConfig{})

	job := testJob()
	job.Command = "echo boom >&2; exit 3"

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobs.finished) != 1 || jobs.finished[0] != store.JobStatusFailed {
		t.Fatalf("expected failed transition, got %v", jobs.finished)
	}
	if jobs.lastUpdate.ErrorMessage == nil || !strings.Contains(*jobs.lastUpdate.ErrorMessage, "boom") {
		t.Errorf("expected stderr in error message, got %v", jobs.lastUpdate.ErrorMessage)
	}

	if len(rec.actions) != 2 || rec.actions[1] != audit.ActionJobFailed {
		t.Errorf("got audit actions %v, want JOB_FAILED last", rec.actions)
	}
}

func TestExecute_NonZeroExitWithoutStderr(t *testing.T) {
	jobs := &fakeJobStore{}
	exec, _ := newTestExecutor(t, jobs, ExecutorConfig{})

	job := testJob()
	job.Command = "exit 7"

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if jobs.lastUpdate.ErrorMessage == nil || *jobs.lastUpdate.ErrorMessage != "exit code 7" {
		t.Errorf("got error message %v, want exit code 7", jobs.lastUpdate.ErrorMessage)
	}
}

func TestExecute_Timeout(t *testing.T) {
	jobs := &fakeJobStore{}
	exec, rec := newTestExecutor(t, jobs, ExecutorConfig{JobTimeout: 100 * time.Millisecond})

	job := testJob()
	job.Command = "sleep 5"

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobs.finished) != 1 || jobs.finished[0] != store.JobStatusFailed {
		t.Fatalf("expected failed transition, got %v", jobs.finished)
	}
	if jobs.lastUpdate.ErrorMessage == nil || *jobs.lastUpdate.ErrorMessage != "Timeout expired" {
		t.Errorf("got error message %v, want Timeout expired", jobs.lastUpdate.ErrorMessage)
	}

	if len(rec.actions) != 2 || rec.actions[1] != audit.ActionJobTimeout {
		t.Errorf("got audit actions %v, want JOB_TIMEOUT last", rec.actions)
	}
}

func TestExecute_ClaimConflictOnSettledJobIsNoop(t *testing.T) {
	// A cancel that won the race leaves the job cancelled; redelivery must
	// not resurrect it.
	jobs := &fakeJobStore{
		startErr: store.ErrConflict,
		current:  &store.Job{JobID: "01JF5TESTJOB", TenantID: "ten_abc", Status: store.JobStatusCancelled},
	}
	exec, rec := newTestExecutor(t, jobs, ExecutorConfig{})

	if err := exec.Execute(context.Background(), testJob()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobs.finished) != 0 {
		t.Errorf("settled job must not be transitioned, got %v", jobs.finished)
	}
	if len(rec.actions) != 0 {
		t.Errorf("no audit expected for no-op, got %v", rec.actions)
	}
}

func TestExecute_ClaimConflictOnFreshRunningJobKeepsLease(t *testing.T) {
	// Another worker owns the job inside its grace period. The record must
	// be left alone, and the message must stay leased rather than be
	// consumed, so a crash of that worker can still be recovered later.
	startedAt := time.Now().Add(-time.Minute)
	jobs := &fakeJobStore{
		startErr: store.ErrConflict,
		current: &store.Job{
			JobID: "01JF5TESTJOB", TenantID: "ten_abc",
			Status: store.JobStatusRunning, StartedAt: &startedAt,
		},
	}
	exec, _ := newTestExecutor(t, jobs, ExecutorConfig{JobTimeout: time.Hour})

	err := exec.Execute(context.Background(), testJob())
	if !errors.Is(err, errInFlight) {
		t.Fatalf("expected errInFlight, got %v", err)
	}

	if len(jobs.finished) != 0 {
		t.Errorf("fresh running job must be left alone, got %v", jobs.finished)
	}
}

func TestExecute_ClaimConflictReclaimsAbandonedJob(t *testing.T) {
	// Started far past the stale grace: the owning worker is presumed dead.
	startedAt := time.Now().Add(-time.Hour)
	jobs := &fakeJobStore{
		startErr: store.ErrConflict,
		current: &store.Job{
			JobID: "01JF5TESTJOB", TenantID: "ten_abc",
			Status: store.JobStatusRunning, StartedAt: &startedAt,
		},
	}
	exec, rec := newTestExecutor(t, jobs, ExecutorConfig{JobTimeout: time.Minute})

	if err := exec.Execute(context.Background(), testJob()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobs.finished) != 1 || jobs.finished[0] != store.JobStatusFailed {
		t.Fatalf("expected abandoned job failed, got %v", jobs.finished)
	}
	if jobs.lastUpdate.ErrorMessage == nil || *jobs.lastUpdate.ErrorMessage != "execution abandoned by worker" {
		t.Errorf("got error message %v, want abandonment diagnostic", jobs.lastUpdate.ErrorMessage)
	}
	if len(rec.actions) != 1 || rec.actions[0] != audit.ActionJobError {
		t.Errorf("got audit actions %v, want JOB_ERROR", rec.actions)
	}
}

func TestExecute_ClaimConflictOnVanishedJobIsNoop(t *testing.T) {
	jobs := &fakeJobStore{startErr: store.ErrConflict}
	exec, _ := newTestExecutor(t, jobs, ExecutorConfig{})

	if err := exec.Execute(context.Background(), testJob()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(jobs.finished) != 0 {
		t.Errorf("vanished job must not be transitioned, got %v", jobs.finished)
	}
}

func TestExecute_StorageErrorOnClaimLeavesMessage(t *testing.T) {
	// A transient storage error is not a conflict; the message must come
	// back for another attempt.
	jobs := &fakeJobStore{startErr: errors.New("connection refused")}
	exec, _ := newTestExecutor(t, jobs, ExecutorConfig{})

	if err := exec.Execute(context.Background(), testJob()); err == nil {
		t.Fatal("expected error for storage failure during claim")
	}
}

func TestExecute_LostTerminalWriteIsNoop(t *testing.T) {
	// If the terminal CAS misses, someone else settled the job. Not an
	// error; the message is deletable.
	jobs := &fakeJobStore{finishErr: store.ErrConflict}
	exec, _ := newTestExecutor(t, jobs, ExecutorConfig{})

	job := testJob()
	job.Command = "echo done"

	if err := exec.Execute(context.Background(), job); err != nil {
		t.Errorf("lost terminal write should be a no-op, got %v", err)
	}
}

type staticSecrets map[string]string

func (s staticSecrets) Get(ctx context.Context, tenantID, name string) (string, error) {
	value, ok := s[tenantID+"/"+name]
	if !ok {
		return "", store.ErrNotFound
	}
	return value, nil
}

func TestAgentEnv_InjectsCredential(t *testing.T) {
	jobs := &fakeJobStore{}
	rec := &recordingAuditStore{}
	auditSvc := audit.NewService(rec, discardLogger())
	secrets := staticSecrets{"ten_abc/claude": "sk-test"}
	exec := NewExecutor(jobs, auditSvc, runtime.NewExecRuntime(), secrets, ExecutorConfig{WorkspaceRoot: t.TempDir()}, discardLogger())

	env := exec.agentEnv(context.Background(), testJob())

	if env["CLAUDE_API_KEY"] != "sk-test" {
		t.Errorf("got env %v, want CLAUDE_API_KEY injected", env)
	}
	if env["OUTPOST_JOB_ID"] != "01JF5TESTJOB" {
		t.Errorf("got env %v, want OUTPOST_JOB_ID set", env)
	}
	if env["OUTPOST_TENANT_ID"] != "ten_abc" {
		t.Errorf("got env %v, want OUTPOST_TENANT_ID set", env)
	}
}

func TestAgentEnv_MissingSecretIsNotFatal(t *testing.T) {
	jobs := &fakeJobStore{}
	rec := &recordingAuditStore{}
	auditSvc := audit.NewService(rec, discardLogger())
	exec := NewExecutor(jobs, auditSvc, runtime.NewExecRuntime(), staticSecrets{}, ExecutorConfig{WorkspaceRoot: t.TempDir()}, discardLogger())

	env := exec.agentEnv(context.Background(), testJob())

	if _, ok := env["CLAUDE_API_KEY"]; ok {
		t.Error("did not expect credential for tenant without one")
	}
	if len(env) != 2 {
		t.Errorf("expected only the base env, got %v", env)
	}
}

// failingRuntime simulates a runtime that cannot spawn the agent at all.
type failingRuntime struct {
	err error
}

func (f failingRuntime) Run(ctx context.Context, spec runtime.RunSpec) (runtime.Result, error) {
	return runtime.Result{}, f.err
}

func TestExecute_SpawnFailureFailsJob(t *testing.T) {
	jobs := &fakeJobStore{}
	rec := &recordingAuditStore{}
	auditSvc := audit.NewService(rec, discardLogger())
	rt := failingRuntime{err: errors.New("runtime unavailable")}
	exec := NewExecutor(jobs, auditSvc, rt, nil, ExecutorConfig{WorkspaceRoot: t.TempDir()}, discardLogger())

	if err := exec.Execute(context.Background(), testJob()); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(jobs.finished) != 1 || jobs.finished[0] != store.JobStatusFailed {
		t.Fatalf("expected failed transition, got %v", jobs.finished)
	}
	if jobs.lastUpdate.ErrorMessage == nil || !strings.Contains(*jobs.lastUpdate.ErrorMessage, "runtime unavailable") {
		t.Errorf("expected runtime error message, got %v", jobs.lastUpdate.ErrorMessage)
	}

	want := []string{audit.ActionStartJob, audit.ActionJobError}
	if len(rec.actions) != 2 || rec.actions[0] != want[0] || rec.actions[1] != want[1] {
		t.Errorf("got audit actions %v, want %v", rec.actions, want)
	}
}
