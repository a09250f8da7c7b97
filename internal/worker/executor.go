// Package worker contains the queue consumer and the job executor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"outpost/internal/audit"
	"outpost/internal/store"
	"outpost/internal/worker/runtime"
)

// DefaultJobTimeout bounds a job's wall-clock execution time.
const DefaultJobTimeout = 600 * time.Second

// timeoutErrorMessage is the fixed diagnostic stored when the timeout fires.
const timeoutErrorMessage = "Timeout expired"

// abandonedErrorMessage is stored when a redelivered job turns out to have
// been orphaned mid-run by a crashed worker.
const abandonedErrorMessage = "execution abandoned by worker"

// errInFlight reports that another worker currently holds the job inside
// its lease. The message must stay on the queue: if that worker crashes,
// a later redelivery is what crosses the stale grace period and reclaims
// the job.
var errInFlight = errors.New("job in flight on another worker")

// SecretSource is the lookup the executor uses to inject agent credentials.
type SecretSource interface {
	Get(ctx context.Context, tenantID, name string) (string, error)
}

// ExecutorConfig holds executor tunables.
type ExecutorConfig struct {
	// WorkspaceRoot is the directory under which per-job workspaces are
	// materialized as <root>/<tenant_id>/<job_id>.
	WorkspaceRoot string

	// JobTimeout is the wall-clock limit per command (default 600s).
	JobTimeout time.Duration

	// StaleGrace is how long a job may sit in running before a redelivery
	// treats it as abandoned. Defaults to twice the job timeout.
	StaleGrace time.Duration
}

// Executor drives one job to a terminal state per invocation. All of its
// status writes are conditional; losing a conditional write means another
// actor (a cancel, or another worker) already settled the job, and the
// executor backs off without side effects.
type Executor struct {
	jobs    store.JobStore
	audit   *audit.Service
	rt      runtime.Runtime
	secrets SecretSource
	config  ExecutorConfig
	logger  *slog.Logger
}

// NewExecutor creates an Executor. secrets may be nil, in which case no
// credential injection happens.
func NewExecutor(jobs store.JobStore, auditSvc *audit.Service, rt runtime.Runtime, secrets SecretSource, cfg ExecutorConfig, log *slog.Logger) *Executor {
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = filepath.Join(os.TempDir(), "outpost", "workspaces")
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = DefaultJobTimeout
	}
	if cfg.StaleGrace <= 0 {
		cfg.StaleGrace = 2 * cfg.JobTimeout
	}
	return &Executor{
		jobs:    jobs,
		audit:   auditSvc,
		rt:      rt,
		secrets: secrets,
		config:  cfg,
		logger:  log,
	}
}

// Execute runs one dispatched job. A nil return means the job reached (or
// was already in) a settled state and the queue message can be deleted; a
// non-nil return leaves the message to be redelivered after the visibility
// timeout.
func (e *Executor) Execute(ctx context.Context, job *store.Job) error {
	tracer := otel.Tracer("outpost-worker")
	ctx, span := tracer.Start(ctx, "execute_job",
		trace.WithAttributes(
			attribute.String("job.id", job.JobID),
			attribute.String("tenant.id", job.TenantID),
			attribute.String("job.agent", string(job.Agent)),
		),
		trace.WithSpanKind(trace.SpanKindConsumer),
	)
	defer span.End()

	log := e.logger.With("tenant_id", job.TenantID, "job_id", job.JobID)

	// Claim the job. The conditional write is the race resolution against
	// tenant cancels and duplicate deliveries: if it misses, the job is no
	// longer ours to run.
	startedAt := time.Now().UTC()
	err := e.jobs.StartJob(ctx, job.TenantID, job.JobID, startedAt)
	if err == store.ErrConflict {
		return e.handleClaimConflict(ctx, job, log)
	}
	if err != nil {
		return fmt.Errorf("failed to claim job %s: %w", job.JobID, err)
	}
	e.audit.Log(ctx, job.TenantID, audit.ActionStartJob, job.JobID, nil)
	log.Info("job started", "agent", job.Agent)

	// Fresh workspace per (tenant, job). Never shared, never reused.
	workspace := filepath.Join(e.config.WorkspaceRoot, job.TenantID, job.JobID)
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return e.fail(ctx, job, audit.ActionJobError, fmt.Sprintf("failed to create workspace: %v", err), log)
	}

	env := e.agentEnv(ctx, job)

	execCtx, cancel := context.WithTimeout(ctx, e.config.JobTimeout)
	defer cancel()

	result, runErr := e.rt.Run(execCtx, runtime.RunSpec{
		Command: job.Command,
		WorkDir: workspace,
		Env:     env,
		Image:   agentImage(job.Agent),
	})

	switch {
	case runErr == context.DeadlineExceeded:
		log.Warn("job timed out", "timeout", e.config.JobTimeout)
		return e.fail(ctx, job, audit.ActionJobTimeout, timeoutErrorMessage, log)

	case runErr != nil:
		span.RecordError(runErr)
		return e.fail(ctx, job, audit.ActionJobError, runErr.Error(), log)

	case result.ExitCode == 0:
		span.SetAttributes(attribute.Int("job.exit_code", 0))
		upd := store.TerminalUpdate{CompletedAt: time.Now().UTC(), Output: &workspace}
		if err := e.jobs.FinishJob(ctx, job.TenantID, job.JobID, store.JobStatusSuccess, upd); err != nil {
			if err == store.ErrConflict {
				return nil
			}
			return fmt.Errorf("failed to record success for %s: %w", job.JobID, err)
		}
		e.audit.Log(ctx, job.TenantID, audit.ActionJobSuccess, job.JobID, nil)
		log.Info("job succeeded")
		return nil

	default:
		span.SetAttributes(attribute.Int("job.exit_code", result.ExitCode))
		errMsg := result.Stderr
		if errMsg == "" {
			errMsg = fmt.Sprintf("exit code %d", result.ExitCode)
		}
		return e.fail(ctx, job, audit.ActionJobFailed, errMsg, log)
	}
}

// handleClaimConflict decides what a lost pending -> running race means.
// A cancelled or terminal job is settled: no-op, message deletable. A job
// still marked running belongs to a live worker unless it has sat there past
// the stale grace period, in which case the owning worker is presumed dead
// and the job is conditionally failed. Inside the grace period the message
// must not be consumed, so errInFlight is returned to keep it leased.
func (e *Executor) handleClaimConflict(ctx context.Context, job *store.Job, log *slog.Logger) error {
	current, err := e.jobs.GetJob(ctx, job.TenantID, job.JobID)
	if err == store.ErrNotFound {
		log.Warn("dispatched job no longer exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to inspect job %s after claim conflict: %w", job.JobID, err)
	}

	if current.Status != store.JobStatusRunning {
		log.Info("job already settled, skipping", "status", current.Status)
		return nil
	}

	if current.StartedAt != nil && time.Since(*current.StartedAt) > e.config.StaleGrace {
		log.Warn("reclaiming abandoned job", "started_at", current.StartedAt)
		return e.fail(ctx, job, audit.ActionJobError, abandonedErrorMessage, log)
	}

	// Another worker is still inside its lease. Leave the record alone and
	// keep the message around in case that worker never finishes.
	return errInFlight
}

// fail performs the atomic terminal write running -> failed and emits the
// matching audit entry. A conflict means someone else settled the job first;
// that is a no-op, not an error.
func (e *Executor) fail(ctx context.Context, job *store.Job, action, errMsg string, log *slog.Logger) error {
	msg := errMsg
	upd := store.TerminalUpdate{CompletedAt: time.Now().UTC(), ErrorMessage: &msg}
	if err := e.jobs.FinishJob(ctx, job.TenantID, job.JobID, store.JobStatusFailed, upd); err != nil {
		if err == store.ErrConflict {
			return nil
		}
		return fmt.Errorf("failed to record failure for %s: %w", job.JobID, err)
	}
	e.audit.Log(ctx, job.TenantID, action, job.JobID, map[string]any{"error": errMsg})
	log.Info("job failed", "action", action)
	return nil
}

// agentEnv injects the tenant's provisioned credential for the requested
// agent, when one exists. A missing secret is not an error; the command may
// not need one.
func (e *Executor) agentEnv(ctx context.Context, job *store.Job) map[string]string {
	env := map[string]string{
		"OUTPOST_JOB_ID":    job.JobID,
		"OUTPOST_TENANT_ID": job.TenantID,
	}
	if e.secrets == nil {
		return env
	}

	value, err := e.secrets.Get(ctx, job.TenantID, string(job.Agent))
	if err != nil {
		if err != store.ErrNotFound {
			e.logger.Warn("secret lookup failed", "tenant_id", job.TenantID, "agent", job.Agent, "error", err)
		}
		return env
	}
	env[strings.ToUpper(string(job.Agent))+"_API_KEY"] = value
	return env
}

// agentImage maps an agent to its container image for the docker runtime.
func agentImage(agent store.AgentType) string {
	return "outpost/agent-" + string(agent) + ":latest"
}
