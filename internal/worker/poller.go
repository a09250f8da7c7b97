package worker

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"outpost/internal/audit"
	"outpost/internal/store"
)

// DefaultReceiveWait is the long-poll window for one receive call.
const DefaultReceiveWait = 20 * time.Second

// DefaultHeartbeat is the interval at which an in-flight message's lease is
// extended. Each beat pushes the lease two intervals out, so a crashed
// worker's message reappears within roughly twice this duration.
const DefaultHeartbeat = 2 * time.Minute

// errorBackoff is the pause after a queue error before polling again.
const errorBackoff = 5 * time.Second

// PollerConfig holds consumer loop tunables.
type PollerConfig struct {
	ReceiveWait time.Duration
	Heartbeat   time.Duration
}

// Poller is the queue consumer. It leases one message at a time, hands it to
// the executor synchronously, and deletes the message only when the executor
// reports a settled outcome. While the executor runs, a heartbeat extends
// the message's lease so jobs longer than the visibility timeout are not
// redelivered mid-run. Parallelism comes from running more poller processes,
// not from concurrency inside one.
type Poller struct {
	queue    store.Queue
	executor *Executor
	audit    *audit.Service
	config   PollerConfig
	logger   *slog.Logger
	done     chan struct{}
}

// NewPoller creates a Poller.
func NewPoller(q store.Queue, exec *Executor, auditSvc *audit.Service, cfg PollerConfig, log *slog.Logger) *Poller {
	if cfg.ReceiveWait <= 0 {
		cfg.ReceiveWait = DefaultReceiveWait
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	return &Poller{
		queue:    q,
		executor: exec,
		audit:    auditSvc,
		config:   cfg,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Run blocks on the poll-execute loop until ctx is cancelled. The context is
// checked between iterations and also aborts the blocking receive, so
// shutdown does not wait out a full poll window.
func (p *Poller) Run(ctx context.Context) error {
	defer close(p.done)
	p.logger.Info("poller started", "receive_wait", p.config.ReceiveWait)

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping")
			return ctx.Err()
		default:
		}

		msg, err := p.queue.Receive(ctx, p.config.ReceiveWait)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			p.logger.Error("receive failed", "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(errorBackoff):
			}
			continue
		}
		if msg == nil {
			// Poll window elapsed empty.
			continue
		}

		p.process(ctx, msg)
	}
}

// process dispatches one leased message. The message is deleted only when
// the executor returns nil; on any error it stays leased and reappears after
// the visibility timeout for another attempt.
func (p *Poller) process(ctx context.Context, msg *store.Message) {
	log := p.logger.With("tenant_id", msg.Attributes.TenantID, "job_id", msg.Attributes.JobID)

	var job store.Job
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		// A payload that cannot decode will never decode. Drop it instead
		// of redelivering forever, leaving an audit trace of the loss.
		log.Error("dropping undecodable message", "error", err)
		p.audit.Log(ctx, msg.Attributes.TenantID, audit.ActionJobError, msg.Attributes.JobID,
			map[string]any{"error": "undecodable queue payload dropped"})
		if delErr := p.queue.Delete(ctx, msg.Receipt); delErr != nil {
			log.Error("failed to delete poison message", "error", delErr)
		}
		return
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	hbDone := make(chan struct{})
	go p.heartbeat(hbCtx, msg.Receipt, hbDone, log)

	err := p.executor.Execute(ctx, &job)
	stopHeartbeat()
	<-hbDone

	if err != nil {
		if errors.Is(err, errInFlight) {
			log.Info("job held by another worker, leaving message leased")
		} else {
			log.Error("execution attempt failed, leaving message for redelivery", "error", err)
		}
		return
	}

	if err := p.queue.Delete(ctx, msg.Receipt); err != nil {
		// The job is settled; redelivery will be a no-op at the status layer.
		log.Error("failed to delete processed message", "error", err)
	}
}

// heartbeat extends the lease of the message being processed until ctx is
// cancelled. Extension failures are not fatal: the worst case is an early
// redelivery, which the conditional transitions already absorb.
func (p *Poller) heartbeat(ctx context.Context, receipt int64, done chan struct{}, log *slog.Logger) {
	defer close(done)

	ticker := time.NewTicker(p.config.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			until := time.Now().UTC().Add(2 * p.config.Heartbeat)
			if err := p.queue.ExtendVisibility(ctx, receipt, until); err != nil {
				log.Warn("failed to extend message lease", "error", err)
			}
		}
	}
}

// Done returns a channel that is closed when the poller has fully stopped.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}
