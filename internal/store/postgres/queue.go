package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"outpost/internal/store"
)

// receivePollInterval is how often Receive re-checks the queue while
// long-polling an empty queue.
const receivePollInterval = 500 * time.Millisecond

// Enqueue publishes one message. Routing attributes are stored as columns so
// infrastructure can read them without decoding the payload.
func (s *Store) Enqueue(ctx context.Context, payload json.RawMessage, attrs store.MessageAttributes) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_queue (tenant_id, job_id, priority, payload, visible_after)
		VALUES ($1, $2, $3, $4, NOW())
	`, attrs.TenantID, attrs.JobID, attrs.Priority, payload)
	if err != nil {
		return fmt.Errorf("failed to enqueue job %s: %w", attrs.JobID, err)
	}
	return nil
}

// Receive leases at most one message using SELECT ... FOR UPDATE SKIP LOCKED,
// long-polling up to wait. While leased, the message is invisible to other
// consumers for the store's visibility timeout. Returns (nil, nil) when the
// poll window elapses with nothing available.
func (s *Store) Receive(ctx context.Context, wait time.Duration) (*store.Message, error) {
	deadline := time.Now().Add(wait)

	for {
		msg, err := s.tryReceive(ctx)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		sleep := receivePollInterval
		if remaining < sleep {
			sleep = remaining
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
}

func (s *Store) tryReceive(ctx context.Context) (*store.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var msg store.Message
	err = tx.QueryRowContext(ctx, `
		SELECT id, tenant_id, job_id, priority, payload
		FROM job_queue
		WHERE visible_after <= NOW()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT 1
	`).Scan(&msg.Receipt, &msg.Attributes.TenantID, &msg.Attributes.JobID, &msg.Attributes.Priority, &msg.Payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("receive query failed: %w", err)
	}

	// Lease: hide the message until the visibility timeout elapses.
	_, err = tx.ExecContext(ctx, `
		UPDATE job_queue
		SET visible_after = NOW() + ($1 * INTERVAL '1 second')
		WHERE id = $2
	`, s.visibility.Seconds(), msg.Receipt)
	if err != nil {
		return nil, fmt.Errorf("visibility update failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	msg.ReceivedAt = time.Now()
	return &msg, nil
}

// Delete removes a leased message. Deleting an already-deleted receipt is a
// no-op: redelivery plus the job store's conditional writes make that safe.
func (s *Store) Delete(ctx context.Context, receipt int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM job_queue WHERE id = $1", receipt)
	if err != nil {
		return fmt.Errorf("failed to delete message %d: %w", receipt, err)
	}
	return nil
}

// ExtendVisibility pushes the lease deadline of a received message.
func (s *Store) ExtendVisibility(ctx context.Context, receipt int64, until time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE job_queue SET visible_after = $1 WHERE id = $2
	`, until, receipt)
	if err != nil {
		return fmt.Errorf("failed to extend visibility for %d: %w", receipt, err)
	}
	return nil
}

// Count reports queue depth for the metrics gauge.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM job_queue").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return n, nil
}
