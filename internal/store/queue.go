package store

import (
	"context"
	"encoding/json"
	"time"
)

// Queue is the dispatch channel between the submission gateway and the
// workers. Delivery is at-least-once: a received message stays invisible to
// other consumers for the visibility timeout, and reappears if it is not
// deleted in time. FIFO order across messages is not guaranteed.
type Queue interface {
	// Enqueue publishes one message. The payload is the full job record;
	// the attributes are routing metadata readable without decoding the body.
	Enqueue(ctx context.Context, payload json.RawMessage, attrs MessageAttributes) error

	// Receive leases at most one message, long-polling up to wait before
	// giving up. Returns (nil, nil) when the poll window elapses empty.
	Receive(ctx context.Context, wait time.Duration) (*Message, error)

	// Delete removes a leased message permanently. Called only after the
	// executor reached a terminal outcome for the referenced job.
	Delete(ctx context.Context, receipt int64) error

	// ExtendVisibility pushes the lease deadline of a received message.
	ExtendVisibility(ctx context.Context, receipt int64, until time.Time) error

	// Count returns the number of messages currently in the queue,
	// leased or not.
	Count(ctx context.Context) (int64, error)
}

// MessageAttributes are the queryable routing attributes attached to a
// queue message. Infrastructure (metrics, tracing, tenant-pinned workers)
// reads these without touching the payload.
type MessageAttributes struct {
	TenantID string
	JobID    string
	Priority string
}

// Message is one leased queue entry. Receipt identifies the lease for
// Delete and ExtendVisibility.
type Message struct {
	Receipt    int64
	Payload    json.RawMessage
	Attributes MessageAttributes
	ReceivedAt time.Time
}
