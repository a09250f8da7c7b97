// Package store contains the database layer for outpost.
package store

import "time"

// TenantStatus represents the lifecycle state of a tenant account.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusDeleted   TenantStatus = "deleted"
)

// Tenant represents an isolated customer account.
// All jobs, keys, and audit entries are partitioned by TenantID.
// Deletion is a status flip; tenant history is never physically removed.
type Tenant struct {
	ID        string
	Name      string
	Email     string
	Status    TenantStatus
	CreatedAt time.Time

	// Requests per second allowed for this tenant. 0 means unlimited.
	RateLimit      float64
	RateLimitBurst int
}

// APIKey is a stored credential record. Only the SHA-256 digest of the raw
// key is persisted; the raw value is returned once at creation time.
type APIKey struct {
	KeyHash   string
	KeyID     string
	TenantID  string
	Name      string
	Scopes    []string
	Revoked   bool
	CreatedAt time.Time
	LastUsed  *time.Time
}

// ScopeJobRun is the minimal scope granted to every new key.
const ScopeJobRun = "job:run"

// AgentType enumerates the coding agents a job may request.
type AgentType string

const (
	AgentClaude AgentType = "claude"
	AgentCodex  AgentType = "codex"
	AgentGemini AgentType = "gemini"
	AgentGrok   AgentType = "grok"
	AgentAider  AgentType = "aider"
)

// ValidAgent reports whether s names a recognized agent.
func ValidAgent(s string) bool {
	switch AgentType(s) {
	case AgentClaude, AgentCodex, AgentGemini, AgentGrok, AgentAider:
		return true
	}
	return false
}

// JobStatus represents the state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusSuccess   JobStatus = "success"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transition is permitted out of s.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ValidTransition reports whether from -> to is an edge of the job state
// machine. Every status mutation must pass this check before it is attempted
// as a conditional write.
//
//	pending -> running | cancelled
//	running -> success | failed
func ValidTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusRunning || to == JobStatusCancelled
	case JobStatusRunning:
		return to == JobStatusSuccess || to == JobStatusFailed
	}
	return false
}

// Job represents one unit of requested work. JobID is a ULID, so
// lexicographic order equals submission order within a tenant.
type Job struct {
	JobID          string     `json:"job_id"`
	TenantID       string     `json:"tenant_id"`
	Agent          AgentType  `json:"agent"`
	Command        string     `json:"command"`
	Status         JobStatus  `json:"status"`
	Priority       string     `json:"priority,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	OutputLocation *string    `json:"output_location,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
}

// AuditEntry is one append-only record of a state-changing action.
// Entries are never updated or deleted by the application; time-based expiry
// is handled by the storage layer via ExpiresAt.
type AuditEntry struct {
	ID        int64
	TenantID  string
	Timestamp time.Time
	Action    string
	Resource  string
	Metadata  map[string]any
	RequestID string
	IPAddress string
	UserAgent string
	ExpiresAt time.Time
}

// Secret is a tenant-scoped named credential injected into job execution.
type Secret struct {
	TenantID  string
	Name      string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
