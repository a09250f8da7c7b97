// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// CreateTenantRequest is the request body for creating a new tenant.
type CreateTenantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateTenantResponse is the response body after creating a tenant.
// APIKey is the raw credential, shown exactly once.
type CreateTenantResponse struct {
	ID     string `json:"tenant_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Status string `json:"status"`
	APIKey string `json:"api_key"`
}

// TenantResponse represents a tenant in API responses.
type TenantResponse struct {
	ID        string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateTenantRequest is the request body for updating tenant details.
type UpdateTenantRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CreateKeyRequest is the request body for generating an API key.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// CreateKeyResponse carries the raw key, shown exactly once.
type CreateKeyResponse struct {
	KeyID     string    `json:"key_id"`
	Name      string    `json:"name"`
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitJobRequest is the request body for submitting a job.
type SubmitJobRequest struct {
	Agent    string `json:"agent"`
	Command  string `json:"command"`
	Priority string `json:"priority,omitempty"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	JobID          string     `json:"job_id"`
	TenantID       string     `json:"tenant_id"`
	Agent          string     `json:"agent"`
	Command        string     `json:"command"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	OutputLocation *string    `json:"output_location,omitempty"`
	ErrorMessage   *string    `json:"error_message,omitempty"`

	// QueueError is set when the job was stored but could not be queued.
	// The job exists in pending state and will not run until reconciled.
	QueueError string `json:"queue_error,omitempty"`
}

// CancelJobResponse acknowledges a cancellation.
type CancelJobResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// AuditEntryResponse represents one audit record.
type AuditEntryResponse struct {
	Timestamp time.Time      `json:"timestamp"`
	Action    string         `json:"action"`
	Resource  string         `json:"resource"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
