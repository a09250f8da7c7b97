package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"outpost/pkg/api"
)

// Client handles API calls to the outpost controller.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewClient creates a new client with the given base URL and token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

func (c *Client) do(method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token))
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	return nil
}

// SubmitJob sends POST /jobs to submit a new job.
func (c *Client) SubmitJob(req api.SubmitJobRequest) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodPost, "/jobs", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetJob sends GET /jobs/{id} to retrieve job details.
func (c *Client) GetJob(jobID string) (*api.JobResponse, error) {
	var result api.JobResponse
	if err := c.do(http.MethodGet, "/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListJobs sends GET /jobs to list the tenant's most recent jobs.
func (c *Client) ListJobs(limit int) ([]api.JobResponse, error) {
	var result []api.JobResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/jobs?limit=%d", limit), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CancelJob sends DELETE /jobs/{id} to cancel a pending job.
func (c *Client) CancelJob(jobID string) (*api.CancelJobResponse, error) {
	var result api.CancelJobResponse
	if err := c.do(http.MethodDelete, "/jobs/"+jobID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetAudit sends GET /audit to retrieve the tenant's audit trail.
func (c *Client) GetAudit(limit int) ([]api.AuditEntryResponse, error) {
	var result []api.AuditEntryResponse
	if err := c.do(http.MethodGet, fmt.Sprintf("/audit?limit=%d", limit), nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// CreateTenant sends POST /tenants to register a new tenant.
// Requires the system secret as the token.
func (c *Client) CreateTenant(req api.CreateTenantRequest) (*api.CreateTenantResponse, error) {
	var result api.CreateTenantResponse
	if err := c.do(http.MethodPost, "/tenants", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetTenant sends GET /tenants/{id} to retrieve tenant details.
func (c *Client) GetTenant(tenantID string) (*api.TenantResponse, error) {
	var result api.TenantResponse
	if err := c.do(http.MethodGet, "/tenants/"+tenantID, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteTenant sends DELETE /tenants/{id} to soft-delete a tenant.
func (c *Client) DeleteTenant(tenantID string) error {
	return c.do(http.MethodDelete, "/tenants/"+tenantID, nil, nil)
}

// CreateKey sends POST /tenants/{id}/keys to generate a new API key.
func (c *Client) CreateKey(tenantID string, req api.CreateKeyRequest) (*api.CreateKeyResponse, error) {
	var result api.CreateKeyResponse
	if err := c.do(http.MethodPost, "/tenants/"+tenantID+"/keys", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RevokeKey sends DELETE /tenants/{id}/keys/{key_id} to revoke an API key.
func (c *Client) RevokeKey(tenantID, keyID string) error {
	return c.do(http.MethodDelete, "/tenants/"+tenantID+"/keys/"+keyID, nil, nil)
}
