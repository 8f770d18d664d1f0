package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/generallabsolutions/crm-backend/internal/audit"
	"github.com/generallabsolutions/crm-backend/internal/leads"
	"github.com/generallabsolutions/crm-backend/internal/tasks"
)

// ErrCommunication is returned for any transport failure or non-2xx reply.
// The dashboard treats every flavor of server trouble the same way: keep
// the local state and tell the user the move did not stick.
var ErrCommunication = errors.New("dashboard: could not reach the CRM server")

const defaultRequestTimeout = 10 * time.Second

// ClientConfig configures the dashboard API client.
type ClientConfig struct {
	BaseURL      string
	HTTPClient   *http.Client
	SessionToken string
}

// APIClient is a typed HTTP client for the CRM REST API.
type APIClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewAPIClient constructs a client for the given server.
func NewAPIClient(cfg ClientConfig) (*APIClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("dashboard: base url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}
	return &APIClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		token:      cfg.SessionToken,
	}, nil
}

// ListLeads fetches every lead.
func (c *APIClient) ListLeads(ctx context.Context) ([]leads.Lead, error) {
	var results []leads.Lead
	if err := c.do(ctx, http.MethodGet, "/api/leads", nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdateLead replaces a lead with the given full record.
func (c *APIClient) UpdateLead(ctx context.Context, lead leads.Lead) (leads.Lead, error) {
	var updated leads.Lead
	path := fmt.Sprintf("/api/leads/%d", lead.ID)
	if err := c.do(ctx, http.MethodPut, path, lead, &updated); err != nil {
		return leads.Lead{}, err
	}
	return updated, nil
}

// ListTasks fetches every task with its joined lead name.
func (c *APIClient) ListTasks(ctx context.Context) ([]tasks.TaskWithLead, error) {
	var results []tasks.TaskWithLead
	if err := c.do(ctx, http.MethodGet, "/api/tasks", nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ListLogs fetches the most recent log entries.
func (c *APIClient) ListLogs(ctx context.Context) ([]audit.Entry, error) {
	var results []audit.Entry
	if err := c.do(ctx, http.MethodGet, "/api/logs", nil, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		request.Header.Set("Authorization", "Bearer "+c.token)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: unexpected status %d", ErrCommunication, response.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	return nil
}
