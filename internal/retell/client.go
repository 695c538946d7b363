// Package retell provides the HTTP client for the Retell AI voice-calling API.
// The client is constructed explicitly and injected; it holds no global state.
package retell

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"aileadgen_backend/platform/logger"
)

// ErrUnavailable wraps transport-level failures reaching the provider.
var ErrUnavailable = errors.New("retell: provider unavailable")

// APIError is a structured non-2xx response from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("retell: provider rejected request: status %d: %s", e.StatusCode, e.Body)
}

// Config carries the settings the client needs.
type Config interface {
	GetRetellBaseURL() string
	GetRetellAPIKey() string
	GetRetellFromNumber() string
}

// Client is the HTTP client for the Retell API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	fromNumber string
	log        *logger.Logger
}

// New creates a new Retell API client.
func New(cfg Config, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    cfg.GetRetellBaseURL(),
		apiKey:     cfg.GetRetellAPIKey(),
		fromNumber: cfg.GetRetellFromNumber(),
		log:        log,
	}
}

// PlaceCallParams are the inputs for an outbound phone call.
type PlaceCallParams struct {
	ToNumber         string
	AgentID          string
	DynamicVariables map[string]string
}

type createPhoneCallRequest struct {
	FromNumber       string            `json:"from_number"`
	ToNumber         string            `json:"to_number"`
	OverrideAgentID  string            `json:"override_agent_id,omitempty"`
	DynamicVariables map[string]string `json:"retell_llm_dynamic_variables,omitempty"`
}

type createPhoneCallResponse struct {
	CallID string `json:"call_id"`
}

// PlaceCall starts an outbound call and returns the provider call ID.
// The acknowledgment is synchronous; the call outcome arrives later through
// the call-status webhook.
func (c *Client) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	payload := createPhoneCallRequest{
		FromNumber:       c.fromNumber,
		ToNumber:         params.ToNumber,
		OverrideAgentID:  params.AgentID,
		DynamicVariables: params.DynamicVariables,
	}

	var resp createPhoneCallResponse
	if err := c.post(ctx, "/v2/create-phone-call", payload, &resp); err != nil {
		return "", err
	}
	if resp.CallID == "" {
		return "", &APIError{StatusCode: http.StatusOK, Body: "response missing call_id"}
	}

	return resp.CallID, nil
}

// Agent is a provider-side calling agent.
type Agent struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
}

// ListAgents returns the agents configured at the provider.
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list-agents", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("retell request failed", "path", "/list-agents", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var agents []Agent
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return agents, nil
}

type createAgentResponse struct {
	AgentID string `json:"agent_id"`
}

// GetOrCreateAgent looks for an agent with the configured name and creates it
// from the agent config when absent. Administrative; not on the per-call path.
func (c *Client) GetOrCreateAgent(ctx context.Context, cfg AgentConfig) (string, error) {
	agents, err := c.ListAgents(ctx)
	if err != nil {
		return "", err
	}
	for _, agent := range agents {
		if agent.AgentName == cfg.AgentName {
			return agent.AgentID, nil
		}
	}

	var resp createAgentResponse
	if err := c.post(ctx, "/create-agent", cfg.toRequest(), &resp); err != nil {
		return "", err
	}
	if resp.AgentID == "" {
		return "", &APIError{StatusCode: http.StatusOK, Body: "response missing agent_id"}
	}

	return resp.AgentID, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error("retell request failed", "path", path, "error", err)
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
}
