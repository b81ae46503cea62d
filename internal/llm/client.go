// Package llm defines the language-model capability the research engine
// consumes: free-text completion plus a JSON-contract helper with the
// progressive parse fallbacks the engine's resilience model depends on.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orbiterhq/deepresearch/internal/tracing"
)

// Request is one completion call against the agent service.
type Request struct {
	Prompt       string  `json:"prompt"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
	Temperature  float64 `json:"temperature"`
	AgentID      string  `json:"agent_id,omitempty"`
	ModelTier    string  `json:"model_tier,omitempty"`
}

// Client is the injected LLM capability. Implementations are assumed
// fallible; callers own their fallback paths.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleteJSON runs a completion and unmarshals the first JSON object found
// in the response into out. Malformed or missing JSON returns an error so
// the caller can take its fallback path.
func CompleteJSON(ctx context.Context, c Client, req Request, out any) error {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return err
	}
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(obj), out); err != nil {
		return fmt.Errorf("parse JSON response: %w", err)
	}
	return nil
}

// ServiceClient calls an LLM agent service over HTTP JSON.
type ServiceClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// ServiceConfig configures the agent service client.
type ServiceConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewServiceClient builds the agent service client. The extended default
// timeout accommodates long structured-output completions.
func NewServiceClient(cfg ServiceConfig, logger *zap.Logger) *ServiceClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &ServiceClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logger,
	}
}

// Configured reports whether a service URL was supplied.
func (c *ServiceClient) Configured() bool { return c.baseURL != "" }

type agentQueryRequest struct {
	Query       string         `json:"query"`
	MaxTokens   int            `json:"max_tokens,omitempty"`
	Temperature float64        `json:"temperature"`
	AgentID     string         `json:"agent_id,omitempty"`
	ModelTier   string         `json:"model_tier,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

type agentQueryResponse struct {
	Success   bool   `json:"success"`
	Response  string `json:"response"`
	ModelUsed string `json:"model_used,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

// Complete issues one completion call.
func (c *ServiceClient) Complete(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("llm service not configured")
	}

	reqBody := agentQueryRequest{
		Query:       req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		AgentID:     req.AgentID,
		ModelTier:   req.ModelTier,
	}
	if req.SystemPrompt != "" {
		reqBody.Context = map[string]any{"system_prompt": req.SystemPrompt}
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/agent/query", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create llm request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.AgentID != "" {
		httpReq.Header.Set("X-Agent-ID", req.AgentID)
	}
	tracing.InjectTraceparent(ctx, httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("llm service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d from llm service", resp.StatusCode)
	}

	var parsed agentQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if !parsed.Success {
		return "", fmt.Errorf("llm service reported failure")
	}
	return parsed.Response, nil
}
