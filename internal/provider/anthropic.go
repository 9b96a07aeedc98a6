package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/walkumentary/api/internal/config"
)

const anthropicName = "anthropic"

// AnthropicClient is a text-only provider: Anthropic has no speech
// endpoint, so it never joins the audio chain.
type AnthropicClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	version    string
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewAnthropicClient creates a new Anthropic API client.
func NewAnthropicClient(cfg *config.AnthropicConfig) *AnthropicClient {
	return &AnthropicClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		version: cfg.Version,
	}
}

func (c *AnthropicClient) Name() string  { return anthropicName }
func (c *AnthropicClient) Model() string { return c.model }

// IsConfigured returns true if the client has valid configuration.
func (c *AnthropicClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateTour issues one messages request and validates the JSON-shaped
// response into a TextResult.
func (c *AnthropicClient) GenerateTour(ctx context.Context, req *TextRequest) (*TextResult, error) {
	reqBody := anthropicRequest{
		Model:       c.model,
		MaxTokens:   2000,
		Temperature: 0.7,
		System:      tourSystemPrompt,
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildTourPrompt(req)},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, permanentErr(anthropicName, fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, permanentErr(anthropicName, fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.version)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, wrapTransport(ctx, anthropicName, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(anthropicName, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTP(anthropicName, resp.StatusCode, string(respBody))
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, permanentErr(anthropicName, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(msgResp.Content) == 0 {
		return nil, permanentErr(anthropicName, fmt.Errorf("no content blocks in response"))
	}

	result, err := parseTourResponse(msgResp.Content[0].Text)
	if err != nil {
		return nil, permanentErr(anthropicName, err)
	}
	return result, nil
}
