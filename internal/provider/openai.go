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

const openAIName = "openai"

// OpenAIClient covers both capabilities: chat completions for narration
// scripts and the speech endpoint for audio synthesis.
type OpenAIClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	ttsModel    string
	maxTTSChars int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	TopP        float64       `json:"top_p,omitempty"`
}

type chatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

type speechRequestBody struct {
	Model string  `json:"model"`
	Voice string  `json:"voice"`
	Input string  `json:"input"`
	Speed float64 `json:"speed,omitempty"`
}

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(cfg *config.OpenAIConfig, maxTTSChars int) *OpenAIClient {
	return &OpenAIClient{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		ttsModel:    cfg.TTSModel,
		maxTTSChars: maxTTSChars,
	}
}

func (c *OpenAIClient) Name() string  { return openAIName }
func (c *OpenAIClient) Model() string { return c.model }

// TTSModel is part of the audio cache key: a model change must produce a
// different digest.
func (c *OpenAIClient) TTSModel() string { return c.ttsModel }

// IsConfigured returns true if the client has valid configuration.
func (c *OpenAIClient) IsConfigured() bool {
	return c.apiKey != ""
}

// GenerateTour issues one chat completion and validates the JSON-shaped
// response into a TextResult.
func (c *OpenAIClient) GenerateTour(ctx context.Context, req *TextRequest) (*TextResult, error) {
	reqBody := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: tourSystemPrompt},
			{Role: "user", Content: BuildTourPrompt(req)},
		},
		Temperature: 0.7,
		MaxTokens:   2000,
		TopP:        0.9,
	}

	respBody, err := c.post(ctx, "/chat/completions", reqBody)
	if err != nil {
		return nil, err
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, permanentErr(openAIName, fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if len(chatResp.Choices) == 0 {
		return nil, permanentErr(openAIName, fmt.Errorf("no choices in response"))
	}

	result, err := parseTourResponse(chatResp.Choices[0].Message.Content)
	if err != nil {
		return nil, permanentErr(openAIName, err)
	}
	return result, nil
}

// SynthesizeSpeech issues one speech request over text already truncated
// to the configured character budget and returns the raw audio bytes.
func (c *OpenAIClient) SynthesizeSpeech(ctx context.Context, req *SpeechRequest) ([]byte, error) {
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	reqBody := speechRequestBody{
		Model: c.ttsModel,
		Voice: req.Voice,
		Input: truncateForSpeech(req.Text, c.maxTTSChars),
		Speed: speed,
	}

	audio, err := c.post(ctx, "/audio/speech", reqBody)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, permanentErr(openAIName, fmt.Errorf("empty audio payload"))
	}
	return audio, nil
}

func (c *OpenAIClient) post(ctx context.Context, endpoint string, body interface{}) ([]byte, error) {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return nil, permanentErr(openAIName, fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, permanentErr(openAIName, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, wrapTransport(ctx, openAIName, fmt.Errorf("failed to send request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(openAIName, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTP(openAIName, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}
