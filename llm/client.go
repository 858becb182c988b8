package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultChatBaseURL     = "https://gms.ssafy.io/gmsapi/api.openai.com/v1"
	defaultGenerateBaseURL = "https://gms.ssafy.io/gmsapi/generativelanguage.googleapis.com"
	defaultModelID         = "gpt-5-nano"
	defaultTimeout         = 30 * time.Second
)

// Backend identifies the wire protocol used to reach the model provider.
type Backend int

const (
	// BackendChatCompletions speaks the OpenAI-compatible chat completions API.
	BackendChatCompletions Backend = iota + 1
	// BackendGenerateContent speaks the Gemini generateContent HTTP API.
	BackendGenerateContent
)

// ResolveBackend maps a model name onto the backend that serves it.
func ResolveBackend(modelID string) (Backend, error) {
	lower := strings.ToLower(strings.TrimSpace(modelID))
	switch {
	case strings.Contains(lower, "gpt"):
		return BackendChatCompletions, nil
	case strings.Contains(lower, "gemini"):
		return BackendGenerateContent, nil
	default:
		return 0, fmt.Errorf("llm: unsupported model %q", modelID)
	}
}

// Config carries provider settings resolved once at startup.
type Config struct {
	APIKey          string
	ChatBaseURL     string
	GenerateBaseURL string
	ModelID         string
	Timeout         time.Duration
}

// Client wraps the HTTP calls to the configured generative-text backend.
// The backend is selected from the model name at construction time.
type Client struct {
	cfg        Config
	backend    Backend
	httpClient *http.Client
}

// NewClient validates the configuration and constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("llm: API key is required")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.ChatBaseURL == "" {
		cfg.ChatBaseURL = defaultChatBaseURL
	}
	if cfg.GenerateBaseURL == "" {
		cfg.GenerateBaseURL = defaultGenerateBaseURL
	}
	cfg.ChatBaseURL = strings.TrimRight(cfg.ChatBaseURL, "/")
	cfg.GenerateBaseURL = strings.TrimRight(cfg.GenerateBaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	backend, err := ResolveBackend(cfg.ModelID)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:        cfg,
		backend:    backend,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// NewClientFromEnv constructs a Client using environment variables.
//
// Expected variables:
//   - LLM_API_KEY: required API key for the provider
//   - LLM_MODEL_ID: optional model override (defaults to defaultModelID)
//   - LLM_CHAT_BASE_URL / LLM_GENERATE_BASE_URL: optional endpoint overrides
func NewClientFromEnv() (*Client, error) {
	return NewClient(Config{
		APIKey:          strings.TrimSpace(os.Getenv("LLM_API_KEY")),
		ModelID:         strings.TrimSpace(os.Getenv("LLM_MODEL_ID")),
		ChatBaseURL:     strings.TrimSpace(os.Getenv("LLM_CHAT_BASE_URL")),
		GenerateBaseURL: strings.TrimSpace(os.Getenv("LLM_GENERATE_BASE_URL")),
	})
}

// Backend reports which protocol the client was wired to.
func (c *Client) Backend() Backend {
	if c == nil {
		return 0
	}
	return c.backend
}

// Usage captures token accounting returned by the provider, when available.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// GenerateResult holds the raw text output of a generation call.
type GenerateResult struct {
	Content string
	Usage   *Usage
}

// Generate sends the prompt pair to the configured backend and returns the raw text reply.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (GenerateResult, error) {
	if c == nil {
		return GenerateResult{}, errors.New("llm: client is nil")
	}
	if strings.TrimSpace(userPrompt) == "" {
		return GenerateResult{}, errors.New("llm: user prompt cannot be empty")
	}

	switch c.backend {
	case BackendChatCompletions:
		return c.chatCompletion(ctx, systemPrompt, userPrompt)
	case BackendGenerateContent:
		return c.generateContent(ctx, systemPrompt, userPrompt)
	default:
		return GenerateResult{}, fmt.Errorf("llm: unknown backend %d", c.backend)
	}
}

type chatCompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string                  `json:"model"`
	Messages []chatCompletionMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatCompletionMessage `json:"message"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

func (c *Client) chatCompletion(ctx context.Context, systemPrompt, userPrompt string) (GenerateResult, error) {
	payload := chatCompletionRequest{
		Model: c.cfg.ModelID,
		Messages: []chatCompletionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return GenerateResult{}, fmt.Errorf("llm: encode request: %w", err)
	}

	endpoint := c.cfg.ChatBaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llm: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return GenerateResult{}, fmt.Errorf("llm: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return GenerateResult{}, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return GenerateResult{}, errors.New("llm: response contains no choices")
	}

	return GenerateResult{
		Content: strings.TrimSpace(decoded.Choices[0].Message.Content),
		Usage:   decoded.Usage,
	}, nil
}

type generatePart struct {
	Text string `json:"text"`
}

type generateTurn struct {
	Parts []generatePart `json:"parts"`
}

type generateContentRequest struct {
	Contents []generateTurn `json:"contents"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content generateTurn `json:"content"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (c *Client) generateContent(ctx context.Context, systemPrompt, userPrompt string) (GenerateResult, error) {
	payload := generateContentRequest{
		Contents: []generateTurn{
			{Parts: []generatePart{{Text: systemPrompt + "\n\n" + userPrompt}}},
		},
	}

	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(payload); err != nil {
		return GenerateResult{}, fmt.Errorf("llm: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		c.cfg.GenerateBaseURL, url.PathEscape(c.cfg.ModelID), url.QueryEscape(c.cfg.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return GenerateResult{}, fmt.Errorf("llm: execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return GenerateResult{}, fmt.Errorf("llm: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}

	var decoded generateContentResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return GenerateResult{}, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return GenerateResult{}, errors.New("llm: response contains no candidates")
	}

	result := GenerateResult{
		Content: strings.TrimSpace(decoded.Candidates[0].Content.Parts[0].Text),
	}
	if decoded.UsageMetadata != nil {
		result.Usage = &Usage{
			PromptTokens:     decoded.UsageMetadata.PromptTokenCount,
			CompletionTokens: decoded.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      decoded.UsageMetadata.TotalTokenCount,
		}
	}
	return result, nil
}
