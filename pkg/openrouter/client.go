package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/desyr/companion-chat/pkg/domain"
)

// Generation parameter defaults, tuned for roleplay continuity.
const (
	DefaultModel             = "qwen/qwen-plus"
	DefaultTemperature       = 0.90
	DefaultMaxTokens         = 900
	DefaultTopP              = 0.95
	DefaultFrequencyPenalty  = 0.40
	DefaultPresencePenalty   = 0.40
	DefaultRepetitionPenalty = 1.15
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// CredentialProvider resolves the API key at call time. Reading it here,
// rather than capturing it at construction, lets the user set or replace
// the key while the server is running.
type CredentialProvider interface {
	APIKey(ctx context.Context) (string, error)
}

// Config carries the provider endpoint and generation parameters. Nil
// sampling parameters and empty strings fall back to the package defaults;
// a pointer to zero is an explicit zero, not a request for the default.
type Config struct {
	BaseURL  string
	Referer  string
	AppTitle string

	Model             string
	Temperature       *float64
	MaxTokens         int
	TopP              *float64
	FrequencyPenalty  *float64
	PresencePenalty   *float64
	RepetitionPenalty *float64
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature == nil {
		c.Temperature = ptr(DefaultTemperature)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.TopP == nil {
		c.TopP = ptr(DefaultTopP)
	}
	if c.FrequencyPenalty == nil {
		c.FrequencyPenalty = ptr(DefaultFrequencyPenalty)
	}
	if c.PresencePenalty == nil {
		c.PresencePenalty = ptr(DefaultPresencePenalty)
	}
	if c.RepetitionPenalty == nil {
		c.RepetitionPenalty = ptr(DefaultRepetitionPenalty)
	}
	return c
}

func ptr(v float64) *float64 { return &v }

type client struct {
	cfg         Config
	credentials CredentialProvider
	hc          *http.Client
}

func NewClient(cfg Config, credentials CredentialProvider) (*client, error) {
	if credentials == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	return &client{
		cfg:         cfg.withDefaults(),
		credentials: credentials,
		hc:          &http.Client{},
	}, nil
}

// CreateChatCompletion submits the ordered message list and returns the
// first choice's reply text. Only role and content cross the wire;
// bookkeeping fields stay behind.
func (c *client) CreateChatCompletion(ctx context.Context, messages []domain.Message) (string, error) {
	key, err := c.credentials.APIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("reading API key: %w", err)
	}
	if key == "" {
		return "", &domain.ConfigurationError{Reason: "OpenRouter API key is not set"}
	}

	request := &chatCompletionsRequest{
		Messages:          stripForWire(messages),
		Model:             c.cfg.Model,
		Temperature:       *c.cfg.Temperature,
		MaxTokens:         c.cfg.MaxTokens,
		TopP:              *c.cfg.TopP,
		FrequencyPenalty:  *c.cfg.FrequencyPenalty,
		PresencePenalty:   *c.cfg.PresencePenalty,
		RepetitionPenalty: *c.cfg.RepetitionPenalty,
	}

	resp, err := c.sendChatCompletionRequest(ctx, key, request)
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", &domain.MalformedResponseError{Detail: "no choices in response"}
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", &domain.MalformedResponseError{Detail: "empty message content in first choice"}
	}

	slog.DebugContext(ctx, "completion received",
		"model", resp.Model,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)

	return content, nil
}

func (c *client) sendChatCompletionRequest(ctx context.Context, key string, request *chatCompletionsRequest) (*chatCompletionsResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	url := c.cfg.BaseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+key)
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
	}
	if c.cfg.AppTitle != "" {
		req.Header.Set("X-Title", c.cfg.AppTitle)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return nil, &domain.ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var completions chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&completions); err != nil {
		return nil, &domain.MalformedResponseError{Detail: err.Error()}
	}

	return &completions, nil
}

func stripForWire(messages []domain.Message) []chatMessage {
	wire := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, chatMessage{Role: m.Role, Content: m.Content})
	}
	return wire
}
