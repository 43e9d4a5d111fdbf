// Package openai implements the ranking contract on top of an
// OpenAI-compatible chat-completions endpoint, typically reached through a
// proxy. This is the primary provider: the forced function call maps directly
// onto the chat-completions functions API.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/ai"
	"github.com/mentormatch/mentormatch/internal/logger"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.2
	defaultMaxLogLen   = 200
)

// Config carries the provider settings read once at process start.
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	Temperature  float64
	MaxLogLength int
}

// Client issues one chat-completions request per ranking call. It holds a
// long-lived API handle and no other mutable state.
type Client struct {
	api         completer
	model       string
	temperature float32
	maxLogLen   int
	logger      *zap.Logger
}

// completer is the slice of the go-openai client the ranker needs; tests
// substitute a fake.
type completer interface {
	CreateChatCompletion(ctx context.Context, req gopenai.ChatCompletionRequest) (gopenai.ChatCompletionResponse, error)
}

// New creates a ranking client for the configured endpoint.
func New(cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}

	clientCfg := gopenai.DefaultConfig(apiKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = base
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}

	return &Client{
		api:         gopenai.NewClientWithConfig(clientCfg),
		model:       model,
		temperature: float32(temperature),
		maxLogLen:   maxLogLen,
		logger:      logger.WithProvider(log, "openai", model),
	}, nil
}

// RankCandidates ranks users against a topic or role.
func (c *Client) RankCandidates(ctx context.Context, payloadJSON string) ([]ai.Entry, error) {
	return c.rank(ctx, ai.TaskCandidates, payloadJSON)
}

// RankRoles ranks open roles for a student.
func (c *Client) RankRoles(ctx context.Context, payloadJSON string) ([]ai.Entry, error) {
	return c.rank(ctx, ai.TaskRoles, payloadJSON)
}

// RankTopics ranks open topics for a supervisor.
func (c *Client) RankTopics(ctx context.Context, payloadJSON string) ([]ai.Entry, error) {
	return c.rank(ctx, ai.TaskTopics, payloadJSON)
}

// rank performs a single attempt; failures are reported to the caller, which
// owns the deterministic fallback.
func (c *Client) rank(ctx context.Context, task ai.Task, payloadJSON string) ([]ai.Entry, error) {
	req := gopenai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []gopenai.ChatCompletionMessage{
			{Role: gopenai.ChatMessageRoleSystem, Content: task.System},
			{Role: gopenai.ChatMessageRoleUser, Content: task.UserPrompt(payloadJSON)},
		},
		Functions: []gopenai.FunctionDefinition{{
			Name:        task.Function,
			Description: task.Description,
			Parameters:  task.Schema(),
		}},
		FunctionCall: gopenai.FunctionCall{Name: task.Function},
	}

	c.logger.Debug("chat completion request",
		zap.String("function", task.Function),
		zap.String("payload_preview", logger.Truncate(payloadJSON, c.maxLogLen)),
	)

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices returned", ai.ErrMalformedResponse)
	}

	call := resp.Choices[0].Message.FunctionCall
	if call == nil || strings.TrimSpace(call.Arguments) == "" {
		return nil, fmt.Errorf("%w: no function call in response", ai.ErrMalformedResponse)
	}

	c.logger.Debug("chat completion response",
		zap.String("function", task.Function),
		zap.String("arguments_preview", logger.Truncate(call.Arguments, c.maxLogLen)),
	)

	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		return nil, fmt.Errorf("%w: decode arguments: %v", ai.ErrMalformedResponse, err)
	}

	return task.ParseTop(args)
}
