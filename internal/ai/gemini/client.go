// Package gemini implements the ranking contract with the Gemini API using
// forced tool calling. Transient API errors are retried with a short backoff;
// the observable contract is unchanged. After retries exhaust, the caller
// falls back deterministically.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mentormatch/mentormatch/internal/ai"
	"github.com/mentormatch/mentormatch/internal/logger"
)

const (
	defaultModel       = "gemini-2.5-flash"
	defaultTemperature = 0.2
	defaultMaxLogLen   = 200
	retryBackoff       = 2 * time.Second
)

// sleep is swapped out in tests.
var sleep = time.Sleep

// Config carries the provider settings read once at process start.
type Config struct {
	APIKey       string
	Model        string
	Temperature  float64
	MaxRetries   int
	MaxLogLength int
}

// Client issues ranking requests against the Gemini API.
type Client struct {
	models      contentGenerator
	model       string
	temperature float32
	maxRetries  int
	maxLogLen   int
	logger      *zap.Logger
}

// contentGenerator is the slice of the genai client the ranker needs; tests
// substitute a fake.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// New creates a ranking client for the Gemini API backend.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	maxLogLen := cfg.MaxLogLength
	if maxLogLen <= 0 {
		maxLogLen = defaultMaxLogLen
	}

	return &Client{
		models:      client.Models,
		model:       model,
		temperature: float32(temperature),
		maxRetries:  maxRetries,
		maxLogLen:   maxLogLen,
		logger:      logger.WithProvider(log, "gemini", model),
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

func (c *Client) rank(ctx context.Context, task ai.Task, payloadJSON string) ([]ai.Entry, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(c.temperature),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: task.System}},
		},
		Tools: []*genai.Tool{{
			FunctionDeclarations: []*genai.FunctionDeclaration{{
				Name:        task.Function,
				Description: task.Description,
				Parameters:  taskSchema(task),
			}},
		}},
		ToolConfig: &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{
				Mode:                 genai.FunctionCallingConfigModeAny,
				AllowedFunctionNames: []string{task.Function},
			},
		},
	}

	c.logger.Debug("generate content request",
		zap.String("function", task.Function),
		zap.String("payload_preview", logger.Truncate(payloadJSON, c.maxLogLen)),
	)

	var resp *genai.GenerateContentResponse
	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err = c.models.GenerateContent(ctx, c.model, genai.Text(task.UserPrompt(payloadJSON)), config)
		if err == nil {
			break
		}
		if attempt == c.maxRetries || !isTransient(err) {
			return nil, fmt.Errorf("generate content: %w", err)
		}
		c.logger.Warn("transient gemini error, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		sleep(retryBackoff)
	}

	call := functionCall(resp, task.Function)
	if call == nil {
		return nil, fmt.Errorf("%w: no function call in response", ai.ErrMalformedResponse)
	}

	return task.ParseTop(call.Args)
}

// taskSchema mirrors ai.Task.Schema in the genai type system. Arity is
// enforced by ParseTop; the schema only pins field names and types.
func taskSchema(task ai.Task) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"top": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						task.IDKey: {Type: genai.TypeInteger},
						"num":      {Type: genai.TypeInteger},
						"reason":   {Type: genai.TypeString},
					},
					Required: []string{task.IDKey, "num", "reason"},
				},
			},
		},
		Required: []string{"top"},
	}
}

func functionCall(resp *genai.GenerateContentResponse, name string) *genai.FunctionCall {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || part.FunctionCall == nil {
				continue
			}
			if part.FunctionCall.Name == name {
				return part.FunctionCall
			}
		}
	}
	return nil
}

func isTransient(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code >= http.StatusInternalServerError || apiErr.Code == http.StatusTooManyRequests
}
