package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/ai"
	"github.com/mentormatch/mentormatch/internal/ai/gemini"
	"github.com/mentormatch/mentormatch/internal/ai/openai"
	"github.com/mentormatch/mentormatch/internal/matching"
	"github.com/mentormatch/mentormatch/internal/postgres"
	"github.com/mentormatch/mentormatch/internal/secrets"
)

// buildService wires the full matching stack from configuration. The caller
// owns the returned pool and must Close it.
func buildService(ctx context.Context, config *Config, log *zap.Logger) (*matching.Service, *pgxpool.Pool, error) {
	if strings.TrimSpace(config.DatabaseURL) == "" {
		return nil, nil, fmt.Errorf("database-url is not configured (set DATABASE_URL)")
	}

	pool, err := postgres.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}

	ranker, err := buildRanker(ctx, config.AI, log)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if ranker == nil {
		log.Warn("no LLM provider configured, serving deterministic fallbacks only")
	}

	deps := matching.Deps{
		Repo:   postgres.NewRepository(pool, config.MediaRoot, log),
		Sink:   postgres.NewSink(pool),
		Ranker: ranker,
		Logger: log,
	}
	if mc := config.Matching; mc != nil {
		deps.CandidateLimit = mc.CandidateLimit
		deps.RolePoolLimit = mc.RolePoolLimit
		deps.TopicPoolLimit = mc.TopicPoolLimit
	}

	return matching.New(deps), pool, nil
}

// buildRanker picks the provider. An explicit ai.provider wins; otherwise the
// first provider with a configured key is used. No key at all means no ranker,
// which the service treats as permanent fallback mode.
func buildRanker(ctx context.Context, config *AIConfig, log *zap.Logger) (ai.Ranker, error) {
	if config == nil {
		return nil, nil
	}

	provider := strings.ToLower(strings.TrimSpace(config.Provider))
	switch provider {
	case "openai":
		return buildOpenAI(config, log, true)
	case "gemini":
		return buildGemini(ctx, config, log, true)
	case "":
		if ranker, err := buildOpenAI(config, log, false); err != nil || ranker != nil {
			return ranker, err
		}
		return buildGemini(ctx, config, log, false)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", config.Provider)
	}
}

func buildOpenAI(config *AIConfig, log *zap.Logger, required bool) (ai.Ranker, error) {
	pc := config.OpenAI
	if pc == nil {
		pc = &OpenAIConfig{}
	}

	key, err := secrets.Load(secrets.Source{Name: "openai api key", Value: pc.APIKey, Env: "PROXY_API_KEY", File: pc.APIKeyFile})
	if err != nil {
		if required {
			return nil, err
		}
		return nil, nil
	}

	return openai.New(openai.Config{
		APIKey:       key,
		BaseURL:      pc.BaseURL,
		Model:        pc.Model,
		Temperature:  config.Temperature,
		MaxLogLength: pc.MaxLogLength,
	}, log)
}

func buildGemini(ctx context.Context, config *AIConfig, log *zap.Logger, required bool) (ai.Ranker, error) {
	pc := config.Gemini
	if pc == nil {
		pc = &GeminiConfig{}
	}

	key, err := secrets.Load(secrets.Source{Name: "gemini api key", Value: pc.APIKey, Env: "GEMINI_API_KEY", File: pc.APIKeyFile})
	if err != nil {
		if required {
			return nil, err
		}
		return nil, nil
	}

	return gemini.New(ctx, gemini.Config{
		APIKey:       key,
		Model:        pc.Model,
		Temperature:  config.Temperature,
		MaxRetries:   pc.MaxRetries,
		MaxLogLength: pc.MaxLogLength,
	}, log)
}
