package gemini

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/mentormatch/mentormatch/internal/ai"
)

type stubGenerator struct {
	responses []*genai.GenerateContentResponse
	errs      []error

	calls      int
	lastModel  string
	lastConfig *genai.GenerateContentConfig
}

func (s *stubGenerator) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	idx := s.calls
	s.calls++
	s.lastModel = model
	s.lastConfig = config
	if idx < len(s.errs) && s.errs[idx] != nil {
		return nil, s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return nil, errors.New("no scripted response")
}

func functionCallResponse(name string, args map[string]any) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{
				Parts: []*genai.Part{{
					FunctionCall: &genai.FunctionCall{Name: name, Args: args},
				}},
			},
		}},
	}
}

func validArgs() map[string]any {
	top := make([]any, 0, ai.TopSize)
	for i := 0; i < ai.TopSize; i++ {
		top = append(top, map[string]any{
			"user_id": float64(100 + i),
			"num":     float64(i + 1),
			"reason":  "fits",
		})
	}
	return map[string]any{"top": top}
}

func newTestClient(stub *stubGenerator, maxRetries int) *Client {
	return &Client{
		models:      stub,
		model:       "test-model",
		temperature: 0.2,
		maxRetries:  maxRetries,
		maxLogLen:   200,
		logger:      zap.NewNop(),
	}
}

func TestRankCandidates(t *testing.T) {
	stub := &stubGenerator{responses: []*genai.GenerateContentResponse{
		functionCallResponse("rank_candidates", validArgs()),
	}}
	client := newTestClient(stub, 1)

	entries, err := client.RankCandidates(context.Background(), "{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != ai.TopSize {
		t.Fatalf("expected %d entries, got %d", ai.TopSize, len(entries))
	}
	if entries[0].ID != 100 {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}

	if stub.lastModel != "test-model" {
		t.Fatalf("unexpected model: %s", stub.lastModel)
	}
	tc := stub.lastConfig.ToolConfig
	if tc == nil || tc.FunctionCallingConfig == nil || tc.FunctionCallingConfig.Mode != genai.FunctionCallingConfigModeAny {
		t.Fatalf("expected a forced function call config")
	}
}

func TestRankCandidatesRetriesTransientErrors(t *testing.T) {
	slept := 0
	sleep = func(time.Duration) { slept++ }
	defer func() { sleep = time.Sleep }()

	stub := &stubGenerator{
		errs: []error{genai.APIError{Code: 503, Message: "overloaded"}},
		responses: []*genai.GenerateContentResponse{
			nil,
			functionCallResponse("rank_candidates", validArgs()),
		},
	}
	client := newTestClient(stub, 3)

	entries, err := client.RankCandidates(context.Background(), "{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != ai.TopSize {
		t.Fatalf("expected %d entries, got %d", ai.TopSize, len(entries))
	}
	if stub.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", stub.calls)
	}
	if slept != 1 {
		t.Fatalf("expected one backoff sleep, got %d", slept)
	}
}

func TestRankCandidatesDoesNotRetryPermanentErrors(t *testing.T) {
	sleep = func(time.Duration) {}
	defer func() { sleep = time.Sleep }()

	stub := &stubGenerator{
		errs: []error{genai.APIError{Code: 400, Message: "bad request"}},
	}
	client := newTestClient(stub, 3)

	_, err := client.RankCandidates(context.Background(), "{}")
	if err == nil {
		t.Fatalf("expected an error")
	}
	if stub.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", stub.calls)
	}
}

func TestRankCandidatesNoFunctionCall(t *testing.T) {
	stub := &stubGenerator{responses: []*genai.GenerateContentResponse{{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "some prose instead"}}},
		}},
	}}}
	client := newTestClient(stub, 1)

	_, err := client.RankCandidates(context.Background(), "{}")
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRankCandidatesWrongFunctionName(t *testing.T) {
	stub := &stubGenerator{responses: []*genai.GenerateContentResponse{
		functionCallResponse("some_other_function", validArgs()),
	}}
	client := newTestClient(stub, 1)

	_, err := client.RankCandidates(context.Background(), "{}")
	if !errors.Is(err, ai.ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRankTopicsUsesTopicTask(t *testing.T) {
	top := make([]any, 0, ai.TopSize)
	for i := 0; i < ai.TopSize; i++ {
		top = append(top, map[string]any{
			"topic_id": float64(300 + i),
			"num":      float64(i + 1),
			"reason":   "fits",
		})
	}
	stub := &stubGenerator{responses: []*genai.GenerateContentResponse{
		functionCallResponse("rank_topics", map[string]any{"top": top}),
	}}
	client := newTestClient(stub, 1)

	entries, err := client.RankTopics(context.Background(), "{}")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entries[0].ID != 300 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}
