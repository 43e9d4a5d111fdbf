package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// TopSize is the number of ranked entries every provider must return.
// Responses with any other usable arity are rejected outright: persisting a
// ranking that silently dropped a candidate is worse than falling back.
const TopSize = 5

// Entry is one ranked item returned by a provider. ID carries the target
// identifier declared by the model, Num its 1-based position in the input
// payload (used as a reconciliation fallback when ID is wrong or missing).
type Entry struct {
	ID     int64
	Num    int
	Reason string
}

// Ranker ranks matching payloads with a remote model. Implementations return
// exactly TopSize entries or an error; partial results are never returned.
type Ranker interface {
	RankCandidates(ctx context.Context, payloadJSON string) ([]Entry, error)
	RankRoles(ctx context.Context, payloadJSON string) ([]Entry, error)
	RankTopics(ctx context.Context, payloadJSON string) ([]Entry, error)
}

// ErrMalformedResponse marks model output that failed the all-or-nothing
// parse gate.
var ErrMalformedResponse = errors.New("malformed model response")

// Task describes one ranking task's function-call contract.
type Task struct {
	// Function is the name of the forced function call.
	Function string
	// IDKey is the JSON key carrying the target identifier in each entry.
	IDKey string
	// Description documents the function for the model.
	Description string
	// System is the system instruction sent with the request.
	System string
}

var (
	// TaskCandidates ranks users against a topic or a role.
	TaskCandidates = Task{
		Function:    "rank_candidates",
		IDKey:       "user_id",
		Description: "Return the five best candidates with short justifications.",
		System: "You are an assistant matching people to thesis topics. " +
			"Always call the provided function with exactly five entries.",
	}

	// TaskRoles ranks open roles for a student.
	TaskRoles = Task{
		Function:    "rank_roles",
		IDKey:       "role_id",
		Description: "Pick the five best roles for the student and explain each choice.",
		System: "You are an assistant helping a student pick project roles. " +
			"Always call the provided function with exactly five entries.",
	}

	// TaskTopics ranks open topics for a supervisor.
	TaskTopics = Task{
		Function:    "rank_topics",
		IDKey:       "topic_id",
		Description: "Pick the five topics best suited to the supervisor and explain why.",
		System: "You are an assistant matching supervisors to thesis topics. " +
			"Always call the provided function with exactly five entries.",
	}
)

// UserPrompt embeds the serialized payload into the task's user message.
func (t Task) UserPrompt(payloadJSON string) string {
	return fmt.Sprintf("Input data (JSON):\n%s\n\nCall %s with the five best options.", payloadJSON, t.Function)
}

// Schema returns the parameters schema for the forced function call as a plain
// JSON-shaped structure. Both providers accept this form.
func (t Task) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"top": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						t.IDKey:  map[string]any{"type": "integer"},
						"num":    map[string]any{"type": "integer"},
						"reason": map[string]any{"type": "string"},
					},
					"required": []string{t.IDKey, "num", "reason"},
				},
				"minItems": TopSize,
				"maxItems": TopSize,
			},
		},
		"required": []string{"top"},
	}
}

// ParseTop converts decoded function-call arguments into ranked entries.
// Malformed array members are skipped; unless exactly TopSize well-typed
// entries remain, ErrMalformedResponse is returned.
func (t Task) ParseTop(args map[string]any) ([]Entry, error) {
	raw, ok := args["top"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: missing top array", ErrMalformedResponse)
	}

	if len(raw) > TopSize {
		raw = raw[:TopSize]
	}

	entries := make([]Entry, 0, TopSize)
	for _, item := range raw {
		fields, ok := item.(map[string]any)
		if !ok {
			continue
		}

		id, ok := asInt64(fields[t.IDKey])
		if !ok {
			continue
		}
		num, ok := asInt64(fields["num"])
		if !ok {
			continue
		}
		reason, ok := fields["reason"].(string)
		if !ok || strings.TrimSpace(reason) == "" {
			continue
		}

		entries = append(entries, Entry{ID: id, Num: int(num), Reason: strings.TrimSpace(reason)})
	}

	if len(entries) != TopSize {
		return nil, fmt.Errorf("%w: got %d well-typed entries, want %d", ErrMalformedResponse, len(entries), TopSize)
	}

	return entries, nil
}

// asInt64 accepts the numeric encodings produced by JSON decoding and the
// genai SDK.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
