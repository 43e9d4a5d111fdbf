package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestStringFieldsSkipsEmptyEntries(t *testing.T) {
	fields := StringFields(
		StringField{Key: FieldProvider, Value: "openai"},
		StringField{Key: "  ", Value: "ignored"},
		StringField{Key: FieldModel, Value: "   "},
	)

	if len(fields) != 1 {
		t.Fatalf("expected 1 field, got %d", len(fields))
	}
	if fields[0].Key != FieldProvider {
		t.Fatalf("unexpected field key: %s", fields[0].Key)
	}
}

func TestWithProviderNilLogger(t *testing.T) {
	logger := WithProvider(nil, "gemini", "gemini-2.5-flash")
	if logger == nil {
		t.Fatalf("expected a usable logger")
	}
	logger.Debug("should not panic")
}

func TestWithProviderKeepsLoggerWhenEmpty(t *testing.T) {
	base := zap.NewNop()
	if got := WithProvider(base, "", ""); got != base {
		t.Fatalf("expected the original logger when no fields apply")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("abcdef", 3); got != "abc..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
	if got := Truncate("abc", 10); got != "abc" {
		t.Fatalf("short strings must pass through, got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("limit 0 must yield an empty preview, got %q", got)
	}
}
