package cmd

import "testing"

func TestResolveVersionPrefersBuildFlag(t *testing.T) {
	old := version
	defer func() { version = old }()

	version = "v1.2.3"
	if got := resolveVersion(); got != "v1.2.3" {
		t.Fatalf("unexpected version: %s", got)
	}

	version = ""
	if got := resolveVersion(); got == "" {
		t.Fatalf("expected a non-empty fallback version")
	}
}
