package cvtext

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestExtractFilePlainText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cv.txt", []byte("  Go developer.\nFive years of services.  \n"))

	got := ExtractFile(path, "text/plain")
	if got != "Go developer.\nFive years of services." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractFileUsesExtensionWithoutMIME(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cv.md", []byte("# CV\nGo developer"))

	if got := ExtractFile(path, ""); got == "" {
		t.Fatalf("expected the extension hint to pick the text reader")
	}
}

func TestExtractFileRejectsBinaryAsText(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "cv.bin", []byte{0x25, 0x00, 0x50, 0x44, 0x46})

	if got := ExtractFile(path, ""); got != "" {
		t.Fatalf("expected binary garbage to yield nothing, got %q", got)
	}
}

func TestExtractFileMissing(t *testing.T) {
	if got := ExtractFile(filepath.Join(t.TempDir(), "absent.pdf"), "application/pdf"); got != "" {
		t.Fatalf("expected nothing for a missing file, got %q", got)
	}
	if got := ExtractFile("", ""); got != "" {
		t.Fatalf("expected nothing for an empty path, got %q", got)
	}
}

func TestExtractFileCorruptPDFFallsThrough(t *testing.T) {
	dir := t.TempDir()
	// Claims to be a PDF but is readable text, so the text strategy catches it.
	path := writeFile(t, dir, "cv.pdf", []byte("not really a pdf"))

	if got := ExtractFile(path, "application/pdf"); got != "not really a pdf" {
		t.Fatalf("unexpected fallback result: %q", got)
	}
}

func TestNormalizeWhitespace(t *testing.T) {
	got := normalizeWhitespace("a b   c\t d\n\n\ne")
	if got != "a b c d\ne" {
		t.Fatalf("unexpected normalization: %q", got)
	}
}
