// Package cvtext extracts plain text from stored CV files.
//
// Extraction is best-effort: each strategy that fails or yields nothing hands
// over to the next one, and an empty string is returned when every strategy is
// exhausted. Callers are expected to keep the original reference around as a
// fallback.
package cvtext

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	pdf "github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
)

var (
	xmlTags    = regexp.MustCompile(`<[^>]+>`)
	spaceRuns  = regexp.MustCompile(`[ \t\r\f\v]+`)
	newlineRun = regexp.MustCompile(`\n+`)
)

// ExtractFile returns the textual content of the file at path. The MIME type,
// when known, picks the first strategy to try; the file extension is the second
// hint. Remaining strategies run in a fixed order until one produces text.
func ExtractFile(path string, mimeType string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}

	mt := strings.ToLower(mimeType)
	ext := strings.ToLower(filepath.Ext(path))

	if strings.Contains(mt, "pdf") || ext == ".pdf" {
		if text := readPDF(path); text != "" {
			return text
		}
	}
	if strings.Contains(mt, "word") || ext == ".docx" {
		if text := readDocx(path); text != "" {
			return text
		}
	}
	if strings.Contains(mt, "text") || ext == ".txt" || ext == ".md" {
		if text := readTextFile(path); text != "" {
			return text
		}
	}

	if text := readTextFile(path); text != "" {
		return text
	}
	if text := readPDF(path); text != "" {
		return text
	}
	return readDocx(path)
}

func readTextFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	// Binary formats are handled by the dedicated readers.
	if bytes.ContainsRune(data, 0) {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func readPDF(path string) string {
	f, r, err := pdf.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	rs, err := r.GetPlainText()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rs); err != nil {
		return ""
	}
	return normalizeWhitespace(buf.String())
}

func readDocx(path string) string {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return ""
	}
	defer r.Close()

	content := r.Editable().GetContent()
	if content == "" {
		return ""
	}

	// The library exposes the raw document.xml; convert paragraph boundaries
	// to newlines and strip the remaining markup.
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = strings.ReplaceAll(content, "<w:tab/>", "\t")
	content = xmlTags.ReplaceAllString(content, " ")
	return normalizeWhitespace(content)
}

func normalizeWhitespace(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = newlineRun.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}
