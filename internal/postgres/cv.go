package postgres

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/mentormatch/mentormatch/internal/cvtext"
	"github.com/mentormatch/mentormatch/internal/matching"
)

const mediaPrefix = "/media/"

// ResolveCV turns a stored CV reference into plain text. Raw text and URLs
// pass through untouched; a /media/<id> pointer is resolved against the
// media_files table and its content extracted from disk. Extraction is best
// effort: any failure returns the original reference so the caller still has
// something to show the model.
func (r *Repository) ResolveCV(ctx context.Context, ref string) string {
	val := strings.TrimSpace(ref)
	if val == "" || !strings.HasPrefix(val, mediaPrefix) {
		return val
	}

	mediaID, err := strconv.ParseInt(val[strings.LastIndex(val, "/")+1:], 10, 64)
	if err != nil {
		return val
	}

	var objectKey, mimeType string
	err = r.pool.QueryRow(ctx,
		`SELECT object_key, COALESCE(mime_type, '') FROM media_files WHERE id = $1`,
		mediaID,
	).Scan(&objectKey, &mimeType)
	if err != nil {
		r.logger.Debug("media file lookup failed", zap.Int64("media_id", mediaID), zap.Error(err))
		return val
	}

	path := filepath.Join(r.mediaRoot, objectKey)
	text := cvtext.ExtractFile(path, mimeType)
	if text == "" {
		return val
	}

	return matching.TrimText("CV (from file "+filepath.Base(path)+"):\n"+text, matching.TextLimit)
}
