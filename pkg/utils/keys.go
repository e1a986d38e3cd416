package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// IdempotencyKey returns the caller-supplied token verbatim, or derives a
// stable key from the semantic payload so that retries of the same
// (project, source) pair collapse onto one job.
func IdempotencyKey(token, projectID, sourceURL string) string {
	if token != "" {
		return token
	}
	sum := sha256.Sum256([]byte(projectID + "|" + sourceURL))
	return hex.EncodeToString(sum[:])
}

// BuildObjectKey places the ingested file under the project's input prefix
// with a fresh name, keeping the source extension.
func BuildObjectKey(projectID, localFile string) string {
	ext := filepath.Ext(localFile)
	if ext == "" {
		ext = ".mp4"
	}
	return fmt.Sprintf("projects/%s/inputs/videos/%s%s", projectID, uuid.New().String(), ext)
}
