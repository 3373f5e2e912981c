// Package ids mints the three identifier kinds the engine uses:
// RunId/AnalyzeId (process-scoped UUIDs) and ImageId (a stable 64-bit
// hash of the image's identity).
package ids

import (
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// RunId identifies one execution of the engine over a set of images.
type RunId string

// AnalyzeId identifies one Analyze row / result set.
type AnalyzeId string

// NewRunId mints a fresh RunId.
func NewRunId() RunId { return RunId(uuid.NewString()) }

// NewAnalyzeId mints a fresh AnalyzeId.
func NewAnalyzeId() AnalyzeId { return AnalyzeId(uuid.NewString()) }

// ImageId is a 64-bit hash of (runId, absolutePath), stable across
// restarts for the same inputs.
type ImageId uint64

// NewImageId hashes runId and absPath into a stable ImageId.
func NewImageId(runId RunId, absPath string) ImageId {
	h := xxhash.New()
	_, _ = h.WriteString(string(runId))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(absPath)
	return ImageId(h.Sum64())
}
