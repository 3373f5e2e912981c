// Package artifact implements the control-image artifact store the
// image-saver command writes through: PNG snapshots of a pipeline's
// intermediate or final image, kept alongside the result database for
// visual QA.
package artifact

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"

	"bytes"
)

// Store persists a rendered PNG artifact under a caller-chosen key
// (e.g. "<analyzeId>/<imageId>/<pipelineUid>/<tile>.png").
type Store interface {
	Write(ctx context.Context, key string, img image.Image) error
}

// LocalStore writes artifacts under a root directory on local disk,
// the default backend when no object-storage endpoint is configured.
type LocalStore struct {
	Root string
}

// NewLocalStore builds a Store rooted at root.
func NewLocalStore(root string) *LocalStore { return &LocalStore{Root: root} }

func (s *LocalStore) Write(ctx context.Context, key string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return err
	}
	path := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
