package artifact

import (
	"context"
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreWritesPNGUnderKey(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	img := image.NewGray(image.Rect(0, 0, 4, 4))
	err := s.Write(context.Background(), "analyze1/img1/p1/tile_0_0.png", img)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "analyze1/img1/p1/tile_0_0.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data[:4])
}
