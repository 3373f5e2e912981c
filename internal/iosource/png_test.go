package iosource

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imagec/engine/internal/plane"
)

func writeTestPNG(t *testing.T, width, height int, fill func(x, y int) uint8) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetGray(x, y, color.Gray{Y: fill(x, y)})
		}
	}
	path := filepath.Join(t.TempDir(), "plane.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestEnumerateReportsSingleSeriesDimensions(t *testing.T) {
	path := writeTestPNG(t, 12, 8, func(x, y int) uint8 { return 0 })
	src, err := Open(path)
	require.NoError(t, err)

	inv, err := src.Enumerate(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, inv.Series, 1)
	assert.Equal(t, 12, inv.Series[0].Width)
	assert.Equal(t, 8, inv.Series[0].Height)
	assert.Equal(t, 1, inv.Series[0].ZCount)
}

func TestReadRoundTripsGrayscaleSamples(t *testing.T) {
	path := writeTestPNG(t, 4, 4, func(x, y int) uint8 {
		if x == 1 && y == 1 {
			return 200
		}
		return 10
	})
	src, err := Open(path)
	require.NoError(t, err)

	buf, err := src.Read(context.Background(), plane.PlaneId{}, plane.TileId{})
	require.NoError(t, err)
	assert.InDelta(t, 200, buf.At(1, 1, 0), 1)
	assert.InDelta(t, 10, buf.At(0, 0, 0), 1)
}

func TestReadRejectsNonZeroCoordinate(t *testing.T) {
	path := writeTestPNG(t, 2, 2, func(x, y int) uint8 { return 0 })
	src, err := Open(path)
	require.NoError(t, err)

	_, err = src.Read(context.Background(), plane.PlaneId{ZStack: 1}, plane.TileId{})
	require.Error(t, err)
}
