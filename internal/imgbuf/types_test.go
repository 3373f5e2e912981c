package imgbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImageBufferSaturation(t *testing.T) {
	b := NewImageBuffer(2, 2, Depth8, 1, Point{})
	b.Set(0, 0, 0, 300)
	b.Set(0, 1, 0, -10)
	assert.Equal(t, 255.0, b.At(0, 0, 0))
	assert.Equal(t, 0.0, b.At(0, 1, 0))
}

func TestImageBufferDepth32NoSaturation(t *testing.T) {
	b := NewImageBuffer(1, 1, Depth32, 1, Point{})
	b.Set(0, 0, 0, 1e6)
	assert.Equal(t, 1e6, b.At(0, 0, 0))
}

func TestBinaryMaskCrop(t *testing.T) {
	m := NewBinaryMask(4, 4, Point{X: 10, Y: 20})
	m.Set(1, 1, true)
	m.Set(2, 1, true)

	cropped, err := m.Crop(Rect{X: 1, Y: 1, Width: 2, Height: 2})
	require.NoError(t, err)
	assert.Equal(t, 4, cropped.Width*cropped.Height)
	assert.True(t, cropped.Get(0, 0))
	assert.True(t, cropped.Get(1, 0))
	assert.Equal(t, Point{X: 11, Y: 21}, cropped.Origin)
}

func TestBinaryMaskCropOutOfBounds(t *testing.T) {
	m := NewBinaryMask(2, 2, Point{})
	_, err := m.Crop(Rect{X: 1, Y: 1, Width: 2, Height: 2})
	assert.Error(t, err)
}

func TestPopCount(t *testing.T) {
	m := NewBinaryMask(3, 3, Point{})
	m.Set(0, 0, true)
	m.Set(2, 2, true)
	assert.Equal(t, 2, m.PopCount())
}
