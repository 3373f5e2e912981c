package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMicrometers(t *testing.T) {
	tests := []struct {
		name string
		in   PhysicalSize
		want float64
	}{
		{"nm to um", PhysicalSize{Value: 650, Unit: Nanometer}, 0.65},
		{"mm to um", PhysicalSize{Value: 2, Unit: Millimeter}, 2000},
		{"um identity", PhysicalSize{Value: 0.325, Unit: Micrometer}, 0.325},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.ToMicrometers()
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestToMicrometersRejectsPixels(t *testing.T) {
	_, err := PhysicalSize{Value: 1, Unit: Pixels}.ToMicrometers()
	assert.Error(t, err)
}

func TestScaleDistanceFallsBackWhenNoPixelSize(t *testing.T) {
	got := ScaleDistance(10, 0, 0.5)
	assert.Equal(t, 5.0, got)
}

func TestScaleDistanceUsesImagePixelSizeWhenPresent(t *testing.T) {
	got := ScaleDistance(10, 0.2, 0.5)
	assert.Equal(t, 2.0, got)
}
