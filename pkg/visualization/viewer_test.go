package visualization

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/require"
)

func testChannel(rows, cols, slices, frames int, gen func(i, j, k, l int) float64) *sparse.DenseArray {
	v := sparse.ZerosDense(rows, cols, slices, frames)
	n := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			for k := 0; k < slices; k++ {
				for l := 0; l < frames; l++ {
					v.Elements[n] = gen(i, j, k, l)
					n++
				}
			}
		}
	}
	return v
}

func TestNewViewer(t *testing.T) {
	t.Run("WrongRank", func(t *testing.T) {
		_, err := NewViewer(sparse.ZerosDense(4, 4, 4))
		require.Error(t, err)
	})

	t.Run("Valid", func(t *testing.T) {
		v, err := NewViewer(testChannel(4, 4, 2, 2, func(i, j, k, l int) float64 {
			return float64(i - j)
		}))
		require.NoError(t, err)
		require.Equal(t, -3.0, v.min)
		require.Equal(t, 3.0, v.max)
	})
}

func TestExtractSlice(t *testing.T) {
	// A gradient along the rows; slice 1 is brighter than slice 0.
	channel := testChannel(4, 3, 2, 2, func(i, j, k, l int) float64 {
		return float64(i + 10*k)
	})
	v, err := NewViewer(channel)
	require.NoError(t, err)

	t.Run("Bounds", func(t *testing.T) {
		_, err := v.ExtractSlice(2, 0)
		require.Error(t, err)
		_, err = v.ExtractSlice(0, 2)
		require.Error(t, err)
		_, err = v.ExtractSlice(-1, 0)
		require.Error(t, err)
	})

	t.Run("Normalization", func(t *testing.T) {
		img, err := v.ExtractSlice(1, 0)
		require.NoError(t, err)
		require.Equal(t, 3, img.Bounds().Dx())
		require.Equal(t, 4, img.Bounds().Dy())

		// Max value of the channel (i=3, k=1) maps to full white.
		white := color.Gray16Model.Convert(img.At(0, 3)).(color.Gray16)
		require.Equal(t, uint16(65535), white.Y)

		// The darkest pixel of this slice is above the channel minimum.
		dark := color.Gray16Model.Convert(img.At(0, 0)).(color.Gray16)
		require.Greater(t, dark.Y, uint16(0))
	})

	t.Run("FlatChannelRendersBlack", func(t *testing.T) {
		flat, err := NewViewer(testChannel(2, 2, 1, 1, func(i, j, k, l int) float64 {
			return 7
		}))
		require.NoError(t, err)
		img, err := flat.ExtractSlice(0, 0)
		require.NoError(t, err)
		px := color.Gray16Model.Convert(img.At(0, 0)).(color.Gray16)
		require.Equal(t, uint16(0), px.Y)
	})
}

func TestSaveSliceSequence(t *testing.T) {
	channel := testChannel(4, 4, 3, 2, func(i, j, k, l int) float64 {
		return float64(i * j)
	})
	v, err := NewViewer(channel)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "slices")
	require.NoError(t, v.SaveSliceSequence(dir, 1))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "slice_000_frame_001.jpg", entries[0].Name())
}
