package volume

import (
	"errors"
	"testing"

	"github.com/ctessum/sparse"
	"github.com/stretchr/testify/require"
)

// buildVolume creates a 4D volume and fills it through a generator so
// tests control exactly which voxels are non-zero.
func buildVolume(t *testing.T, rows, cols, slices, frames int, gen func(i, j, k, l int) float64) *sparse.DenseArray {
	t.Helper()
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

func TestReshape(t *testing.T) {
	t.Run("ValidBuffer", func(t *testing.T) {
		raw := make([]float64, 4*6*3*2)
		for i := range raw {
			raw[i] = float64(i)
		}

		v, err := Reshape(raw, 4, 6, 3, 2)
		require.NoError(t, err)
		require.Equal(t, []int{4, 6, 3, 2}, v.Shape)
		// Reshape is a view, not a copy.
		raw[0] = 42
		require.Equal(t, 42.0, v.Elements[0])
	})

	t.Run("BufferOneShort", func(t *testing.T) {
		raw := make([]float64, 4*6*3*2-1)
		_, err := Reshape(raw, 4, 6, 3, 2)
		var shapeErr *ShapeMismatchError
		require.ErrorAs(t, err, &shapeErr)
		require.Equal(t, len(raw), shapeErr.BufferLen)
	})

	t.Run("BufferTooLong", func(t *testing.T) {
		raw := make([]float64, 4*6*3*2+6)
		_, err := Reshape(raw, 4, 6, 3, 2)
		var shapeErr *ShapeMismatchError
		require.ErrorAs(t, err, &shapeErr)
	})

	t.Run("NonPositiveDimension", func(t *testing.T) {
		_, err := Reshape(nil, 4, 6, 0, 2)
		var shapeErr *ShapeMismatchError
		require.ErrorAs(t, err, &shapeErr)
	})
}

func TestBounds(t *testing.T) {
	t.Run("InteriorBlock", func(t *testing.T) {
		// Non-zero voxels only in rows 2..4, cols 1..3, slices 1..2.
		v := buildVolume(t, 8, 6, 4, 2, func(i, j, k, l int) float64 {
			if i >= 2 && i <= 4 && j >= 1 && j <= 3 && k >= 1 && k <= 2 {
				return 1
			}
			return 0
		})

		b, err := Bounds(v)
		require.NoError(t, err)
		require.Equal(t, [3]int{2, 1, 1}, b.Min)
		require.Equal(t, [3]int{4, 3, 2}, b.Max)
	})

	t.Run("SingleVoxelInOneFrame", func(t *testing.T) {
		// A position counts as non-zero if any frame is non-zero.
		v := buildVolume(t, 4, 4, 4, 3, func(i, j, k, l int) float64 {
			if i == 1 && j == 2 && k == 3 && l == 2 {
				return 5
			}
			return 0
		})

		b, err := Bounds(v)
		require.NoError(t, err)
		require.Equal(t, [3]int{1, 2, 3}, b.Min)
		require.Equal(t, [3]int{1, 2, 3}, b.Max)
	})

	t.Run("AllZero", func(t *testing.T) {
		v := sparse.ZerosDense(4, 4, 4, 2)
		_, err := Bounds(v)
		require.ErrorIs(t, err, ErrEmptyVolume)
	})

	t.Run("WrongRank", func(t *testing.T) {
		v := sparse.ZerosDense(4, 4, 4)
		_, err := Bounds(v)
		require.Error(t, err)
		require.False(t, errors.Is(err, ErrEmptyVolume))
	})
}

func TestCrop(t *testing.T) {
	t.Run("RemovesZeroBorder", func(t *testing.T) {
		v := buildVolume(t, 6, 6, 4, 2, func(i, j, k, l int) float64 {
			if i >= 1 && i <= 3 && j >= 2 && j <= 4 && k >= 1 && k <= 2 {
				return float64(100*i + 10*j + k)
			}
			return 0
		})

		cropped, err := Crop(v)
		require.NoError(t, err)
		require.Equal(t, []int{3, 3, 2, 2}, cropped.Shape)
		// Values land at shifted coordinates.
		require.Equal(t, v.Get(1, 2, 1, 0), cropped.Get(0, 0, 0, 0))
		require.Equal(t, v.Get(3, 4, 2, 1), cropped.Get(2, 2, 1, 1))
	})

	t.Run("FrameAxisNeverCropped", func(t *testing.T) {
		// One frame entirely zero must survive the crop.
		v := buildVolume(t, 4, 4, 3, 2, func(i, j, k, l int) float64 {
			if l == 1 {
				return 0
			}
			if i >= 1 && i <= 2 {
				return 1
			}
			return 0
		})

		cropped, err := Crop(v)
		require.NoError(t, err)
		require.Equal(t, 2, cropped.Shape[3])
	})

	t.Run("Idempotent", func(t *testing.T) {
		// A volume with no zero border crops to itself.
		v := buildVolume(t, 3, 4, 2, 2, func(i, j, k, l int) float64 {
			return float64(i + j + k + l + 1)
		})

		once, err := Crop(v)
		require.NoError(t, err)
		require.Equal(t, v.Shape, once.Shape)
		require.Equal(t, v.Elements, once.Elements)

		twice, err := Crop(once)
		require.NoError(t, err)
		require.Equal(t, once.Shape, twice.Shape)
		require.Equal(t, once.Elements, twice.Elements)
	})

	t.Run("AllZero", func(t *testing.T) {
		v := sparse.ZerosDense(4, 4, 4, 1)
		_, err := Crop(v)
		require.ErrorIs(t, err, ErrEmptyVolume)
	})
}

func TestCropToSharedBox(t *testing.T) {
	// Two channels cropped with the same box keep identical spatial axes
	// even when their own non-zero extents differ.
	magnitude := buildVolume(t, 6, 6, 4, 1, func(i, j, k, l int) float64 {
		if i >= 1 && i <= 4 && j >= 1 && j <= 4 && k >= 0 && k <= 3 {
			return 1
		}
		return 0
	})
	phase := buildVolume(t, 6, 6, 4, 1, func(i, j, k, l int) float64 {
		if i == 2 && j == 2 && k == 1 {
			return 1
		}
		return 0
	})

	b, err := Bounds(magnitude)
	require.NoError(t, err)

	cm := CropTo(magnitude, b)
	cp := CropTo(phase, b)
	require.Equal(t, cm.Shape, cp.Shape)

	// An independently derived box would disagree.
	own, err := Bounds(phase)
	require.NoError(t, err)
	require.NotEqual(t, b, own)
}
