// Package volume provides the shape operations of the decoding pipeline:
// reshaping the flat REC pixel buffer into a 4D volume and cropping the
// vendor zero-padding around the true image extent.
package volume

import (
	"errors"
	"fmt"

	"github.com/ctessum/sparse"
)

// ErrEmptyVolume is returned when a volume contains no non-zero voxels,
// so no padding bounding box is defined.
var ErrEmptyVolume = errors.New("volume: all voxels are zero, no bounding box defined")

// ShapeMismatchError indicates that the raw buffer length is inconsistent
// with the dimensions declared in the acquisition header. This is fatal:
// it means the REC file is truncated or the header describes a different
// reconstruction.
type ShapeMismatchError struct {
	Rows, Columns, Slices, Frames int
	BufferLen                     int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("volume: buffer of %d values cannot be reshaped to %dx%dx%dx%d (need %d)",
		e.BufferLen, e.Rows, e.Columns, e.Slices, e.Frames,
		e.Rows*e.Columns*e.Slices*e.Frames)
}

// Reshape interprets the flat vendor-ordered pixel buffer as a 4D volume
// of shape (rows, columns, slices, frames) in vendor raster order.
//
// The buffer is not copied: the returned array is a view over raw, since
// reshaping is a metadata operation. Cropping is the only pipeline step
// that allocates a smaller buffer.
func Reshape(raw []float64, rows, columns, slices, frames int) (*sparse.DenseArray, error) {
	if rows < 1 || columns < 1 || slices < 1 || frames < 1 {
		return nil, &ShapeMismatchError{rows, columns, slices, frames, len(raw)}
	}
	if rows*columns*slices*frames != len(raw) {
		return nil, &ShapeMismatchError{rows, columns, slices, frames, len(raw)}
	}
	return &sparse.DenseArray{
		Shape:    []int{rows, columns, slices, frames},
		Elements: raw,
	}, nil
}

// Box is an inclusive bounding box over the three spatial axes
// (rows, columns, slices) of a 4D volume. The frame axis is never
// cropped.
type Box struct {
	Min [3]int
	Max [3]int
}

// Bounds computes the tight bounding box of all non-zero voxels across
// the spatial axes of v. A voxel position counts as non-zero if any of
// its frames is non-zero.
//
// The box must be computed once, from the full pre-split volume, and
// reused for every derived channel; recomputing it per channel would
// desynchronize their spatial axes.
func Bounds(v *sparse.DenseArray) (Box, error) {
	if len(v.Shape) != 4 {
		return Box{}, fmt.Errorf("volume: expected 4 axes, got %d", len(v.Shape))
	}
	rows, cols, slices, frames := v.Shape[0], v.Shape[1], v.Shape[2], v.Shape[3]

	b := Box{
		Min: [3]int{rows, cols, slices},
		Max: [3]int{-1, -1, -1},
	}
	idx := 0
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			for k := 0; k < slices; k++ {
				nonzero := false
				for l := 0; l < frames; l++ {
					if v.Elements[idx+l] != 0 {
						nonzero = true
						break
					}
				}
				idx += frames
				if !nonzero {
					continue
				}
				for a, c := range [3]int{i, j, k} {
					if c < b.Min[a] {
						b.Min[a] = c
					}
					if c > b.Max[a] {
						b.Max[a] = c
					}
				}
			}
		}
	}
	if b.Max[0] < 0 {
		return Box{}, ErrEmptyVolume
	}
	return b, nil
}

// CropTo extracts the subvolume of v covered by b, keeping the full
// frame axis. The returned array owns a new, smaller buffer.
func CropTo(v *sparse.DenseArray, b Box) *sparse.DenseArray {
	frames := v.Shape[3]
	out := sparse.ZerosDense(
		b.Max[0]-b.Min[0]+1,
		b.Max[1]-b.Min[1]+1,
		b.Max[2]-b.Min[2]+1,
		frames,
	)
	srcCols, srcSlices := v.Shape[1], v.Shape[2]
	n := 0
	for i := b.Min[0]; i <= b.Max[0]; i++ {
		for j := b.Min[1]; j <= b.Max[1]; j++ {
			for k := b.Min[2]; k <= b.Max[2]; k++ {
				src := ((i*srcCols+j)*srcSlices + k) * frames
				copy(out.Elements[n:n+frames], v.Elements[src:src+frames])
				n += frames
			}
		}
	}
	return out
}

// Crop removes the zero border of v, returning the volume cropped to the
// tight non-zero bounding box of its spatial axes. Vendor reconstructions
// pad the field of view with zeros to satisfy grid-size constraints; the
// padding carries no signal and must be removed before voxel size and
// field of view are interpreted geometrically.
func Crop(v *sparse.DenseArray) (*sparse.DenseArray, error) {
	b, err := Bounds(v)
	if err != nil {
		return nil, err
	}
	return CropTo(v, b), nil
}
