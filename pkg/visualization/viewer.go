// Package visualization renders decoded experiment channels as
// grayscale images for quick inspection. Values are window-normalized to
// the channel's full range, so signed channels (phase, velocity) render
// with zero near mid-gray.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Viewer extracts 2D slice images from a 4D decoded channel of shape
// (rows, columns, slices, frames).
type Viewer struct {
	channel *sparse.DenseArray

	// normalization window, fixed at construction so all slices of a
	// channel share one gray scale
	min, max float64
}

// NewViewer creates a viewer for a decoded channel.
func NewViewer(channel *sparse.DenseArray) (*Viewer, error) {
	if len(channel.Shape) != 4 {
		return nil, fmt.Errorf("visualization: expected 4 axes, got %d", len(channel.Shape))
	}
	if len(channel.Elements) == 0 {
		return nil, fmt.Errorf("visualization: empty channel")
	}
	return &Viewer{
		channel: channel,
		min:     floats.Min(channel.Elements),
		max:     floats.Max(channel.Elements),
	}, nil
}

// ExtractSlice renders the 2D image at the given slice and frame
// position as 16-bit grayscale.
func (v *Viewer) ExtractSlice(slice, frame int) (image.Image, error) {
	rows, cols, slices, frames := v.channel.Shape[0], v.channel.Shape[1], v.channel.Shape[2], v.channel.Shape[3]
	if slice < 0 || slice >= slices {
		return nil, fmt.Errorf("visualization: slice %d out of range [0,%d)", slice, slices)
	}
	if frame < 0 || frame >= frames {
		return nil, fmt.Errorf("visualization: frame %d out of range [0,%d)", frame, frames)
	}

	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			idx := ((i*cols+j)*slices+slice)*frames + frame
			img.SetGray16(j, i, color.Gray16{Y: v.gray(v.channel.Elements[idx])})
		}
	}
	return img, nil
}

// gray maps a channel value to the 16-bit grayscale window.
func (v *Viewer) gray(val float64) uint16 {
	if v.max <= v.min {
		return 0
	}
	scaled := (val - v.min) / (v.max - v.min) * 65535
	if scaled < 0 {
		scaled = 0
	} else if scaled > 65535 {
		scaled = 65535
	}
	return uint16(scaled)
}

// SaveSlice saves an extracted slice as a JPEG image.
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice of one frame as a
// JPEG sequence in outputDir.
func (v *Viewer) SaveSliceSequence(outputDir string, frame int) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for slice := 0; slice < v.channel.Shape[2]; slice++ {
		img, err := v.ExtractSlice(slice, frame)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%03d_frame_%03d.jpg", slice, frame))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
