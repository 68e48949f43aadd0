// Package export persists decoded experiment channels to a NetCDF
// container. Datasets are written only for channels that exist:
// spin_density always, phase and velocity for flow-encoded acquisitions.
package export

import (
	"fmt"
	"os"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// Channels bundles the decoded volumes of one experiment. SpinDensity is
// required; Phase and Velocity may be nil when the acquisition lacks
// them.
type Channels struct {
	SpinDensity *sparse.DenseArray
	Phase       *sparse.DenseArray
	Velocity    *sparse.DenseArray
}

var dimNames = []string{"row", "column", "slice", "frame"}

// WriteNetCDF writes the channels to ws as a NetCDF file. All present
// channels must share the spin density's shape; they come from the same
// crop box, so a mismatch means the caller mixed experiments.
func WriteNetCDF(ws *os.File, c Channels) error {
	if c.SpinDensity == nil {
		return fmt.Errorf("export: spin density channel is required")
	}
	if len(c.SpinDensity.Shape) != len(dimNames) {
		return fmt.Errorf("export: expected %d axes, got %d", len(dimNames), len(c.SpinDensity.Shape))
	}

	h := cdf.NewHeader(dimNames, c.SpinDensity.Shape)
	h.AddAttribute("", "comment", "Decoded PAR/REC experiment channels")

	h.AddVariable("spin_density", dimNames, []float32{0})
	h.AddAttribute("spin_density", "description", "Calibrated magnitude volume")
	h.AddAttribute("spin_density", "units", "a.u.")

	type channel struct {
		name string
		data *sparse.DenseArray
	}
	channels := []channel{{"spin_density", c.SpinDensity}}

	if c.Phase != nil {
		if err := sameShape(c.SpinDensity, c.Phase); err != nil {
			return fmt.Errorf("export: phase: %w", err)
		}
		h.AddVariable("phase", dimNames, []float32{0})
		h.AddAttribute("phase", "description", "Phase volume")
		h.AddAttribute("phase", "units", "rad")
		channels = append(channels, channel{"phase", c.Phase})
	}
	if c.Velocity != nil {
		if err := sameShape(c.SpinDensity, c.Velocity); err != nil {
			return fmt.Errorf("export: velocity: %w", err)
		}
		h.AddVariable("velocity", dimNames, []float32{0})
		h.AddAttribute("velocity", "description", "Phase-contrast velocity volume")
		h.AddAttribute("velocity", "units", "cm/s")
		channels = append(channels, channel{"velocity", c.Velocity})
	}

	h.Define()
	f, err := cdf.Create(ws, h)
	if err != nil {
		return fmt.Errorf("export: creating NetCDF file: %w", err)
	}
	for _, ch := range channels {
		if err := writeVar(f, ch.name, ch.data); err != nil {
			return fmt.Errorf("export: writing %s: %w", ch.name, err)
		}
	}
	return cdf.UpdateNumRecs(ws)
}

// WriteFile writes the channels to a NetCDF file at path.
func WriteFile(path string, c Channels) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteNetCDF(f, c); err != nil {
		return err
	}
	return f.Close()
}

func sameShape(a, b *sparse.DenseArray) error {
	if len(a.Shape) != len(b.Shape) {
		return fmt.Errorf("shape rank %d differs from spin density rank %d", len(b.Shape), len(a.Shape))
	}
	for i := range a.Shape {
		if a.Shape[i] != b.Shape[i] {
			return fmt.Errorf("shape %v differs from spin density shape %v", b.Shape, a.Shape)
		}
	}
	return nil
}

func writeVar(f *cdf.File, name string, data *sparse.DenseArray) error {
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	end := f.Header.Lengths(name)
	start := make([]int, len(end))
	w := f.Writer(name, start, end)
	_, err := w.Write(data32)
	return err
}
