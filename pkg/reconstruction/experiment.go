// Package reconstruction decodes a vendor-ordered PAR/REC pixel buffer
// into physically meaningful volumes: spin density, and for flow-encoded
// acquisitions phase and velocity.
//
// The pipeline runs header -> reshape -> crop -> channel split; velocity
// is derived lazily from phase on request. All decoding errors abort the
// load immediately: there is no partial decode, because silently wrong
// physics is worse than a hard failure.
package reconstruction

import (
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"github.com/ctessum/sparse"
	"github.com/sirupsen/logrus"

	"mrimate/internal/models"
	"mrimate/pkg/parrec"
	"mrimate/pkg/volume"
)

// velocityState tags the lifecycle of the lazily computed velocity
// channel, so "not yet computed" and "not applicable" cannot be
// confused.
type velocityState int

const (
	velocityNotApplicable velocityState = iota
	velocityNotComputed
	velocityComputed
)

// Params holds the experiment location.
type Params struct {
	// ExperimentDir is the directory containing the PAR and REC files
	ExperimentDir string

	// Name is the shared file stem: <Name>.par and <Name>.rec
	Name string
}

// Experiment represents one PAR/REC acquisition and its decoded volumes.
// Header, spin density and phase are write-once, set by Load; velocity
// is computed at most once by ComputeVelocity. An Experiment is meant
// for a single caller; independent experiments share no state.
type Experiment struct {
	params *Params

	// Log receives stage progress. Defaults to the standard logger.
	Log logrus.FieldLogger

	header   *models.AcquisitionHeader
	encoding Encoding

	spinDensity *sparse.DenseArray
	phase       *sparse.DenseArray

	velocity      *sparse.DenseArray
	velocityState velocityState
}

// NewExperiment creates an experiment for the PAR/REC pair named by
// params. Nothing is read until Load is called.
func NewExperiment(params *Params) *Experiment {
	return &Experiment{
		params: params,
		Log:    logrus.StandardLogger(),
	}
}

// ParFile returns the path of the PAR header file.
func (e *Experiment) ParFile() string {
	return filepath.Join(e.params.ExperimentDir, e.params.Name+".par")
}

// RecFile returns the path of the REC pixel file.
func (e *Experiment) RecFile() string {
	return filepath.Join(e.params.ExperimentDir, e.params.Name+".rec")
}

// Load reads the PAR and REC files and decodes the raw buffer into the
// experiment's channels.
func (e *Experiment) Load() error {
	header, err := parrec.ReadPar(e.ParFile())
	if err != nil {
		return fmt.Errorf("reading PAR header: %w", err)
	}

	raw, err := parrec.ReadRec(e.RecFile(), header.ImageRecords[0].ImagePixelSize)
	if err != nil {
		return fmt.Errorf("reading REC buffer: %w", err)
	}

	return e.LoadFromRaw(header, raw)
}

// LoadFromRaw decodes an already-parsed header and raw pixel buffer.
// This is the interface the external file-reading collaborator targets;
// Load is a convenience wrapping the bundled PAR/REC reader around it.
func (e *Experiment) LoadFromRaw(header *models.AcquisitionHeader, raw []float64) error {
	if err := header.Validate(); err != nil {
		return err
	}

	encoding, err := resolveEncoding(header)
	if err != nil {
		return err
	}

	frames := frameCount(encoding, header)
	e.Log.WithFields(logrus.Fields{
		"encoding": encoding.String(),
		"rows":     header.Rows(),
		"columns":  header.Columns(),
		"slices":   header.MaxNumberOfSlices,
		"frames":   frames,
	}).Debug("decoding raw buffer")

	reshaped, err := volume.Reshape(raw, header.Rows(), header.Columns(),
		header.MaxNumberOfSlices, frames)
	if err != nil {
		return err
	}

	// The padding box is derived once from the full pre-split volume and
	// applied before the channel split, so magnitude and phase stay
	// spatially aligned by construction.
	cropped, err := volume.Crop(reshaped)
	if err != nil {
		return err
	}

	e.header = header
	e.encoding = encoding
	e.splitChannels(cropped)

	e.Log.WithFields(logrus.Fields{
		"shape":    fmt.Sprint(e.spinDensity.Shape),
		"encoding": encoding.String(),
	}).Info("experiment decoded")
	return nil
}

// splitChannels turns the reshaped, cropped volume into the spin density
// and, for flow encoding, phase channels.
func (e *Experiment) splitChannels(v *sparse.DenseArray) {
	slope := e.header.RescaleSlope()
	intercept := e.header.RescaleIntercept()

	if e.encoding != EncodingFlow {
		// The whole volume is magnitude data; calibrate it in place.
		for i, code := range v.Elements {
			v.Elements[i] = code*slope + intercept
		}
		e.spinDensity = v
		e.phase = nil
		e.velocityState = velocityNotApplicable
		return
	}

	// Flow encoding: even frames are magnitude, odd frames are 12-bit
	// phase codes. Rescale calibration applies to magnitude only.
	rows, cols, slices := v.Shape[0], v.Shape[1], v.Shape[2]
	dynamics := v.Shape[3] / 2

	spin := sparse.ZerosDense(rows, cols, slices, dynamics)
	phase := sparse.ZerosDense(rows, cols, slices, dynamics)
	positions := rows * cols * slices
	for pos := 0; pos < positions; pos++ {
		src := pos * 2 * dynamics
		dst := pos * dynamics
		for d := 0; d < dynamics; d++ {
			spin.Elements[dst+d] = v.Elements[src+2*d]*slope + intercept
			phase.Elements[dst+d] = phaseToRadians(v.Elements[src+2*d+1])
		}
	}

	e.spinDensity = spin
	e.phase = phase
	e.velocityState = velocityNotComputed
}

// Header returns the validated acquisition header.
func (e *Experiment) Header() (*models.AcquisitionHeader, error) {
	if e.header == nil {
		return nil, ErrNotLoaded
	}
	return e.header, nil
}

// Encoding returns the encoding mode resolved at load time.
func (e *Experiment) Encoding() (Encoding, error) {
	if e.header == nil {
		return 0, ErrNotLoaded
	}
	return e.encoding, nil
}

// SpinDensity returns the calibrated magnitude volume of shape
// (rows, columns, slices, frames).
func (e *Experiment) SpinDensity() (*sparse.DenseArray, error) {
	if e.spinDensity == nil {
		return nil, ErrNotLoaded
	}
	return e.spinDensity, nil
}

// Phase returns the phase volume in radians, shape (rows, columns,
// slices, dynamics). It exists only for flow-encoded acquisitions.
func (e *Experiment) Phase() (*sparse.DenseArray, error) {
	if e.header == nil {
		return nil, ErrNotLoaded
	}
	if e.phase == nil {
		return nil, ErrPhaseUnavailable
	}
	return e.phase, nil
}

// Velocity returns the velocity volume if it has been computed.
// Requesting it on a non-flow acquisition fails with
// ErrPhaseUnavailable; requesting it before ComputeVelocity fails with
// ErrVelocityUnavailable.
func (e *Experiment) Velocity() (*sparse.DenseArray, error) {
	if e.header == nil {
		return nil, ErrNotLoaded
	}
	switch e.velocityState {
	case velocityNotApplicable:
		return nil, ErrPhaseUnavailable
	case velocityNotComputed:
		return nil, ErrVelocityUnavailable
	}
	return e.velocity, nil
}

// ComputeVelocity derives the velocity volume from the phase channel:
// velocity = phase * |venc| / pi, with |venc| the Euclidean magnitude of
// the header's per-axis encoding velocity in cm/s. The result is cached;
// the header is immutable after load, so it never needs recomputing.
func (e *Experiment) ComputeVelocity() (*sparse.DenseArray, error) {
	if e.header == nil {
		return nil, ErrNotLoaded
	}
	if e.velocityState == velocityNotApplicable {
		return nil, ErrPhaseUnavailable
	}
	if e.velocityState == velocityComputed {
		return e.velocity, nil
	}

	venc := e.header.EncodingVelocityMagnitude()
	v := sparse.ZerosDense(e.phase.Shape...)
	for i, p := range e.phase.Elements {
		v.Elements[i] = p * venc / math.Pi
	}
	e.velocity = v
	e.velocityState = velocityComputed

	e.Log.WithFields(logrus.Fields{
		"venc":  venc,
		"shape": fmt.Sprint(v.Shape),
	}).Info("velocity computed")
	return v, nil
}

// Describe returns a human-readable summary of the experiment.
func (e *Experiment) Describe() (string, error) {
	h, err := e.Header()
	if err != nil {
		return "", err
	}

	yesNo := func(b bool) string {
		if b {
			return "Yes"
		}
		return "No"
	}
	dimension := "2D"
	if strings.Contains(h.SeriesDataType, "3D") || strings.Contains(h.ScanMode, "3D") {
		dimension = "3D"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Experiment Details:\n")
	fmt.Fprintf(&b, "- Type: %s\n", h.SeriesDataType)
	fmt.Fprintf(&b, "- Date: %s\n\n", h.ExaminationDateTime)
	fmt.Fprintf(&b, "Scan Information:\n")
	fmt.Fprintf(&b, "- Technique: %s\n", h.Technique)
	fmt.Fprintf(&b, "- Dimension: %s\n", dimension)
	fmt.Fprintf(&b, "- Resolution: %dx%d pixels\n", h.Rows(), h.Columns())
	fmt.Fprintf(&b, "- Slices: %d\n", h.MaxNumberOfSlices)
	if h.MaxNumberOfDynamics > 1 {
		fmt.Fprintf(&b, "- Dynamics: %d\n", h.MaxNumberOfDynamics)
	} else {
		fmt.Fprintf(&b, "- Dynamics: None\n")
	}
	fmt.Fprintf(&b, "- Flow Encoding: %s\n", yesNo(h.FlowEncoded()))
	fmt.Fprintf(&b, "- Diffusion Encoding: %s\n", yesNo(h.Diffusion != 0))
	return b.String(), nil
}
