package models

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ImageRecord holds the per-image metadata of one stored 2D image in a
// PAR/REC acquisition. One record exists for every slice/frame combination
// stored in the REC file.
type ImageRecord struct {
	// SliceNumber is the 1-based slice location of this image
	SliceNumber int

	// EchoNumber is the 1-based echo index of this image
	EchoNumber int

	// DynamicScanNumber is the 1-based dynamic (time point) index
	DynamicScanNumber int

	// CardiacPhaseNumber is the 1-based cardiac phase index
	CardiacPhaseNumber int

	// ImageTypeMR distinguishes the stored channel of this image.
	// For flow-encoded scans the vendor interleaves magnitude (0) and
	// phase (3) images; together with ScanningSequence it acts as the
	// composite key separating the two channels.
	ImageTypeMR int

	// ScanningSequence is the vendor sequence key for this image
	ScanningSequence int

	// IndexInRec is the 0-based position of this image in the REC file
	IndexInRec int

	// ImagePixelSize is the stored bit depth of a pixel (8 or 16)
	ImagePixelSize int

	// ScanPercentage is the acquired fraction of k-space in percent
	ScanPercentage int

	// ReconResolution is the reconstructed in-plane matrix (rows, columns)
	ReconResolution [2]int

	// RescaleIntercept and RescaleSlope convert stored integer pixel
	// values to physical magnitude units. They are never applied to
	// phase images; phase uses the fixed 12-bit decode instead.
	RescaleIntercept float64
	RescaleSlope     float64

	// WindowCenter and WindowWidth are display windowing hints
	WindowCenter int
	WindowWidth  int

	// ImageAngulation is the image plane angulation (ap, fh, rl) in degrees
	ImageAngulation [3]float64

	// ImageOffcentre is the image plane offcentre (ap, fh, rl) in mm
	ImageOffcentre [3]float64

	// SliceThickness and SliceGap are in mm
	SliceThickness float64
	SliceGap       float64

	// ImageDisplayOrientation and SliceOrientation are vendor orientation codes
	ImageDisplayOrientation int
	SliceOrientation        int

	// FmriStatusIndication is the fMRI status code
	FmriStatusIndication int

	// ImageTypeEdEs marks end-diastole/end-systole images in cardiac scans
	ImageTypeEdEs int

	// PixelSpacing is the in-plane voxel size (row, column) in mm
	PixelSpacing [2]float64

	// EchoTime is the echo time in ms
	EchoTime float64

	// DynScanBeginTime is the start time of this dynamic in s
	DynScanBeginTime float64

	// TriggerTime is the cardiac trigger delay in ms
	TriggerTime float64

	// DiffusionBFactor is the diffusion weighting in s/mm^2
	DiffusionBFactor float64

	// NumberOfAverages is the number of signal averages
	NumberOfAverages int

	// ImageFlipAngle is the excitation flip angle in degrees
	ImageFlipAngle float64

	// CardiacFrequency is the heart rate in bpm
	CardiacFrequency int

	// MinimumRRInterval and MaximumRRInterval are in ms
	MinimumRRInterval int
	MaximumRRInterval int

	// TurboFactor is the turbo factor (<1 means no turbo)
	TurboFactor int

	// InversionDelay is the inversion delay in ms
	InversionDelay float64

	// DiffusionBValueNumber and GradientOrientationNumber index the
	// diffusion weighting applied to this image
	DiffusionBValueNumber     int
	GradientOrientationNumber int

	// ContrastType and DiffusionAnisotropyType are vendor type codes
	ContrastType            int
	DiffusionAnisotropyType int

	// Diffusion is the diffusion gradient direction (ap, fh, rl)
	Diffusion [3]float64

	// LabelType is the ASL label type index
	LabelType int
}

// AcquisitionHeader is the scan-level metadata of a PAR/REC experiment
// plus the ordered per-image records. It is treated as immutable once
// constructed; Validate enforces the field combinations the decoding
// pipeline relies on.
type AcquisitionHeader struct {
	// PatientName and ExaminationName identify the examination
	PatientName     string
	ExaminationName string

	// ProtocolName is the scan protocol as configured on the scanner
	ProtocolName string

	// ExaminationDateTime is the examination timestamp ("yyyy.mm.dd / hh:mm:ss")
	ExaminationDateTime string

	// SeriesDataType describes the series ("image   MRSERIES" etc.)
	SeriesDataType string

	// AcquisitionNr and ReconstructionNr number the acquisition and
	// reconstruction within the examination
	AcquisitionNr    int
	ReconstructionNr int

	// ScanDuration is the scan duration in s
	ScanDuration float64

	// MaxNumberOfCardiacPhases is the number of cardiac phases
	MaxNumberOfCardiacPhases int

	// MaxNumberOfEchoes is the number of acquired echoes
	MaxNumberOfEchoes int

	// MaxNumberOfSlices is the number of slice locations
	MaxNumberOfSlices int

	// MaxNumberOfDynamics is the number of dynamic time points
	MaxNumberOfDynamics int

	// MaxNumberOfMixes is the number of mixes
	MaxNumberOfMixes int

	// PatientPosition and PreparationDirection describe patient geometry
	PatientPosition      string
	PreparationDirection string

	// Technique is the acquisition technique (e.g. "T1TFE", "QFLOW")
	Technique string

	// ScanResolution is the acquired matrix (x, y)
	ScanResolution [2]int

	// ScanMode is the scan mode ("2D", "3D", "MS")
	ScanMode string

	// RepetitionTime is the repetition time in ms
	RepetitionTime float64

	// FOV is the field of view (ap, fh, rl) in mm
	FOV [3]float64

	// WaterFatShift is the water-fat shift in pixels
	WaterFatShift float64

	// AngulationMidslice and OffCentreMidslice describe midslice geometry
	AngulationMidslice [3]float64
	OffCentreMidslice  [3]float64

	// FlowCompensation and Presaturation are acquisition option flags
	FlowCompensation int
	Presaturation    int

	// PhaseEncodingVelocity is the per-axis encoding velocity in cm/s.
	// A zero vector means the scan is not flow-encoded; any non-zero
	// component marks flow encoding as active. The pipeline branches on
	// this field alone, never on the pixel data.
	PhaseEncodingVelocity [3]float64

	// MTC, SPIR and EPIFactor are acquisition option flags
	MTC       int
	SPIR      int
	EPIFactor int

	// DynamicScan flags a time-resolved acquisition
	DynamicScan int

	// Diffusion flags a diffusion-encoded acquisition
	Diffusion int

	// DiffusionEchoTime is the diffusion echo time in ms
	DiffusionEchoTime float64

	// MaxNumberOfDiffusionValues and MaxNumberOfGradientOrients size the
	// diffusion dimension
	MaxNumberOfDiffusionValues int
	MaxNumberOfGradientOrients int

	// NumberOfLabelTypes is the number of ASL label types
	NumberOfLabelTypes int

	// ImageRecords holds one record per stored 2D image, in REC order
	ImageRecords []ImageRecord
}

// FlowEncoded reports whether the acquisition is flow-encoded, which by
// convention means any component of the phase encoding velocity is
// non-zero.
func (h *AcquisitionHeader) FlowEncoded() bool {
	for _, v := range h.PhaseEncodingVelocity {
		if v != 0 {
			return true
		}
	}
	return false
}

// FlowAxes counts the non-zero components of the phase encoding velocity.
// Only single-axis flow encoding is supported by the decoder.
func (h *AcquisitionHeader) FlowAxes() int {
	n := 0
	for _, v := range h.PhaseEncodingVelocity {
		if v != 0 {
			n++
		}
	}
	return n
}

// EncodingVelocityMagnitude returns the Euclidean norm of the per-axis
// encoding velocity vector in cm/s.
func (h *AcquisitionHeader) EncodingVelocityMagnitude() float64 {
	v := h.PhaseEncodingVelocity
	return floats.Norm(v[:], 2)
}

// Rows returns the reconstructed in-plane row count, taken from the
// image records (the recon resolution, not the acquired scan resolution,
// determines the stored pixel matrix).
func (h *AcquisitionHeader) Rows() int {
	if len(h.ImageRecords) == 0 {
		return 0
	}
	return h.ImageRecords[0].ReconResolution[0]
}

// Columns returns the reconstructed in-plane column count.
func (h *AcquisitionHeader) Columns() int {
	if len(h.ImageRecords) == 0 {
		return 0
	}
	return h.ImageRecords[0].ReconResolution[1]
}

// FramesPerSlice returns the number of stored frames per slice location,
// derived from the image record count. For flow-encoded scans this counts
// the interleaved magnitude and phase images separately.
func (h *AcquisitionHeader) FramesPerSlice() int {
	if h.MaxNumberOfSlices == 0 {
		return 0
	}
	return len(h.ImageRecords) / h.MaxNumberOfSlices
}

// RescaleSlope returns the uniform rescale slope of the reconstruction.
func (h *AcquisitionHeader) RescaleSlope() float64 {
	if len(h.ImageRecords) == 0 {
		return 1
	}
	return h.ImageRecords[0].RescaleSlope
}

// RescaleIntercept returns the uniform rescale intercept of the
// reconstruction.
func (h *AcquisitionHeader) RescaleIntercept() float64 {
	if len(h.ImageRecords) == 0 {
		return 0
	}
	return h.ImageRecords[0].RescaleIntercept
}

// Validate checks the field combinations the decoding pipeline depends
// on. It is called at construction time by the PAR parser; all later
// computations may assume a valid header.
func (h *AcquisitionHeader) Validate() error {
	if h.MaxNumberOfSlices < 1 {
		return fmt.Errorf("header: slice count must be positive, got %d", h.MaxNumberOfSlices)
	}
	if h.MaxNumberOfDynamics < 1 {
		return fmt.Errorf("header: dynamic count must be positive, got %d", h.MaxNumberOfDynamics)
	}
	if h.MaxNumberOfEchoes < 1 {
		return fmt.Errorf("header: echo count must be positive, got %d", h.MaxNumberOfEchoes)
	}
	if len(h.ImageRecords) == 0 {
		return fmt.Errorf("header: no image records")
	}
	if len(h.ImageRecords)%h.MaxNumberOfSlices != 0 {
		return fmt.Errorf("header: %d image records not divisible by %d slices",
			len(h.ImageRecords), h.MaxNumberOfSlices)
	}

	rows, cols := h.ImageRecords[0].ReconResolution[0], h.ImageRecords[0].ReconResolution[1]
	if rows < 1 || cols < 1 {
		return fmt.Errorf("header: recon resolution must be positive, got %dx%d", rows, cols)
	}
	slope := h.ImageRecords[0].RescaleSlope
	intercept := h.ImageRecords[0].RescaleIntercept
	if slope == 0 {
		return fmt.Errorf("header: rescale slope must be non-zero")
	}
	for i, rec := range h.ImageRecords {
		if rec.ReconResolution[0] != rows || rec.ReconResolution[1] != cols {
			return fmt.Errorf("header: image %d recon resolution %dx%d differs from %dx%d",
				i, rec.ReconResolution[0], rec.ReconResolution[1], rows, cols)
		}
		// Rescale constants apply uniformly within one reconstruction.
		if rec.RescaleSlope != slope || rec.RescaleIntercept != intercept {
			return fmt.Errorf("header: image %d rescale slope/intercept %g/%g differ from %g/%g",
				i, rec.RescaleSlope, rec.RescaleIntercept, slope, intercept)
		}
	}
	return nil
}
