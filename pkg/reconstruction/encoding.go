package reconstruction

import (
	"fmt"
	"math"

	"mrimate/internal/models"
)

// Encoding identifies how the frame axis of the stored volume is to be
// interpreted. It is resolved exactly once from the header at load time;
// every later pipeline step branches on the resolved value, never on
// header fields or pixel data.
type Encoding int

const (
	// EncodingStandard stores one magnitude image per dynamic.
	EncodingStandard Encoding = iota

	// EncodingMultiEcho stores one magnitude image per echo.
	EncodingMultiEcho

	// EncodingFlow interleaves magnitude and integer phase images,
	// two frames per dynamic.
	EncodingFlow
)

func (e Encoding) String() string {
	switch e {
	case EncodingStandard:
		return "standard"
	case EncodingMultiEcho:
		return "multi-echo"
	case EncodingFlow:
		return "flow"
	default:
		return fmt.Sprintf("encoding(%d)", int(e))
	}
}

// The vendor stores phase as codes in a 12-bit space. Mid-scale decodes
// to zero radians, code 0 to -pi; +pi itself is excluded, the largest
// code 4095 maps to pi*(2047/2048).
const phaseHalfScale = 2048

// phaseToRadians applies the fixed affine phase decode
// (code - 2048) / 2048 * pi. Rescale slope/intercept play no part here.
func phaseToRadians(code float64) float64 {
	return (code - phaseHalfScale) / phaseHalfScale * math.Pi
}

// resolveEncoding determines the encoding mode from the header. Modes
// are mutually exclusive and checked in priority order: flow, then
// multi-echo, then standard.
func resolveEncoding(h *models.AcquisitionHeader) (Encoding, error) {
	if h.FlowEncoded() {
		if n := h.FlowAxes(); n > 1 {
			return 0, &UnsupportedEncodingError{
				Reason: fmt.Sprintf("%d-axis flow encoding, only single-axis is supported", n),
			}
		}
		stored := h.FramesPerSlice()
		if stored%2 != 0 {
			return 0, &UnsupportedEncodingError{
				Reason: fmt.Sprintf("flow encoding with odd frame count %d per slice", stored),
			}
		}
		if stored != 2*h.MaxNumberOfDynamics {
			return 0, &UnsupportedEncodingError{
				Reason: fmt.Sprintf("flow encoding stores %d frames per slice, header declares %d dynamics",
					stored, h.MaxNumberOfDynamics),
			}
		}
		return EncodingFlow, nil
	}

	if h.MaxNumberOfEchoes > 1 {
		if stored := h.FramesPerSlice(); stored != h.MaxNumberOfEchoes {
			return 0, &UnsupportedEncodingError{
				Reason: fmt.Sprintf("multi-echo stores %d frames per slice, header declares %d echoes",
					stored, h.MaxNumberOfEchoes),
			}
		}
		return EncodingMultiEcho, nil
	}

	if stored := h.FramesPerSlice(); stored != h.MaxNumberOfDynamics {
		return 0, &UnsupportedEncodingError{
			Reason: fmt.Sprintf("stores %d frames per slice, header declares %d dynamics",
				stored, h.MaxNumberOfDynamics),
		}
	}
	return EncodingStandard, nil
}

// frameCount returns the total length of the frame axis for the resolved
// encoding mode.
func frameCount(e Encoding, h *models.AcquisitionHeader) int {
	switch e {
	case EncodingFlow:
		return 2 * h.MaxNumberOfDynamics
	case EncodingMultiEcho:
		return h.MaxNumberOfEchoes
	default:
		return h.MaxNumberOfDynamics
	}
}
