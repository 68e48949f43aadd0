package reconstruction

import (
	"errors"
	"fmt"
)

// Channel availability errors. These are recoverable: the caller picked
// an accessor that does not apply to this acquisition, or has not
// computed the prerequisite yet.
var (
	// ErrNotLoaded is returned by accessors before Load has run.
	ErrNotLoaded = errors.New("reconstruction: experiment not loaded")

	// ErrPhaseUnavailable is returned when a phase-dependent channel is
	// requested on an acquisition that is not flow-encoded.
	ErrPhaseUnavailable = errors.New("reconstruction: acquisition is not flow-encoded, no phase channel exists")

	// ErrVelocityUnavailable is returned when the velocity channel is
	// requested before it has been computed.
	ErrVelocityUnavailable = errors.New("reconstruction: velocity not computed yet")
)

// UnsupportedEncodingError indicates that the encoding mode could not be
// determined from the header, or that the acquisition uses an encoding
// the decoder does not support. It is fatal: a best-effort decode would
// silently mislabel channels, which is worse than failing.
type UnsupportedEncodingError struct {
	Reason string
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("reconstruction: unsupported encoding: %s", e.Reason)
}
