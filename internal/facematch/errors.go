package facematch

import (
	"errors"
	"fmt"
)

var (
	// ErrNoFace means the detector found no face in the image. The caller should re-prompt capture.
	ErrNoFace = errors.New("no face detected")

	// ErrShapeMismatch is matched by every ShapeMismatchError.
	ErrShapeMismatch = errors.New("encoding shape mismatch")

	// ErrEmptyEncoding is returned when comparing encodings with no values.
	ErrEmptyEncoding = errors.New("empty encoding")

	// ErrInvalidThreshold is returned for thresholds that are NaN or outside [0, 1].
	ErrInvalidThreshold = errors.New("threshold must be within [0, 1]")

	// ErrUnknownMetric is returned for an unsupported Metric value or name.
	ErrUnknownMetric = errors.New("unknown similarity metric")

	// ErrUnknownMode is returned for an unsupported encoder Mode.
	ErrUnknownMode = errors.New("unknown encoder mode")

	// ErrNonFinite is matched by every NonFiniteError.
	ErrNonFinite = errors.New("encoding value is not finite")

	// ErrMissingFaceData is returned when a detected face lacks the data the encoder mode needs.
	ErrMissingFaceData = errors.New("detected face has no data for encoder mode")
)

// ShapeMismatchError reports two encodings that cannot be compared: different kinds, different
// lengths, or a metric that does not apply to the kind. It usually means the gallery mixes encoder
// versions.
type ShapeMismatchError struct {
	Want    Kind
	Got     Kind
	WantLen int
	GotLen  int
	Metric  Metric
}

func (e *ShapeMismatchError) Error() string {
	if e.Want != e.Got {
		return fmt.Sprintf("encoding shape mismatch: cannot compare %s encoding with %s encoding", e.Want, e.Got)
	}
	if e.WantLen != e.GotLen {
		return fmt.Sprintf("encoding shape mismatch: %s encodings of length %d and %d", e.Want, e.WantLen, e.GotLen)
	}
	return fmt.Sprintf("encoding shape mismatch: metric %s does not apply to %s encodings", e.Metric, e.Want)
}

// Is makes errors.Is(err, ErrShapeMismatch) hold for every ShapeMismatchError.
func (e *ShapeMismatchError) Is(target error) bool {
	return target == ErrShapeMismatch
}

// NonFiniteError reports a NaN or infinite value inside an encoding.
type NonFiniteError struct {
	Index int
	Value float64
}

func (e *NonFiniteError) Error() string {
	return fmt.Sprintf("encoding value %d is %v", e.Index, e.Value)
}

func (e *NonFiniteError) Is(target error) bool {
	return target == ErrNonFinite
}
