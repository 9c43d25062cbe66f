package facematch

import (
	"errors"
	"fmt"
)

var errDetectorFailed = errors.New("detector error")

// Mode selects the encoder variant. It is fixed per deployment, never per call.
type Mode int

const (
	ModeGeometry Mode = iota + 1
	ModeVector
)

func (m Mode) String() string {
	switch m {
	case ModeGeometry:
		return "geometry"
	case ModeVector:
		return "vector"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Kind returns the encoding kind produced in this mode.
func (m Mode) Kind() Kind {
	switch m {
	case ModeGeometry:
		return KindGeometry
	case ModeVector:
		return KindVector
	default:
		return 0
	}
}

// ParseMode parses "geometry" or "vector".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "geometry":
		return ModeGeometry, nil
	case "vector":
		return ModeVector, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// DetectedFace is one face as reported by the detector.
// Landmarks are relative to Box; their order must be stable across calls because no
// correspondence step exists (index i is always the same anatomical point).
type DetectedFace struct {
	Box       Rect
	Landmarks []Point
	Vector    []float64
	Score     float64 // detector confidence, used to pick the primary face
}

// DetectorOutput is the raw result of running the detector on one still image.
type DetectorOutput struct {
	Faces []DetectedFace
	Err   error
}

// Status classifies an encoding outcome.
type Status int

const (
	StatusEncoded Status = iota + 1
	StatusNoFace
	StatusDetectorError
)

func (s Status) String() string {
	switch s {
	case StatusEncoded:
		return "encoded"
	case StatusNoFace:
		return "no_face"
	case StatusDetectorError:
		return "detector_error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the typed result of Encode. Encoding is set only when Status is StatusEncoded,
// Err only when it is StatusDetectorError.
type Outcome struct {
	Status   Status
	Encoding Encoding
	Err      error
}

// OK reports whether an encoding was produced.
func (o Outcome) OK() bool {
	return o.Status == StatusEncoded
}

// AsError returns the outcome as an error: nil when encoded, ErrNoFace when no face was found,
// or the wrapped detector failure.
func (o Outcome) AsError() error {
	switch o.Status {
	case StatusEncoded:
		return nil
	case StatusNoFace:
		return ErrNoFace
	default:
		if o.Err == nil {
			return errDetectorFailed
		}
		return fmt.Errorf("%w: %w", errDetectorFailed, o.Err)
	}
}

// Encoder normalizes detector output into encodings of a single kind.
type Encoder struct {
	mode Mode
}

// NewEncoder creates an encoder for the given mode.
func NewEncoder(mode Mode) (*Encoder, error) {
	if mode.Kind() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}
	return &Encoder{mode: mode}, nil
}

// Mode returns the encoder's mode.
func (e *Encoder) Mode() Mode {
	return e.mode
}

// Kind returns the kind of encodings this encoder produces.
func (e *Encoder) Kind() Kind {
	return e.mode.Kind()
}

// Encode turns detector output into an Outcome. It has no side effects.
func (e *Encoder) Encode(out DetectorOutput) Outcome {
	if out.Err != nil {
		return Outcome{Status: StatusDetectorError, Err: out.Err}
	}
	if len(out.Faces) == 0 {
		return Outcome{Status: StatusNoFace}
	}

	face := primaryFace(out.Faces)
	var enc Encoding
	switch e.mode {
	case ModeGeometry:
		if len(face.Landmarks) == 0 {
			return Outcome{Status: StatusDetectorError, Err: fmt.Errorf("%w: no landmarks", ErrMissingFaceData)}
		}
		enc = NewGeometryEncoding(ProjectLandmarks(face.Box, face.Landmarks))
	default:
		if len(face.Vector) == 0 {
			return Outcome{Status: StatusDetectorError, Err: fmt.Errorf("%w: no feature vector", ErrMissingFaceData)}
		}
		enc = NewVectorEncoding(face.Vector)
	}
	if err := enc.Validate(); err != nil {
		return Outcome{Status: StatusDetectorError, Err: fmt.Errorf("detector returned unusable face data: %w", err)}
	}
	return Outcome{Status: StatusEncoded, Encoding: enc}
}

// primaryFace returns the face with the highest detector score; the first one wins ties.
func primaryFace(faces []DetectedFace) DetectedFace {
	best := 0
	for i := 1; i < len(faces); i++ {
		if faces[i].Score > faces[best].Score {
			best = i
		}
	}
	return faces[best]
}
