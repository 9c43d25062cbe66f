package signin

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

var (
	// ErrRetryCapture means no face was found; the caller should capture another frame.
	// It always wraps facematch.ErrNoFace.
	ErrRetryCapture = errors.New("no face detected, capture again")
	// ErrDetector wraps failures of the face detector.
	ErrDetector = errors.New("face detector failed")
	// ErrAlreadyRegistered is matched by *DuplicateError.
	ErrAlreadyRegistered = errors.New("face already registered")
	// ErrInvalidClient is returned for registration requests missing required fields.
	ErrInvalidClient = errors.New("invalid client")
)

// DuplicateError reports the registered client whose face matched a new registration.
type DuplicateError struct {
	Identity facematch.Identity
	Score    float64
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s: matches client %s (score %.3f)", ErrAlreadyRegistered, e.Identity, e.Score)
}

// Is makes errors.Is(err, ErrAlreadyRegistered) true.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrAlreadyRegistered
}
