// Package detector talks to the face detection service and converts its answers into
// facematch.DetectorOutput.
package detector

import (
	"context"

	"github.com/kozaktomas/face-signin/internal/facematch"
)

// Detector runs face detection on one still image.
// Failures are reported in DetectorOutput.Err, never as a missing face.
type Detector interface {
	Detect(ctx context.Context, image []byte) facematch.DetectorOutput
}

// Func adapts a function to the Detector interface.
type Func func(ctx context.Context, image []byte) facematch.DetectorOutput

// Detect calls f.
func (f Func) Detect(ctx context.Context, image []byte) facematch.DetectorOutput {
	return f(ctx, image)
}
