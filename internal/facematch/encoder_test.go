package facematch

import (
	"errors"
	"math"
	"testing"
)

func mustEncoder(t *testing.T, mode Mode) *Encoder {
	t.Helper()
	enc, err := NewEncoder(mode)
	if err != nil {
		t.Fatalf("NewEncoder(%s) failed: %v", mode, err)
	}
	return enc
}

func TestNewEncoder_UnknownMode(t *testing.T) {
	_, err := NewEncoder(Mode(42))
	if !errors.Is(err, ErrUnknownMode) {
		t.Errorf("NewEncoder(42) error = %v, want ErrUnknownMode", err)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"geometry", ModeGeometry, false},
		{"vector", ModeVector, false},
		{"landmarks", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestEncode_GeometryProjectsLandmarks(t *testing.T) {
	enc := mustEncoder(t, ModeGeometry)
	out := DetectorOutput{Faces: []DetectedFace{{
		Box:       Rect{Origin: Point{X: 100, Y: 200}, Width: 50, Height: 100},
		Landmarks: []Point{{0, 0}, {1, 1}, {0.5, 0.25}},
		Score:     0.99,
	}}}

	outcome := enc.Encode(out)
	if !outcome.OK() {
		t.Fatalf("Encode() status = %s, want encoded (err: %v)", outcome.Status, outcome.Err)
	}
	if outcome.Encoding.Kind != KindGeometry {
		t.Errorf("Encode() kind = %s, want geometry", outcome.Encoding.Kind)
	}

	want := []float64{100, 200, 150, 300, 125, 225}
	if len(outcome.Encoding.Values) != len(want) {
		t.Fatalf("Encode() length = %d, want %d", len(outcome.Encoding.Values), len(want))
	}
	for i := range want {
		if outcome.Encoding.Values[i] != want[i] {
			t.Errorf("Encode().Values[%d] = %v, want %v", i, outcome.Encoding.Values[i], want[i])
		}
	}
}

func TestEncode_VectorCopiesInput(t *testing.T) {
	enc := mustEncoder(t, ModeVector)
	vector := []float64{0.1, -0.2, 0.3}
	outcome := enc.Encode(DetectorOutput{Faces: []DetectedFace{{Vector: vector}}})

	if !outcome.OK() {
		t.Fatalf("Encode() status = %s, want encoded", outcome.Status)
	}
	if outcome.Encoding.Kind != KindVector {
		t.Errorf("Encode() kind = %s, want vector", outcome.Encoding.Kind)
	}
	for i := range vector {
		if outcome.Encoding.Values[i] != vector[i] {
			t.Errorf("Encode().Values[%d] = %v, want %v", i, outcome.Encoding.Values[i], vector[i])
		}
	}

	vector[0] = 99
	if outcome.Encoding.Values[0] == 99 {
		t.Error("Encode() must not alias the detector's vector")
	}
}

func TestEncode_NoFace(t *testing.T) {
	for _, mode := range []Mode{ModeGeometry, ModeVector} {
		t.Run(mode.String(), func(t *testing.T) {
			outcome := mustEncoder(t, mode).Encode(DetectorOutput{})
			if outcome.Status != StatusNoFace {
				t.Fatalf("Encode() status = %s, want no_face", outcome.Status)
			}
			if !outcome.Encoding.IsZero() {
				t.Errorf("Encode() returned encoding %v for no face, want none", outcome.Encoding)
			}
			if !errors.Is(outcome.AsError(), ErrNoFace) {
				t.Errorf("AsError() = %v, want ErrNoFace", outcome.AsError())
			}
		})
	}
}

func TestEncode_DetectorError(t *testing.T) {
	cause := errors.New("camera unavailable")
	outcome := mustEncoder(t, ModeVector).Encode(DetectorOutput{
		Faces: []DetectedFace{{Vector: []float64{1}}},
		Err:   cause,
	})

	if outcome.Status != StatusDetectorError {
		t.Fatalf("Encode() status = %s, want detector_error", outcome.Status)
	}
	if !errors.Is(outcome.AsError(), cause) {
		t.Errorf("AsError() = %v, want wrapped cause", outcome.AsError())
	}
	if errors.Is(outcome.AsError(), ErrNoFace) {
		t.Error("detector error must not look like a missing face")
	}
}

func TestEncode_MissingFaceData(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		face DetectedFace
	}{
		{"geometry without landmarks", ModeGeometry, DetectedFace{Vector: []float64{1, 2}}},
		{"vector without embedding", ModeVector, DetectedFace{Landmarks: []Point{{0.5, 0.5}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := mustEncoder(t, tt.mode).Encode(DetectorOutput{Faces: []DetectedFace{tt.face}})
			if outcome.Status != StatusDetectorError {
				t.Fatalf("Encode() status = %s, want detector_error", outcome.Status)
			}
			if !errors.Is(outcome.Err, ErrMissingFaceData) {
				t.Errorf("Encode() err = %v, want ErrMissingFaceData", outcome.Err)
			}
		})
	}
}

func TestEncode_NonFiniteFaceData(t *testing.T) {
	tests := []struct {
		name string
		mode Mode
		face DetectedFace
	}{
		{"NaN in vector", ModeVector, DetectedFace{Vector: []float64{0.1, math.NaN()}}},
		{"infinite box", ModeGeometry, DetectedFace{
			Box:       Rect{Width: math.Inf(1), Height: 10},
			Landmarks: []Point{{0.5, 0.5}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome := mustEncoder(t, tt.mode).Encode(DetectorOutput{Faces: []DetectedFace{tt.face}})
			if outcome.Status != StatusDetectorError {
				t.Fatalf("Encode() status = %s, want detector_error", outcome.Status)
			}
			if !errors.Is(outcome.Err, ErrNonFinite) {
				t.Errorf("Encode() err = %v, want ErrNonFinite", outcome.Err)
			}
		})
	}
}

func TestEncode_PicksPrimaryFace(t *testing.T) {
	enc := mustEncoder(t, ModeVector)
	outcome := enc.Encode(DetectorOutput{Faces: []DetectedFace{
		{Vector: []float64{1}, Score: 0.5},
		{Vector: []float64{2}, Score: 0.9},
		{Vector: []float64{3}, Score: 0.9},
	}})

	if !outcome.OK() {
		t.Fatalf("Encode() status = %s, want encoded", outcome.Status)
	}
	if outcome.Encoding.Values[0] != 2 {
		t.Errorf("Encode() picked face with value %v, want the first highest-scoring face (2)", outcome.Encoding.Values[0])
	}
}
