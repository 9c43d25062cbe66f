package facematch

import (
	"fmt"
	"math"
	"slices"
)

// Kind tags which encoder produced an Encoding.
type Kind int

const (
	KindGeometry Kind = iota + 1 // flattened absolute landmark coordinates
	KindVector                   // model-provided feature vector
)

func (k Kind) String() string {
	switch k {
	case KindGeometry:
		return "geometry"
	case KindVector:
		return "vector"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Identity is an opaque handle to a person record held by the registry.
type Identity string

// Point is a 2-D coordinate.
type Point struct {
	X, Y float64
}

// Encoding is the comparable representation of one face.
// Geometry encodings store points as x0, y0, x1, y1, ...
type Encoding struct {
	Kind   Kind
	Values []float64
}

// NewGeometryEncoding flattens absolute landmark points into a geometry encoding.
func NewGeometryEncoding(points []Point) Encoding {
	values := make([]float64, 0, 2*len(points))
	for _, p := range points {
		values = append(values, p.X, p.Y)
	}
	return Encoding{Kind: KindGeometry, Values: values}
}

// NewVectorEncoding wraps a copy of a feature vector.
func NewVectorEncoding(vector []float64) Encoding {
	return Encoding{Kind: KindVector, Values: slices.Clone(vector)}
}

// Len returns the number of values in the encoding.
func (e Encoding) Len() int {
	return len(e.Values)
}

// IsZero reports whether the encoding carries no data at all.
func (e Encoding) IsZero() bool {
	return e.Kind == 0 && len(e.Values) == 0
}

// Float32s converts the values for storage backends that keep single precision vectors.
func (e Encoding) Float32s() []float32 {
	out := make([]float32, len(e.Values))
	for i, v := range e.Values {
		out[i] = float32(v)
	}
	return out
}

// Validate checks the structural invariants of an encoding.
func (e Encoding) Validate() error {
	switch e.Kind {
	case KindGeometry:
		if len(e.Values)%2 != 0 {
			return fmt.Errorf("geometry encoding has odd length %d", len(e.Values))
		}
	case KindVector:
	default:
		return fmt.Errorf("encoding has unknown kind %d", int(e.Kind))
	}
	if len(e.Values) == 0 {
		return ErrEmptyEncoding
	}
	return checkFinite(e.Values)
}

func checkFinite(values []float64) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &NonFiniteError{Index: i, Value: v}
		}
	}
	return nil
}

// GalleryEntry pairs a registered identity with its stored encoding.
type GalleryEntry struct {
	Identity Identity
	Encoding Encoding
}
