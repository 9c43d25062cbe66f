package facematch

import (
	"fmt"
	"math"
)

// Metric selects how two encodings are compared. Registration and sign-in must use the same metric.
type Metric int

const (
	// MetricMeanAbsDiff is 1 - mean(|a_i - b_i|).
	MetricMeanAbsDiff Metric = iota + 1
	// MetricCosine is dot(a, b) / (|a| |b|), defined as 0 when either norm is zero.
	MetricCosine
	// MetricEuclidean is max(0, 1 - mean point distance). Geometry encodings only.
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricMeanAbsDiff:
		return "mean_abs_diff"
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("Metric(%d)", int(m))
	}
}

// ParseMetric parses the String form of a Metric.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "mean_abs_diff":
		return MetricMeanAbsDiff, nil
	case "cosine":
		return MetricCosine, nil
	case "euclidean":
		return MetricEuclidean, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// Supports reports whether the metric applies to encodings of the given kind.
func (m Metric) Supports(k Kind) bool {
	switch m {
	case MetricMeanAbsDiff, MetricCosine:
		return k == KindGeometry || k == KindVector
	case MetricEuclidean:
		return k == KindGeometry
	default:
		return false
	}
}

// Similarity compares two encodings under the metric.
// Encodings of different kinds or lengths, or a metric that does not apply to the kind, yield a
// *ShapeMismatchError; it never returns a made-up number for incomparable input.
func Similarity(metric Metric, a, b Encoding) (float64, error) {
	if err := checkComparable(metric, a, b); err != nil {
		return 0, err
	}

	switch metric {
	case MetricMeanAbsDiff:
		return MeanAbsDiff(a.Values, b.Values), nil
	case MetricCosine:
		return Cosine(a.Values, b.Values), nil
	default:
		return Euclidean(a.Values, b.Values), nil
	}
}

func checkComparable(metric Metric, a, b Encoding) error {
	switch metric {
	case MetricMeanAbsDiff, MetricCosine, MetricEuclidean:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	if a.Kind != b.Kind || len(a.Values) != len(b.Values) {
		return &ShapeMismatchError{Want: a.Kind, Got: b.Kind, WantLen: len(a.Values), GotLen: len(b.Values), Metric: metric}
	}
	if !metric.Supports(a.Kind) {
		return &ShapeMismatchError{Want: a.Kind, Got: b.Kind, WantLen: len(a.Values), GotLen: len(b.Values), Metric: metric}
	}
	if len(a.Values) == 0 {
		return ErrEmptyEncoding
	}
	if err := checkFinite(a.Values); err != nil {
		return err
	}
	if err := checkFinite(b.Values); err != nil {
		return err
	}
	if a.Kind == KindGeometry && len(a.Values)%2 != 0 {
		return fmt.Errorf("geometry encoding has odd length %d", len(a.Values))
	}
	return nil
}

// MeanAbsDiff returns 1 - Σ|a_i - b_i| / n. Slices must have equal, positive length.
func MeanAbsDiff(a, b []float64) float64 {
	var total float64
	for i := range a {
		total += math.Abs(a[i] - b[i])
	}
	return 1 - total/float64(len(a))
}

// Cosine returns the cosine similarity of a and b, or exactly 0 if either has zero norm.
// Each vector is scaled by its largest magnitude first, so finite inputs of any size neither
// overflow nor underflow the sums. The result is clamped to [-1, 1] to absorb rounding; non-finite
// input yields 0.
func Cosine(a, b []float64) float64 {
	scaleA, scaleB := maxAbs(a), maxAbs(b)
	if scaleA == 0 || scaleB == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := a[i]/scaleA, b[i]/scaleB
		dot += x * y
		normA += x * x
		normB += y * y
	}
	// sqrt(normA*normB) keeps Cosine(a, a) at exactly 1.
	sim := dot / math.Sqrt(normA*normB)
	if math.IsNaN(sim) {
		return 0
	}
	return max(-1, min(1, sim))
}

func maxAbs(values []float64) float64 {
	var m float64
	for _, v := range values {
		m = max(m, math.Abs(v))
	}
	return m
}

// Euclidean treats a and b as flattened (x, y) pairs and returns max(0, 1 - mean point distance).
func Euclidean(a, b []float64) float64 {
	n := len(a) / 2
	if n == 0 {
		return 0
	}
	var total float64
	for i := 0; i < n; i++ {
		dx := a[2*i] - b[2*i]
		dy := a[2*i+1] - b[2*i+1]
		total += math.Hypot(dx, dy)
	}
	return max(0, 1-total/float64(n))
}
