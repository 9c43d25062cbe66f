package facematch

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// MatchResult is the outcome of one matching call.
// Identity is empty unless Matched. Score is the best similarity seen, clamped to [0, 1], and is
// reported even when unmatched so operators can calibrate the threshold.
type MatchResult struct {
	Identity Identity
	Score    float64
	Matched  bool
}

// ValidateThreshold checks that a threshold is a usable calibration value.
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

// Match scans the gallery in order and returns the single best match for query.
// An entry replaces the current best only when strictly more similar, so the earliest entry wins
// ties. The result is matched when the best similarity is >= threshold. An empty gallery is
// unmatched with score 0. Any incomparable entry aborts the scan with its error.
// The gallery is not modified.
func Match(query Encoding, gallery []GalleryEntry, metric Metric, threshold float64) (MatchResult, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return MatchResult{}, err
	}
	if err := query.Validate(); err != nil {
		return MatchResult{}, fmt.Errorf("query: %w", err)
	}
	if len(gallery) == 0 {
		return MatchResult{}, nil
	}

	bestIdx := -1
	var bestScore float64
	for i := range gallery {
		score, err := Similarity(metric, query, gallery[i].Encoding)
		if err != nil {
			return MatchResult{}, fmt.Errorf("comparing with %q: %w", gallery[i].Identity, err)
		}
		if bestIdx < 0 || score > bestScore {
			bestIdx = i
			bestScore = score
		}
	}

	result := MatchResult{Score: max(0, min(1, bestScore))}
	if bestScore >= threshold {
		result.Identity = gallery[bestIdx].Identity
		result.Matched = true
	}
	return result, nil
}

// Matcher fixes a metric and threshold for repeated matching.
type Matcher struct {
	Metric    Metric
	Threshold float64
}

// NewMatcher validates the calibration and returns a Matcher.
func NewMatcher(metric Metric, threshold float64) (Matcher, error) {
	if !metric.Supports(KindGeometry) && !metric.Supports(KindVector) {
		return Matcher{}, fmt.Errorf("%w: %s", ErrUnknownMetric, metric)
	}
	if err := ValidateThreshold(threshold); err != nil {
		return Matcher{}, err
	}
	return Matcher{Metric: metric, Threshold: threshold}, nil
}

// Match runs Match with the matcher's calibration.
func (m Matcher) Match(query Encoding, gallery []GalleryEntry) (MatchResult, error) {
	return Match(query, gallery, m.Metric, m.Threshold)
}

// ScoredEntry is a gallery identity with its similarity to a query.
type ScoredEntry struct {
	Identity Identity
	Score    float64
}

// Rank returns up to k gallery entries ordered by descending similarity, keeping gallery order
// among equal scores. k <= 0 returns every entry. It is a diagnostic aid; decisions use Match.
func Rank(query Encoding, gallery []GalleryEntry, metric Metric, k int) ([]ScoredEntry, error) {
	scored := make([]ScoredEntry, 0, len(gallery))
	for i := range gallery {
		score, err := Similarity(metric, query, gallery[i].Encoding)
		if err != nil {
			return nil, fmt.Errorf("comparing with %q: %w", gallery[i].Identity, err)
		}
		scored = append(scored, ScoredEntry{Identity: gallery[i].Identity, Score: score})
	}

	slices.SortStableFunc(scored, func(a, b ScoredEntry) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
