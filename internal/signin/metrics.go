package signin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sign-in outcome labels.
const (
	OutcomeGranted = "granted"
	OutcomeDenied  = "denied"
	OutcomeRetry   = "retry"
	OutcomeError   = "error"
)

// Metrics tracks sign-in outcomes and match scores.
type Metrics struct {
	SignIns        *prometheus.CounterVec
	Registrations  *prometheus.CounterVec
	BestScore      prometheus.Histogram
	DetectDuration prometheus.Histogram
}

// NewMetrics registers the service metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SignIns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "face_signin_attempts_total",
			Help: "Sign-in attempts by outcome",
		}, []string{"outcome"}),
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "face_signin_registrations_total",
			Help: "Registration attempts by outcome",
		}, []string{"outcome"}),
		BestScore: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_signin_best_score",
			Help:    "Best gallery similarity per sign-in attempt",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		DetectDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "face_signin_detect_duration_seconds",
			Help:    "Duration of face detector calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

func (m *Metrics) signIn(outcome string) {
	m.SignIns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) registration(outcome string) {
	m.Registrations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeScore(score float64) {
	m.BestScore.Observe(score)
}

// observeDetect records a detector call started at start.
func (m *Metrics) observeDetect(start time.Time) {
	m.DetectDuration.Observe(time.Since(start).Seconds())
}
