package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSubmitted = "submitted"
	OutcomeForced    = "forced"
	OutcomeAbandoned = "abandoned"
)

var (
	// attempts created, by mode (practice/exam)
	AttemptsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyq_attempts_started_total",
			Help: "Total number of attempts started",
		},
		[]string{"mode"},
	)

	// sessions handed to the recorder, by outcome (submitted/forced/abandoned)
	SessionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pyq_sessions_recorded_total",
			Help: "Total number of finished sessions recorded",
		},
		[]string{"outcome"},
	)

	SessionStoreErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pyq_session_store_errors_total",
			Help: "Session persistence or notification failures",
		},
	)

	ScorePercent = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pyq_session_score_percent",
			Help:    "Rounded score percent of recorded sessions",
			Buckets: []float64{40, 50, 60, 75, 90, 100},
		},
	)
)

// Handler exposes the default registry.
func Handler() http.Handler { return promhttp.Handler() }
