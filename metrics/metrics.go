// Package metrics provides Prometheus instrumentation for dialogue turns and collaborator calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rneagent_turns_total",
			Help: "Total number of dialogue turns",
		},
		[]string{"outcome"}, // outcome: prompt, retry, follow_up, answer, date_error, rejected
	)

	collaboratorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rneagent_collaborator_calls_total",
			Help: "Total number of NLU collaborator calls",
		},
		[]string{"task", "status"}, // status: success, error, malformed
	)

	collaboratorDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rneagent_collaborator_duration_seconds",
			Help:    "NLU collaborator call duration in seconds, retries included",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"task"},
	)

	answersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rneagent_answers_total",
			Help: "Total number of final answers by kind",
		},
		[]string{"kind"},
	)

	validationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rneagent_slot_validations_total",
			Help: "Total number of slot validations by result",
		},
		[]string{"slot", "result"},
	)
)

func RecordTurn(outcome string) {
	turnsTotal.WithLabelValues(outcome).Inc()
}

func RecordCollaboratorCall(task, status string, d time.Duration) {
	collaboratorCallsTotal.WithLabelValues(task, status).Inc()
	collaboratorDurationSeconds.WithLabelValues(task).Observe(d.Seconds())
}

func RecordAnswer(kind string) {
	answersTotal.WithLabelValues(kind).Inc()
}

func RecordValidation(slot, result string) {
	validationsTotal.WithLabelValues(slot, result).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
