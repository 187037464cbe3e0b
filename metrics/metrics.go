package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	routeDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_route_decisions_total",
		Help: "Queries routed per branch (commission/general/fallback)",
	}, []string{"route"})

	detectorConfidence = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_detector_confidence",
		Help:    "Commission detector confidence distribution",
		Buckets: []float64{0, 0.3, 0.5, 0.6, 0.8, 0.85, 0.9, 0.95, 1.0},
	})

	matchScores = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_match_score",
		Help:    "Best-match score distribution for commission lookups",
		Buckets: []float64{0, 0.5, 1, 1.5, 2, 3, 4, 5, 7},
	})

	retrieverLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_retriever_latency_ms",
		Help:    "Latency of retriever calls in milliseconds",
		Buckets: []float64{10, 25, 50, 75, 100, 150, 200, 300, 500, 800, 1200},
	}, []string{"type"})

	retrieverResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_retriever_results",
		Help:    "Number of results returned by a retriever",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	}, []string{"type"})

	gatingDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_gating_decision_total",
		Help: "Relevance gate decisions",
	}, []string{"decision"})

	answerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_answer_latency_ms",
		Help:    "End-to-end answer latency per route in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
	}, []string{"route"})

	callbackResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_callback_total",
		Help: "Asynchronous callback delivery outcomes",
	}, []string{"outcome"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(routeDecisions, detectorConfidence, matchScores,
			retrieverLatency, retrieverResults, gatingDecisions, answerLatency, callbackResults)
	})
}

// IncRoute counts a routing decision.
func IncRoute(route string) {
	ensureRegistered()
	routeDecisions.WithLabelValues(route).Inc()
}

// ObserveDetector records a detector confidence score.
func ObserveDetector(confidence float64) {
	ensureRegistered()
	detectorConfidence.Observe(confidence)
}

// ObserveMatchScore records the winning match score of a commission lookup.
func ObserveMatchScore(score float64) {
	ensureRegistered()
	matchScores.Observe(score)
}

// ObserveRetriever records latency and result size for a retriever type.
func ObserveRetriever(typ string, start time.Time, results int) {
	ensureRegistered()
	retrieverLatency.WithLabelValues(typ).Observe(float64(time.Since(start).Milliseconds()))
	retrieverResults.WithLabelValues(typ).Observe(float64(results))
}

// ObserveGating records a relevance-gate decision.
func ObserveGating(decision string) {
	ensureRegistered()
	gatingDecisions.WithLabelValues(decision).Inc()
}

// ObserveAnswer records end-to-end latency for one answered query.
func ObserveAnswer(route string, start time.Time) {
	ensureRegistered()
	answerLatency.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
}

// IncCallback counts an asynchronous callback delivery outcome.
func IncCallback(outcome string) {
	ensureRegistered()
	callbackResults.WithLabelValues(outcome).Inc()
}
