package metrics

import (
	"time"

	"github.com/blukai/seabattle/internal/field"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "seabattle"

// Side tells whose shot is being counted.
type Side string

const (
	SideLocal Side = "local"
	SidePeer  Side = "peer"
)

// Protocol error kinds.
const (
	KindInvalidMove   = "invalid_move"
	KindInvalidResult = "invalid_result"
	KindIO            = "io"
)

// Metrics is safe to use as nil, in which case nothing is recorded.
type Metrics struct {
	shots          *prometheus.CounterVec
	protocolErrors *prometheus.CounterVec
	games          *prometheus.CounterVec
	roundDuration  *prometheus.HistogramVec
}

func New(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)

	return &Metrics{
		shots: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shots_total",
			Help:      "Shots resolved, by shooter and outcome.",
		}, []string{"side", "outcome"}),

		protocolErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Failed exchanges with the peer, by kind.",
		}, []string{"kind"}),

		games: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_total",
			Help:      "Finished games, by result.",
		}, []string{"result"}),

		// peer rounds include the time the opponent spent thinking
		roundDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Wall time of a single round, by shooter.",
			Buckets:   []float64{.01, .1, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"side"}),
	}
}

func (m *Metrics) Shot(side Side, outcome field.Outcome) {
	if m == nil {
		return
	}
	m.shots.WithLabelValues(string(side), outcome.String()).Inc()
}

func (m *Metrics) ProtocolError(kind string) {
	if m == nil {
		return
	}
	m.protocolErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) GameFinished(won bool) {
	if m == nil {
		return
	}
	result := "lost"
	if won {
		result = "won"
	}
	m.games.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRound(side Side, d time.Duration) {
	if m == nil {
		return
	}
	m.roundDuration.WithLabelValues(string(side)).Observe(d.Seconds())
}
