package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fair_slot"

// 标签
const (
	LabelMethod    = "method"
	LabelPath      = "path"
	LabelStatus    = "status"
	LabelState     = "state"
	LabelEvent     = "event"
	LabelCurrency  = "currency"
	LabelOperation = "operation"
	LabelResult    = "result"
)

// HTTP指标
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		},
	)
)

// 公平性指标
var (
	CommitmentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_commitments_total",
			Help:      "Server seed commitments by lifecycle event (committed, revealed, purged)",
		},
		[]string{LabelEvent},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "seed_verifications_total",
			Help:      "Player-side seed verifications by result",
		},
		[]string{LabelResult},
	)
)

// 回合与结算指标
var (
	RoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Rounds by terminal state",
		},
		[]string{LabelState},
	)

	RoundDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_duration_seconds",
			Help:      "Time from commit to terminal state",
			Buckets:   prometheus.DefBuckets,
		},
	)

	WageredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wagered_minor_units_total",
			Help:      "Sum of debited wagers in minor currency units",
		},
		[]string{LabelCurrency},
	)

	PaidOutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paid_out_minor_units_total",
			Help:      "Sum of credited payouts in minor currency units",
		},
		[]string{LabelCurrency},
	)

	JackpotsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jackpots_total",
			Help:      "Rounds that hit the jackpot rule",
		},
	)

	SettlementInconsistencies = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_inconsistencies_total",
			Help:      "Rounds that failed after the wager was debited",
		},
	)

	LedgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_operations_total",
			Help:      "Ledger adapter calls by operation and result",
		},
		[]string{LabelOperation, LabelResult},
	)
)
