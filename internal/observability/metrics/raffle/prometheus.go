package rafflemetrics

import (
	"context"
	"math/big"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type prometheusMetrics struct {
	operationAttempts *prometheus.CounterVec
	operationSuccess  *prometheus.CounterVec
	operationFailures *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec

	handlerAttempts *prometheus.CounterVec
	handlerSuccess  *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec

	entries        prometheus.Counter
	players        prometheus.Gauge
	pool           prometheus.Gauge
	calculating    prometheus.Gauge
	payouts        prometheus.Counter
	payoutAmount   prometheus.Counter
	payoutFailures prometheus.Counter
}

// NewPrometheus registers the raffle collectors on reg under namespace.
func NewPrometheus(reg prometheus.Registerer, namespace string) (RaffleMetrics, error) {
	m := &prometheusMetrics{
		operationAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "service", Name: "operation_attempts_total",
			Help: "Service operations started.",
		}, []string{"operation", "service"}),
		operationSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "service", Name: "operation_success_total",
			Help: "Service operations completed without infrastructure error.",
		}, []string{"operation", "service"}),
		operationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "service", Name: "operation_failures_total",
			Help: "Service operations that returned an infrastructure error.",
		}, []string{"operation", "service"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "service", Name: "operation_duration_seconds",
			Help: "Service operation latency.", Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		handlerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "handler", Name: "attempts_total",
			Help: "Messages handled.",
		}, []string{"handler"}),
		handlerSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "handler", Name: "success_total",
			Help: "Messages handled successfully.",
		}, []string{"handler"}),
		handlerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "handler", Name: "failures_total",
			Help: "Messages whose handler returned an error.",
		}, []string{"handler"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "handler", Name: "duration_seconds",
			Help: "Handler latency.", Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "round", Name: "entries_total",
			Help: "Accepted entrant slots.",
		}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "round", Name: "players",
			Help: "Entrant slots in the current round.",
		}),
		pool: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "round", Name: "pool",
			Help: "Pool of the current round in base units.",
		}),
		calculating: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "round", Name: "calculating",
			Help: "1 while a randomness request is outstanding.",
		}),
		payouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payout", Name: "total",
			Help: "Successful payouts.",
		}),
		payoutAmount: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payout", Name: "amount_total",
			Help: "Sum of paid out pools in base units.",
		}),
		payoutFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "payout", Name: "failures_total",
			Help: "Payouts rejected by the transfer sink.",
		}),
	}

	collectors := []prometheus.Collector{
		m.operationAttempts, m.operationSuccess, m.operationFailures, m.operationDuration,
		m.handlerAttempts, m.handlerSuccess, m.handlerFailures, m.handlerDuration,
		m.entries, m.players, m.pool, m.calculating,
		m.payouts, m.payoutAmount, m.payoutFailures,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *prometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.operationAttempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.operationSuccess.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.operationFailures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.operationDuration.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordHandlerAttempt(_ context.Context, handlerName string) {
	m.handlerAttempts.WithLabelValues(handlerName).Inc()
}

func (m *prometheusMetrics) RecordHandlerSuccess(_ context.Context, handlerName string) {
	m.handlerSuccess.WithLabelValues(handlerName).Inc()
}

func (m *prometheusMetrics) RecordHandlerFailure(_ context.Context, handlerName string) {
	m.handlerFailures.WithLabelValues(handlerName).Inc()
}

func (m *prometheusMetrics) RecordHandlerDuration(_ context.Context, handlerName string, duration time.Duration) {
	m.handlerDuration.WithLabelValues(handlerName).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordEntry(context.Context) {
	m.entries.Inc()
}

func (m *prometheusMetrics) SetRoundState(_ context.Context, players int, pool *big.Int, calculating bool) {
	m.players.Set(float64(players))
	m.pool.Set(toFloat(pool))
	if calculating {
		m.calculating.Set(1)
	} else {
		m.calculating.Set(0)
	}
}

func (m *prometheusMetrics) RecordPayout(_ context.Context, amount *big.Int) {
	m.payouts.Inc()
	m.payoutAmount.Add(toFloat(amount))
}

func (m *prometheusMetrics) RecordPayoutFailure(context.Context) {
	m.payoutFailures.Inc()
}

// toFloat loses precision above 2^53; gauges only need the magnitude.
func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
