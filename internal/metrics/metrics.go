package metrics

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	LockAcquireTotal *prometheus.CounterVec // result=acquired|timeout|error
	LockReleaseTotal *prometheus.CounterVec // result=released|not_owner|error
	LockWaitMS       prometheus.Histogram

	ClosureTotal *prometheus.CounterVec // result=closed|retry|failed|dropped|panic
	DueMeetings  prometheus.Gauge
}

// NewMetrics 注册到给定的 Registerer，测试中传入独立的 prometheus.NewRegistry()
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LockAcquireTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_lock_acquire_total",
				Help: "Total distributed lock acquire attempts by result",
			},
			[]string{"result"},
		),
		LockReleaseTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_lock_release_total",
				Help: "Total distributed lock releases by result",
			},
			[]string{"result"},
		),
		LockWaitMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meeting_lock_wait_ms",
			Help:    "Time spent spinning for a distributed lock (ms)",
			Buckets: prometheus.ExponentialBuckets(1, 2, 15), // 1ms .. ~16s
		}),
		ClosureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meeting_closure_total",
				Help: "Meetings processed by the closure worker by result",
			},
			[]string{"result"},
		),
		DueMeetings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "meeting_closure_due",
			Help: "Meetings found due in the last closure worker tick",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LockAcquireTotal,
			m.LockReleaseTotal,
			m.LockWaitMS,
			m.ClosureTotal,
			m.DueMeetings,
		)
	}

	return m
}

func (m *Metrics) IncLockAcquire(result string) {
	if m == nil {
		return
	}
	m.LockAcquireTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) IncLockRelease(result string) {
	if m == nil {
		return
	}
	m.LockReleaseTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLockWait(ms int64) {
	if m == nil {
		return
	}
	m.LockWaitMS.Observe(float64(ms))
}

func (m *Metrics) IncClosure(result string) {
	if m == nil {
		return
	}
	m.ClosureTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) SetDue(n int) {
	if m == nil {
		return
	}
	m.DueMeetings.Set(float64(n))
}
