package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Recorder exposes Prometheus metrics for the refresh pipeline.
type Recorder struct {
	fetchTotal    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cyclesTotal   *prometheus.CounterVec
	staleTotal    *prometheus.CounterVec
	liveWidgets   prometheus.Gauge
	notifications *prometheus.CounterVec
}

// NewRecorder registers the pipeline collectors with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		fetchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qadash_fetch_total",
			Help: "Backend fetches by source and outcome",
		}, []string{"source", "outcome"}),
		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qadash_fetch_duration_seconds",
			Help:    "Backend fetch latency by source",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source"}),
		cyclesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qadash_cycles_total",
			Help: "Refresh cycles started by trigger",
		}, []string{"trigger"}),
		staleTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qadash_stale_results_total",
			Help: "Results dropped because a newer cycle was already applied",
		}, []string{"target"}),
		liveWidgets: factory.NewGauge(prometheus.GaugeOpts{
			Name: "qadash_live_widgets",
			Help: "Chart widgets currently registered",
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "qadash_notifications_total",
			Help: "Notifications raised by severity",
		}, []string{"severity"}),
	}
}

func (r *Recorder) ObserveFetch(source string, err error, took time.Duration) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	r.fetchTotal.WithLabelValues(source, outcome).Inc()
	r.fetchDuration.WithLabelValues(source).Observe(took.Seconds())
}

func (r *Recorder) CycleStarted(trigger string) {
	r.cyclesTotal.WithLabelValues(trigger).Inc()
}

func (r *Recorder) StaleDropped(target string) {
	r.staleTotal.WithLabelValues(target).Inc()
}

func (r *Recorder) SetLiveWidgets(n int) {
	r.liveWidgets.Set(float64(n))
}

func (r *Recorder) NotificationRaised(severity string) {
	r.notifications.WithLabelValues(severity).Inc()
}
