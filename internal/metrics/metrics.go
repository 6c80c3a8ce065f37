package metrics

import (
	"log"

	"net/http"

	"github.com/serverledge-faas/gpu-dispatch/internal/config"
	"github.com/serverledge-faas/gpu-dispatch/internal/node"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Enabled bool
var registry = prometheus.NewRegistry()
var ScrapingHandler http.Handler = nil
var jobSizeBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0}

const (
	DISPATCH_DECISIONS = "dispatch_decisions_total"
	MISSING_QUEUE      = "dispatch_missing_queue_total"
	EPOCH_UPDATES      = "dispatch_epoch_updates_total"
	THRESHOLD          = "dispatch_threshold_seconds"
	JOB_SIZE           = "dispatch_job_size_seconds"
	E2E_TIME           = "e2e_time_seconds"
)

var (
	metricDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: DISPATCH_DECISIONS,
		Help: "Number of dispatch decisions",
	}, []string{"node", "function", "device", "policy"})
	metricMissingQueue = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: MISSING_QUEUE,
		Help: "Number of decisions taken while a device-class queue was missing",
	}, []string{"node", "device"})
	metricEpochUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: EPOCH_UPDATES,
		Help: "Number of threshold-tuning epoch boundaries",
	}, []string{"node"})
	metricThreshold = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: THRESHOLD,
		Help: "Current GPU-admission threshold",
	}, []string{"node"})
	metricJobSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    JOB_SIZE,
		Help:    "Job-size proxy used for routing",
		Buckets: jobSizeBuckets,
	}, []string{"node", "function"})
	metricE2ETime = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    E2E_TIME,
		Help:    "Observed end-to-end invocation time",
		Buckets: jobSizeBuckets,
	}, []string{"node", "function", "device"})
)

func Init() {
	if config.GetBool(config.METRICS_ENABLED, false) {
		log.Println("Metrics enabled.")
		Enabled = true
	} else {
		Enabled = false
		return
	}

	registry.MustRegister(metricDecisions)
	registry.MustRegister(metricMissingQueue)
	registry.MustRegister(metricEpochUpdates)
	registry.MustRegister(metricThreshold)
	registry.MustRegister(metricJobSize)
	registry.MustRegister(metricE2ETime)

	ScrapingHandler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true})
}

func AddDispatchDecision(funcName string, device string, policy string) {
	if !Enabled {
		return
	}
	metricDecisions.With(prometheus.Labels{"function": funcName, "device": device, "policy": policy, "node": node.LocalNode.Key}).Inc()
}

func AddMissingQueue(device string) {
	if !Enabled {
		return
	}
	metricMissingQueue.With(prometheus.Labels{"device": device, "node": node.LocalNode.Key}).Inc()
}

func AddEpochUpdate(tau float64) {
	if !Enabled {
		return
	}
	metricEpochUpdates.With(prometheus.Labels{"node": node.LocalNode.Key}).Inc()
	metricThreshold.With(prometheus.Labels{"node": node.LocalNode.Key}).Set(tau)
}

func ObserveJobSize(funcName string, size float64) {
	if !Enabled {
		return
	}
	metricJobSize.With(prometheus.Labels{"function": funcName, "node": node.LocalNode.Key}).Observe(size)
}

func ObserveE2ETime(funcName string, device string, seconds float64) {
	if !Enabled {
		return
	}
	metricE2ETime.With(prometheus.Labels{"function": funcName, "device": device, "node": node.LocalNode.Key}).Observe(seconds)
}
