package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AttemptsTotal counts finished attempts by decoder mode and outcome.
	AttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_session_attempts_total",
		Help: "Finished pipeline attempts by decoder mode and outcome",
	}, []string{"mode", "outcome"})

	// SoftwareFallbacksTotal counts retries switched to software decoding.
	SoftwareFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcode_session_software_fallbacks_total",
		Help: "Attempts restarted with software decoders after a retryable failure",
	})

	// SeekRestartsTotal counts attempts rebuilt because of a seek.
	SeekRestartsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transcode_session_seek_restarts_total",
		Help: "Pipeline rebuilds triggered by seek commands",
	})

	// ManifestReadySeconds measures time from attempt start to a ready manifest.
	ManifestReadySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcode_session_manifest_ready_seconds",
		Help:    "Time from attempt start until the HLS manifest was announced",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
	}, []string{"mode"})

	// BusErrorsTotal counts engine bus errors by category.
	BusErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_session_bus_errors_total",
		Help: "Errors reported on the engine bus by category",
	}, []string{"category"})

	// SpeedMultiplier is the latest processing speed relative to real time.
	SpeedMultiplier = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_session_speed_multiplier",
		Help: "Processing speed relative to real time",
	})

	// PipelineState is the current engine lifecycle state (0=NULL .. 3=PLAYING).
	PipelineState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_session_pipeline_state",
		Help: "Engine lifecycle state: 0=NULL 1=READY 2=PAUSED 3=PLAYING",
	})

	// HostCPUPercent and HostRAMPercent mirror the host load sampled with status.
	HostCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_session_host_cpu_percent",
		Help: "Host CPU usage sampled at status emission",
	})
	HostRAMPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transcode_session_host_ram_percent",
		Help: "Host memory usage sampled at status emission",
	})

	// CallbackFailuresTotal counts orchestrator callbacks that were dropped or failed.
	CallbackFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transcode_session_callback_failures_total",
		Help: "Orchestrator callbacks that could not be delivered",
	}, []string{"reason"})
)
