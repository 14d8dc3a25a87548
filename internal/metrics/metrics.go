package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gauges
var (
	ActiveSlots = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "render_receiver_active_slots",
		Help: "Number of slots with a running render-streaming session",
	})
	AudioLevel = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "render_receiver_audio_level_dbfs",
		Help: "Most recent audio level per stream in dBFS",
	}, []string{"stream"})
)

// Counters
var (
	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_receiver_sessions_started_total",
		Help: "Total sessions started from a play button",
	})
	SessionStartFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_receiver_session_start_failures_total",
		Help: "Sessions whose start or createConnection step failed",
	})
	DisconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_receiver_disconnects_total",
		Help: "Total peer disconnects handled",
	})
	SignalingMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_receiver_signaling_messages_total",
		Help: "Signaling messages received by type",
	}, []string{"type"})
	SignalingErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_receiver_signaling_errors_total",
		Help: "Signaling transport errors by transport",
	}, []string{"transport"})
	StatsPollsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_receiver_stats_polls_total",
		Help: "Stats poller ticks by outcome",
	}, []string{"outcome"})
	RTPPacketsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_receiver_rtp_packets_total",
		Help: "Total RTP packets received by media kind",
	}, []string{"kind"})
	RTPBytesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "render_receiver_rtp_bytes_total",
		Help: "Total RTP payload bytes received by media kind",
	}, []string{"kind"})
	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_receiver_opus_decode_errors_total",
		Help: "Total Opus decode failures",
	})
	CodecPreferenceErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "render_receiver_codec_preference_errors_total",
		Help: "Transceivers that rejected the selected codec",
	})
)

// Histograms
var (
	ConfigFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_receiver_config_fetch_duration_ms",
		Help:    "Duration of GET /config in milliseconds",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 5000},
	})
)
