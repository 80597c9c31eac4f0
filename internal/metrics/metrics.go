// Package metrics exposes Prometheus collectors for the transcription
// pipeline: ingest, per-speaker sessions, utterance flushes and engine calls.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector used by the pipeline. Collectors are built
// against an injected registerer so tests can use a fresh registry.
type Metrics struct {
	// Ingest
	FramesReceived prometheus.Counter
	FramesDropped  prometheus.Counter

	// Sessions
	ActiveSpeakers  prometheus.Gauge
	SpeakersTracked prometheus.Counter

	// Utterances
	UtterancesFlushed prometheus.Counter
	UtteranceDuration prometheus.Histogram

	// Transcription
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	TranscriptionsDropped prometheus.Counter
	ContextCarryovers     prometheus.Counter
	MessagesEmitted       prometheus.Counter
	QueueDepth            prometheus.Gauge
}

// New creates and registers all collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_frames_received_total",
			Help: "Total number of PCM frames accepted into speaker buffers",
		}),
		FramesDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_frames_dropped_total",
			Help: "Total number of frames dropped (untracked stream or silent-state anomaly)",
		}),
		ActiveSpeakers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_active_speakers",
			Help: "Current number of tracked speaker sessions",
		}),
		SpeakersTracked: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_speakers_tracked_total",
			Help: "Total number of speaker sessions created",
		}),
		UtterancesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_utterances_flushed_total",
			Help: "Total number of utterance clips flushed from speaker buffers",
		}),
		UtteranceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_utterance_duration_seconds",
			Help:    "Duration of flushed utterance clips",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 9), // 0.25s to ~1 minute
		}),
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_requests_total",
			Help: "Total number of clips submitted to the transcription engine",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcription_failures_total",
			Help: "Total number of failed engine invocations",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "scribe_transcription_duration_seconds",
			Help:    "Wall-clock time from clip receipt to finished transcription",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		TranscriptionsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_transcriptions_dropped_total",
			Help: "Total number of clips dropped because the work queue was full",
		}),
		ContextCarryovers: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_context_carryovers_total",
			Help: "Total number of transcriptions seeded with a prior utterance's tokens",
		}),
		MessagesEmitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "scribe_messages_emitted_total",
			Help: "Total number of transcribed messages delivered to consumers",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scribe_transcription_queue_depth",
			Help: "Current number of clips waiting for a transcription worker",
		}),
	}
}

func (m *Metrics) RecordFrameReceived() { m.FramesReceived.Inc() }

func (m *Metrics) RecordFrameDropped() { m.FramesDropped.Inc() }

func (m *Metrics) SetActiveSpeakers(n int) { m.ActiveSpeakers.Set(float64(n)) }

func (m *Metrics) RecordSpeakerTracked() { m.SpeakersTracked.Inc() }

func (m *Metrics) RecordUtteranceFlushed(d time.Duration) {
	m.UtterancesFlushed.Inc()
	m.UtteranceDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordTranscriptionRequest() { m.TranscriptionRequests.Inc() }

func (m *Metrics) RecordTranscriptionSuccess(d time.Duration) {
	m.TranscriptionDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordTranscriptionFailure() { m.TranscriptionFailures.Inc() }

func (m *Metrics) RecordTranscriptionDropped() { m.TranscriptionsDropped.Inc() }

func (m *Metrics) RecordContextCarryover() { m.ContextCarryovers.Inc() }

func (m *Metrics) RecordMessageEmitted() { m.MessagesEmitted.Inc() }

func (m *Metrics) SetQueueDepth(n int) { m.QueueDepth.Set(float64(n)) }
