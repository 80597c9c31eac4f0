package transcribe

import (
	"context"
	"sync"
	"time"

	"github.com/discord-scribe/internal/audio"
	"github.com/discord-scribe/internal/config"
	"github.com/discord-scribe/internal/logging"
	"github.com/discord-scribe/internal/metrics"
)

// EmitFunc delivers one finished message to the external consumer.
type EmitFunc func(Message)

// speakerContext is the carryover state for one participant: the tokens of
// their most recent transcription and when it completed.
type speakerContext struct {
	tokens      []Token
	completedAt time.Time
}

// Orchestrator turns completed raw audio clips into transcribed messages.
// Clips are queued onto a bounded channel served by a fixed worker pool so
// the ingest path never waits on model inference. When the queue is full the
// oldest pending clip is dropped to keep the pipeline live.
type Orchestrator struct {
	engine  Engine
	emit    EmitFunc
	metrics *metrics.Metrics

	minUtterance     time.Duration
	contextWindow    time.Duration
	maxContextTokens int

	ctxMu      sync.Mutex
	lastByUser map[string]speakerContext

	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type job struct {
	userID        string
	clip          []audio.Sample
	correlationID string
	received      time.Time
	durationMS    int
}

// NewOrchestrator builds and starts the worker pool.
func NewOrchestrator(engine Engine, cfg config.WhisperConfig, m *metrics.Metrics, emit EmitFunc) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		engine:           engine,
		emit:             emit,
		metrics:          m,
		minUtterance:     time.Duration(cfg.MinUtteranceMillis) * time.Millisecond,
		contextWindow:    cfg.ContextWindow(),
		maxContextTokens: cfg.MaxContextTokens,
		lastByUser:       make(map[string]speakerContext),
		jobs:             make(chan job, cfg.QueueSize),
		ctx:              ctx,
		cancel:           cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		o.wg.Add(1)
		go o.worker()
	}
	return o
}

// OnAudioComplete receives one flushed utterance clip. It returns
// immediately; transcription happens on the worker pool.
func (o *Orchestrator) OnAudioComplete(userID string, clip []audio.Sample, correlationID string) {
	durationMS := audio.DurationMillis(len(clip))
	if time.Duration(durationMS)*time.Millisecond < o.minUtterance {
		// Very short clips are usually just noise.
		logging.Debugw("orchestrator: clip below minimum duration, dropping",
			logging.ClipFields(correlationID, len(clip), durationMS)...)
		return
	}

	j := job{
		userID:        userID,
		clip:          clip,
		correlationID: correlationID,
		received:      time.Now(),
		durationMS:    durationMS,
	}

	for {
		select {
		case o.jobs <- j:
			o.metrics.SetQueueDepth(len(o.jobs))
			return
		default:
		}
		// Queue full: drop the oldest pending clip and retry so fresh audio
		// wins over stale audio.
		select {
		case dropped := <-o.jobs:
			o.metrics.RecordTranscriptionDropped()
			logging.Warnw("orchestrator: queue full, dropping oldest clip",
				"correlation_id", dropped.correlationID, "user.id", dropped.userID)
		default:
		}
	}
}

// ForgetUser releases the carryover context for a departed participant.
func (o *Orchestrator) ForgetUser(userID string) {
	o.ctxMu.Lock()
	delete(o.lastByUser, userID)
	o.ctxMu.Unlock()
}

// Close stops the workers after draining queued jobs.
func (o *Orchestrator) Close() {
	close(o.jobs)
	o.wg.Wait()
	o.cancel()
}

func (o *Orchestrator) worker() {
	defer o.wg.Done()
	for j := range o.jobs {
		o.metrics.SetQueueDepth(len(o.jobs))
		o.process(j)
	}
}

func (o *Orchestrator) process(j job) {
	samples := audio.Resample(j.clip)
	prior := o.takeContext(j.userID, j.received)

	o.metrics.RecordTranscriptionRequest()
	segments, err := o.engine.Transcribe(o.ctx, samples, prior)
	if err != nil {
		o.metrics.RecordTranscriptionFailure()
		logging.Errorw("orchestrator: transcription failed",
			"correlation_id", j.correlationID, "user.id", j.userID, "err", err)
		return
	}
	if len(segments) == 0 {
		logging.Debugw("orchestrator: empty transcription, dropping",
			"correlation_id", j.correlationID, "user.id", j.userID)
		return
	}

	processingMS := int(time.Since(j.received).Milliseconds())
	msg := Message{
		Timestamp:        j.received,
		UserID:           j.userID,
		TextSegments:     segments,
		AudioDurationMS:  j.durationMS,
		ProcessingTimeMS: processingMS,
	}

	o.storeContext(j.userID, segments)
	o.metrics.RecordTranscriptionSuccess(time.Duration(processingMS) * time.Millisecond)
	o.metrics.RecordMessageEmitted()
	logging.Infow("orchestrator: message transcribed",
		"correlation_id", j.correlationID, "user.id", j.userID,
		"segments", len(segments), "audio_ms", j.durationMS, "processing_ms", processingMS)

	o.emit(msg)
}

// takeContext returns the prior tokens for userID when their last utterance
// completed within the carryover window of now. Stale entries encountered on
// the way are pruned.
func (o *Orchestrator) takeContext(userID string, now time.Time) []Token {
	o.ctxMu.Lock()
	defer o.ctxMu.Unlock()

	for id, sc := range o.lastByUser {
		if now.Sub(sc.completedAt) >= o.contextWindow {
			delete(o.lastByUser, id)
		}
	}

	sc, ok := o.lastByUser[userID]
	if !ok {
		return nil
	}
	o.metrics.RecordContextCarryover()
	return sc.tokens
}

// storeContext tokenizes the finished message's text and records it as the
// participant's new carryover context. Tokenize failures leave the previous
// context in place; carryover is best-effort.
func (o *Orchestrator) storeContext(userID string, segments []Segment) {
	var tokens []Token
	for _, seg := range segments {
		t, err := o.engine.Tokenize(o.ctx, seg.Text, o.maxContextTokens)
		if err != nil {
			logging.Debugw("orchestrator: tokenize failed", "user.id", userID, "err", err)
			continue
		}
		tokens = append(tokens, t...)
	}
	if len(tokens) == 0 {
		return
	}
	// The per-segment calls each respect the cap; enforce it across the
	// whole message too, keeping the most recent tokens.
	if len(tokens) > o.maxContextTokens {
		tokens = tokens[len(tokens)-o.maxContextTokens:]
	}

	o.ctxMu.Lock()
	o.lastByUser[userID] = speakerContext{tokens: tokens, completedAt: time.Now()}
	o.ctxMu.Unlock()
}
