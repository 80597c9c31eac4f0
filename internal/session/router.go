package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/discord-scribe/internal/audio"
	"github.com/discord-scribe/internal/logging"
	"github.com/discord-scribe/internal/metrics"
)

// Sink receives completed utterance clips. Implementations must return
// quickly; the router calls this on its event path.
type Sink interface {
	OnAudioComplete(userID string, clip []audio.Sample, correlationID string)
}

// Router is the single entry point for transport events. It owns the
// SSRC-to-speaker mapping and dispatches each event to the right buffer.
type Router struct {
	mu       sync.Mutex
	speakers map[audio.StreamID]*speaker

	sink     Sink
	eventLog *EventLog
	metrics  *metrics.Metrics
	capacity int

	// onLeave, when set, is told about departing participants so downstream
	// state (carryover context) can be released.
	onLeave func(userID string)
}

type speaker struct {
	userID string
	buf    *Buffer
}

// Options configures optional router collaborators.
type Options struct {
	// EventLog, when non-nil, records every raw event before dispatch.
	EventLog *EventLog

	// BufferSamples overrides the per-speaker capacity. Zero means the
	// default 30-second window.
	BufferSamples int

	// OnLeave is invoked for each participant removed by a disconnect.
	OnLeave func(userID string)
}

// NewRouter builds a router delivering flushed utterances to sink.
func NewRouter(sink Sink, m *metrics.Metrics, opts Options) *Router {
	capacity := opts.BufferSamples
	if capacity == 0 {
		capacity = audio.BufferSamples
	}
	return &Router{
		speakers: make(map[audio.StreamID]*speaker),
		sink:     sink,
		eventLog: opts.EventLog,
		metrics:  m,
		capacity: capacity,
		onLeave:  opts.OnLeave,
	}
}

// HandleEvent records the event to the diagnostic log, then dispatches it.
// Events referencing untracked streams are logged and dropped; they never
// fail the caller.
func (r *Router) HandleEvent(ev Event) {
	if r.eventLog != nil {
		r.eventLog.Record(ev)
	}

	switch e := ev.(type) {
	case SpeakingStateEvent:
		r.onSpeakingState(e)
	case SpeakingEvent:
		r.onSpeaking(e)
	case FrameEvent:
		r.onFrame(e)
	case DisconnectEvent:
		r.onDisconnect(e)
	default:
		logging.Warnw("router: unknown event type", "type", ev.Type())
	}
}

func (r *Router) onSpeakingState(e SpeakingStateEvent) {
	if !e.Microphone {
		logging.Debugw("router: ignoring non-microphone source", logging.SpeakerFields(e.SSRC, e.UserID)...)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sp, ok := r.speakers[e.SSRC]; ok {
		if sp.userID != e.UserID {
			// The transport re-assigned the SSRC without a disconnect in
			// between. Drop the stale session and start over.
			logging.Errorw("router: SSRC reassigned to different user",
				"ssrc", e.SSRC, "old_user", sp.userID, "new_user", e.UserID)
			delete(r.speakers, e.SSRC)
		} else {
			// Re-arm the existing session. Flush first so any in-progress
			// audio is not silently discarded.
			sp.buf.Flush()
			sp.buf.StartTalking()
			logging.Debugw("router: re-armed speaker", logging.SpeakerFields(e.SSRC, e.UserID)...)
			return
		}
	}

	r.speakers[e.SSRC] = &speaker{
		userID: e.UserID,
		buf:    NewBuffer(r.capacity, r.flushFunc(e.UserID)),
	}
	r.metrics.SetActiveSpeakers(len(r.speakers))
	r.metrics.RecordSpeakerTracked()
	logging.Infow("router: tracking speaker", logging.SpeakerFields(e.SSRC, e.UserID)...)
}

func (r *Router) onSpeaking(e SpeakingEvent) {
	r.mu.Lock()
	sp, ok := r.speakers[e.SSRC]
	r.mu.Unlock()
	if !ok {
		logging.Warnw("router: speaking update for untracked stream", "ssrc", e.SSRC, "speaking", e.Speaking)
		return
	}
	if e.Speaking {
		sp.buf.StartTalking()
	} else {
		sp.buf.StopTalking()
	}
}

func (r *Router) onFrame(e FrameEvent) {
	// Zero-length frames are out-of-order arrivals; ignore them outright.
	if len(e.PCM) == 0 {
		return
	}

	r.mu.Lock()
	sp, ok := r.speakers[e.SSRC]
	r.mu.Unlock()
	if !ok {
		r.metrics.RecordFrameDropped()
		logging.Warnw("router: audio for untracked stream", "ssrc", e.SSRC, "samples", len(e.PCM))
		return
	}

	if !sp.buf.Push(e.PCM) {
		r.metrics.RecordFrameDropped()
		logging.Warnw("router: non-silent audio while marked not speaking",
			logging.SpeakerFields(e.SSRC, sp.userID)...)
		return
	}
	r.metrics.RecordFrameReceived()
}

func (r *Router) onDisconnect(e DisconnectEvent) {
	r.mu.Lock()
	var removed int
	for ssrc, sp := range r.speakers {
		if sp.userID == e.UserID {
			delete(r.speakers, ssrc)
			removed++
		}
	}
	r.metrics.SetActiveSpeakers(len(r.speakers))
	r.mu.Unlock()

	if removed > 0 {
		logging.Infow("router: participant left", "user.id", e.UserID, "sessions_removed", removed)
		if r.onLeave != nil {
			r.onLeave(e.UserID)
		}
	}
}

// TrackedSpeakers returns the number of active sessions.
func (r *Router) TrackedSpeakers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.speakers)
}

// flushFunc builds the per-speaker hand-off. It assigns a correlation ID for
// tracing the clip through the orchestrator and engine logs.
func (r *Router) flushFunc(userID string) func(clip []audio.Sample) {
	return func(clip []audio.Sample) {
		cid := uuid.NewString()
		durationMs := audio.DurationMillis(len(clip))
		r.metrics.RecordUtteranceFlushed(time.Duration(durationMs) * time.Millisecond)
		logging.Debugw("router: utterance flushed", append(
			logging.ClipFields(cid, len(clip), durationMs), "user.id", userID)...)
		r.sink.OnAudioComplete(userID, clip, cid)
	}
}
