package session

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/discord-scribe/internal/audio"
	"github.com/discord-scribe/internal/metrics"
)

type capturedClip struct {
	userID        string
	clip          []audio.Sample
	correlationID string
}

type fakeSink struct {
	clips []capturedClip
}

func (f *fakeSink) OnAudioComplete(userID string, clip []audio.Sample, correlationID string) {
	f.clips = append(f.clips, capturedClip{userID, clip, correlationID})
}

func newTestRouter(t *testing.T, opts Options) (*Router, *fakeSink) {
	t.Helper()
	sink := &fakeSink{}
	m := metrics.New(prometheus.NewRegistry())
	return NewRouter(sink, m, opts), sink
}

func frames20ms(n int) []Event {
	evs := make([]Event, n)
	for i := range evs {
		evs[i] = FrameEvent{SSRC: 1, PCM: nonZeroFrame(audio.SamplesPerFrame)}
	}
	return evs
}

func TestRouterTranscribesFullUtterance(t *testing.T) {
	r, sink := newTestRouter(t, Options{})

	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})
	for _, ev := range frames20ms(100) { // 2000 ms of speech
		r.HandleEvent(ev)
	}
	r.HandleEvent(SpeakingEvent{SSRC: 1, Speaking: false})

	if len(sink.clips) != 1 {
		t.Fatalf("got %d clips, want 1", len(sink.clips))
	}
	got := sink.clips[0]
	if got.userID != "alice" {
		t.Errorf("clip attributed to %q, want alice", got.userID)
	}
	if ms := audio.DurationMillis(len(got.clip)); ms != 2000 {
		t.Errorf("clip duration = %d ms, want 2000", ms)
	}
	if got.correlationID == "" {
		t.Error("clip has no correlation ID")
	}
}

func TestRouterRearmFlushesPendingAudio(t *testing.T) {
	r, sink := newTestRouter(t, Options{})

	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})
	for _, ev := range frames20ms(10) {
		r.HandleEvent(ev)
	}
	// Second announcement for the same stream re-arms the session; buffered
	// audio must flush rather than silently vanish.
	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})

	if len(sink.clips) != 1 {
		t.Fatalf("got %d clips, want 1", len(sink.clips))
	}
	if r.TrackedSpeakers() != 1 {
		t.Errorf("tracked speakers = %d, want 1", r.TrackedSpeakers())
	}
}

func TestRouterReassignedSSRCDropsOldSession(t *testing.T) {
	r, sink := newTestRouter(t, Options{})

	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})
	for _, ev := range frames20ms(10) {
		r.HandleEvent(ev)
	}
	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "bob", Microphone: true})
	r.HandleEvent(SpeakingEvent{SSRC: 1, Speaking: false})

	// Alice's stale buffer is discarded, so the only possible flush would be
	// Bob's (empty) buffer, which is a no-op.
	if len(sink.clips) != 0 {
		t.Fatalf("got %d clips, want 0", len(sink.clips))
	}
	if r.TrackedSpeakers() != 1 {
		t.Errorf("tracked speakers = %d, want 1", r.TrackedSpeakers())
	}
}

func TestRouterIgnoresNonMicrophoneSources(t *testing.T) {
	r, _ := newTestRouter(t, Options{})
	r.HandleEvent(SpeakingStateEvent{SSRC: 7, UserID: "alice", Microphone: false})
	if r.TrackedSpeakers() != 0 {
		t.Fatalf("tracked speakers = %d, want 0", r.TrackedSpeakers())
	}
}

func TestRouterDropsUntrackedEvents(t *testing.T) {
	r, sink := newTestRouter(t, Options{})

	r.HandleEvent(FrameEvent{SSRC: 9, PCM: nonZeroFrame(audio.SamplesPerFrame)})
	r.HandleEvent(SpeakingEvent{SSRC: 9, Speaking: false})
	r.HandleEvent(DisconnectEvent{UserID: "ghost"})

	if len(sink.clips) != 0 {
		t.Fatalf("got %d clips from untracked stream, want 0", len(sink.clips))
	}
}

func TestRouterZeroLengthFrameIgnored(t *testing.T) {
	r, sink := newTestRouter(t, Options{})
	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})
	r.HandleEvent(FrameEvent{SSRC: 1, PCM: nil})
	r.HandleEvent(SpeakingEvent{SSRC: 1, Speaking: false})

	if len(sink.clips) != 0 {
		t.Fatalf("got %d clips from zero-length frames, want 0", len(sink.clips))
	}
}

func TestRouterDisconnectRemovesAllSessions(t *testing.T) {
	var left []string
	r, sink := newTestRouter(t, Options{
		OnLeave: func(userID string) { left = append(left, userID) },
	})

	// One participant can hold multiple streams across rejoins.
	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})
	r.HandleEvent(SpeakingStateEvent{SSRC: 2, UserID: "alice", Microphone: true})
	r.HandleEvent(SpeakingStateEvent{SSRC: 3, UserID: "bob", Microphone: true})

	r.HandleEvent(DisconnectEvent{UserID: "alice"})

	if r.TrackedSpeakers() != 1 {
		t.Fatalf("tracked speakers = %d, want 1", r.TrackedSpeakers())
	}
	if len(left) != 1 || left[0] != "alice" {
		t.Errorf("onLeave calls = %v, want [alice]", left)
	}

	// Audio for the removed streams is now untracked and dropped.
	r.HandleEvent(FrameEvent{SSRC: 1, PCM: nonZeroFrame(audio.SamplesPerFrame)})
	r.HandleEvent(SpeakingEvent{SSRC: 1, Speaking: false})
	if len(sink.clips) != 0 {
		t.Errorf("got %d clips after disconnect, want 0", len(sink.clips))
	}
}

func TestRouterBufferOverrideAndOverflow(t *testing.T) {
	// Capacity of exactly two frames forces an overflow flush on the third.
	r, sink := newTestRouter(t, Options{BufferSamples: 2 * audio.SamplesPerFrame})

	r.HandleEvent(SpeakingStateEvent{SSRC: 1, UserID: "alice", Microphone: true})
	for _, ev := range frames20ms(3) {
		r.HandleEvent(ev)
	}

	if len(sink.clips) != 1 {
		t.Fatalf("got %d clips, want 1 overflow flush", len(sink.clips))
	}
	if len(sink.clips[0].clip) != 2*audio.SamplesPerFrame {
		t.Errorf("overflow clip has %d samples, want %d", len(sink.clips[0].clip), 2*audio.SamplesPerFrame)
	}
}
