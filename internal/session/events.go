package session

import (
	"github.com/discord-scribe/internal/audio"
)

// Event is one transport-originated event consumed by the Router. The set of
// implementations below is closed; Router.HandleEvent matches exhaustively.
type Event interface {
	// Type returns a stable name used in the diagnostic event log.
	Type() string
}

// SpeakingStateEvent announces that a participant has begun transmitting on a
// source stream. It carries the stream-to-participant mapping; audio packets
// themselves only carry the SSRC.
type SpeakingStateEvent struct {
	SSRC   audio.StreamID `json:"ssrc"`
	UserID string         `json:"user_id"`

	// Microphone distinguishes voice from screen-share audio. Only
	// microphone sources are tracked.
	Microphone bool `json:"microphone"`
}

func (SpeakingStateEvent) Type() string { return "speaking_state_update" }

// SpeakingEvent is a speaking/silence edge for a source stream.
type SpeakingEvent struct {
	SSRC     audio.StreamID `json:"ssrc"`
	Speaking bool           `json:"speaking"`
}

func (SpeakingEvent) Type() string { return "speaking_update" }

// FrameEvent carries up to 20 ms of decoded 16-bit interleaved stereo PCM.
// A zero-length frame marks an out-of-order packet and is ignored.
type FrameEvent struct {
	SSRC audio.StreamID `json:"ssrc"`
	PCM  []audio.Sample `json:"pcm"`
}

func (FrameEvent) Type() string { return "audio_frame" }

// DisconnectEvent signals that a participant left the voice session.
type DisconnectEvent struct {
	UserID string `json:"user_id"`
}

func (DisconnectEvent) Type() string { return "client_disconnect" }
