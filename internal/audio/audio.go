// Package audio holds the sample-rate arithmetic and small DSP helpers shared
// by the session router and the transcription orchestrator.
//
// The voice transport delivers 16-bit interleaved stereo PCM at 48 kHz in
// frames of up to 20 ms. The transcription engine wants mono float32 at
// 16 kHz. Everything in this package follows from those two facts.
package audio

// Transport-side audio format. Discord voice always decodes to 48 kHz
// 16-bit stereo.
const (
	SampleRate      = 48000
	Channels        = 2
	SamplesPerMilli = SampleRate / 1000
	FrameMillis     = 20
	SamplesPerFrame = SamplesPerMilli * FrameMillis * Channels

	// BufferSeconds bounds how much of one utterance a speaker buffer holds
	// before it is force-flushed.
	BufferSeconds = 30
	BufferSamples = SampleRate * BufferSeconds * Channels
)

// Engine-side audio format.
const (
	EngineSampleRate = 16000
)

// DecimationRatio is the integer ratio between the transport and engine
// sample rates. Resample relies on it being exact; config validation
// asserts this at startup.
const DecimationRatio = SampleRate / EngineSampleRate

// Sample is one 16-bit PCM sample as delivered by the transport.
type Sample = int16

// StreamID is the transport-assigned handle for one audio stream within a
// session (the RTP SSRC). It is short-lived and distinct from the stable
// participant identity.
type StreamID = uint32

// DurationMillis returns the playback duration of an interleaved clip.
func DurationMillis(sampleCount int) int {
	return (sampleCount / Channels) / SamplesPerMilli
}
