package transcribe

import "time"

// Token is one recognition-model token. Sequences of tokens from a prior
// utterance can seed the next transcription for continuity.
type Token int32

// Segment is one span of recognized text. Offsets are relative to the start
// of the utterance clip, not absolute time.
type Segment struct {
	Text          string `json:"text"`
	StartOffsetMS int    `json:"start_offset_ms"`
	EndOffsetMS   int    `json:"end_offset_ms"`
}

// Message is one fully transcribed utterance. Field names are part of the
// compatibility surface for downstream consumers parsing the JSON output.
type Message struct {
	Timestamp        time.Time `json:"timestamp"`
	UserID           string    `json:"user_id"`
	TextSegments     []Segment `json:"text_segments"`
	AudioDurationMS  int       `json:"audio_duration_ms"`
	ProcessingTimeMS int       `json:"processing_time_ms"`
}
