package session

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/discord-scribe/internal/audio"
	"github.com/discord-scribe/internal/logging"
)

// SavingSink writes each flushed utterance to a WAV file before forwarding
// it to the next sink. Purely diagnostic; write failures never stop the
// clip from reaching the transcription path.
type SavingSink struct {
	Dir  string
	Next Sink
}

func (s *SavingSink) OnAudioComplete(userID string, clip []audio.Sample, correlationID string) {
	s.save(userID, clip, correlationID)
	s.Next.OnAudioComplete(userID, clip, correlationID)
}

func (s *SavingSink) save(userID string, clip []audio.Sample, correlationID string) {
	ts := time.Now().UTC().Format("20060102T150405.000Z")
	fname := fmt.Sprintf("%s/%s_%s_cid%s.wav", strings.TrimRight(s.Dir, "/"), ts, userID, correlationID)
	wav := audio.EncodeWAV(audio.PCMBytes(clip), audio.SampleRate, audio.Channels, 16)

	tmp := fname + ".tmp"
	if err := os.WriteFile(tmp, wav, 0o644); err != nil {
		logging.Warnw("save audio: failed to write tmp file", "path", tmp, "err", err, "correlation_id", correlationID)
		return
	}
	if err := os.Rename(tmp, fname); err != nil {
		logging.Warnw("save audio: failed to rename tmp file", "tmp", tmp, "final", fname, "err", err, "correlation_id", correlationID)
		_ = os.Remove(tmp)
		return
	}
	logging.Debugw("save audio: wrote utterance", "path", fname, "correlation_id", correlationID)
}
