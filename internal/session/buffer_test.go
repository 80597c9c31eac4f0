package session

import (
	"testing"

	"github.com/discord-scribe/internal/audio"
)

func nonZeroFrame(samples int) []audio.Sample {
	frame := make([]audio.Sample, samples)
	for i := range frame {
		frame[i] = 100
	}
	return frame
}

func TestBufferFlushesBeforeOverflow(t *testing.T) {
	const frameLen = 10
	var flushes [][]audio.Sample
	b := NewBuffer(2*frameLen, func(clip []audio.Sample) {
		flushes = append(flushes, clip)
	})

	b.Push(nonZeroFrame(frameLen))
	b.Push(nonZeroFrame(frameLen))
	if len(flushes) != 0 {
		t.Fatalf("flushed early after %d frames", len(flushes))
	}

	// Third frame does not fit: the two buffered frames flush first, then
	// the new frame is admitted whole.
	b.Push(nonZeroFrame(frameLen))
	if len(flushes) != 1 {
		t.Fatalf("got %d flushes, want 1", len(flushes))
	}
	if len(flushes[0]) != 2*frameLen {
		t.Errorf("flushed clip has %d samples, want %d", len(flushes[0]), 2*frameLen)
	}
	if b.Len() != frameLen {
		t.Errorf("buffer holds %d samples after overflow flush, want %d", b.Len(), frameLen)
	}
}

func TestBufferStopTalkingFlushesEverything(t *testing.T) {
	var flushes [][]audio.Sample
	b := NewBuffer(1000, func(clip []audio.Sample) {
		flushes = append(flushes, clip)
	})

	// Even a single tiny frame flushes on the stop edge; filtering short
	// clips is the orchestrator's job, not the buffer's.
	b.Push(nonZeroFrame(4))
	b.StopTalking()

	if len(flushes) != 1 || len(flushes[0]) != 4 {
		t.Fatalf("flushes = %v, want one 4-sample clip", flushes)
	}
	if b.Len() != 0 {
		t.Errorf("buffer not drained, %d samples remain", b.Len())
	}
	if b.Speaking() {
		t.Error("still marked speaking after StopTalking")
	}
}

func TestBufferEmptyFlushIsNoOp(t *testing.T) {
	calls := 0
	b := NewBuffer(100, func([]audio.Sample) { calls++ })
	b.Flush()
	b.StopTalking()
	if calls != 0 {
		t.Fatalf("onFlush called %d times on empty buffer", calls)
	}
}

func TestBufferSilentStateRejectsAudio(t *testing.T) {
	b := NewBuffer(1000, nil)
	b.StopTalking()

	if b.Push(nonZeroFrame(8)) {
		t.Error("non-zero frame accepted while silent")
	}
	// All-zero filler is legitimate trailing silence: tolerated, but not
	// recorded, so it cannot pad the next utterance.
	if !b.Push(make([]audio.Sample, 8)) {
		t.Error("all-zero frame rejected while silent")
	}
	if b.Len() != 0 {
		t.Errorf("buffer holds %d samples of discarded filler, want 0", b.Len())
	}

	b.StartTalking()
	if !b.Push(nonZeroFrame(8)) {
		t.Error("non-zero frame rejected after StartTalking")
	}
}

func TestBufferDiscardedFillerDoesNotPadNextUtterance(t *testing.T) {
	var flushes [][]audio.Sample
	b := NewBuffer(1000, func(clip []audio.Sample) {
		flushes = append(flushes, clip)
	})

	b.Push(nonZeroFrame(16))
	b.StopTalking() // first utterance: 16 samples

	// Silence-gap filler between utterances.
	for i := 0; i < 5; i++ {
		b.Push(make([]audio.Sample, 16))
	}

	b.StartTalking()
	b.Push(nonZeroFrame(32))
	b.StopTalking() // second utterance: speech only

	if len(flushes) != 2 {
		t.Fatalf("got %d flushes, want 2", len(flushes))
	}
	if len(flushes[1]) != 32 {
		t.Fatalf("second clip has %d samples, want 32 (no leading filler)", len(flushes[1]))
	}
}
