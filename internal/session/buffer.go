package session

import (
	"sync"

	"github.com/discord-scribe/internal/audio"
)

// Buffer accumulates one speaker's interleaved PCM samples for the current
// utterance window. It holds a fixed capacity (30 s of 48 kHz stereo by
// default) and a speaking/silent flag driven by explicit transport signals.
//
// The hand-off callback receives the drained clip and must not block: the
// router thread holds the buffer lock across the call.
type Buffer struct {
	mu       sync.Mutex
	samples  []audio.Sample
	capacity int
	speaking bool
	onFlush  func(clip []audio.Sample)
}

// NewBuffer returns a speaking buffer with the given sample capacity.
// Capacity must be a multiple of the frame size; config validation enforces
// this so a single frame always fits a freshly emptied buffer.
func NewBuffer(capacity int, onFlush func(clip []audio.Sample)) *Buffer {
	return &Buffer{
		samples:  make([]audio.Sample, 0, capacity),
		capacity: capacity,
		speaking: true,
		onFlush:  onFlush,
	}
}

// Push appends one frame. While silent only all-zero filler frames are
// tolerated, and those are discarded rather than recorded so the next
// utterance does not start with padded leading silence; a non-zero frame is
// rejected and the caller logs the anomaly. While speaking, a frame that does
// not fit the free capacity triggers a flush of the current contents first,
// so frames are never split across a flush boundary.
func (b *Buffer) Push(frame []audio.Sample) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.speaking {
		return allZero(frame)
	}
	if b.capacity-len(b.samples) < len(frame) {
		b.flushLocked()
	}
	b.samples = append(b.samples, frame...)
	return true
}

// Flush drains the buffer into one contiguous clip and hands it off. An
// empty buffer is a no-op.
func (b *Buffer) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.flushLocked()
}

func (b *Buffer) flushLocked() {
	if len(b.samples) == 0 {
		return
	}
	clip := make([]audio.Sample, len(b.samples))
	copy(clip, b.samples)
	b.samples = b.samples[:0]
	if b.onFlush != nil {
		b.onFlush(clip)
	}
}

// StartTalking marks the speaker as speaking.
func (b *Buffer) StartTalking() {
	b.mu.Lock()
	b.speaking = true
	b.mu.Unlock()
}

// StopTalking marks the speaker as silent and flushes whatever has
// accumulated, however little.
func (b *Buffer) StopTalking() {
	b.mu.Lock()
	b.speaking = false
	b.flushLocked()
	b.mu.Unlock()
}

// Speaking reports the current state flag.
func (b *Buffer) Speaking() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.speaking
}

// Len returns the number of buffered samples.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

func allZero(frame []audio.Sample) bool {
	for _, s := range frame {
		if s != 0 {
			return false
		}
	}
	return true
}
