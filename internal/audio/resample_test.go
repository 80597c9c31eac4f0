package audio

import "testing"

// stereoClip builds an interleaved stereo clip of the given duration where
// every sample on both channels has the given value.
func stereoClip(millis int, value Sample) []Sample {
	clip := make([]Sample, millis*SamplesPerMilli*Channels)
	for i := range clip {
		clip[i] = value
	}
	return clip
}

func TestResampleConstantSignalSaturates(t *testing.T) {
	clip := stereoClip(50, 100)
	out := Resample(clip)

	wantLen := len(clip) / (DecimationRatio * Channels)
	if len(out) != wantLen {
		t.Fatalf("output length = %d, want %d", len(out), wantLen)
	}
	// A constant signal is its own peak, so normalization maps every output
	// sample to exactly 1.0.
	for i, v := range out {
		if v != 1.0 {
			t.Fatalf("out[%d] = %v, want 1.0", i, v)
		}
	}
}

func TestResampleSilenceStaysZero(t *testing.T) {
	out := Resample(stereoClip(20, 0))
	for i, v := range out {
		if v != 0 {
			t.Fatalf("out[%d] = %v, want 0", i, v)
		}
		if v != v { // NaN check
			t.Fatalf("out[%d] is NaN", i)
		}
	}
}

func TestResampleNormalizesToPeak(t *testing.T) {
	// Two time slots with different magnitudes; the larger becomes 1.0 and
	// the smaller scales proportionally.
	clip := make([]Sample, 2*DecimationRatio*Channels)
	clip[0], clip[1] = 100, 100 // first slot sums to 200
	group := DecimationRatio * Channels
	clip[group], clip[group+1] = 200, 200 // second slot sums to 400

	out := Resample(clip)
	if len(out) != 2 {
		t.Fatalf("output length = %d, want 2", len(out))
	}
	if out[0] != 0.5 {
		t.Errorf("out[0] = %v, want 0.5", out[0])
	}
	if out[1] != 1.0 {
		t.Errorf("out[1] = %v, want 1.0", out[1])
	}
}

func TestDurationMillis(t *testing.T) {
	cases := []struct {
		samples int
		want    int
	}{
		{0, 0},
		{SamplesPerFrame, FrameMillis},
		{SampleRate * Channels, 1000},
		{BufferSamples, BufferSeconds * 1000},
	}
	for _, tc := range cases {
		if got := DurationMillis(tc.samples); got != tc.want {
			t.Errorf("DurationMillis(%d) = %d, want %d", tc.samples, got, tc.want)
		}
	}
}
