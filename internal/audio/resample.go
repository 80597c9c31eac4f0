package audio

// Resample converts an interleaved stereo 48 kHz clip into the mono float32
// 16 kHz form the transcription engine consumes.
//
// The conversion exploits the sample rates having an exact integer ratio:
// for every group of DecimationRatio*Channels input samples, the channels of
// the first time slot are summed into one output sample and the rest of the
// group is skipped. Summing instead of averaging is fine because the peak
// normalization below rescales the whole clip anyway.
func Resample(pcm []Sample) []float32 {
	const group = DecimationRatio * Channels

	out := make([]float32, len(pcm)/group)
	var peak float32
	for i := range out {
		var v float32
		for j := 0; j < Channels; j++ {
			v += float32(pcm[i*group+j])
		}
		out[i] = v
		if abs := absf(v); abs > peak {
			peak = abs
		}
	}

	// A clip of pure silence has no peak to normalize against; return it
	// unscaled rather than dividing by zero.
	if peak == 0 {
		return out
	}
	for i := range out {
		out[i] /= peak
	}
	return out
}

func absf(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
