package audio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	pcm := PCMBytes([]Sample{1, -1, 32767, -32768})
	wav := EncodeWAV(pcm, EngineSampleRate, 1, 16)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}
	if rate := binary.LittleEndian.Uint32(wav[24:28]); rate != EngineSampleRate {
		t.Errorf("sample rate = %d, want %d", rate, EngineSampleRate)
	}
	if ch := binary.LittleEndian.Uint16(wav[22:24]); ch != 1 {
		t.Errorf("channels = %d, want 1", ch)
	}
	if dataLen := binary.LittleEndian.Uint32(wav[40:44]); dataLen != uint32(len(pcm)) {
		t.Errorf("data length = %d, want %d", dataLen, len(pcm))
	}
}

func TestPCMBytesRoundTrip(t *testing.T) {
	samples := []Sample{0, 1, -1, 12345, -12345, 32767, -32768}
	b := PCMBytes(samples)
	for i, want := range samples {
		got := Sample(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
		if got != want {
			t.Errorf("sample %d = %d, want %d", i, got, want)
		}
	}
}

func TestFloatPCMBytesClamps(t *testing.T) {
	b := FloatPCMBytes([]float32{0, 1, -1, 2, -2})
	got := make([]int16, 5)
	for i := range got {
		got[i] = int16(binary.LittleEndian.Uint16(b[i*2 : i*2+2]))
	}
	want := []int16{0, 32767, -32767, 32767, -32767}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}
