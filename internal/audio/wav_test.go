package audio

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVHeader(t *testing.T) {
	t.Parallel()

	pcm := []byte{1, 0, 2, 0, 3, 0}
	data, err := EncodeWAV(pcm, 16000, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != wavHeaderSize+len(pcm) {
		t.Fatalf("unexpected container size: %d", len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatalf("bad container magic: %q %q", data[0:4], data[8:12])
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != 16000 {
		t.Fatalf("unexpected sample rate: %d", rate)
	}
	if size := binary.LittleEndian.Uint32(data[40:44]); size != uint32(len(pcm)) {
		t.Fatalf("unexpected data size: %d", size)
	}
}

func TestWAVRoundTrip(t *testing.T) {
	t.Parallel()

	pcm := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}
	data, err := EncodeWAV(pcm, 22050, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, sampleRate, channels, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, pcm) {
		t.Fatalf("pcm mismatch: %v", decoded)
	}
	if sampleRate != 22050 || channels != 2 {
		t.Fatalf("format mismatch: rate=%d channels=%d", sampleRate, channels)
	}
}

func TestEncodeWAVRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := EncodeWAV(nil, 16000, 1); err == nil {
		t.Fatalf("expected error for empty pcm")
	}
	if _, err := EncodeWAV([]byte{1, 0}, 0, 1); err == nil {
		t.Fatalf("expected error for zero sample rate")
	}
	if _, err := EncodeWAV([]byte{1, 0}, 16000, 0); err == nil {
		t.Fatalf("expected error for zero channels")
	}
}

func TestDecodeWAVRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Fatalf("expected error for truncated payload")
	}

	junk := make([]byte, wavHeaderSize)
	copy(junk, "JUNKJUNK")
	if _, _, _, err := DecodeWAV(junk); err == nil {
		t.Fatalf("expected error for non-wav payload")
	}
}

func TestMagnitudeAnalyserLevel(t *testing.T) {
	t.Parallel()

	analyser := MagnitudeAnalyser{}

	if level := analyser.Level(nil); level != 0 {
		t.Fatalf("expected zero level for empty frame, got %f", level)
	}

	silence := make([]byte, 64)
	if level := analyser.Level(silence); level != 0 {
		t.Fatalf("expected zero level for silence, got %f", level)
	}

	loud := make([]byte, 64)
	for i := 0; i+1 < len(loud); i += 2 {
		binary.LittleEndian.PutUint16(loud[i:], uint16(int16(16384)))
	}
	level := analyser.Level(loud)
	if level < 49 || level > 51 {
		t.Fatalf("expected ~50 level for half-scale signal, got %f", level)
	}

	full := make([]byte, 64)
	for i := 0; i+1 < len(full); i += 2 {
		binary.LittleEndian.PutUint16(full[i:], uint16(int16(-32768)))
	}
	if level := analyser.Level(full); level != 100 {
		t.Fatalf("expected clamped 100 level, got %f", level)
	}
}
