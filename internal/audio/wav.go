package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const wavHeaderSize = 44

type wavHeader struct {
	ChunkID       [4]byte
	ChunkSize     uint32
	Format        [4]byte
	Subchunk1ID   [4]byte
	Subchunk1Size uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Subchunk2ID   [4]byte
	Subchunk2Size uint32
}

// EncodeWAV wraps s16le PCM bytes in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("cannot encode an empty recording")
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("channel count must be positive, got %d", channels)
	}

	numChannels := uint16(channels)
	bitsPerSample := uint16(16)
	dataSize := uint32(len(pcm))

	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   numChannels,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate) * uint32(numChannels) * uint32(bitsPerSample) / 8,
		BlockAlign:    numChannels * bitsPerSample / 8,
		BitsPerSample: bitsPerSample,
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, wavHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write wav header: %w", err)
	}
	if _, err := buf.Write(pcm); err != nil {
		return nil, fmt.Errorf("failed to write wav data: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeWAV extracts s16le PCM from a WAV container.
func DecodeWAV(data []byte) (pcm []byte, sampleRate int, channels int, err error) {
	if len(data) < wavHeaderSize {
		return nil, 0, 0, errors.New("wav payload is too short")
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data[:wavHeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, 0, 0, fmt.Errorf("failed to read wav header: %w", err)
	}
	if string(header.ChunkID[:]) != "RIFF" || string(header.Format[:]) != "WAVE" {
		return nil, 0, 0, errors.New("payload is not a wav container")
	}
	if header.AudioFormat != 1 || header.BitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("unsupported wav format: format=%d bits=%d", header.AudioFormat, header.BitsPerSample)
	}

	body := data[wavHeaderSize:]
	size := int(header.Subchunk2Size)
	if size > len(body) {
		size = len(body)
	}
	return body[:size], int(header.SampleRate), int(header.NumChannels), nil
}

// WAVEncoder is the uncompressed fallback encoding.
type WAVEncoder struct{}

func (WAVEncoder) MimeType() string {
	return "audio/wav"
}

func (WAVEncoder) Encode(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	return EncodeWAV(pcm, sampleRate, channels)
}

// PCMEncoder passes captured s16le frames through unchanged. Last resort
// for peers that accept raw samples.
type PCMEncoder struct{}

func (PCMEncoder) MimeType() string {
	return "audio/pcm"
}

func (PCMEncoder) Encode(pcm []byte, sampleRate int, channels int) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("cannot encode an empty recording")
	}
	return pcm, nil
}
