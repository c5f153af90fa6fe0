package audio

import "encoding/binary"

// MagnitudeAnalyser derives the live meter level from one PCM frame: mean
// magnitude across samples, normalized to 0-100. This scalar is the only
// audio-domain signal the capture engine exposes.
type MagnitudeAnalyser struct{}

func (MagnitudeAnalyser) Level(frame []byte) float64 {
	if len(frame) < 2 {
		return 0
	}

	var sum float64
	count := 0
	for i := 0; i+1 < len(frame); i += 2 {
		sample := int(int16(binary.LittleEndian.Uint16(frame[i:])))
		if sample < 0 {
			sample = -sample
		}
		sum += float64(sample)
		count++
	}
	if count == 0 {
		return 0
	}

	level := sum / float64(count) / 32768 * 100
	if level > 100 {
		level = 100
	}
	return level
}
