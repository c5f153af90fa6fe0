package playback

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"vaani/internal/audio"
)

// OtoSpeaker plays decoded clips through the native audio output. The oto
// context is created lazily on first play so constructing the speaker has
// no device side effects.
type OtoSpeaker struct {
	sampleRate int
	channels   int
	log        *zap.Logger

	mu  sync.Mutex
	ctx *oto.Context
}

func NewOtoSpeaker(sampleRate int, channels int, log *zap.Logger) *OtoSpeaker {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	if channels <= 0 {
		channels = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OtoSpeaker{sampleRate: sampleRate, channels: channels, log: log}
}

// Play decodes a WAV clip (raw PCM is accepted as-is) and blocks until
// playback drains. Compressed payloads the codec cannot handle are
// rejected rather than replayed as samples.
func (s *OtoSpeaker) Play(ctx context.Context, data []byte) error {
	pcm, sampleRate, channels, err := audio.DecodeWAV(data)
	if err != nil {
		if compressedPayload(data) {
			return fmt.Errorf("unsupported audio payload: %w", err)
		}
		pcm = data
		sampleRate = s.sampleRate
		channels = s.channels
	}
	if len(pcm) == 0 {
		return nil
	}

	if sampleRate != s.sampleRate || channels != s.channels {
		// The oto context format is fixed at construction.
		s.log.Warn("clip format differs from output format, playback will be distorted",
			zap.Int("clip_rate", sampleRate), zap.Int("output_rate", s.sampleRate),
			zap.Int("clip_channels", channels), zap.Int("output_channels", s.channels))
	}

	otoCtx, err := s.context()
	if err != nil {
		return err
	}

	player := otoCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	duration := time.Duration(len(pcm)) * time.Second /
		time.Duration(sampleRate*channels*2)
	timeout := time.After(duration + 2*time.Second)

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timeout:
			return fmt.Errorf("playback stalled after %v", duration)
		case <-ticker.C:
		}
	}
	return nil
}

func (s *OtoSpeaker) Close() error {
	return nil
}

// compressedPayload detects container magics that must never be replayed
// as raw s16le samples. gTTS responses arrive as MP3.
func compressedPayload(data []byte) bool {
	if len(data) < 4 {
		return false
	}
	switch {
	case bytes.HasPrefix(data, []byte("ID3")):
		return true
	case data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return true
	case bytes.HasPrefix(data, []byte("OggS")):
		return true
	case bytes.HasPrefix(data, []byte("fLaC")):
		return true
	}
	return false
}

func (s *OtoSpeaker) context() (*oto.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx != nil {
		return s.ctx, nil
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   s.sampleRate,
		ChannelCount: s.channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init audio output: %w", err)
	}
	<-ready
	s.ctx = otoCtx
	return otoCtx, nil
}
