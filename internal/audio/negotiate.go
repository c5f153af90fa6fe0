package audio

import (
	"errors"
	"sync"

	"vaani/internal/ports"
)

// DefaultEncodingPreferences is the descending fallback order probed at
// capture start: opus in a container, generic container, alternate
// container, uncompressed. Availability is platform-dependent and must be
// queried against the registry, never assumed.
var DefaultEncodingPreferences = []string{
	"audio/webm;codecs=opus",
	"audio/webm",
	"audio/ogg;codecs=opus",
	"audio/wav",
	"audio/pcm",
}

// ErrNoSupportedEncoding is returned when no preference is registered.
var ErrNoSupportedEncoding = errors.New("no supported clip encoding")

// SelectEncoder picks the first preferred encoding the registry supports.
func SelectEncoder(registry ports.EncoderRegistry, preferences []string) (ports.Encoder, error) {
	for _, mimeType := range preferences {
		if encoder, ok := registry.Lookup(mimeType); ok {
			return encoder, nil
		}
	}
	return nil, ErrNoSupportedEncoding
}

// Registry is a static encoder capability table.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]ports.Encoder
}

func NewRegistry(encoders ...ports.Encoder) *Registry {
	r := &Registry{encoders: make(map[string]ports.Encoder)}
	for _, encoder := range encoders {
		r.Register(encoder)
	}
	return r
}

// DefaultRegistry carries the encodings this build can actually produce.
func DefaultRegistry() *Registry {
	return NewRegistry(WAVEncoder{}, PCMEncoder{})
}

func (r *Registry) Register(encoder ports.Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[encoder.MimeType()] = encoder
}

func (r *Registry) Lookup(mimeType string) (ports.Encoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	encoder, ok := r.encoders[mimeType]
	return encoder, ok
}
