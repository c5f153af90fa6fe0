package ports

import (
	"context"
	"io"

	"vaani/internal/domain"
)

// CaptureConfig describes how the microphone should be captured.
type CaptureConfig struct {
	SampleRate int
	Channels   int
	Device     string
}

// CaptureStream is a live microphone stream producing s16le PCM frames.
type CaptureStream interface {
	io.ReadCloser
	Stop() error
}

// CaptureDevice acquires microphone capture streams.
type CaptureDevice interface {
	RequestPermission(ctx context.Context) error
	Start(ctx context.Context, cfg CaptureConfig) (CaptureStream, error)
}

// Analyser derives a single scalar level in [0,100] from one PCM frame.
type Analyser interface {
	Level(frame []byte) float64
}

// Encoder turns buffered PCM into a finished clip payload.
type Encoder interface {
	MimeType() string
	Encode(pcm []byte, sampleRate int, channels int) ([]byte, error)
}

// EncoderRegistry answers capability queries for clip encodings. Codec
// availability is platform-dependent and must be queried, never assumed.
type EncoderRegistry interface {
	Lookup(mimeType string) (Encoder, bool)
}

// Conn is one established duplex connection to the remote service.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Dialer establishes duplex connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// TransportEventKind tags transport event variants.
type TransportEventKind string

const (
	TransportStateChanged    TransportEventKind = "state_changed"
	TransportMessageReceived TransportEventKind = "message_received"
	TransportError           TransportEventKind = "transport_error"
)

// TransportEvent is one event emitted by the connection layer.
type TransportEvent struct {
	Kind  TransportEventKind
	State domain.ConnectionState
	Data  []byte
	Err   error
}

// Transport is the logical duplex channel consumed by the session layer.
type Transport interface {
	Open(ctx context.Context) error
	Send(data []byte) error
	Close() error
	Events() <-chan TransportEvent
	State() domain.ConnectionState
}

// Capture is the recording surface consumed by the session layer.
type Capture interface {
	Start(ctx context.Context) error
	Stop() (domain.RecordingClip, error)
	Levels() <-chan float64
}

// Player queues response audio for serialized playback.
type Player interface {
	Enqueue(data []byte)
	SetEnabled(enabled bool)
}

// Speaker plays one decoded clip to completion.
type Speaker interface {
	Play(ctx context.Context, data []byte) error
	Close() error
}
