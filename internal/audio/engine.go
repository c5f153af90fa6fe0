package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"vaani/internal/domain"
	"vaani/internal/ports"
)

var (
	// ErrAlreadyCapturing is returned when a capture session is in flight.
	// Capture is strictly single-session: the device handle is exclusively
	// owned until it is released.
	ErrAlreadyCapturing = errors.New("capture already in progress")

	// ErrNotCapturing is returned by Stop without an active session.
	ErrNotCapturing = errors.New("no capture in progress")

	// ErrPermissionDenied marks a refused microphone permission request.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrDeviceUnavailable marks a missing or unusable capture device.
	ErrDeviceUnavailable = errors.New("audio device unavailable")
)

// Config controls capture behavior.
type Config struct {
	Capture     ports.CaptureConfig
	ChunkSize   int
	Preferences []string
}

// Engine owns the microphone for the duration of one capture session,
// publishes live level samples, and produces one encoded clip per session.
type Engine struct {
	device   ports.CaptureDevice
	registry ports.EncoderRegistry
	analyser ports.Analyser
	log      *zap.Logger
	cfg      Config

	levels chan float64

	mu      sync.Mutex
	current *captureSession
}

func NewEngine(device ports.CaptureDevice, registry ports.EncoderRegistry, analyser ports.Analyser, log *zap.Logger, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if analyser == nil {
		analyser = MagnitudeAnalyser{}
	}
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.Capture.SampleRate <= 0 {
		cfg.Capture.SampleRate = 16000
	}
	if cfg.Capture.Channels <= 0 {
		cfg.Capture.Channels = 1
	}
	if len(cfg.Preferences) == 0 {
		cfg.Preferences = DefaultEncodingPreferences
	}
	return &Engine{
		device:   device,
		registry: registry,
		analyser: analyser,
		log:      log,
		cfg:      cfg,
		levels:   make(chan float64, 1),
	}
}

// RequestPermission asks the device layer for microphone access.
func (e *Engine) RequestPermission(ctx context.Context) error {
	return e.device.RequestPermission(ctx)
}

// Start begins a capture session. The clip encoding is negotiated here by
// probing the preference list against the encoder registry.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		return ErrAlreadyCapturing
	}
	e.mu.Unlock()

	encoder, err := SelectEncoder(e.registry, e.cfg.Preferences)
	if err != nil {
		return err
	}

	stream, err := e.device.Start(ctx, e.cfg.Capture)
	if err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	session := &captureSession{
		stream:  stream,
		encoder: encoder,
		done:    make(chan struct{}),
	}

	e.mu.Lock()
	if e.current != nil {
		e.mu.Unlock()
		session.release()
		return ErrAlreadyCapturing
	}
	e.current = session
	e.mu.Unlock()

	go e.pump(session)
	return nil
}

// Stop ends the active session and returns the finished clip. The device
// stream is released on every exit path, exactly once.
func (e *Engine) Stop() (domain.RecordingClip, error) {
	e.mu.Lock()
	session := e.current
	e.current = nil
	e.mu.Unlock()

	if session == nil {
		return domain.RecordingClip{}, ErrNotCapturing
	}

	session.release()
	<-session.done

	pcm := session.bytes()
	data, err := session.encoder.Encode(pcm, e.cfg.Capture.SampleRate, e.cfg.Capture.Channels)
	if err != nil {
		return domain.RecordingClip{}, fmt.Errorf("failed to encode clip: %w", err)
	}
	return domain.RecordingClip{Data: data, MimeType: session.encoder.MimeType()}, nil
}

// Levels is the live meter stream. Samples have no ordering guarantee
// beyond latest-wins.
func (e *Engine) Levels() <-chan float64 {
	return e.levels
}

// Capturing reports whether a session is active.
func (e *Engine) Capturing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current != nil
}

func (e *Engine) pump(session *captureSession) {
	defer close(session.done)

	buf := make([]byte, e.cfg.ChunkSize)
	for {
		n, err := session.stream.Read(buf)
		if n > 0 {
			session.append(buf[:n])
			e.publishLevel(e.analyser.Level(buf[:n]))
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.log.Warn("capture stream ended", zap.Error(err))
			}
			session.release()
			return
		}
	}
}

func (e *Engine) publishLevel(level float64) {
	for {
		select {
		case e.levels <- level:
			return
		default:
		}
		select {
		case <-e.levels:
		default:
		}
	}
}

type captureSession struct {
	stream  ports.CaptureStream
	encoder ports.Encoder
	done    chan struct{}

	releaseOnce sync.Once

	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *captureSession) append(chunk []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Write(chunk)
}

func (s *captureSession) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Bytes()
}

func (s *captureSession) release() {
	s.releaseOnce.Do(func() {
		_ = s.stream.Stop()
	})
}
