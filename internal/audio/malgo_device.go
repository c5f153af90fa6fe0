package audio

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"

	"vaani/internal/ports"
)

// MalgoDevice captures microphone PCM through the native audio backend.
type MalgoDevice struct {
	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

func NewMalgoDevice() *MalgoDevice {
	return &MalgoDevice{}
}

// RequestPermission initializes the native audio context. Platforms that
// gate microphone access surface the denial here.
func (d *MalgoDevice) RequestPermission(ctx context.Context) error {
	_, err := d.context()
	return err
}

func (d *MalgoDevice) Start(ctx context.Context, cfg ports.CaptureConfig) (ports.CaptureStream, error) {
	audioCtx, err := d.context()
	if err != nil {
		return nil, err
	}

	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}

	stream := newMalgoStream()

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInMilliseconds = 20

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			stream.push(input)
		},
	}

	device, err := malgo.InitDevice(audioCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to init microphone: %v", ErrDeviceUnavailable, err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, fmt.Errorf("%w: failed to start microphone: %v", ErrDeviceUnavailable, err)
	}

	stream.device = device
	return stream, nil
}

func (d *MalgoDevice) context() (*malgo.AllocatedContext, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx != nil {
		return d.ctx, nil
	}
	audioCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to init audio context: %v", ErrPermissionDenied, err)
	}
	d.ctx = audioCtx
	return audioCtx, nil
}

type malgoStream struct {
	device *malgo.Device

	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	stopped bool

	stopOnce sync.Once
}

func newMalgoStream() *malgoStream {
	s := &malgoStream{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *malgoStream) push(frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.buf = append(s.buf, frame...)
	s.cond.Signal()
}

func (s *malgoStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.buf) == 0 && !s.stopped {
		s.cond.Wait()
	}
	if len(s.buf) == 0 && s.stopped {
		return 0, io.EOF
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	return n, nil
}

func (s *malgoStream) Close() error {
	return s.Stop()
}

func (s *malgoStream) Stop() error {
	s.stopOnce.Do(func() {
		if s.device != nil {
			_ = s.device.Stop()
			s.device.Uninit()
		}
		s.mu.Lock()
		s.stopped = true
		s.cond.Broadcast()
		s.mu.Unlock()
	})
	return nil
}
