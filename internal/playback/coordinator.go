package playback

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"vaani/internal/ports"
)

// Coordinator serializes response-audio playback: clips play one at a
// time, in arrival order. Playback failures are logged and the queue
// advances; they never block later clips.
type Coordinator struct {
	speaker ports.Speaker
	log     *zap.Logger

	enabled atomic.Bool
	queue   chan []byte

	closeOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewCoordinator(speaker ports.Speaker, log *zap.Logger, queueDepth int, enabled bool) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	if queueDepth <= 0 {
		queueDepth = 16
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		speaker: speaker,
		log:     log,
		queue:   make(chan []byte, queueDepth),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	c.enabled.Store(enabled)

	go c.run(ctx)
	return c
}

// Enqueue queues one clip for playback. A no-op while audio is disabled.
func (c *Coordinator) Enqueue(data []byte) {
	if !c.enabled.Load() || len(data) == 0 {
		return
	}
	select {
	case c.queue <- data:
	case <-c.done:
	default:
		// Queue overflow: keep the transcript responsive, drop the clip.
		c.log.Warn("playback queue full, dropping clip", zap.Int("size", len(data)))
	}
}

// SetEnabled gates playback. Disabling does not interrupt the clip that is
// already playing.
func (c *Coordinator) SetEnabled(enabled bool) {
	c.enabled.Store(enabled)
}

// Close stops the worker and releases the speaker.
func (c *Coordinator) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()
		<-c.done
	})
	return c.speaker.Close()
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)
	for {
		select {
		case <-ctx.Done():
			return
		case clip := <-c.queue:
			if err := c.speaker.Play(ctx, clip); err != nil {
				c.log.Warn("playback failed, skipping clip", zap.Error(err))
			}
		}
	}
}
