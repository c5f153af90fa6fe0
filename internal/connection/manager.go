package connection

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"vaani/internal/domain"
	"vaani/internal/ports"
)

var (
	// ErrNotConnected is returned by Send outside the Connected state. The
	// payload is dropped, not queued: stale turns after an outage are
	// rarely useful, so the caller surfaces the drop to the user instead.
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyOpen is returned by Open while the manager is running.
	ErrAlreadyOpen = errors.New("connection already open")
)

const maxBackoffShift = 16

// Backoff controls reconnect pacing. Delays double from Initial up to
// MaxDelay, with a jitter fraction applied to spread retry storms.
type Backoff struct {
	Initial  time.Duration
	MaxDelay time.Duration
	Jitter   float64
}

func (b Backoff) normalize() Backoff {
	if b.Initial <= 0 {
		b.Initial = 3 * time.Second
	}
	if b.MaxDelay <= 0 {
		b.MaxDelay = 30 * time.Second
	}
	if b.Jitter < 0 || b.Jitter > 1 {
		b.Jitter = 0.2
	}
	return b
}

func (b Backoff) delay(attempt int) time.Duration {
	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	d := b.Initial << uint(attempt)
	if d > b.MaxDelay || d <= 0 {
		d = b.MaxDelay
	}
	if b.Jitter > 0 {
		spread := 1 - b.Jitter + 2*b.Jitter*rand.Float64()
		d = time.Duration(float64(d) * spread)
	}
	return d
}

// Manager owns one logical duplex channel to the remote service and the
// Disconnected/Connecting/Connected state machine around it. A transport
// drop schedules an automatic reconnect; a user Close suppresses it and
// leaves the machine Disconnected until Open is called again.
type Manager struct {
	url     string
	dialer  ports.Dialer
	backoff Backoff
	log     *zap.Logger

	events chan ports.TransportEvent

	mu      sync.Mutex
	state   domain.ConnectionState
	conn    ports.Conn
	running bool
	closed  bool
	closeCh chan struct{}
	done    chan struct{}

	writeMu sync.Mutex
}

func NewManager(url string, dialer ports.Dialer, backoff Backoff, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		url:     url,
		dialer:  dialer,
		backoff: backoff.normalize(),
		log:     log,
		events:  make(chan ports.TransportEvent, 64),
		state:   domain.ConnectionDisconnected,
	}
}

// Open starts the connection loop. It returns immediately; progress is
// reported on Events.
func (m *Manager) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return ErrAlreadyOpen
	}
	m.running = true
	m.closed = false
	m.closeCh = make(chan struct{})
	m.done = make(chan struct{})
	go m.run(ctx, m.closeCh, m.done)
	return nil
}

// Send writes one payload. Valid only in the Connected state.
func (m *Manager) Send(data []byte) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == domain.ConnectionConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close tears the channel down and suppresses auto-reconnect.
func (m *Manager) Close() error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.running = false
	close(m.closeCh)
	conn := m.conn
	done := m.done
	m.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	<-done
	return nil
}

// Events is the manager's event stream. The consumer must drain it.
func (m *Manager) Events() <-chan ports.TransportEvent {
	return m.events
}

// State reports the current connection state.
func (m *Manager) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) run(ctx context.Context, closeCh chan struct{}, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	attempt := 0
	for {
		if m.isClosed(ctx, closeCh) {
			m.setState(ctx, closeCh, domain.ConnectionDisconnected)
			return
		}

		m.setState(ctx, closeCh, domain.ConnectionConnecting)
		conn, err := m.dialer.Dial(ctx, m.url)
		if err != nil {
			m.log.Warn("dial failed", zap.String("url", m.url), zap.Int("attempt", attempt+1), zap.Error(err))
			m.emit(ctx, closeCh, ports.TransportEvent{Kind: ports.TransportError, Err: err})
			m.setState(ctx, closeCh, domain.ConnectionDisconnected)
			if !m.sleep(ctx, closeCh, m.backoff.delay(attempt)) {
				return
			}
			attempt++
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.mu.Unlock()
		m.setState(ctx, closeCh, domain.ConnectionConnected)
		attempt = 0

		readErr := m.readLoop(ctx, closeCh, conn)

		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		_ = conn.Close()

		if m.isClosed(ctx, closeCh) {
			m.setState(ctx, closeCh, domain.ConnectionDisconnected)
			return
		}

		m.log.Warn("connection lost", zap.Error(readErr))
		if readErr != nil {
			m.emit(ctx, closeCh, ports.TransportEvent{Kind: ports.TransportError, Err: readErr})
		}
		m.setState(ctx, closeCh, domain.ConnectionDisconnected)
		if !m.sleep(ctx, closeCh, m.backoff.delay(attempt)) {
			return
		}
		attempt++
	}
}

func (m *Manager) readLoop(ctx context.Context, closeCh chan struct{}, conn ports.Conn) error {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		m.emit(ctx, closeCh, ports.TransportEvent{Kind: ports.TransportMessageReceived, Data: data})
	}
}

func (m *Manager) setState(ctx context.Context, closeCh chan struct{}, state domain.ConnectionState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	m.mu.Unlock()
	m.emit(ctx, closeCh, ports.TransportEvent{Kind: ports.TransportStateChanged, State: state})
}

func (m *Manager) emit(ctx context.Context, closeCh chan struct{}, event ports.TransportEvent) {
	select {
	case m.events <- event:
	case <-closeCh:
		// Shutting down; deliver if there is room, drop otherwise.
		select {
		case m.events <- event:
		default:
		}
	case <-ctx.Done():
		select {
		case m.events <- event:
		default:
		}
	}
}

func (m *Manager) sleep(ctx context.Context, closeCh chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-closeCh:
		return false
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) isClosed(ctx context.Context, closeCh chan struct{}) bool {
	if ctx.Err() != nil {
		return true
	}
	select {
	case <-closeCh:
		return true
	default:
		return false
	}
}
