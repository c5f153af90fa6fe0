package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"vaani/internal/domain"
	"vaani/internal/ports"
	"vaani/internal/protocol"
)

var (
	// ErrBusy rejects a submission while another turn is pending. The wire
	// protocol has no correlation id, so submissions are single-flight;
	// the caller may retry once the current turn settles.
	ErrBusy = errors.New("a turn is already pending")

	// ErrEmptySubmission rejects blank text and zero-length clips.
	ErrEmptySubmission = errors.New("nothing to submit")
)

// EventKind tags session event variants.
type EventKind string

const (
	EventMessage EventKind = "message"
	EventState   EventKind = "state"
)

// Event is the single stream the presentation layer consumes: transcript
// messages and connection-state updates, in occurrence order.
type Event struct {
	Kind    EventKind
	Message domain.Message
	State   domain.ConnectionState
}

// Config seeds the session settings surface.
type Config struct {
	Language         domain.Language
	ConversationMode string
	AudioEnabled     bool
	EventBuffer      int
}

// Controller turns user intents into protocol messages, correlates server
// responses to the turn in flight, and projects everything into an
// append-only transcript.
type Controller struct {
	transport ports.Transport
	capture   ports.Capture
	player    ports.Player
	log       *zap.Logger

	events chan Event

	mu            sync.Mutex
	pending       *domain.Turn
	settled       []*domain.Turn
	transcript    []domain.Message
	nextTurnID    int64
	nextMessageID int64
	language      domain.Language
	mode          string
	audioEnabled  bool
	recording     bool
}

func NewController(transport ports.Transport, capture ports.Capture, player ports.Player, log *zap.Logger, cfg Config) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Language == "" {
		cfg.Language = domain.LanguageHinglish
	}
	if cfg.ConversationMode == "" {
		cfg.ConversationMode = "hinglish"
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	c := &Controller{
		transport:    transport,
		capture:      capture,
		player:       player,
		log:          log.With(zap.String("session_id", uuid.NewString())),
		events:       make(chan Event, cfg.EventBuffer),
		language:     cfg.Language,
		mode:         cfg.ConversationMode,
		audioEnabled: cfg.AudioEnabled,
	}
	if player != nil {
		player.SetEnabled(cfg.AudioEnabled)
	}
	return c
}

// Run opens the transport and consumes its events until the context ends.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.transport.Open(ctx); err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			_ = c.transport.Close()
			return ctx.Err()
		case event := <-c.transport.Events():
			c.handleTransportEvent(event)
		}
	}
}

// Events is the session event stream. The consumer must drain it.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Levels passes through the live capture meter.
func (c *Controller) Levels() <-chan float64 {
	return c.capture.Levels()
}

// SubmitText sends one text turn. Fails with ErrBusy while a turn is
// pending and never queues behind the current one.
func (c *Controller) SubmitText(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrEmptySubmission
	}
	turn, err := c.beginTurn(domain.TurnKindText, text, domain.RecordingClip{})
	if err != nil {
		return 0, err
	}

	c.emitMessage(domain.Message{Role: domain.RoleUser, Text: text})
	return c.dispatch(turn)
}

// SubmitAudio sends one recorded clip as an audio turn.
func (c *Controller) SubmitAudio(clip domain.RecordingClip) (int64, error) {
	if len(clip.Data) == 0 {
		return 0, ErrEmptySubmission
	}
	turn, err := c.beginTurn(domain.TurnKindAudio, "", clip)
	if err != nil {
		return 0, err
	}

	c.emitMessage(domain.Message{Role: domain.RoleUser, Text: "[voice message]"})
	return c.dispatch(turn)
}

// StartRecording begins microphone capture. Recording while a previous
// turn is still pending is allowed; the submission is what is gated.
func (c *Controller) StartRecording(ctx context.Context) error {
	if err := c.capture.Start(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.recording = true
	c.mu.Unlock()
	return nil
}

// FinishRecording stops capture and submits the finished clip.
func (c *Controller) FinishRecording() (int64, error) {
	clip, err := c.capture.Stop()
	c.mu.Lock()
	c.recording = false
	c.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return c.SubmitAudio(clip)
}

// CancelRecording stops capture and discards the clip.
func (c *Controller) CancelRecording() error {
	_, err := c.capture.Stop()
	c.mu.Lock()
	c.recording = false
	c.mu.Unlock()
	return err
}

// UpdatePreferences forwards a config message. Preference updates are not
// turns: the server applies them without replying.
func (c *Controller) UpdatePreferences(prefs protocol.Preferences) error {
	payload, err := protocol.EncodeConfig(prefs)
	if err != nil {
		return err
	}
	return c.transport.Send(payload)
}

// SetLanguage selects the language forwarded on subsequent turns.
func (c *Controller) SetLanguage(language domain.Language) {
	c.mu.Lock()
	c.language = language
	c.mu.Unlock()
}

// CycleLanguage advances the language setting and returns the new value.
func (c *Controller) CycleLanguage() domain.Language {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.language = c.language.Next()
	return c.language
}

// SetConversationMode selects the mode tag forwarded on subsequent turns.
func (c *Controller) SetConversationMode(mode string) {
	c.mu.Lock()
	c.mode = mode
	c.mu.Unlock()
}

// SetAudioEnabled gates response-audio playback.
func (c *Controller) SetAudioEnabled(enabled bool) {
	c.mu.Lock()
	c.audioEnabled = enabled
	c.mu.Unlock()
	if c.player != nil {
		c.player.SetEnabled(enabled)
	}
}

// Status summarizes the session for the UI.
func (c *Controller) Status() domain.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return domain.Status{
		Connection:       c.transport.State(),
		Recording:        c.recording,
		PendingTurn:      c.pending != nil,
		Language:         c.language,
		ConversationMode: c.mode,
		AudioEnabled:     c.audioEnabled,
	}
}

// Messages returns a snapshot of the transcript in conversation order.
func (c *Controller) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Turn returns a settled turn by id, or nil.
func (c *Controller) Turn(id int64) *domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.ID == id {
		return c.pending
	}
	for _, turn := range c.settled {
		if turn.ID == id {
			return turn
		}
	}
	return nil
}

func (c *Controller) beginTurn(kind domain.TurnKind, text string, clip domain.RecordingClip) (*domain.Turn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil {
		return nil, ErrBusy
	}

	c.nextTurnID++
	turn := &domain.Turn{
		ID:               c.nextTurnID,
		Kind:             kind,
		Text:             text,
		Audio:            clip,
		Language:         c.language,
		ConversationMode: c.mode,
		Status:           domain.TurnStatusPending,
		CreatedAt:        time.Now(),
	}
	c.pending = turn
	return turn, nil
}

func (c *Controller) dispatch(turn *domain.Turn) (int64, error) {
	payload, err := protocol.EncodeTurn(*turn)
	if err != nil {
		c.failTurn(turn)
		c.emitMessage(domain.Message{
			Role: domain.RoleError,
			Text: "Could not prepare your message for sending.",
		})
		return 0, err
	}

	if err := c.transport.Send(payload); err != nil {
		c.failTurn(turn)
		c.emitMessage(domain.Message{
			Role: domain.RoleError,
			Text: "Not connected, so your message was not sent.",
		})
		return 0, err
	}
	return turn.ID, nil
}

func (c *Controller) failTurn(turn *domain.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turn.Status = domain.TurnStatusFailed
	if c.pending == turn {
		c.pending = nil
		c.settled = append(c.settled, turn)
	}
}

func (c *Controller) settlePending(status domain.TurnStatus, transcription string) *domain.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	turn := c.pending
	if turn == nil {
		return nil
	}
	c.pending = nil
	turn.Status = status
	if transcription != "" {
		turn.Transcription = transcription
	}
	c.settled = append(c.settled, turn)
	return turn
}

func (c *Controller) handleTransportEvent(event ports.TransportEvent) {
	switch event.Kind {
	case ports.TransportStateChanged:
		c.emit(Event{Kind: EventState, State: event.State})
	case ports.TransportMessageReceived:
		c.handleServerPayload(event.Data)
	case ports.TransportError:
		c.log.Warn("transport error", zap.Error(event.Err))
		if turn := c.settlePending(domain.TurnStatusFailed, ""); turn != nil {
			c.emitMessage(domain.Message{
				Role: domain.RoleError,
				Text: "Your last message did not make it through. Please try again.",
			})
		}
	}
}

func (c *Controller) handleServerPayload(payload []byte) {
	event, err := protocol.Decode(payload)
	if err != nil {
		c.log.Warn("undecodable server payload", zap.Error(err), zap.Int("size", len(payload)))
		if turn := c.settlePending(domain.TurnStatusFailed, ""); turn != nil {
			c.log.Warn("failed pending turn on malformed response", zap.Int64("turn_id", turn.ID))
		}
		c.emitMessage(domain.Message{
			Role: domain.RoleError,
			Text: "Received an unintelligible response from the server.",
		})
		return
	}

	switch event.Kind {
	case protocol.ServerEventText, protocol.ServerEventAudio:
		if turn := c.settlePending(domain.TurnStatusCompleted, event.Transcription); turn == nil {
			c.log.Warn("response arrived with no pending turn")
		}
		c.emitMessage(domain.Message{
			Role:             domain.RoleAssistant,
			Text:             event.ResponseText,
			DetectedLanguage: event.DetectedLanguage,
			Audio:            event.Audio,
			TTSEngine:        event.TTSEngine,
		})
		if len(event.Audio) > 0 && c.player != nil {
			c.player.Enqueue(event.Audio)
		}
	case protocol.ServerEventError:
		c.settlePending(domain.TurnStatusFailed, "")
		c.emitMessage(domain.Message{Role: domain.RoleError, Text: event.ErrorMessage})
	}
}

func (c *Controller) emitMessage(message domain.Message) {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	c.mu.Lock()
	c.nextMessageID++
	message.ID = c.nextMessageID
	c.transcript = append(c.transcript, message)
	c.mu.Unlock()
	c.emit(Event{Kind: EventMessage, Message: message})
}

func (c *Controller) emit(event Event) {
	c.events <- event
}
