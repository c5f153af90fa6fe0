package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"vaani/internal/domain"
)

// ErrMalformedMessage marks server payloads that cannot be decoded.
var ErrMalformedMessage = errors.New("malformed server message")

const (
	messageTypeText   = "text"
	messageTypeAudio  = "audio"
	messageTypeConfig = "config"

	responseTypeText  = "text_response"
	responseTypeAudio = "audio_response"
	responseTypeError = "error"
)

// Envelope is the client->server wire message. Audio payloads are
// base64-transcoded inline so the whole protocol stays a single
// human-inspectable JSON document.
type Envelope struct {
	Type             string          `json:"type"`
	Data             json.RawMessage `json:"data"`
	Language         string          `json:"language,omitempty"`
	ConversationMode string          `json:"conversationMode,omitempty"`
}

// Preferences is the payload of a config message. The server applies it
// without replying.
type Preferences struct {
	TTSPreferences      map[string]string `json:"tts_preferences,omitempty"`
	LanguagePreferences map[string]string `json:"language_preferences,omitempty"`
}

// ServerEventKind tags the decoded server->client variants.
type ServerEventKind string

const (
	ServerEventText  ServerEventKind = "text_response"
	ServerEventAudio ServerEventKind = "audio_response"
	ServerEventError ServerEventKind = "error"
)

// ServerEvent is one decoded server response.
type ServerEvent struct {
	Kind             ServerEventKind
	InputText        string
	Transcription    string
	ResponseText     string
	DetectedLanguage string
	Audio            []byte
	TTSEngine        string
	ErrorMessage     string
}

// EncodeTurn serializes a turn into its wire envelope.
func EncodeTurn(turn domain.Turn) ([]byte, error) {
	envelope := Envelope{
		Language:         string(turn.Language),
		ConversationMode: turn.ConversationMode,
	}

	switch turn.Kind {
	case domain.TurnKindText:
		envelope.Type = messageTypeText
		data, err := json.Marshal(turn.Text)
		if err != nil {
			return nil, fmt.Errorf("failed to encode text payload: %w", err)
		}
		envelope.Data = data
	case domain.TurnKindAudio:
		if len(turn.Audio.Data) == 0 {
			return nil, errors.New("audio turn has no clip data")
		}
		envelope.Type = messageTypeAudio
		encoded := base64.StdEncoding.EncodeToString(turn.Audio.Data)
		data, err := json.Marshal(encoded)
		if err != nil {
			return nil, fmt.Errorf("failed to encode audio payload: %w", err)
		}
		envelope.Data = data
	default:
		return nil, fmt.Errorf("unsupported turn kind: %q", turn.Kind)
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return payload, nil
}

// EncodeConfig serializes a preferences update. Config messages are not
// turns: the server applies them silently.
func EncodeConfig(prefs Preferences) ([]byte, error) {
	data, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	payload, err := json.Marshal(Envelope{Type: messageTypeConfig, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode config envelope: %w", err)
	}
	return payload, nil
}

type serverMessage struct {
	Type             string `json:"type"`
	InputText        string `json:"input_text"`
	Transcription    string `json:"transcription"`
	ResponseText     string `json:"response_text"`
	DetectedLanguage string `json:"detected_language"`
	AudioResponse    string `json:"audio_response"`
	TTSEngine        string `json:"tts_engine"`
	Message          string `json:"message"`
}

// Decode parses a server payload into its tagged event variant. Malformed
// payloads yield ErrMalformedMessage rather than an unchecked fault; the
// caller downgrades that to a rendered error message.
func Decode(payload []byte) (ServerEvent, error) {
	var raw serverMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return ServerEvent{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}

	messageType := strings.TrimSpace(raw.Type)
	switch messageType {
	case responseTypeText, responseTypeAudio:
		event := ServerEvent{
			Kind:             ServerEventText,
			InputText:        raw.InputText,
			Transcription:    raw.Transcription,
			ResponseText:     raw.ResponseText,
			DetectedLanguage: raw.DetectedLanguage,
			TTSEngine:        raw.TTSEngine,
		}
		if messageType == responseTypeAudio {
			event.Kind = ServerEventAudio
		}
		if raw.AudioResponse != "" {
			audio, err := base64.StdEncoding.DecodeString(raw.AudioResponse)
			if err != nil {
				return ServerEvent{}, fmt.Errorf("%w: invalid audio payload: %v", ErrMalformedMessage, err)
			}
			event.Audio = audio
		}
		return event, nil
	case responseTypeError:
		message := strings.TrimSpace(raw.Message)
		if message == "" {
			message = "server reported an unknown error"
		}
		return ServerEvent{Kind: ServerEventError, ErrorMessage: message}, nil
	case "":
		return ServerEvent{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	default:
		return ServerEvent{}, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, raw.Type)
	}
}
