package domain

import "time"

// ConnectionState models the duplex channel lifecycle.
type ConnectionState string

const (
	ConnectionDisconnected ConnectionState = "disconnected"
	ConnectionConnecting   ConnectionState = "connecting"
	ConnectionConnected    ConnectionState = "connected"
)

// TurnKind identifies what kind of payload a turn carries.
type TurnKind string

const (
	TurnKindText  TurnKind = "text"
	TurnKindAudio TurnKind = "audio"
)

// TurnStatus tracks a turn from submission to settlement.
type TurnStatus string

const (
	TurnStatusPending   TurnStatus = "pending"
	TurnStatusCompleted TurnStatus = "completed"
	TurnStatusFailed    TurnStatus = "failed"
)

// Turn is a single user-initiated exchange. Ids are local and monotonic.
// At most one turn is pending at a time; the wire protocol carries no
// correlation id, so responses attach to the turn in flight.
type Turn struct {
	ID               int64
	Kind             TurnKind
	Text             string
	Audio            RecordingClip
	Language         Language
	ConversationMode string
	Status           TurnStatus
	Transcription    string
	CreatedAt        time.Time
}

// Role identifies who a transcript message is attributed to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Message is the render-ready transcript record derived from a turn or a
// server response. The transcript is append-only and insertion order is
// the conversation order.
type Message struct {
	ID               int64     `json:"id"`
	Role             Role      `json:"role"`
	Text             string    `json:"text"`
	DetectedLanguage string    `json:"detectedLanguage,omitempty"`
	Audio            []byte    `json:"-"`
	TTSEngine        string    `json:"ttsEngine,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}

// RecordingClip is one finished encoded recording.
type RecordingClip struct {
	Data     []byte
	MimeType string
}

// Language is the conversation language preference forwarded on every turn.
type Language string

const (
	LanguageHinglish Language = "hinglish"
	LanguageHindi    Language = "hindi"
	LanguageEnglish  Language = "english"
)

// Next cycles through the supported language set in settings order.
func (l Language) Next() Language {
	switch l {
	case LanguageHinglish:
		return LanguageHindi
	case LanguageHindi:
		return LanguageEnglish
	default:
		return LanguageHinglish
	}
}

// ErrorCode identifies non-fatal and fatal client errors.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodeCapture    ErrorCode = "capture"
	ErrorCodeTransport  ErrorCode = "transport"
	ErrorCodeProtocol   ErrorCode = "protocol"
	ErrorCodeRemote     ErrorCode = "remote"
	ErrorCodePlayback   ErrorCode = "playback"
	ErrorCodeSubmission ErrorCode = "submission"
)

// Status summarizes the current session for the UI.
type Status struct {
	Connection       ConnectionState `json:"connection"`
	Recording        bool            `json:"recording"`
	PendingTurn      bool            `json:"pendingTurn"`
	Language         Language        `json:"language"`
	ConversationMode string          `json:"conversationMode"`
	AudioEnabled     bool            `json:"audioEnabled"`
}
