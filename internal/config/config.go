package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"vaani/internal/domain"
)

// Config stores runtime configuration for the chat client.
type Config struct {
	Server   ServerConfig
	Audio    AudioConfig
	Playback PlaybackConfig
	Session  SessionConfig
}

type ServerConfig struct {
	URL              string
	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	ReconnectJitter  float64
}

type AudioConfig struct {
	Backend     string
	FFMPEGCmd   string
	InputFormat string
	InputDevice string
	SampleRate  int
	Channels    int
	ChunkSize   int
}

type PlaybackConfig struct {
	Enabled    bool
	QueueDepth int
}

type SessionConfig struct {
	Language         domain.Language
	ConversationMode string
}

const (
	BackendMalgo  = "malgo"
	BackendFFMPEG = "ffmpeg"
)

// Load resolves configuration from a local .env file, environment
// variables, and sensible defaults.
func Load() (Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			URL:              envOrDefault("VAANI_SERVER_URL", "ws://localhost:8000/ws"),
			ReconnectInitial: time.Duration(envOrDefaultInt("VAANI_RECONNECT_INITIAL_MS", 3000)) * time.Millisecond,
			ReconnectMax:     time.Duration(envOrDefaultInt("VAANI_RECONNECT_MAX_MS", 30000)) * time.Millisecond,
			ReconnectJitter:  envOrDefaultFloat("VAANI_RECONNECT_JITTER", 0.2),
		},
		Audio: AudioConfig{
			Backend:     strings.ToLower(envOrDefault("VAANI_AUDIO_BACKEND", BackendMalgo)),
			FFMPEGCmd:   envOrDefault("VAANI_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat: envOrDefault("VAANI_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice: envOrDefault("VAANI_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:  envOrDefaultInt("VAANI_SAMPLE_RATE", 16000),
			Channels:    envOrDefaultInt("VAANI_CHANNELS", 1),
			ChunkSize:   envOrDefaultInt("VAANI_AUDIO_CHUNK_SIZE", 4096),
		},
		Playback: PlaybackConfig{
			Enabled:    envOrDefaultBool("VAANI_AUDIO_RESPONSES", true),
			QueueDepth: envOrDefaultInt("VAANI_PLAYBACK_QUEUE", 8),
		},
		Session: SessionConfig{
			Language:         domain.Language(strings.ToLower(envOrDefault("VAANI_LANGUAGE", string(domain.LanguageHinglish)))),
			ConversationMode: strings.ToLower(envOrDefault("VAANI_CONVERSATION_MODE", "hinglish")),
		},
	}

	switch cfg.Audio.Backend {
	case BackendMalgo, BackendFFMPEG:
	default:
		return Config{}, fmt.Errorf("unknown audio backend %q", cfg.Audio.Backend)
	}
	switch cfg.Session.Language {
	case domain.LanguageHinglish, domain.LanguageHindi, domain.LanguageEnglish:
	default:
		return Config{}, fmt.Errorf("unknown language %q", cfg.Session.Language)
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.ChunkSize < 256 {
		cfg.Audio.ChunkSize = 4096
	}
	if cfg.Playback.QueueDepth <= 0 {
		cfg.Playback.QueueDepth = 8
	}

	return cfg, nil
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
