package config

import (
	"testing"
	"time"

	"vaani/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"VAANI_SERVER_URL",
		"VAANI_RECONNECT_INITIAL_MS",
		"VAANI_RECONNECT_MAX_MS",
		"VAANI_AUDIO_BACKEND",
		"VAANI_SAMPLE_RATE",
		"VAANI_CHANNELS",
		"VAANI_LANGUAGE",
		"VAANI_AUDIO_RESPONSES",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "ws://localhost:8000/ws" {
		t.Fatalf("unexpected server url: %q", cfg.Server.URL)
	}
	if cfg.Server.ReconnectInitial != 3*time.Second {
		t.Fatalf("unexpected initial reconnect delay: %v", cfg.Server.ReconnectInitial)
	}
	if cfg.Server.ReconnectMax != 30*time.Second {
		t.Fatalf("unexpected max reconnect delay: %v", cfg.Server.ReconnectMax)
	}
	if cfg.Audio.Backend != BackendMalgo {
		t.Fatalf("unexpected audio backend: %q", cfg.Audio.Backend)
	}
	if cfg.Audio.SampleRate != 16000 || cfg.Audio.Channels != 1 {
		t.Fatalf("unexpected capture format: %d/%d", cfg.Audio.SampleRate, cfg.Audio.Channels)
	}
	if cfg.Session.Language != domain.LanguageHinglish {
		t.Fatalf("unexpected default language: %q", cfg.Session.Language)
	}
	if !cfg.Playback.Enabled {
		t.Fatalf("expected audio responses enabled by default")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("VAANI_SERVER_URL", "wss://chat.example.com/ws")
	t.Setenv("VAANI_RECONNECT_INITIAL_MS", "500")
	t.Setenv("VAANI_AUDIO_BACKEND", "FFMPEG")
	t.Setenv("VAANI_LANGUAGE", "Hindi")
	t.Setenv("VAANI_AUDIO_RESPONSES", "off")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.URL != "wss://chat.example.com/ws" {
		t.Fatalf("unexpected server url: %q", cfg.Server.URL)
	}
	if cfg.Server.ReconnectInitial != 500*time.Millisecond {
		t.Fatalf("unexpected initial reconnect delay: %v", cfg.Server.ReconnectInitial)
	}
	if cfg.Audio.Backend != BackendFFMPEG {
		t.Fatalf("expected backend lowercased, got %q", cfg.Audio.Backend)
	}
	if cfg.Session.Language != domain.LanguageHindi {
		t.Fatalf("expected language lowercased, got %q", cfg.Session.Language)
	}
	if cfg.Playback.Enabled {
		t.Fatalf("expected audio responses disabled")
	}
}

func TestLoadRejectsUnknownValues(t *testing.T) {
	t.Setenv("VAANI_AUDIO_BACKEND", "coreaudio")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for an unknown backend")
	}

	t.Setenv("VAANI_AUDIO_BACKEND", "")
	t.Setenv("VAANI_LANGUAGE", "klingon")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an error for an unknown language")
	}
}

func TestLoadClampsOutOfRangeNumbers(t *testing.T) {
	t.Setenv("VAANI_SAMPLE_RATE", "-1")
	t.Setenv("VAANI_CHANNELS", "0")
	t.Setenv("VAANI_AUDIO_CHUNK_SIZE", "10")
	t.Setenv("VAANI_PLAYBACK_QUEUE", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Fatalf("expected sample rate fallback, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Fatalf("expected channels fallback, got %d", cfg.Audio.Channels)
	}
	if cfg.Audio.ChunkSize != 4096 {
		t.Fatalf("expected chunk size fallback, got %d", cfg.Audio.ChunkSize)
	}
	if cfg.Playback.QueueDepth != 8 {
		t.Fatalf("expected queue depth fallback, got %d", cfg.Playback.QueueDepth)
	}
}
