package bootstrap

import (
	"go.uber.org/zap"

	"vaani/internal/audio"
	"vaani/internal/config"
	"vaani/internal/connection"
	"vaani/internal/playback"
	"vaani/internal/ports"
	"vaani/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.Controller
	Player     *playback.Coordinator
	Config     config.Config
}

// Options overrides individual adapters. Nil fields get the real
// implementation for the loaded configuration.
type Options struct {
	Logger  *zap.Logger
	Device  ports.CaptureDevice
	Speaker ports.Speaker
	Dialer  ports.Dialer
}

// Build wires all runtime dependencies for the current configuration.
func Build(opts Options) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = connection.NewWSDialer()
	}
	transport := connection.NewManager(cfg.Server.URL, dialer, connection.Backoff{
		Initial:  cfg.Server.ReconnectInitial,
		MaxDelay: cfg.Server.ReconnectMax,
		Jitter:   cfg.Server.ReconnectJitter,
	}, log.Named("connection"))

	device := opts.Device
	if device == nil {
		switch cfg.Audio.Backend {
		case config.BackendFFMPEG:
			device = audio.NewFFMPEGDevice(cfg.Audio.FFMPEGCmd, cfg.Audio.InputFormat)
		default:
			device = audio.NewMalgoDevice()
		}
	}
	capture := audio.NewEngine(device, audio.DefaultRegistry(), nil, log.Named("audio"), audio.Config{
		Capture: ports.CaptureConfig{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   cfg.Audio.Channels,
			Device:     cfg.Audio.InputDevice,
		},
		ChunkSize: cfg.Audio.ChunkSize,
	})

	speaker := opts.Speaker
	if speaker == nil {
		speaker = playback.NewOtoSpeaker(cfg.Audio.SampleRate, cfg.Audio.Channels, log.Named("playback"))
	}
	player := playback.NewCoordinator(speaker, log.Named("playback"), cfg.Playback.QueueDepth, cfg.Playback.Enabled)

	controller := usecase.NewController(transport, capture, player, log.Named("session"), usecase.Config{
		Language:         cfg.Session.Language,
		ConversationMode: cfg.Session.ConversationMode,
		AudioEnabled:     cfg.Playback.Enabled,
	})

	return Services{Controller: controller, Player: player, Config: cfg}, nil
}
