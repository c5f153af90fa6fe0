package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"vaani/internal/bootstrap"
	"vaani/internal/domain"
	"vaani/internal/protocol"
	"vaani/internal/usecase"
)

var errPrefsUsage = errors.New("usage: /prefs tts|lang <key>=<value>")

// parsePrefs turns "/prefs tts hindi=indic" style arguments into a
// preferences update.
func parsePrefs(arg string) (protocol.Preferences, error) {
	field, pair, _ := strings.Cut(arg, " ")
	key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	if !ok || key == "" || value == "" {
		return protocol.Preferences{}, errPrefsUsage
	}

	switch field {
	case "tts":
		return protocol.Preferences{TTSPreferences: map[string]string{key: value}}, nil
	case "lang":
		return protocol.Preferences{LanguagePreferences: map[string]string{key: value}}, nil
	default:
		return protocol.Preferences{}, errPrefsUsage
	}
}

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	services, err := bootstrap.Build(bootstrap.Options{Logger: log})
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = services.Player.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	controller := services.Controller

	runErr := make(chan error, 1)
	go func() { runErr <- controller.Run(ctx) }()
	go renderEvents(controller)
	go renderLevels(controller)

	fmt.Printf("connecting to %s (type /help for commands)\n", services.Config.Server.URL)

	go readCommands(ctx, controller, stop)

	if err := <-runErr; err != nil && !errors.Is(err, context.Canceled) {
		log.Error("session ended", zap.Error(err))
		fmt.Fprintf(os.Stderr, "session ended: %v\n", err)
		os.Exit(1)
	}
}

func renderEvents(controller *usecase.Controller) {
	for event := range controller.Events() {
		switch event.Kind {
		case usecase.EventState:
			fmt.Printf("* %s\n", event.State)
		case usecase.EventMessage:
			message := event.Message
			switch message.Role {
			case domain.RoleUser:
				fmt.Printf("you: %s\n", message.Text)
			case domain.RoleAssistant:
				suffix := ""
				if message.DetectedLanguage != "" {
					suffix = fmt.Sprintf(" [%s]", message.DetectedLanguage)
				}
				fmt.Printf("bot: %s%s\n", message.Text, suffix)
			case domain.RoleError:
				fmt.Printf("!! %s\n", message.Text)
			}
		}
	}
}

func renderLevels(controller *usecase.Controller) {
	for level := range controller.Levels() {
		if !controller.Status().Recording {
			continue
		}
		bars := int(level / 5)
		fmt.Printf("\rmic %-20s %3.0f", strings.Repeat("|", bars), level)
	}
}

func readCommands(ctx context.Context, controller *usecase.Controller, stop func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if _, err := controller.SubmitText(line); err != nil {
				fmt.Printf("!! %v\n", err)
			}
			continue
		}

		command, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch command {
		case "/record":
			if err := controller.StartRecording(ctx); err != nil {
				fmt.Printf("!! %v\n", err)
				continue
			}
			fmt.Println("recording, /stop to send, /cancel to discard")
		case "/stop":
			fmt.Println()
			if _, err := controller.FinishRecording(); err != nil {
				fmt.Printf("!! %v\n", err)
			}
		case "/cancel":
			fmt.Println()
			if err := controller.CancelRecording(); err != nil {
				fmt.Printf("!! %v\n", err)
			}
		case "/lang":
			fmt.Printf("language: %s\n", controller.CycleLanguage())
		case "/mode":
			if arg == "" {
				fmt.Println("usage: /mode <name>")
				continue
			}
			controller.SetConversationMode(arg)
			fmt.Printf("conversation mode: %s\n", arg)
		case "/audio":
			switch arg {
			case "on":
				controller.SetAudioEnabled(true)
				fmt.Println("audio responses on")
			case "off":
				controller.SetAudioEnabled(false)
				fmt.Println("audio responses off")
			default:
				fmt.Println("usage: /audio on|off")
			}
		case "/prefs":
			prefs, err := parsePrefs(arg)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := controller.UpdatePreferences(prefs); err != nil {
				fmt.Printf("!! %v\n", err)
				continue
			}
			fmt.Println("preferences sent")
		case "/status":
			status := controller.Status()
			fmt.Printf("connection=%s recording=%v pending=%v language=%s mode=%s audio=%v\n",
				status.Connection, status.Recording, status.PendingTurn,
				status.Language, status.ConversationMode, status.AudioEnabled)
		case "/help":
			fmt.Println("commands: /record /stop /cancel /lang /mode <name> /audio on|off /prefs tts|lang <key>=<value> /status /quit")
			fmt.Println("anything else is sent as a text message")
		case "/quit", "/exit":
			stop()
			return
		default:
			fmt.Printf("unknown command %s, try /help\n", command)
		}
	}
	stop()
}
