package bootstrap

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"novasight/internal/audio"
	"novasight/internal/camera"
	"novasight/internal/config"
	"novasight/internal/domain"
	"novasight/internal/modes"
	"novasight/internal/phrasing"
	"novasight/internal/ports"
	"novasight/internal/providers/backend"
	"novasight/internal/providers/deepgram"
	"novasight/internal/providers/edgetts"
	"novasight/internal/providers/openai"
	"novasight/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Engine *usecase.Engine
	Config config.Config
	Logger *slog.Logger
}

// Build loads configuration and wires all dependencies for the current runtime.
func Build(eventSink ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWith(cfg, eventSink, os.Stderr)
}

// BuildWith wires dependencies from an already loaded configuration. Logs go
// to logOutput.
func BuildWith(cfg config.Config, eventSink ports.EventSink, logOutput io.Writer) (Services, error) {
	logger := NewLogger(cfg.Log, logOutput)

	table, err := modes.LoadOverrides(cfg.Files.ModesPath)
	if err != nil {
		return Services{}, err
	}
	rewriter, err := phrasing.Load(cfg.Files.RulesPath)
	if err != nil {
		return Services{}, err
	}

	client, err := backend.NewClient(backend.Config{
		BaseURL: cfg.Backend.BaseURL,
		Timeout: cfg.Backend.RequestTimeout,
	})
	if err != nil {
		return Services{}, err
	}

	classifier, err := openai.NewClassifier(openai.Config{
		APIKey:        cfg.OpenAI.APIKey,
		BaseURL:       cfg.OpenAI.BaseURL,
		Model:         cfg.OpenAI.Model,
		DefaultIntent: table.Lookup(modes.DefaultMode).Intent,
	}, classifierChoices(table))
	if err != nil {
		return Services{}, fmt.Errorf("intent classifier: %w", err)
	}

	engine, err := usecase.NewEngine(usecase.Dependencies{
		Camera: camera.NewFFMPEGCamera(camera.Options{
			Command:     cfg.Camera.Command,
			InputFormat: cfg.Camera.InputFormat,
			FrontDevice: cfg.Camera.FrontDevice,
			BackDevice:  cfg.Camera.BackDevice,
			MaxWidth:    cfg.Camera.MaxFrameWidth,
			Quality:     cfg.Camera.JPEGQuality,
		}),
		Backend: client,
		Synthesizer: edgetts.NewSynthesizer(
			cfg.Speech.Voice,
			edgetts.NewExecPlayer(cfg.Speech.PlayerCommand, nil),
			logger,
		),
		Rules:       rewriter,
		Recorder:    audio.NewFFMPEGRecorder(cfg.Audio.RecorderCommand, ""),
		Transcriber: newTranscriber(cfg),
		Classifier:  classifier,
		Events:      eventSink,
		Table:       table,
		Logger:      logger,
	}, usecase.Config{
		SpeechLanguage: cfg.Speech.Language,
		RequestTimeout: cfg.Backend.RequestTimeout,
		Voice: usecase.VoiceConfig{
			Recording: ports.RecordingConfig{
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
				Format:      cfg.Audio.RecordFormat,
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
			},
		},
	})
	if err != nil {
		return Services{}, err
	}

	logger.Info("services built",
		"backend", cfg.Backend.BaseURL,
		"transcription", cfg.Deepgram.Mode,
		"phrase_rules", rewriter.Len(),
	)
	return Services{Engine: engine, Config: cfg, Logger: logger}, nil
}

func newTranscriber(cfg config.Config) ports.Transcriber {
	dg := deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
	}
	if cfg.Deepgram.Mode == "streaming" {
		// WAV carries its own header, so the encoding is left for Deepgram
		// to detect.
		return deepgram.NewStreamingTranscriber(dg, deepgram.StreamParams{
			ChunkSize: cfg.Deepgram.ChunkSize,
		})
	}
	return deepgram.NewPrerecordedTranscriber(dg, cfg.Backend.RequestTimeout)
}

func classifierChoices(table *modes.Table) []openai.Choice {
	choices := make([]openai.Choice, 0, len(domain.AllModes))
	for _, mode := range domain.AllModes {
		spec := table.Lookup(mode)
		choices = append(choices, openai.Choice{Intent: spec.Intent, Label: spec.Label})
	}
	return choices
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
