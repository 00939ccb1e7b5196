package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the NovaSight client.
type Config struct {
	Backend  BackendConfig
	Deepgram DeepgramConfig
	OpenAI   OpenAIConfig
	Speech   SpeechConfig
	Camera   CameraConfig
	Audio    AudioConfig
	Files    FilesConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string
	Model       string
	Language    string
	SmartFormat bool
	// Mode is "prerecorded" or "streaming".
	Mode      string
	ChunkSize int
}

type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

type SpeechConfig struct {
	Voice         string
	Language      string
	PlayerCommand string
}

type CameraConfig struct {
	Command       string
	InputFormat   string
	FrontDevice   string
	BackDevice    string
	MaxFrameWidth int
	JPEGQuality   int
}

type AudioConfig struct {
	RecorderCommand string
	InputFormat     string
	InputDevice     string
	RecordFormat    string
	SampleRate      int
	Channels        int
}

type FilesConfig struct {
	RulesPath string
	ModesPath string
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	Addr string
}

// Load reads an optional .env file, then resolves configuration from
// environment variables and defaults. Variables already set in the
// environment win over the .env file.
func Load(envFiles ...string) (Config, error) {
	if err := loadDotEnv(envFiles); err != nil {
		return Config{}, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}
	configDir := filepath.Join(home, ".config", "novasight")

	ffmpeg := envOrDefault("NOVASIGHT_FFMPEG_COMMAND", "ffmpeg")
	cameraDevice := envOrDefault("NOVASIGHT_CAMERA_DEVICE", "/dev/video0")

	cfg := Config{
		Backend: BackendConfig{
			BaseURL:        envOrDefault("NOVASIGHT_BASE_URL", "http://localhost:8000"),
			RequestTimeout: time.Duration(envOrDefaultInt("NOVASIGHT_REQUEST_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    envOrDefault("DEEPGRAM_LANGUAGE", "vi"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			Mode:        strings.ToLower(envOrDefault("DEEPGRAM_MODE", "prerecorded")),
			ChunkSize:   envOrDefaultInt("DEEPGRAM_CHUNK_SIZE", 4096),
		},
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Speech: SpeechConfig{
			Voice:         envOrDefault("NOVASIGHT_TTS_VOICE", "vi-VN-HoaiMyNeural"),
			Language:      envOrDefault("NOVASIGHT_SPEECH_LANGUAGE", "vi-VN"),
			PlayerCommand: envOrDefault("NOVASIGHT_PLAYER_COMMAND", "ffplay"),
		},
		Camera: CameraConfig{
			Command:       ffmpeg,
			InputFormat:   envOrDefault("NOVASIGHT_CAMERA_FORMAT", "v4l2"),
			BackDevice:    cameraDevice,
			FrontDevice:   envOrDefault("NOVASIGHT_FRONT_CAMERA_DEVICE", cameraDevice),
			MaxFrameWidth: envOrDefaultInt("NOVASIGHT_FRAME_MAX_WIDTH", 1280),
			JPEGQuality:   envOrDefaultInt("NOVASIGHT_JPEG_QUALITY", 85),
		},
		Audio: AudioConfig{
			RecorderCommand: ffmpeg,
			InputFormat:     envOrDefault("NOVASIGHT_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("NOVASIGHT_AUDIO_INPUT_DEVICE", "default"),
			RecordFormat:    strings.ToLower(envOrDefault("NOVASIGHT_RECORD_FORMAT", "m4a")),
			SampleRate:      envOrDefaultInt("NOVASIGHT_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("NOVASIGHT_CHANNELS", 1),
		},
		Files: FilesConfig{
			RulesPath: envOrDefault("NOVASIGHT_RULES_FILE", filepath.Join(configDir, "phrases.yaml")),
			ModesPath: envOrDefault("NOVASIGHT_MODES_FILE", filepath.Join(configDir, "modes.yaml")),
		},
		Log: LogConfig{
			Level:  strings.ToLower(envOrDefault("NOVASIGHT_LOG_LEVEL", "info")),
			Format: strings.ToLower(envOrDefault("NOVASIGHT_LOG_FORMAT", "text")),
		},
		HTTP: HTTPConfig{
			Addr: envOrDefault("NOVASIGHT_HTTP_ADDR", "127.0.0.1:8787"),
		},
	}

	if cfg.Backend.RequestTimeout <= 0 {
		cfg.Backend.RequestTimeout = 30 * time.Second
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Deepgram.ChunkSize < 256 {
		cfg.Deepgram.ChunkSize = 4096
	}
	if cfg.Camera.MaxFrameWidth < 0 {
		cfg.Camera.MaxFrameWidth = 0
	}
	if cfg.Camera.JPEGQuality < 1 || cfg.Camera.JPEGQuality > 100 {
		cfg.Camera.JPEGQuality = 85
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Deepgram.Mode {
	case "prerecorded", "streaming":
	default:
		return fmt.Errorf("DEEPGRAM_MODE must be prerecorded or streaming, got %q", c.Deepgram.Mode)
	}
	switch c.Audio.RecordFormat {
	case "m4a", "wav":
	default:
		return fmt.Errorf("NOVASIGHT_RECORD_FORMAT must be m4a or wav, got %q", c.Audio.RecordFormat)
	}
	if c.Deepgram.Mode == "streaming" && c.Audio.RecordFormat != "wav" {
		return errors.New("streaming transcription requires NOVASIGHT_RECORD_FORMAT=wav")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("NOVASIGHT_LOG_FORMAT must be text or json, got %q", c.Log.Format)
	}
	return nil
}

func loadDotEnv(files []string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
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
