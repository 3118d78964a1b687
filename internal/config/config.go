package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// DefaultExamplePrompts seed a fresh session.
var DefaultExamplePrompts = []string{
	"What services does your company offer?",
	"How can I contact support?",
	"Tell me more about your pricing.",
	"What are your business hours?",
}

// Config stores runtime configuration for the chat widget.
type Config struct {
	Backend  BackendConfig
	Deepgram DeepgramConfig
	Audio    AudioConfig
	Session  SessionConfig
	Log      LogConfig
}

type BackendConfig struct {
	BaseURL        string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
	UploadTimeout  time.Duration `validate:"gt=0"`
	ListRetries    int           `validate:"gte=1,lte=10"`
	SendHistory    bool
}

type DeepgramConfig struct {
	APIKey      string
	APIBaseURL  string `validate:"required,url"`
	Model       string `validate:"required"`
	Language    string
	SmartFormat bool
}

type AudioConfig struct {
	RecorderCommand string `validate:"required"`
	InputFormat     string
	InputDevice     string
	SampleRate      int `validate:"gt=0"`
	Channels        int `validate:"gt=0"`
}

type SessionConfig struct {
	ChunkSize          int `validate:"gte=256"`
	StreamingGrace     time.Duration
	ExamplePrompts     []string `validate:"min=1,dive,required"`
	AcceptedMediaTypes []string `validate:"min=1,dive,required"`
}

type LogConfig struct {
	FilePath   string
	Level      string `validate:"oneof=debug info warn error"`
	Production bool
}

// Load resolves configuration from an optional .env file, environment
// variables and defaults, then validates the result.
func Load() (Config, error) {
	if err := godotenv.Load(envFile()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to read env file: %w", err)
	}

	cfg := Config{
		Backend: BackendConfig{
			BaseURL:        strings.TrimRight(envOrDefault("CHATWIDGET_BACKEND_URL", "http://localhost:8000"), "/"),
			RequestTimeout: time.Duration(envOrDefaultInt("CHATWIDGET_REQUEST_TIMEOUT_MS", 60000)) * time.Millisecond,
			UploadTimeout:  time.Duration(envOrDefaultInt("CHATWIDGET_UPLOAD_TIMEOUT_MS", 120000)) * time.Millisecond,
			ListRetries:    envOrDefaultInt("CHATWIDGET_LIST_RETRIES", 3),
			SendHistory:    envOrDefaultBool("CHATWIDGET_SEND_HISTORY", false),
		},
		Deepgram: DeepgramConfig{
			APIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:  envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:       envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			Language:    envOrDefault("DEEPGRAM_LANGUAGE", "en-US"),
			SmartFormat: envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
		},
		Audio: AudioConfig{
			RecorderCommand: envOrDefault("CHATWIDGET_FFMPEG_COMMAND", "ffmpeg"),
			InputFormat:     envOrDefault("CHATWIDGET_AUDIO_INPUT_FORMAT", "pulse"),
			InputDevice:     envOrDefault("CHATWIDGET_AUDIO_INPUT_DEVICE", "default"),
			SampleRate:      envOrDefaultInt("CHATWIDGET_SAMPLE_RATE", 16000),
			Channels:        envOrDefaultInt("CHATWIDGET_CHANNELS", 1),
		},
		Session: SessionConfig{
			ChunkSize:          envOrDefaultInt("CHATWIDGET_AUDIO_CHUNK_SIZE", 4096),
			StreamingGrace:     time.Duration(envOrDefaultInt("CHATWIDGET_STREAMING_GRACE_MS", 500)) * time.Millisecond,
			ExamplePrompts:     envOrDefaultList("CHATWIDGET_EXAMPLE_PROMPTS", "|", DefaultExamplePrompts),
			AcceptedMediaTypes: envOrDefaultList("CHATWIDGET_ACCEPTED_MEDIA_TYPES", ",", []string{"application/pdf"}),
		},
		Log: LogConfig{
			FilePath:   strings.TrimSpace(os.Getenv("CHATWIDGET_LOG_FILE")),
			Level:      strings.ToLower(envOrDefault("CHATWIDGET_LOG_LEVEL", "info")),
			Production: envOrDefaultBool("CHATWIDGET_LOG_PRODUCTION", false),
		},
	}

	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Session.ChunkSize < 256 {
		cfg.Session.ChunkSize = 4096
	}
	if cfg.Session.StreamingGrace < 0 {
		cfg.Session.StreamingGrace = 500 * time.Millisecond
	}
	if cfg.Backend.RequestTimeout <= 0 {
		cfg.Backend.RequestTimeout = 60 * time.Second
	}
	if cfg.Backend.UploadTimeout <= 0 {
		cfg.Backend.UploadTimeout = 2 * time.Minute
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func envFile() string {
	return envOrDefault("CHATWIDGET_ENV_FILE", ".env")
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

func envOrDefaultList(key string, sep string, fallback []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return append([]string(nil), fallback...)
	}
	var items []string
	for _, item := range strings.Split(value, sep) {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	if len(items) == 0 {
		return append([]string(nil), fallback...)
	}
	return items
}
