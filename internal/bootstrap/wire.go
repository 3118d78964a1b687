package bootstrap

import (
	"fmt"

	"go.uber.org/zap"

	"chatwidget/internal/audio"
	"chatwidget/internal/backend"
	"chatwidget/internal/config"
	"chatwidget/internal/dictation"
	"chatwidget/internal/logging"
	"chatwidget/internal/ports"
	"chatwidget/internal/providers/deepgram"
	"chatwidget/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Controller *usecase.SessionController
	Backend    *backend.Client
	Config     config.Config
	Logger     *zap.Logger

	recorder *dictation.Recorder
}

// Build loads configuration and wires every dependency.
func Build(events ports.EventSink) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}
	return BuildWithConfig(cfg, events)
}

func BuildWithConfig(cfg config.Config, events ports.EventSink) (Services, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return Services{}, fmt.Errorf("failed to build logger: %w", err)
	}

	client := backend.NewClient(backend.Config{
		BaseURL:     cfg.Backend.BaseURL,
		ListRetries: cfg.Backend.ListRetries,
		Logger:      logger,
	})

	recorder := buildRecorder(cfg, logger)
	var capability ports.Dictation
	if recorder != nil {
		capability = recorder
	}

	controller := usecase.NewSessionController(client, capability, events, usecase.Config{
		ExamplePrompts:     cfg.Session.ExamplePrompts,
		AcceptedMediaTypes: cfg.Session.AcceptedMediaTypes,
		RequestTimeout:     cfg.Backend.RequestTimeout,
		UploadTimeout:      cfg.Backend.UploadTimeout,
		SendHistory:        cfg.Backend.SendHistory,
	}, logger)

	logger.Info("chat widget wired",
		zap.String("backend", cfg.Backend.BaseURL),
		zap.Bool("dictation", recorder != nil),
	)
	return Services{
		Controller: controller,
		Backend:    client,
		Config:     cfg,
		Logger:     logger,
		recorder:   recorder,
	}, nil
}

// Close releases the session, the microphone and flushes logs.
func (s Services) Close() {
	if s.Controller != nil {
		s.Controller.Close()
	}
	if s.recorder != nil {
		_ = s.recorder.Close()
	}
	if s.Logger != nil {
		_ = s.Logger.Sync()
	}
}

// buildRecorder returns nil when dictation cannot work on this machine.
func buildRecorder(cfg config.Config, logger *zap.Logger) *dictation.Recorder {
	provider := deepgram.NewProvider(deepgram.Config{
		APIKey:      cfg.Deepgram.APIKey,
		APIBaseURL:  cfg.Deepgram.APIBaseURL,
		Model:       cfg.Deepgram.Model,
		Language:    cfg.Deepgram.Language,
		SmartFormat: cfg.Deepgram.SmartFormat,
		Logger:      logger,
	})
	if !provider.Configured() {
		logger.Info("dictation disabled: DEEPGRAM_API_KEY is not set")
		return nil
	}

	mic := audio.NewMicrophone(audio.MicrophoneOptions{
		Command: cfg.Audio.RecorderCommand,
		Logger:  logger,
	})
	if !mic.Available() {
		logger.Info("dictation disabled: recorder not found", zap.String("command", cfg.Audio.RecorderCommand))
		return nil
	}

	return dictation.NewRecorder(mic, provider, dictation.Config{
		Audio: ports.AudioConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		Streaming: ports.StreamingConfig{
			SampleRate:     cfg.Audio.SampleRate,
			Channels:       cfg.Audio.Channels,
			Encoding:       "linear16",
			InterimResults: true,
		},
		ChunkSize:      cfg.Session.ChunkSize,
		StreamingGrace: cfg.Session.StreamingGrace,
		Logger:         logger,
	})
}
