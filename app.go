package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"chatwidget/internal/bootstrap"
	"chatwidget/internal/config"
	"chatwidget/internal/domain"
	"chatwidget/internal/usecase"
)

const (
	eventSession = "chatwidget:session"
	eventNotice  = "chatwidget:notice"
)

// App is the Wails application root. It doubles as the session event sink.
type App struct {
	ctx context.Context

	services   bootstrap.Services
	controller *usecase.SessionController
	cfg        config.Config
	bootErr    error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionNotice(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.services = services
	a.cfg = services.Config
	a.controller = services.Controller
	go a.controller.Bootstrap(ctx)
}

func (a *App) shutdown(context.Context) {
	a.services.Close()
}

// Send submits text, or the input buffer when text is blank. Chat failures
// are already rendered in the transcript, so only busy and boot errors reach
// the caller.
func (a *App) Send(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	err := a.controller.Send(a.ctx, text)
	switch domain.KindOf(err) {
	case domain.KindTransport, domain.KindProtocol:
		return nil
	default:
		return err
	}
}

// SetInput mirrors the text box into the session.
func (a *App) SetInput(text string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.SetInput(text)
	return nil
}

// ToggleMic starts dictation when idle and stops it when listening.
func (a *App) ToggleMic() (domain.VoiceState, error) {
	if err := a.requireReady(); err != nil {
		return domain.VoiceStateIdle, err
	}
	voice := a.controller.Voice()
	if err := voice.Toggle(a.ctx); err != nil {
		if errors.Is(err, domain.ErrUnsupported) {
			a.SessionNotice(domain.ErrorCodeUnsupported, err.Error())
		}
		return voice.State(), err
	}
	return voice.State(), nil
}

// PickDocument opens a file dialog and uploads the chosen PDF. It returns the
// new active index, or an empty string when the dialog was cancelled.
func (a *App) PickDocument() (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	path, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "Upload a document",
		Filters: []runtime.FileFilter{
			{DisplayName: "PDF documents (*.pdf)", Pattern: "*.pdf"},
		},
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", nil
	}
	return a.UploadFile(path)
}

// UploadFile uploads a document from disk. The media type is sniffed from
// the content.
func (a *App) UploadFile(path string) (string, error) {
	if err := a.requireReady(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	index, err := a.controller.Documents().Upload(a.ctx, domain.DocumentFile{
		Name: filepath.Base(path),
		Data: data,
	})
	if errors.Is(err, domain.ErrInvalidFileType) {
		a.SessionNotice(domain.ErrorCodeUpload, "please upload a valid PDF file")
	}
	return index, err
}

// SelectIndex activates one catalog entry. An empty name clears it.
func (a *App) SelectIndex(name string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Documents().SetActiveIndex(name)
}

// SetDocumentMode turns document-scoped answers on or off.
func (a *App) SetDocumentMode(enabled bool) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.controller.Documents().SetDocumentModeEnabled(enabled)
}

// ReloadIndices refreshes the catalog from the backend.
func (a *App) ReloadIndices() ([]string, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.controller.Documents().ListIndices(a.ctx)
}

// EndChat resets the conversation.
func (a *App) EndChat() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	a.controller.EndChat()
	return nil
}

// GetState returns the current session snapshot.
func (a *App) GetState() domain.Snapshot {
	if a.controller == nil {
		return domain.Snapshot{
			Transcript: []domain.Message{},
			Indices:    []string{},
			Upload:     domain.UploadStateIdle,
			VoiceState: domain.VoiceStateIdle,
		}
	}
	return a.controller.Snapshot()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":          a.cfg.Backend.BaseURL,
		"provider":         "Deepgram",
		"model":            a.cfg.Deepgram.Model,
		"language":         a.cfg.Deepgram.Language,
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.controller == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionChanged emits the full session snapshot to the frontend.
func (a *App) SessionChanged(snapshot domain.Snapshot, reason domain.ChangeReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSession, map[string]any{
		"state":   snapshot,
		"reason":  string(reason),
		"message": reasonMessage(reason),
	})
}

// SessionNotice emits failures and confirmations to the UI.
func (a *App) SessionNotice(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventNotice, map[string]string{
		"code":    string(code),
		"message": noticeMessage(code, detail),
		"detail":  detail,
	})
}

func reasonMessage(reason domain.ChangeReason) string {
	switch reason {
	case domain.ReasonMessageSent:
		return "Waiting for a response..."
	case domain.ReasonResponseFailed:
		return "The response could not be fetched"
	case domain.ReasonChatEnded:
		return "Chat ended"
	case domain.ReasonListeningStarted:
		return "Listening..."
	case domain.ReasonListeningStopped:
		return "Microphone off"
	case domain.ReasonTranscriptReceived:
		return "Transcript ready"
	case domain.ReasonDictationFailed:
		return "Dictation failed"
	case domain.ReasonUploadStarted:
		return "Uploading document..."
	case domain.ReasonUploadCompleted:
		return "Document ready"
	case domain.ReasonUploadFailed:
		return "Upload failed"
	default:
		return ""
	}
}

func noticeMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeChat:
		return "Error fetching response from server"
	case domain.ErrorCodeDictation:
		return dictationMessage(detail)
	case domain.ErrorCodeUnsupported:
		return "Voice input is not supported on this system"
	case domain.ErrorCodeUpload:
		return "Document upload failed"
	case domain.ErrorCodeIndices:
		return "Document list unavailable"
	case domain.NoticeDocumentIndexed:
		return "PDF uploaded and indexed successfully!"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}

func dictationMessage(code string) string {
	switch code {
	case domain.DictationErrorNoSpeech:
		return "No speech detected"
	case domain.DictationErrorStart:
		return "Could not start the microphone"
	case domain.DictationErrorAudio:
		return "Microphone capture failed"
	case domain.DictationErrorTranscribing:
		return "Transcription failed"
	default:
		return "Dictation error"
	}
}
