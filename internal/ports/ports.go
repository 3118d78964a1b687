package ports

import (
	"context"
	"io"

	"chatwidget/internal/domain"
)

// ChatBackend is the remote chat/indexing collaborator.
type ChatBackend interface {
	ListIndices(ctx context.Context) ([]string, error)
	Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error)
	UploadDocument(ctx context.Context, file domain.DocumentFile) error
}

// DictationCallbacks receives the events of one dictation capability.
// Any callback may be nil.
type DictationCallbacks struct {
	OnStart  func()
	OnResult func(transcript string)
	OnError  func(code string)
	OnEnd    func()
}

// Dictation converts spoken audio to text. Each listening session ends with
// exactly one OnResult or OnError, followed by OnEnd.
type Dictation interface {
	Start(ctx context.Context) error
	Stop() error
	Subscribe(callbacks DictationCallbacks) (release func())
}

// EventSink emits session state and notices to a render surface.
type EventSink interface {
	SessionChanged(snapshot domain.Snapshot, reason domain.ChangeReason)
	SessionNotice(code domain.ErrorCode, detail string)
}

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// AudioSession is a live capture session.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// StreamingConfig describes provider-agnostic streaming settings.
type StreamingConfig struct {
	SampleRate     int
	Channels       int
	Encoding       string
	InterimResults bool
}

// StreamingSession is an active provider websocket session.
type StreamingSession interface {
	SendAudio(chunk []byte) error
	CloseSend() error
	Events() <-chan domain.TranscriptEvent
	Wait() error
	Close() error
}

// TranscriptionProvider starts streaming transcription sessions.
type TranscriptionProvider interface {
	StartStreaming(ctx context.Context, cfg StreamingConfig) (StreamingSession, error)
}
