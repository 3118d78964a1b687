// Package dictation turns microphone audio into transcript text through a
// streaming transcription provider.
package dictation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatwidget/internal/domain"
	"chatwidget/internal/logging"
	"chatwidget/internal/ports"
)

var ErrNoActiveCapture = errors.New("no active dictation capture")

const defaultStreamTimeout = 4 * time.Second

// Config controls capture and streaming behavior.
type Config struct {
	Audio          ports.AudioConfig
	Streaming      ports.StreamingConfig
	ChunkSize      int
	StreamingGrace time.Duration
	StreamTimeout  time.Duration
	Logger         *zap.Logger
}

// Recorder implements ports.Dictation on top of an audio capture and a
// transcription provider. At most one capture runs at a time.
type Recorder struct {
	audio    ports.AudioCapture
	provider ports.TranscriptionProvider
	cfg      Config
	logger   *zap.Logger

	mu       sync.Mutex
	starting bool
	current  *activeCapture
	subs     map[uint64]ports.DictationCallbacks
	nextSub  uint64
}

func NewRecorder(audio ports.AudioCapture, provider ports.TranscriptionProvider, cfg Config) *Recorder {
	if cfg.ChunkSize < 256 {
		cfg.ChunkSize = 4096
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = defaultStreamTimeout
	}
	return &Recorder{
		audio:    audio,
		provider: provider,
		cfg:      cfg,
		logger:   logging.OrNop(cfg.Logger).Named("dictation"),
		subs:     make(map[uint64]ports.DictationCallbacks),
	}
}

// Subscribe registers callbacks until the returned release func is called.
func (r *Recorder) Subscribe(callbacks ports.DictationCallbacks) func() {
	r.mu.Lock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = callbacks
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Start opens the provider stream and the microphone.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.current != nil || r.starting {
		r.mu.Unlock()
		return domain.ErrAlreadyListening
	}
	r.starting = true
	r.mu.Unlock()

	active, err := r.open(ctx)

	r.mu.Lock()
	r.starting = false
	if err == nil {
		r.current = active
	}
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn("dictation start failed", zap.Error(err))
		return err
	}

	r.logger.Debug("dictation started")
	r.emit(func(cb ports.DictationCallbacks) {
		if cb.OnStart != nil {
			cb.OnStart()
		}
	})

	go consumeTranscriptionEvents(active.stream, active.aggregator, r.logger, active.eventsDone)
	go func() {
		if err := pumpAudioChunks(active.audio, active.stream, r.cfg.ChunkSize, active.audioDone); err != nil {
			r.logger.Warn("audio pump stopped", zap.Error(err))
			active.setAudioErr(err)
			r.stopCapture(active)
		}
	}()
	return nil
}

func (r *Recorder) open(ctx context.Context) (*activeCapture, error) {
	captureCtx, cancel := context.WithCancel(ctx)
	stream, err := r.provider.StartStreaming(captureCtx, r.cfg.Streaming)
	if err != nil {
		cancel()
		return nil, err
	}

	audioSession, err := r.audio.Start(captureCtx, r.cfg.Audio)
	if err != nil {
		_ = stream.Close()
		cancel()
		return nil, err
	}

	return &activeCapture{
		cancel:     cancel,
		audio:      audioSession,
		stream:     stream,
		state:      captureListening,
		aggregator: newTranscriptAggregator(),
		eventsDone: make(chan struct{}),
		audioDone:  make(chan struct{}),
	}, nil
}

// Stop ends the microphone capture. The transcript is delivered
// asynchronously through OnResult or OnError, then OnEnd.
func (r *Recorder) Stop() error {
	active, err := r.getCurrent()
	if err != nil {
		return err
	}
	r.stopCapture(active)
	return nil
}

func (r *Recorder) stopCapture(active *activeCapture) {
	if !active.beginStop() {
		return
	}
	go r.finalize(active)
}

func (r *Recorder) finalize(active *activeCapture) {
	if err := active.audio.Stop(); err != nil {
		r.logger.Warn("failed to stop audio capture cleanly", zap.Error(err))
	}

	if r.cfg.StreamingGrace > 0 {
		time.Sleep(r.cfg.StreamingGrace)
	}

	_ = active.stream.CloseSend()
	streamErr := waitForStream(active.stream, r.cfg.StreamTimeout)
	<-active.eventsDone
	<-active.audioDone

	text := active.aggregator.Text()
	r.release(active)

	switch {
	case text != "":
		r.logger.Debug("dictation produced transcript", zap.Int("chars", len(text)))
		r.emit(func(cb ports.DictationCallbacks) {
			if cb.OnResult != nil {
				cb.OnResult(text)
			}
		})
	case active.getAudioErr() != nil:
		r.emitError(domain.DictationErrorAudio)
	case streamErr != nil:
		r.logger.Warn("transcription stream failed", zap.Error(streamErr))
		r.emitError(domain.DictationErrorTranscribing)
	default:
		r.emitError(domain.DictationErrorNoSpeech)
	}
	r.emit(func(cb ports.DictationCallbacks) {
		if cb.OnEnd != nil {
			cb.OnEnd()
		}
	})
}

// Close discards any active capture without delivering a transcript and
// drops every subscription.
func (r *Recorder) Close() error {
	r.mu.Lock()
	active := r.current
	r.subs = make(map[uint64]ports.DictationCallbacks)
	r.mu.Unlock()

	if active == nil || !active.beginStop() {
		return nil
	}
	active.cancel()
	_ = active.audio.Stop()
	_ = active.stream.Close()
	<-active.eventsDone
	<-active.audioDone
	r.release(active)
	return nil
}

func (r *Recorder) getCurrent() (*activeCapture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, ErrNoActiveCapture
	}
	return r.current, nil
}

func (r *Recorder) release(active *activeCapture) {
	active.cancel()
	r.mu.Lock()
	if r.current == active {
		r.current = nil
	}
	r.mu.Unlock()
}

func (r *Recorder) emitError(code string) {
	r.emit(func(cb ports.DictationCallbacks) {
		if cb.OnError != nil {
			cb.OnError(code)
		}
	})
}

func (r *Recorder) emit(fn func(ports.DictationCallbacks)) {
	r.mu.Lock()
	subs := make([]ports.DictationCallbacks, 0, len(r.subs))
	for _, cb := range r.subs {
		subs = append(subs, cb)
	}
	r.mu.Unlock()

	for _, cb := range subs {
		fn(cb)
	}
}
