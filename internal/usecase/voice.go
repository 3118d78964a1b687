package usecase

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"chatwidget/internal/domain"
	"chatwidget/internal/ports"
)

// VoiceController owns the dictation capability handle for the lifetime of
// the session. A nil capability means dictation is unsupported.
type VoiceController struct {
	capability   ports.Dictation
	onTranscript func(text string)
	hooks        sessionHooks
	logger       *zap.Logger

	mu      sync.Mutex
	state   domain.VoiceState
	release func()
	closed  bool
}

func newVoiceController(
	capability ports.Dictation,
	onTranscript func(text string),
	hooks sessionHooks,
	logger *zap.Logger,
) *VoiceController {
	v := &VoiceController{
		capability:   capability,
		onTranscript: onTranscript,
		hooks:        hooks,
		logger:       logger.Named("voice"),
		state:        domain.VoiceStateIdle,
	}
	if capability != nil {
		v.release = capability.Subscribe(ports.DictationCallbacks{
			OnStart:  v.handleStart,
			OnResult: v.handleResult,
			OnError:  v.handleError,
			OnEnd:    v.handleEnd,
		})
	}
	return v
}

func (v *VoiceController) Supported() bool {
	return v.capability != nil
}

func (v *VoiceController) State() domain.VoiceState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Toggle starts listening when idle and stops when listening.
func (v *VoiceController) Toggle(ctx context.Context) error {
	if v.State() == domain.VoiceStateListening {
		return v.Stop()
	}
	return v.Start(ctx)
}

func (v *VoiceController) Start(ctx context.Context) error {
	v.mu.Lock()
	if v.capability == nil || v.closed {
		v.mu.Unlock()
		return domain.ErrUnsupported
	}
	if v.state == domain.VoiceStateListening {
		v.mu.Unlock()
		return domain.ErrAlreadyListening
	}
	v.state = domain.VoiceStateListening
	v.mu.Unlock()

	if err := v.capability.Start(ctx); err != nil {
		v.setIdle()
		v.logger.Warn("failed to start dictation", zap.Error(err))
		if !errors.Is(err, domain.ErrAlreadyListening) {
			v.hooks.raise(domain.ErrorCodeDictation, domain.DictationErrorStart)
		}
		v.hooks.publish(domain.ReasonDictationFailed)
		return err
	}

	v.hooks.publish(domain.ReasonListeningStarted)
	return nil
}

// Stop asks the capability to finish. The transcript arrives later through
// the result callback.
func (v *VoiceController) Stop() error {
	v.mu.Lock()
	if v.capability == nil || v.closed {
		v.mu.Unlock()
		return domain.ErrUnsupported
	}
	if v.state != domain.VoiceStateListening {
		v.mu.Unlock()
		return nil
	}
	v.state = domain.VoiceStateIdle
	v.mu.Unlock()

	if err := v.capability.Stop(); err != nil {
		v.logger.Debug("dictation stop reported error", zap.Error(err))
	}
	v.hooks.publish(domain.ReasonListeningStopped)
	return nil
}

// Close stops any capture and releases the capability subscription. Events
// delivered afterwards are dropped.
func (v *VoiceController) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	release := v.release
	v.release = nil
	listening := v.state == domain.VoiceStateListening
	v.state = domain.VoiceStateIdle
	v.mu.Unlock()

	if release != nil {
		release()
	}
	if listening {
		if err := v.capability.Stop(); err != nil {
			v.logger.Debug("dictation stop on close reported error", zap.Error(err))
		}
	}
}

func (v *VoiceController) handleStart() {
	v.mu.Lock()
	if v.closed || v.state == domain.VoiceStateListening {
		v.mu.Unlock()
		return
	}
	v.state = domain.VoiceStateListening
	v.mu.Unlock()
	v.hooks.publish(domain.ReasonListeningStarted)
}

func (v *VoiceController) handleResult(text string) {
	if !v.forceIdle() {
		return
	}
	v.logger.Debug("dictation result received", zap.Int("chars", len(text)))
	if v.onTranscript != nil {
		v.onTranscript(text)
	}
}

func (v *VoiceController) handleError(code string) {
	if !v.forceIdle() {
		return
	}
	v.logger.Warn("dictation failed", zap.String("code", code))
	v.hooks.raise(domain.ErrorCodeDictation, code)
	v.hooks.publish(domain.ReasonDictationFailed)
}

func (v *VoiceController) handleEnd() {
	v.mu.Lock()
	if v.closed || v.state != domain.VoiceStateListening {
		v.mu.Unlock()
		return
	}
	v.state = domain.VoiceStateIdle
	v.mu.Unlock()
	v.hooks.publish(domain.ReasonListeningStopped)
}

// forceIdle returns false once the controller is closed.
func (v *VoiceController) forceIdle() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return false
	}
	v.state = domain.VoiceStateIdle
	return true
}

func (v *VoiceController) setIdle() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = domain.VoiceStateIdle
}
