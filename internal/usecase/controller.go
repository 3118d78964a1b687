package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"chatwidget/internal/domain"
	"chatwidget/internal/logging"
	"chatwidget/internal/ports"
	"chatwidget/internal/transcript"
)

// ResponseErrorText replaces a pending answer whose request failed.
const ResponseErrorText = "⚠️ Error fetching response from server."

const defaultRequestTimeout = 60 * time.Second

// Config controls chat session behavior.
type Config struct {
	ExamplePrompts     []string
	AcceptedMediaTypes []string
	RequestTimeout     time.Duration
	UploadTimeout      time.Duration
	SendHistory        bool
}

// SessionController orchestrates one chat session: the transcript, the
// in-flight request, dictation and document scoping.
type SessionController struct {
	backend ports.ChatBackend
	events  ports.EventSink
	cfg     Config
	logger  *zap.Logger

	voice     *VoiceController
	documents *DocumentController

	mu             sync.Mutex
	transcript     *transcript.Store
	input          string
	prompts        []string
	promptsVisible bool
	inflight       *pendingRequest
}

type pendingRequest struct {
	id string
}

func NewSessionController(
	backend ports.ChatBackend,
	dictation ports.Dictation,
	events ports.EventSink,
	cfg Config,
	logger *zap.Logger,
) *SessionController {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	cfg.ExamplePrompts = append([]string(nil), cfg.ExamplePrompts...)
	if events == nil {
		events = nopSink{}
	}
	logger = logging.OrNop(logger)

	c := &SessionController{
		backend:    backend,
		events:     events,
		cfg:        cfg,
		logger:     logger.Named("session"),
		transcript: transcript.NewStore(),
	}
	c.resetPromptsLocked()

	hooks := sessionHooks{changed: c.publish, notice: c.notice}
	c.documents = newDocumentController(backend, cfg.AcceptedMediaTypes, cfg.UploadTimeout, hooks, logger)
	c.voice = newVoiceController(dictation, c.applyTranscript, hooks, logger)
	return c
}

// Bootstrap publishes the initial state and loads the index catalog. A
// catalog failure is reported as a notice only.
func (c *SessionController) Bootstrap(ctx context.Context) {
	c.publish(domain.ReasonSessionStarted)
	if !c.voice.Supported() {
		c.notice(domain.ErrorCodeUnsupported, "voice dictation is not available")
	}
	if _, err := c.documents.ListIndices(ctx); err != nil {
		c.logger.Warn("initial index listing failed", zap.Error(err))
	}
}

func (c *SessionController) Voice() *VoiceController {
	return c.voice
}

func (c *SessionController) Documents() *DocumentController {
	return c.documents
}

// Send submits override, or the input buffer when override is blank. Blank
// text is ignored. A failed request marks the pending answer failed and the
// error is returned after the transcript is updated.
func (c *SessionController) Send(ctx context.Context, override string) error {
	c.mu.Lock()
	text := override
	if strings.TrimSpace(text) == "" {
		text = c.input
	}
	if strings.TrimSpace(text) == "" {
		c.mu.Unlock()
		return nil
	}
	if c.inflight != nil {
		c.mu.Unlock()
		return domain.ErrBusy
	}

	pendingID, err := c.transcript.AppendPendingPair(text)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	request := &pendingRequest{id: pendingID}
	c.inflight = request
	c.input = ""
	c.promptsVisible = false

	turns := []domain.ChatTurn{{Sender: domain.SenderUser, Text: text}}
	if c.cfg.SendHistory {
		turns = c.transcript.History()
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()
	c.events.SessionChanged(snapshot, domain.ReasonMessageSent)

	mode := c.documents.Mode()
	chatRequest := domain.ChatRequest{Messages: turns, UseDocument: mode.Enabled}
	if mode.Enabled {
		chatRequest.IndexName = mode.ActiveIndex
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	reply, err := c.backend.Chat(callCtx, chatRequest)
	cancel()
	if err != nil && domain.KindOf(err) == domain.KindUnknown {
		err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	c.mu.Lock()
	if c.inflight != request {
		c.mu.Unlock()
		c.logger.Info("discarding response for ended chat", zap.String("pending_id", pendingID))
		return nil
	}
	c.inflight = nil

	if err != nil {
		if failErr := c.transcript.Fail(pendingID, ResponseErrorText); failErr != nil {
			c.logger.Error("failed to mark pending message", zap.Error(failErr))
		}
		snapshot = c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Warn("chat request failed", zap.Error(err), zap.String("kind", string(domain.KindOf(err))))
		c.events.SessionChanged(snapshot, domain.ReasonResponseFailed)
		c.events.SessionNotice(domain.ErrorCodeChat, err.Error())
		return err
	}

	if resolveErr := c.transcript.Resolve(pendingID, reply.Text); resolveErr != nil {
		c.logger.Error("failed to resolve pending message", zap.Error(resolveErr))
	}
	if len(reply.Suggestions) > 0 {
		c.prompts = append([]string(nil), reply.Suggestions...)
		c.promptsVisible = true
	} else {
		c.promptsVisible = false
	}
	snapshot = c.snapshotLocked()
	c.mu.Unlock()

	c.events.SessionChanged(snapshot, domain.ReasonResponseReceived)
	return nil
}

// SetInput replaces the input buffer.
func (c *SessionController) SetInput(text string) {
	c.setInput(text, domain.ReasonInputChanged)
}

// EndChat restores the default session. The catalog and the dictation
// handle are kept; a response still in flight is discarded.
func (c *SessionController) EndChat() {
	c.mu.Lock()
	c.transcript.Clear()
	c.input = ""
	c.inflight = nil
	c.resetPromptsLocked()
	c.documents.Reset()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.events.SessionChanged(snapshot, domain.ReasonChatEnded)
}

func (c *SessionController) Snapshot() domain.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Close releases the dictation subscription.
func (c *SessionController) Close() {
	c.voice.Close()
}

func (c *SessionController) applyTranscript(text string) {
	c.setInput(text, domain.ReasonTranscriptReceived)
}

func (c *SessionController) setInput(text string, reason domain.ChangeReason) {
	c.mu.Lock()
	c.input = text
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.events.SessionChanged(snapshot, reason)
}

func (c *SessionController) publish(reason domain.ChangeReason) {
	c.events.SessionChanged(c.Snapshot(), reason)
}

func (c *SessionController) notice(code domain.ErrorCode, detail string) {
	c.events.SessionNotice(code, detail)
}

func (c *SessionController) resetPromptsLocked() {
	c.prompts = append([]string(nil), c.cfg.ExamplePrompts...)
	c.promptsVisible = len(c.prompts) > 0
}

func (c *SessionController) snapshotLocked() domain.Snapshot {
	docs := c.documents.state()
	return domain.Snapshot{
		Transcript:       c.transcript.Messages(),
		Input:            c.input,
		ExamplePrompts:   append([]string(nil), c.prompts...),
		PromptsVisible:   c.promptsVisible && len(c.prompts) > 0,
		DocumentMode:     docs.mode,
		Indices:          docs.indices,
		Upload:           docs.upload,
		VoiceState:       c.voice.State(),
		VoiceSupported:   c.voice.Supported(),
		AwaitingResponse: c.inflight != nil,
	}
}

type nopSink struct{}

func (nopSink) SessionChanged(domain.Snapshot, domain.ChangeReason) {}
func (nopSink) SessionNotice(domain.ErrorCode, string)              {}
