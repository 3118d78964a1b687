package deepgram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"chatwidget/internal/domain"
)

var errSendClosed = errors.New("audio stream is already closed")

var closeStreamMessage = []byte(`{"type":"CloseStream"}`)

// streamingSession pumps audio chunks out and transcript events in over one
// websocket. Events is closed once both directions have finished.
type streamingSession struct {
	conn   *websocket.Conn
	logger *zap.Logger

	events chan domain.TranscriptEvent
	audio  chan []byte
	done   chan struct{}

	errMu sync.Mutex
	err   error

	sendMu     sync.RWMutex
	sendClosed bool

	closeSendOnce sync.Once
	closeOnce     sync.Once
}

func newStreamingSession(conn *websocket.Conn, logger *zap.Logger) *streamingSession {
	s := &streamingSession{
		conn:   conn,
		logger: logger,
		events: make(chan domain.TranscriptEvent, 64),
		audio:  make(chan []byte, 32),
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.readLoop()
	}()
	go func() {
		defer wg.Done()
		s.writeLoop()
	}()
	go func() {
		wg.Wait()
		close(s.events)
		close(s.done)
		_ = conn.Close()
	}()
	return s
}

func (s *streamingSession) SendAudio(chunk []byte) error {
	if len(chunk) == 0 {
		return nil
	}

	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return errSendClosed
	}

	select {
	case s.audio <- append([]byte(nil), chunk...):
		return nil
	case <-s.done:
		if err := s.waitErr(); err != nil {
			return err
		}
		return errors.New("streaming session closed")
	}
}

// CloseSend flushes queued audio and asks the server to finalize.
func (s *streamingSession) CloseSend() error {
	s.closeSendOnce.Do(func() {
		s.sendMu.Lock()
		s.sendClosed = true
		close(s.audio)
		s.sendMu.Unlock()
	})
	return nil
}

func (s *streamingSession) Events() <-chan domain.TranscriptEvent {
	return s.events
}

func (s *streamingSession) Wait() error {
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) Close() error {
	s.closeOnce.Do(func() {
		_ = s.CloseSend()
		_ = s.conn.Close()
	})
	<-s.done
	return s.waitErr()
}

func (s *streamingSession) waitErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// setErr records the first failure. Normal websocket closes are not errors.
func (s *streamingSession) setErr(err error) {
	if err == nil {
		return
	}
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		return
	}

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *streamingSession) writeLoop() {
	for chunk := range s.audio {
		if err := s.conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			s.setErr(fmt.Errorf("failed to send audio: %w", err))
			// unblocks readLoop so the session can finish
			_ = s.conn.Close()
			return
		}
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, closeStreamMessage); err != nil {
		s.setErr(fmt.Errorf("failed to close stream: %w", err))
	}
}

func (s *streamingSession) readLoop() {
	for {
		_, payload, err := s.conn.ReadMessage()
		if err != nil {
			s.setErr(fmt.Errorf("failed to read provider event: %w", err))
			return
		}

		event, ok, err := decodeEvent(payload)
		if err != nil {
			s.setErr(err)
			return
		}
		if ok {
			s.emit(event)
		}
	}
}

// emit drops the event when the consumer is not keeping up.
func (s *streamingSession) emit(event domain.TranscriptEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Warn("dropping transcript event", zap.String("kind", string(event.Kind)))
	}
}

type alternative struct {
	Transcript string `json:"transcript"`
}

type channelResult struct {
	Alternatives []alternative `json:"alternatives"`
}

type listenResponse struct {
	Type        string        `json:"type"`
	Message     string        `json:"message"`
	Description string        `json:"description"`
	IsFinal     bool          `json:"is_final"`
	SpeechFinal bool          `json:"speech_final"`
	Channel     channelResult `json:"channel"`
	Results     struct {
		Channels []channelResult `json:"channels"`
	} `json:"results"`
}

// decodeEvent turns one server message into a transcript event. Messages
// without transcript text, and ones that do not parse, are skipped.
func decodeEvent(payload []byte) (domain.TranscriptEvent, bool, error) {
	var response listenResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return domain.TranscriptEvent{}, false, nil
	}

	if strings.EqualFold(response.Type, "Error") {
		message := strings.TrimSpace(firstNonEmpty(response.Description, response.Message))
		if message == "" {
			message = "unknown error"
		}
		return domain.TranscriptEvent{}, false, fmt.Errorf("deepgram: %s", message)
	}

	text := extractTranscript(response)
	if text == "" {
		return domain.TranscriptEvent{}, false, nil
	}

	event := domain.TranscriptEvent{
		Kind:          domain.TranscriptKindPartial,
		Text:          text,
		IsSpeechFinal: response.SpeechFinal,
	}
	if response.IsFinal || response.SpeechFinal {
		event.Kind = domain.TranscriptKindFinal
	}
	return event, true, nil
}

func extractTranscript(response listenResponse) string {
	if len(response.Channel.Alternatives) > 0 {
		if text := strings.TrimSpace(response.Channel.Alternatives[0].Transcript); text != "" {
			return text
		}
	}
	if len(response.Results.Channels) > 0 && len(response.Results.Channels[0].Alternatives) > 0 {
		return strings.TrimSpace(response.Results.Channels[0].Alternatives[0].Transcript)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
