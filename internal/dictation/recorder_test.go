package dictation

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"

	"chatwidget/internal/domain"
	"chatwidget/internal/ports"
)

func TestRecorderStartStopDeliversTranscript(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindPartial, Text: "what are"}
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "What are your business hours?"}
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}

	recorder := NewRecorder(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		Config{ChunkSize: 512},
	)
	calls := newCallbackLog()
	defer recorder.Subscribe(calls.callbacks())()

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := recorder.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	calls.waitEnd(t)

	want := []string{"start", "result:What are your business hours?", "end"}
	if got := calls.snapshot(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected callbacks: %v", got)
	}
	if audioSession.stopCalls == 0 {
		t.Fatalf("expected audio to be stopped")
	}
}

func TestRecorderStopWithoutActiveCapture(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(&fakeAudioCapture{}, &fakeProvider{}, Config{})
	if err := recorder.Stop(); !errors.Is(err, ErrNoActiveCapture) {
		t.Fatalf("expected ErrNoActiveCapture, got %v", err)
	}
}

func TestRecorderRejectsSecondStart(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{}}},
		&fakeProvider{sessions: []ports.StreamingSession{newFakeStreamingSession()}},
		Config{},
	)
	defer recorder.Close()

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := recorder.Start(context.Background()); !errors.Is(err, domain.ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %v", err)
	}
}

func TestRecorderStartFailureEmitsNothing(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(&fakeAudioCapture{}, &fakeProvider{err: errors.New("no network")}, Config{})
	calls := newCallbackLog()
	defer recorder.Subscribe(calls.callbacks())()

	if err := recorder.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if got := calls.snapshot(); len(got) != 0 {
		t.Fatalf("expected no callbacks, got %v", got)
	}
	if err := recorder.Stop(); !errors.Is(err, ErrNoActiveCapture) {
		t.Fatalf("expected no active capture after failed start, got %v", err)
	}
}

func TestRecorderAudioFailureClosesStream(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	recorder := NewRecorder(
		&fakeAudioCapture{err: errors.New("no microphone")},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		Config{},
	)

	if err := recorder.Start(context.Background()); err == nil {
		t.Fatalf("expected start error")
	}
	if streamSession.closeCalls == 0 {
		t.Fatalf("expected stream to be closed")
	}
}

func TestRecorderTerminalErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		waitErr error
		audio   ports.AudioSession
		want    string
	}{
		"no speech":      {audio: &fakeAudioSession{}, want: domain.DictationErrorNoSpeech},
		"stream failure": {audio: &fakeAudioSession{}, waitErr: errors.New("stream failed"), want: domain.DictationErrorTranscribing},
		"audio failure":  {audio: &errorAudioSession{err: errors.New("device gone")}, want: domain.DictationErrorAudio},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			streamSession := newFakeStreamingSession()
			streamSession.waitErr = tc.waitErr
			recorder := NewRecorder(
				&fakeAudioCapture{sessions: []ports.AudioSession{tc.audio}},
				&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
				Config{},
			)
			calls := newCallbackLog()
			defer recorder.Subscribe(calls.callbacks())()

			if err := recorder.Start(context.Background()); err != nil {
				t.Fatalf("start failed: %v", err)
			}
			_ = recorder.Stop()
			calls.waitEnd(t)

			want := []string{"start", "error:" + tc.want, "end"}
			if got := calls.snapshot(); !reflect.DeepEqual(got, want) {
				t.Fatalf("unexpected callbacks: %v", got)
			}
		})
	}
}

func TestRecorderCloseDiscardsCapture(t *testing.T) {
	t.Parallel()

	streamSession := newFakeStreamingSession()
	streamSession.events <- domain.TranscriptEvent{Kind: domain.TranscriptKindFinal, Text: "discard me"}
	audioSession := &fakeAudioSession{chunks: [][]byte{[]byte("abc")}}
	recorder := NewRecorder(
		&fakeAudioCapture{sessions: []ports.AudioSession{audioSession}},
		&fakeProvider{sessions: []ports.StreamingSession{streamSession}},
		Config{},
	)
	calls := newCallbackLog()
	recorder.Subscribe(calls.callbacks())

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	if audioSession.stopCalls == 0 || streamSession.closeCalls == 0 {
		t.Fatalf("expected audio and stream to be torn down")
	}
	if got := calls.snapshot(); !reflect.DeepEqual(got, []string{"start"}) {
		t.Fatalf("expected no terminal callbacks after close, got %v", got)
	}
	if err := recorder.Stop(); !errors.Is(err, ErrNoActiveCapture) {
		t.Fatalf("expected capture released, got %v", err)
	}
}

func TestRecorderReleasedSubscriptionIsSilent(t *testing.T) {
	t.Parallel()

	recorder := NewRecorder(
		&fakeAudioCapture{sessions: []ports.AudioSession{&fakeAudioSession{}}},
		&fakeProvider{sessions: []ports.StreamingSession{newFakeStreamingSession()}},
		Config{},
	)
	released := newCallbackLog()
	release := recorder.Subscribe(released.callbacks())
	release()
	release()

	active := newCallbackLog()
	defer recorder.Subscribe(active.callbacks())()

	if err := recorder.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	_ = recorder.Stop()
	active.waitEnd(t)

	if got := released.snapshot(); len(got) != 0 {
		t.Fatalf("released subscriber received %v", got)
	}
}

type callbackLog struct {
	mu    sync.Mutex
	calls []string
	ended chan struct{}
}

func newCallbackLog() *callbackLog {
	return &callbackLog{ended: make(chan struct{}, 4)}
}

func (c *callbackLog) add(call string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
}

func (c *callbackLog) callbacks() ports.DictationCallbacks {
	return ports.DictationCallbacks{
		OnStart:  func() { c.add("start") },
		OnResult: func(text string) { c.add("result:" + text) },
		OnError:  func(code string) { c.add("error:" + code) },
		OnEnd: func() {
			c.add("end")
			c.ended <- struct{}{}
		},
	}
}

func (c *callbackLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *callbackLog) waitEnd(t *testing.T) {
	t.Helper()
	select {
	case <-c.ended:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for dictation to end")
	}
}

type fakeAudioCapture struct {
	sessions []ports.AudioSession
	err      error
	calls    int
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	stopCalls int
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.index >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.index])
	f.index++
	return n, nil
}

func (f *fakeAudioSession) Close() error { return nil }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopCalls++
	return nil
}

type fakeProvider struct {
	sessions []ports.StreamingSession
	err      error
	calls    int
}

func (f *fakeProvider) StartStreaming(_ context.Context, _ ports.StreamingConfig) (ports.StreamingSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.calls >= len(f.sessions) {
		return nil, errors.New("no stream session configured")
	}
	session := f.sessions[f.calls]
	f.calls++
	return session, nil
}

type fakeStreamingSession struct {
	mu         sync.Mutex
	events     chan domain.TranscriptEvent
	waitErr    error
	closeCalls int
	closed     bool
}

func newFakeStreamingSession() *fakeStreamingSession {
	return &fakeStreamingSession{events: make(chan domain.TranscriptEvent, 16)}
}

func (f *fakeStreamingSession) SendAudio(_ []byte) error { return nil }

func (f *fakeStreamingSession) CloseSend() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeEvents()
	return nil
}

func (f *fakeStreamingSession) Events() <-chan domain.TranscriptEvent { return f.events }

func (f *fakeStreamingSession) Wait() error {
	time.Sleep(5 * time.Millisecond)
	return f.waitErr
}

func (f *fakeStreamingSession) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	f.closeEvents()
	return nil
}

func (f *fakeStreamingSession) closeEvents() {
	if !f.closed {
		close(f.events)
		f.closed = true
	}
}
