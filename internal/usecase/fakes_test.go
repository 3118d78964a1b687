package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"chatwidget/internal/domain"
	"chatwidget/internal/ports"
)

var testPrompts = []string{
	"What services does your company offer?",
	"How can I contact support?",
}

func newTestSession(t *testing.T, backend *fakeBackend, dictation ports.Dictation) (*SessionController, *fakeEventSink) {
	t.Helper()
	events := &fakeEventSink{}
	controller := NewSessionController(backend, dictation, events, Config{
		ExamplePrompts: testPrompts,
		RequestTimeout: time.Second,
		UploadTimeout:  time.Second,
	}, nil)
	t.Cleanup(func() {
		controller.Close()
		for _, change := range events.snapshotChanges() {
			assertSessionInvariants(t, change.snapshot)
		}
	})
	return controller, events
}

func assertSessionInvariants(t *testing.T, snapshot domain.Snapshot) {
	t.Helper()

	pending := 0
	for _, message := range snapshot.Transcript {
		if message.Status != domain.MessageStatusPending {
			continue
		}
		pending++
		if message.Sender != domain.SenderBot {
			t.Fatalf("pending message authored by %s", message.Sender)
		}
	}
	if pending > 1 {
		t.Fatalf("found %d pending messages", pending)
	}
	if snapshot.DocumentMode.Enabled {
		found := false
		for _, name := range snapshot.Indices {
			found = found || name == snapshot.DocumentMode.ActiveIndex
		}
		if snapshot.DocumentMode.ActiveIndex == "" || !found {
			t.Fatalf("document mode enabled with invalid index %q", snapshot.DocumentMode.ActiveIndex)
		}
	}
	if snapshot.PromptsVisible && len(snapshot.ExamplePrompts) == 0 {
		t.Fatalf("prompts visible but empty")
	}
}

func waitSignal(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for signal")
	}
}

type fakeBackend struct {
	mu sync.Mutex

	indices   []string
	listErr   error
	listCalls int

	reply       domain.ChatReply
	chatErr     error
	chatBlock   chan struct{}
	chatStarted chan struct{}
	requests    []domain.ChatRequest

	uploadErr     error
	uploadBlock   chan struct{}
	uploadStarted chan struct{}
	uploads       []domain.DocumentFile
}

func (f *fakeBackend) ListIndices(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.indices...), nil
}

func (f *fakeBackend) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatReply, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	block, started := f.chatBlock, f.chatStarted
	reply, err := f.reply, f.chatErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return domain.ChatReply{}, ctx.Err()
		}
	}
	return reply, err
}

func (f *fakeBackend) UploadDocument(ctx context.Context, file domain.DocumentFile) error {
	f.mu.Lock()
	f.uploads = append(f.uploads, file)
	block, started, err := f.uploadBlock, f.uploadStarted, f.uploadErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (f *fakeBackend) snapshotRequests() []domain.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.ChatRequest(nil), f.requests...)
}

func (f *fakeBackend) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeBackend) setIndices(indices []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.indices = indices
}

// fakeDictation keeps the last subscribed callbacks after release so tests
// can simulate events racing a teardown.
type fakeDictation struct {
	mu         sync.Mutex
	callbacks  ports.DictationCallbacks
	subscribed bool
	startErr   error
	starts     int
	stops      int
}

func (f *fakeDictation) Subscribe(callbacks ports.DictationCallbacks) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks = callbacks
	f.subscribed = true
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subscribed = false
	}
}

func (f *fakeDictation) Start(_ context.Context) error {
	f.mu.Lock()
	f.starts++
	err, callbacks := f.startErr, f.callbacks
	f.mu.Unlock()

	if err == nil && callbacks.OnStart != nil {
		callbacks.OnStart()
	}
	return err
}

func (f *fakeDictation) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeDictation) emitResult(text string) {
	callbacks := f.current()
	callbacks.OnResult(text)
	callbacks.OnEnd()
}

func (f *fakeDictation) emitError(code string) {
	callbacks := f.current()
	callbacks.OnError(code)
	callbacks.OnEnd()
}

func (f *fakeDictation) current() ports.DictationCallbacks {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.callbacks
}

func (f *fakeDictation) isSubscribed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribed
}

type fakeEventSink struct {
	mu      sync.Mutex
	changes []changeEvent
	notices []noticeEvent
}

type changeEvent struct {
	snapshot domain.Snapshot
	reason   domain.ChangeReason
}

type noticeEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) SessionChanged(snapshot domain.Snapshot, reason domain.ChangeReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, changeEvent{snapshot: snapshot, reason: reason})
}

func (f *fakeEventSink) SessionNotice(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, noticeEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotChanges() []changeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]changeEvent(nil), f.changes...)
}

func (f *fakeEventSink) reasons() []domain.ChangeReason {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ChangeReason, len(f.changes))
	for i, change := range f.changes {
		out[i] = change.reason
	}
	return out
}

func (f *fakeEventSink) snapshotNotices() []noticeEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]noticeEvent(nil), f.notices...)
}

func (f *fakeEventSink) hasReason(reason domain.ChangeReason) bool {
	for _, got := range f.reasons() {
		if got == reason {
			return true
		}
	}
	return false
}

func (f *fakeEventSink) hasNotice(code domain.ErrorCode) bool {
	for _, notice := range f.snapshotNotices() {
		if notice.code == code {
			return true
		}
	}
	return false
}
