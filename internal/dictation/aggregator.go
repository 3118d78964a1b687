package dictation

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"chatwidget/internal/domain"
	"chatwidget/internal/ports"
)

// transcriptAggregator joins final segments, falling back to the last
// partial when the provider never finalized it.
type transcriptAggregator struct {
	mu         sync.Mutex
	finals     []string
	lastSpoken string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(event domain.TranscriptEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text := strings.TrimSpace(event.Text)
	if text == "" {
		return
	}
	a.lastSpoken = text
	if event.Kind == domain.TranscriptKindFinal {
		a.finals = append(a.finals, text)
	}
}

func (a *transcriptAggregator) Text() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	joined := strings.TrimSpace(strings.Join(a.finals, " "))
	switch {
	case joined == "":
		return a.lastSpoken
	case a.lastSpoken == "", strings.HasSuffix(joined, a.lastSpoken):
		return joined
	case len(a.lastSpoken) > len(joined):
		return strings.TrimSpace(joined + " " + a.lastSpoken)
	default:
		return joined
	}
}

func consumeTranscriptionEvents(
	session ports.StreamingSession,
	aggregator *transcriptAggregator,
	logger *zap.Logger,
	done chan struct{},
) {
	defer close(done)

	for event := range session.Events() {
		if strings.TrimSpace(event.Text) == "" {
			continue
		}
		aggregator.Add(event)
		if event.Kind == domain.TranscriptKindPartial {
			logger.Debug("partial transcript", zap.String("text", event.Text))
		}
	}
}
