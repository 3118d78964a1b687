package dictation

import (
	"sync"

	"chatwidget/internal/ports"
)

type captureState int

const (
	captureListening captureState = iota
	captureStopping
)

type activeCapture struct {
	cancel func()
	audio  ports.AudioSession
	stream ports.StreamingSession

	mu       sync.Mutex
	state    captureState
	audioErr error

	aggregator *transcriptAggregator
	eventsDone chan struct{}
	audioDone  chan struct{}
}

// beginStop flips the capture to stopping and reports whether the caller won.
func (c *activeCapture) beginStop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == captureStopping {
		return false
	}
	c.state = captureStopping
	return true
}

func (c *activeCapture) setAudioErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.audioErr == nil {
		c.audioErr = err
	}
}

func (c *activeCapture) getAudioErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioErr
}
