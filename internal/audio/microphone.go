// Package audio captures raw PCM microphone audio through an external
// recorder process.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"chatwidget/internal/logging"
	"chatwidget/internal/ports"
)

const (
	defaultStartupProbe = 250 * time.Millisecond
	defaultStopTimeout  = 1200 * time.Millisecond
)

// MicrophoneOptions configures the recorder process.
type MicrophoneOptions struct {
	Command      string
	StartupProbe time.Duration
	StopTimeout  time.Duration
	Logger       *zap.Logger
}

// Microphone streams signed 16-bit little-endian PCM from an ffmpeg-compatible
// recorder on stdout.
type Microphone struct {
	command      string
	startupProbe time.Duration
	stopTimeout  time.Duration
	logger       *zap.Logger
}

func NewMicrophone(opts MicrophoneOptions) *Microphone {
	if opts.Command == "" {
		opts.Command = "ffmpeg"
	}
	if opts.StartupProbe <= 0 {
		opts.StartupProbe = defaultStartupProbe
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}
	return &Microphone{
		command:      opts.Command,
		startupProbe: opts.StartupProbe,
		stopTimeout:  opts.StopTimeout,
		logger:       logging.OrNop(opts.Logger).Named("microphone"),
	}
}

// Available reports whether the recorder binary can be resolved.
func (m *Microphone) Available() bool {
	_, err := exec.LookPath(m.command)
	return err == nil
}

func (m *Microphone) Start(ctx context.Context, cfg ports.AudioConfig) (ports.AudioSession, error) {
	cmd := exec.CommandContext(ctx, m.command, recorderArgs(cfg)...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	exited := make(chan error, 1)
	go func() {
		exited <- cmd.Wait()
		close(exited)
	}()

	// A recorder that cannot open the device usually dies right away.
	select {
	case err := <-exited:
		detail := strings.TrimSpace(stderr.String())
		if err != nil {
			return nil, fmt.Errorf("recorder exited before capture started: %w: %s", err, detail)
		}
		return nil, errors.New("recorder exited before capture started")
	case <-time.After(m.startupProbe):
	}

	m.logger.Debug("microphone capture started",
		zap.String("command", m.command),
		zap.Int("sample_rate", cfg.SampleRate),
		zap.Int("channels", cfg.Channels),
	)
	return &captureSession{
		stdout:      stdout,
		stderr:      &stderr,
		process:     cmd.Process,
		exited:      exited,
		stopTimeout: m.stopTimeout,
	}, nil
}

func recorderArgs(cfg ports.AudioConfig) []string {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Channels <= 0 {
		cfg.Channels = 1
	}
	if cfg.InputFormat == "" {
		cfg.InputFormat = "pulse"
	}
	if cfg.InputDevice == "" {
		cfg.InputDevice = "default"
	}
	return []string{
		"-nostdin",
		"-hide_banner",
		"-loglevel", "warning",
		"-f", cfg.InputFormat,
		"-i", cfg.InputDevice,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-f", "s16le",
		"-",
	}
}

type captureSession struct {
	stdout      io.ReadCloser
	stderr      *bytes.Buffer
	process     *os.Process
	exited      <-chan error
	stopTimeout time.Duration

	stopped  atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

// Read reports io.EOF once the session has been stopped, whatever the pipe
// returns.
func (s *captureSession) Read(p []byte) (int, error) {
	n, err := s.stdout.Read(p)
	if err != nil && s.stopped.Load() {
		return n, io.EOF
	}
	return n, err
}

func (s *captureSession) Close() error {
	return s.Stop()
}

// Stop interrupts the recorder and kills it if it does not exit in time.
func (s *captureSession) Stop() error {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		if s.process != nil {
			_ = s.process.Signal(os.Interrupt)
		}

		var waitErr error
		select {
		case waitErr = <-s.exited:
		case <-time.After(s.stopTimeout):
			if s.process != nil {
				_ = s.process.Kill()
			}
			waitErr = <-s.exited
		}
		s.stopErr = ignoreExitStatus(waitErr)

		if closeErr := s.stdout.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) && s.stopErr == nil {
			s.stopErr = closeErr
		}
		if s.stopErr != nil && s.stderr.Len() > 0 {
			s.stopErr = fmt.Errorf("%w: %s", s.stopErr, strings.TrimSpace(s.stderr.String()))
		}
	})
	return s.stopErr
}

// ignoreExitStatus drops the non-zero exit status an interrupted recorder
// reports.
func ignoreExitStatus(err error) error {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil
	}
	return err
}
