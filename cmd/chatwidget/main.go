// chatwidget is the terminal front end of the chat session: ask questions,
// list document indices and upload documents without the desktop shell.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chatwidget/internal/bootstrap"
	"chatwidget/internal/config"
	"chatwidget/internal/domain"
	"chatwidget/internal/logging"
)

var version = "dev"

type rootOptions struct {
	backendURL string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "chatwidget",
		Short: "Chat with the document-aware assistant from the terminal",
		Long: `chatwidget drives the same session controller as the desktop widget.

  chatwidget ask "What are your business hours?"     Ask one question
  chatwidget ask --document my_report "Summarize"   Ask about an indexed document
  chatwidget indices                                List indexed documents
  chatwidget upload ./My Report.pdf                 Upload and index a PDF`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.backendURL, "backend", "", "chat service URL (overrides CHATWIDGET_BACKEND_URL)")

	root.AddCommand(newAskCmd(opts))
	root.AddCommand(newIndicesCmd(opts))
	root.AddCommand(newUploadCmd(opts))
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// build wires a session whose events go to the structured log.
func (o *rootOptions) build() (bootstrap.Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return bootstrap.Services{}, err
	}
	if url := strings.TrimRight(strings.TrimSpace(o.backendURL), "/"); url != "" {
		cfg.Backend.BaseURL = url
	}

	sink := &logSink{}
	services, err := bootstrap.BuildWithConfig(cfg, sink)
	if err != nil {
		return bootstrap.Services{}, err
	}
	sink.logger = services.Logger.Named("session")
	return services, nil
}

// logSink records session events. The terminal output is written by the
// commands themselves from the final snapshot.
type logSink struct {
	logger *zap.Logger
}

func (s *logSink) SessionChanged(snapshot domain.Snapshot, reason domain.ChangeReason) {
	logging.OrNop(s.logger).Debug("session changed",
		zap.String("reason", string(reason)),
		zap.Int("messages", len(snapshot.Transcript)),
		zap.Bool("awaiting_response", snapshot.AwaitingResponse),
	)
}

func (s *logSink) SessionNotice(code domain.ErrorCode, detail string) {
	logger := logging.OrNop(s.logger)
	if code == domain.NoticeDocumentIndexed {
		logger.Info(detail)
		return
	}
	logger.Warn("session notice", zap.String("code", string(code)), zap.String("detail", detail))
}
