package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"chatwidget/internal/domain"
	"chatwidget/internal/ports"
)

const (
	defaultUploadTimeout = 2 * time.Minute
	uploadSuccessNotice  = "Document uploaded and indexed successfully."
)

var defaultAcceptedMediaTypes = []string{"application/pdf"}

// DocumentController tracks the index catalog, uploads and the
// document-scoped answer mode.
type DocumentController struct {
	backend       ports.ChatBackend
	accepted      []string
	uploadTimeout time.Duration
	hooks         sessionHooks
	logger        *zap.Logger

	mu      sync.Mutex
	catalog indexCatalog
	mode    domain.DocumentMode
	upload  domain.UploadState
}

type documentState struct {
	mode    domain.DocumentMode
	indices []string
	upload  domain.UploadState
}

func newDocumentController(
	backend ports.ChatBackend,
	accepted []string,
	uploadTimeout time.Duration,
	hooks sessionHooks,
	logger *zap.Logger,
) *DocumentController {
	if len(accepted) == 0 {
		accepted = defaultAcceptedMediaTypes
	}
	if uploadTimeout <= 0 {
		uploadTimeout = defaultUploadTimeout
	}
	return &DocumentController{
		backend:       backend,
		accepted:      append([]string(nil), accepted...),
		uploadTimeout: uploadTimeout,
		hooks:         hooks,
		logger:        logger.Named("documents"),
		upload:        domain.UploadStateIdle,
	}
}

// ListIndices refreshes the catalog. On failure the previous catalog is kept
// and ErrUnavailable is returned alongside it.
func (d *DocumentController) ListIndices(ctx context.Context) ([]string, error) {
	names, err := d.backend.ListIndices(ctx)
	if err != nil {
		d.logger.Warn("failed to list document indices", zap.Error(err))
		d.hooks.raise(domain.ErrorCodeIndices, err.Error())
		return d.Indices(), fmt.Errorf("%w: %v", domain.ErrUnavailable, err)
	}

	d.mu.Lock()
	d.catalog.Refresh(names)
	if d.mode.ActiveIndex != "" && !d.catalog.Contains(d.mode.ActiveIndex) {
		d.logger.Info("active index no longer listed", zap.String("index", d.mode.ActiveIndex))
		d.mode = domain.DocumentMode{}
	}
	out := d.catalog.Names()
	d.mu.Unlock()

	d.hooks.publish(domain.ReasonIndicesRefreshed)
	return out, nil
}

// Upload validates and submits file, then proposes an index name derived
// from the filename as the active index. Document mode is not enabled.
func (d *DocumentController) Upload(ctx context.Context, file domain.DocumentFile) (string, error) {
	mediaType, ok := d.accepts(file)
	if !ok {
		return "", domain.ErrInvalidFileType
	}
	file.MediaType = mediaType

	d.mu.Lock()
	if d.upload == domain.UploadStateUploading {
		d.mu.Unlock()
		return "", domain.ErrBusy
	}
	d.upload = domain.UploadStateUploading
	d.mu.Unlock()
	d.hooks.publish(domain.ReasonUploadStarted)

	uploadCtx, cancel := context.WithTimeout(ctx, d.uploadTimeout)
	err := d.backend.UploadDocument(uploadCtx, file)
	cancel()
	if err != nil {
		var uploadErr *domain.UploadError
		if !errors.As(err, &uploadErr) {
			uploadErr = &domain.UploadError{Message: "unknown"}
			err = fmt.Errorf("%w: %v", uploadErr, err)
		}
		d.logger.Warn("document upload failed", zap.String("file", file.Name), zap.Error(err))
		d.setUploadState(domain.UploadStateIdle)
		d.hooks.publish(domain.ReasonUploadFailed)
		d.hooks.raise(domain.ErrorCodeUpload, uploadErr.Error())
		return "", err
	}

	if _, err := d.ListIndices(ctx); err != nil {
		d.logger.Warn("catalog refresh after upload failed", zap.Error(err))
	}

	proposed := deriveIndexName(file.Name)
	d.mu.Lock()
	d.upload = domain.UploadStateIdle
	if proposed != "" {
		if !d.catalog.Contains(proposed) {
			d.catalog.Refresh(append(d.catalog.Names(), proposed))
		}
		d.mode.ActiveIndex = proposed
	}
	d.mu.Unlock()

	d.logger.Info("document indexed", zap.String("file", file.Name), zap.String("index", proposed))
	d.hooks.publish(domain.ReasonUploadCompleted)
	d.hooks.raise(domain.NoticeDocumentIndexed, uploadSuccessNotice)
	return proposed, nil
}

// SetActiveIndex selects name from the catalog. An empty name clears the
// selection and disables document mode.
func (d *DocumentController) SetActiveIndex(name string) error {
	name = strings.TrimSpace(name)

	d.mu.Lock()
	switch {
	case name == "":
		d.mode = domain.DocumentMode{}
	case !d.catalog.Contains(name):
		d.mu.Unlock()
		return domain.ErrUnknownIndex
	default:
		d.mode.ActiveIndex = name
	}
	d.mu.Unlock()

	d.hooks.publish(domain.ReasonIndexSelected)
	return nil
}

func (d *DocumentController) SetDocumentModeEnabled(enabled bool) error {
	d.mu.Lock()
	if enabled {
		if d.mode.ActiveIndex == "" {
			d.mu.Unlock()
			return domain.ErrNoIndexSelected
		}
		if !d.catalog.Contains(d.mode.ActiveIndex) {
			d.mu.Unlock()
			return domain.ErrUnknownIndex
		}
	}
	if d.mode.Enabled == enabled {
		d.mu.Unlock()
		return nil
	}
	d.mode.Enabled = enabled
	d.mu.Unlock()

	d.hooks.publish(domain.ReasonDocumentModeChanged)
	return nil
}

// Reset disables document mode and clears the selection. The catalog is kept.
func (d *DocumentController) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mode = domain.DocumentMode{}
}

func (d *DocumentController) Mode() domain.DocumentMode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mode
}

func (d *DocumentController) Indices() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.catalog.Names()
}

func (d *DocumentController) state() documentState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return documentState{
		mode:    d.mode,
		indices: d.catalog.Names(),
		upload:  d.upload,
	}
}

func (d *DocumentController) setUploadState(state domain.UploadState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.upload = state
}

// accepts checks the declared media type, sniffing the content when none
// was declared. The resolved type is returned for the upload.
func (d *DocumentController) accepts(file domain.DocumentFile) (string, bool) {
	if strings.TrimSpace(file.Name) == "" && len(file.Data) == 0 {
		return "", false
	}
	mediaType := strings.TrimSpace(file.MediaType)
	if mediaType == "" {
		mediaType = mimetype.Detect(file.Data).String()
	}
	return mediaType, mimetype.EqualsAny(mediaType, d.accepted...)
}

// deriveIndexName maps "My Report.pdf" to "my_report".
func deriveIndexName(fileName string) string {
	base := filepath.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Join(strings.Fields(strings.ToLower(base)), "_")
}
