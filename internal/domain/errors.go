package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBusy             = errors.New("a request is already in progress")
	ErrNotFound         = errors.New("pending message not found")
	ErrUnsupported      = errors.New("dictation is not supported on this platform")
	ErrAlreadyListening = errors.New("dictation is already listening")
	ErrInvalidFileType  = errors.New("invalid document file type")
	ErrUnknownIndex     = errors.New("unknown document index")
	ErrNoIndexSelected  = errors.New("no document index selected")
	ErrUnavailable      = errors.New("document indices are unavailable")
	ErrTransport        = errors.New("chat service unreachable")
	ErrProtocol         = errors.New("unexpected chat service response")
)

// UploadError reports a rejected document upload.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("failed to upload document: %s", e.Message)
}

// ErrorKind groups errors by how the session reacts to them.
type ErrorKind string

const (
	KindNone             ErrorKind = ""
	KindTransport        ErrorKind = "transport"
	KindProtocol         ErrorKind = "protocol"
	KindValidation       ErrorKind = "validation"
	KindUnsupported      ErrorKind = "unsupported"
	KindAlreadyListening ErrorKind = "already_listening"
	KindNotFound         ErrorKind = "not_found"
	KindBusy             ErrorKind = "busy"
	KindUpload           ErrorKind = "upload"
	KindUnavailable      ErrorKind = "unavailable"
	KindUnknown          ErrorKind = "unknown"
)

// KindOf classifies err against the sentinel taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var uploadErr *UploadError
	switch {
	case errors.Is(err, ErrTransport):
		return KindTransport
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	case errors.Is(err, ErrInvalidFileType),
		errors.Is(err, ErrUnknownIndex),
		errors.Is(err, ErrNoIndexSelected):
		return KindValidation
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrAlreadyListening):
		return KindAlreadyListening
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.As(err, &uploadErr):
		return KindUpload
	default:
		return KindUnknown
	}
}
