// Package backend talks to the remote chat and document-indexing service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"chatwidget/internal/domain"
	"chatwidget/internal/logging"
)

const (
	listIndicesPath    = "/list-indices"
	chatPath           = "/chat"
	uploadDocumentPath = "/upload-document"

	maxResponseBytes = 4 << 20
)

// Config controls the HTTP client.
type Config struct {
	BaseURL     string
	ListRetries int
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// Client implements ports.ChatBackend over HTTP with JSON bodies.
type Client struct {
	baseURL     string
	listRetries uint
	http        *http.Client
	logger      *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.ListRetries <= 0 {
		cfg.ListRetries = 1
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		listRetries: uint(cfg.ListRetries),
		http:        cfg.HTTPClient,
		logger:      logging.OrNop(cfg.Logger).Named("backend"),
	}
}

type listIndicesResponse struct {
	Indices json.RawMessage `json:"indices"`
}

// ListIndices fetches the document indices known to the service. Transport
// failures are retried with exponential backoff; a malformed body yields an
// empty catalog.
func (c *Client) ListIndices(ctx context.Context) ([]string, error) {
	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+listIndicesPath, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("server error (%d)", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, backoff.Permanent(fmt.Errorf("server error (%d)", resp.StatusCode))
		}
		return payload, nil
	},
		backoff.WithBackOff(newListBackOff()),
		backoff.WithMaxTries(c.listRetries),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}

	var decoded listIndicesResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		c.logger.Warn("malformed index listing", zap.Error(err))
		return []string{}, nil
	}
	var indices []string
	if len(decoded.Indices) > 0 {
		if err := json.Unmarshal(decoded.Indices, &indices); err != nil {
			c.logger.Warn("unexpected indices field", zap.Error(err))
			return []string{}, nil
		}
	}

	out := make([]string, 0, len(indices))
	for _, name := range indices {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}

func newListBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return b
}

type chatRequest struct {
	Messages    []domain.ChatTurn `json:"messages"`
	UseDocument bool              `json:"use_document"`
	IndexName   string            `json:"index_name,omitempty"`
}

type chatResponse struct {
	Response    json.RawMessage `json:"response"`
	Suggestions json.RawMessage `json:"suggestions"`
}

// Chat posts one chat turn and normalizes the answer.
func (c *Client) Chat(ctx context.Context, in domain.ChatRequest) (domain.ChatReply, error) {
	payload, err := json.Marshal(chatRequest{
		Messages:    in.Messages,
		UseDocument: in.UseDocument,
		IndexName:   in.IndexName,
	})
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: encode request: %v", domain.ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+chatPath, bytes.NewReader(payload))
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: read response: %v", domain.ErrTransport, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.ChatReply{}, fmt.Errorf("%w: server error (%d): %s", domain.ErrProtocol, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return domain.ChatReply{}, fmt.Errorf("%w: decode response: %v", domain.ErrProtocol, err)
	}

	text, err := normalizeResponseText(decoded.Response)
	if err != nil {
		return domain.ChatReply{}, err
	}
	return domain.ChatReply{
		Text:        text,
		Suggestions: decodeSuggestions(decoded.Suggestions),
	}, nil
}

// normalizeResponseText decodes the response union: a string, an object with
// a string content field, or anything else rendered as compact JSON.
func normalizeResponseText(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return "", fmt.Errorf("%w: response field missing", domain.ErrProtocol)
	}

	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text, nil
	}

	var object struct {
		Content json.RawMessage `json:"content"`
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &object); err == nil && len(object.Content) > 0 {
			var content string
			if err := json.Unmarshal(object.Content, &content); err == nil {
				return content, nil
			}
		}
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, trimmed); err != nil {
		return string(trimmed), nil
	}
	return compact.String(), nil
}

func decodeSuggestions(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil
	}
	suggestions := make([]string, 0, len(items))
	for _, item := range items {
		var text string
		if err := json.Unmarshal(item, &text); err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			suggestions = append(suggestions, text)
		}
	}
	if len(suggestions) == 0 {
		return nil
	}
	return suggestions
}

type uploadErrorResponse struct {
	Error string `json:"error"`
}

// UploadDocument submits one file as a multipart "file" field.
func (c *Client) UploadDocument(ctx context.Context, file domain.DocumentFile) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, quoteEscaper.Replace(file.Name)))
	header.Set("Content-Type", firstNonEmpty(file.MediaType, "application/octet-stream"))
	part, err := writer.CreatePart(header)
	if err != nil {
		return &domain.UploadError{Message: "unknown"}
	}
	if _, err := part.Write(file.Data); err != nil {
		return &domain.UploadError{Message: "unknown"}
	}
	if err := writer.Close(); err != nil {
		return &domain.UploadError{Message: "unknown"}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadDocumentPath, &body)
	if err != nil {
		return &domain.UploadError{Message: "unknown"}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("document upload failed", zap.String("file", file.Name), zap.Error(err))
		return fmt.Errorf("%w: %v", &domain.UploadError{Message: "unknown"}, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	message := "unknown"
	var decoded uploadErrorResponse
	if err := json.Unmarshal(payload, &decoded); err == nil && strings.TrimSpace(decoded.Error) != "" {
		message = strings.TrimSpace(decoded.Error)
	}
	c.logger.Warn("document upload rejected",
		zap.String("file", file.Name),
		zap.Int("status", resp.StatusCode),
		zap.String("error", message),
	)
	return &domain.UploadError{Message: message}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
