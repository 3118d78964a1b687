package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatwidget/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL + "/", ListRetries: 3})
}

func TestListIndices(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/list-indices", r.URL.Path)
		_, _ = io.WriteString(w, `{"indices":["handbook"," my_report ",""]}`)
	})

	indices, err := client.ListIndices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"handbook", "my_report"}, indices)
}

func TestListIndicesMalformedBodyIsEmpty(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `<html>`,
		"missing field": `{}`,
		"wrong type":    `{"indices":"handbook"}`,
	} {
		body := body
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, body)
			})

			indices, err := client.ListIndices(context.Background())
			require.NoError(t, err)
			assert.Empty(t, indices)
		})
	}
}

func TestListIndicesRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"indices":["a"]}`)
	})

	indices, err := client.ListIndices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, indices)
	assert.Equal(t, int32(2), calls.Load())
}

func TestListIndicesTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url, ListRetries: 1})
	_, err := client.ListIndices(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestListIndicesClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.ListIndices(context.Background())
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatSendsSemanticRequest(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = io.WriteString(w, `{"response":"We offer X.","suggestions":["More?","Pricing?"]}`)
	})

	reply, err := client.Chat(context.Background(), domain.ChatRequest{
		Messages:    []domain.ChatTurn{{Sender: domain.SenderUser, Text: "What services does your company offer?"}},
		UseDocument: true,
		IndexName:   "my_report",
	})
	require.NoError(t, err)
	assert.Equal(t, "We offer X.", reply.Text)
	assert.Equal(t, []string{"More?", "Pricing?"}, reply.Suggestions)

	assert.Equal(t, true, received["use_document"])
	assert.Equal(t, "my_report", received["index_name"])
	assert.Equal(t, []any{map[string]any{"sender": "user", "text": "What services does your company offer?"}}, received["messages"])
}

func TestChatOmitsIndexWhenDocumentModeDisabled(t *testing.T) {
	var received map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = io.WriteString(w, `{"response":"ok"}`)
	})

	reply, err := client.Chat(context.Background(), domain.ChatRequest{
		Messages: []domain.ChatTurn{{Sender: domain.SenderUser, Text: "hi"}},
	})
	require.NoError(t, err)
	assert.Nil(t, reply.Suggestions)
	assert.Equal(t, false, received["use_document"])
	_, hasIndex := received["index_name"]
	assert.False(t, hasIndex)
}

func TestChatNormalizesStructuredResponse(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"content field":      {body: `{"response":{"content":"from content","role":"assistant"}}`, want: "from content"},
		"object no content":  {body: `{"response":{"answer": 42}}`, want: `{"answer":42}`},
		"non-string content": {body: `{"response":{"content":{"text":"x"}}}`, want: `{"content":{"text":"x"}}`},
		"number":             {body: `{"response":7}`, want: "7"},
		"array":              {body: `{"response":["a", "b"]}`, want: `["a","b"]`},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tc.body)
			})

			reply, err := client.Chat(context.Background(), domain.ChatRequest{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, reply.Text)
		})
	}
}

func TestChatSuggestionsFilterNonStrings(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"response":"ok","suggestions":["One", 2, "", " Two "]}`)
	})

	reply, err := client.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, []string{"One", "Two"}, reply.Suggestions)
}

func TestChatProtocolFailures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
	}{
		"server error":     {status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		"malformed body":   {status: http.StatusOK, body: `not json`},
		"missing response": {status: http.StatusOK, body: `{"suggestions":["x"]}`},
		"null response":    {status: http.StatusOK, body: `{"response":null}`},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})

			_, err := client.Chat(context.Background(), domain.ChatRequest{})
			assert.ErrorIs(t, err, domain.ErrProtocol)
		})
	}
}

func TestChatTimeoutIsTransport(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, domain.ChatRequest{})
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestUploadDocumentSendsMultipartFile(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/upload-document", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		data, err := io.ReadAll(file)
		require.NoError(t, err)
		assert.Equal(t, "My Report.pdf", header.Filename)
		assert.Equal(t, "application/pdf", header.Header.Get("Content-Type"))
		assert.Equal(t, "%PDF-1.7", string(data))
		w.WriteHeader(http.StatusOK)
	})

	err := client.UploadDocument(context.Background(), domain.DocumentFile{
		Name:      "My Report.pdf",
		MediaType: "application/pdf",
		Data:      []byte("%PDF-1.7"),
	})
	assert.NoError(t, err)
}

func TestUploadDocumentFailureMessages(t *testing.T) {
	cases := map[string]struct {
		body string
		want string
	}{
		"server message": {body: `{"error":"index quota exceeded"}`, want: "index quota exceeded"},
		"no message":     {body: `oops`, want: "unknown"},
	}

	for name, tc := range cases {
		tc := tc
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, tc.body)
			})

			err := client.UploadDocument(context.Background(), domain.DocumentFile{Name: "a.pdf"})
			var uploadErr *domain.UploadError
			require.True(t, errors.As(err, &uploadErr))
			assert.Equal(t, tc.want, uploadErr.Message)
		})
	}
}

func TestUploadDocumentTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := NewClient(Config{BaseURL: url})
	err := client.UploadDocument(context.Background(), domain.DocumentFile{Name: "a.pdf"})

	var uploadErr *domain.UploadError
	require.True(t, errors.As(err, &uploadErr))
	assert.Equal(t, "unknown", uploadErr.Message)
}
