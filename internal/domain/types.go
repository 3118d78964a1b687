package domain

// Sender identifies who authored a transcript message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// MessageStatus tracks the placeholder lifecycle of a message.
type MessageStatus string

const (
	MessageStatusFinal   MessageStatus = "final"
	MessageStatusPending MessageStatus = "pending"
	MessageStatusFailed  MessageStatus = "failed"
)

// Message is one transcript entry.
type Message struct {
	ID     string        `json:"id"`
	Sender Sender        `json:"sender"`
	Text   string        `json:"text"`
	Status MessageStatus `json:"status"`
}

// VoiceState models the dictation lifecycle.
type VoiceState string

const (
	VoiceStateIdle      VoiceState = "idle"
	VoiceStateListening VoiceState = "listening"
)

// UploadState reports whether a document upload is in flight.
type UploadState string

const (
	UploadStateIdle      UploadState = "idle"
	UploadStateUploading UploadState = "uploading"
)

// DocumentMode scopes answers to one indexed document.
type DocumentMode struct {
	Enabled     bool   `json:"enabled"`
	ActiveIndex string `json:"activeIndex"`
}

// Snapshot is the full session state published to render surfaces.
type Snapshot struct {
	Transcript       []Message    `json:"transcript"`
	Input            string       `json:"input"`
	ExamplePrompts   []string     `json:"examplePrompts"`
	PromptsVisible   bool         `json:"promptsVisible"`
	DocumentMode     DocumentMode `json:"documentMode"`
	Indices          []string     `json:"indices"`
	Upload           UploadState  `json:"upload"`
	VoiceState       VoiceState   `json:"voiceState"`
	VoiceSupported   bool         `json:"voiceSupported"`
	AwaitingResponse bool         `json:"awaitingResponse"`
}

// ChangeReason explains why a snapshot was published.
type ChangeReason string

const (
	ReasonSessionStarted      ChangeReason = "session_started"
	ReasonInputChanged        ChangeReason = "input_changed"
	ReasonMessageSent         ChangeReason = "message_sent"
	ReasonResponseReceived    ChangeReason = "response_received"
	ReasonResponseFailed      ChangeReason = "response_failed"
	ReasonChatEnded           ChangeReason = "chat_ended"
	ReasonListeningStarted    ChangeReason = "listening_started"
	ReasonListeningStopped    ChangeReason = "listening_stopped"
	ReasonTranscriptReceived  ChangeReason = "transcript_received"
	ReasonDictationFailed     ChangeReason = "dictation_failed"
	ReasonUploadStarted       ChangeReason = "upload_started"
	ReasonUploadCompleted     ChangeReason = "upload_completed"
	ReasonUploadFailed        ChangeReason = "upload_failed"
	ReasonIndicesRefreshed    ChangeReason = "indices_refreshed"
	ReasonIndexSelected       ChangeReason = "index_selected"
	ReasonDocumentModeChanged ChangeReason = "document_mode_changed"
)

// ErrorCode identifies notices raised to the render surface. Most are
// failures; NoticeDocumentIndexed is informational.
type ErrorCode string

const (
	ErrorCodeStartup     ErrorCode = "startup"
	ErrorCodeChat        ErrorCode = "chat"
	ErrorCodeDictation   ErrorCode = "dictation"
	ErrorCodeUnsupported ErrorCode = "dictation_unsupported"
	ErrorCodeUpload      ErrorCode = "upload"
	ErrorCodeIndices     ErrorCode = "indices"

	NoticeDocumentIndexed ErrorCode = "document_indexed"
)

// DocumentFile is a user-picked file offered for indexing.
type DocumentFile struct {
	Name      string
	MediaType string
	Data      []byte
}

// ChatTurn is one message on the chat wire.
type ChatTurn struct {
	Sender Sender `json:"sender"`
	Text   string `json:"text"`
}

// ChatRequest is the semantic request sent to the chat collaborator.
type ChatRequest struct {
	Messages    []ChatTurn
	UseDocument bool
	IndexName   string
}

// ChatReply is a normalized collaborator answer.
type ChatReply struct {
	Text        string
	Suggestions []string
}
