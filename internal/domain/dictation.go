package domain

// TranscriptKind identifies whether a stream event is partial or final text.
type TranscriptKind string

const (
	TranscriptKindPartial TranscriptKind = "partial"
	TranscriptKindFinal   TranscriptKind = "final"
)

// TranscriptEvent represents incremental transcription output from a provider.
type TranscriptEvent struct {
	Kind          TranscriptKind `json:"kind"`
	Text          string         `json:"text"`
	IsSpeechFinal bool           `json:"isSpeechFinal"`
}

// Dictation error codes passed to OnError callbacks.
const (
	DictationErrorStart        = "start_failed"
	DictationErrorAudio        = "audio_capture"
	DictationErrorNoSpeech     = "no_speech"
	DictationErrorTranscribing = "transcription_failed"
)
