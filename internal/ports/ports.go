package ports

import (
	"context"

	"novasight/internal/domain"
)

// Camera captures still frames.
type Camera interface {
	Capture(ctx context.Context, facing domain.Facing) (domain.Frame, error)
}

// UploadRequest is one frame submission to the recognition backend.
type UploadRequest struct {
	Route    string
	Mode     domain.DetectionMode
	FileName string
	Frame    domain.Frame
	Metadata map[string]string
}

// RecognitionBackend uploads frames and returns the decoded JSON response.
type RecognitionBackend interface {
	Upload(ctx context.Context, req UploadRequest) (domain.RecognitionResult, error)
}

// SpeechCallbacks are the synthesizer lifecycle notifications. Exactly one of
// OnDone, OnStopped or OnError fires per utterance.
type SpeechCallbacks struct {
	OnStart   func()
	OnDone    func()
	OnStopped func()
	OnError   func(err error)
}

// Synthesizer speaks text aloud.
type Synthesizer interface {
	Speak(ctx context.Context, utterance domain.Utterance, callbacks SpeechCallbacks) error
	// Stop interrupts the current utterance. It is a no-op when idle.
	Stop() error
}

// RecordingConfig describes how the microphone should be captured.
type RecordingConfig struct {
	InputFormat string
	InputDevice string
	Format      string
	SampleRate  int
	Channels    int
}

// Recording is a live microphone capture.
type Recording interface {
	// Stop ends the capture and returns the finished clip.
	Stop() (domain.AudioClip, error)
	// Discard ends the capture and drops the audio.
	Discard() error
}

// AudioRecorder creates microphone recordings.
type AudioRecorder interface {
	Start(ctx context.Context, cfg RecordingConfig) (Recording, error)
}

// Transcriber turns recorded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, clip domain.AudioClip) (string, error)
}

// IntentClassifier maps a transcript to one intent token.
type IntentClassifier interface {
	Classify(ctx context.Context, transcript string) (string, error)
}

// PhraseRules rewrites text before it is spoken.
type PhraseRules interface {
	Apply(text string) (string, error)
}

// EventSink emits engine state and events to the UI.
type EventSink interface {
	SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason)
	ModeChanged(mode domain.DetectionMode, path string)
	Spoken(text string)
	CaptureHeld(mode domain.DetectionMode, frameID string)
	SessionError(code domain.ErrorCode, detail string)
}
