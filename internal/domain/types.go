package domain

import (
	"time"
)

// DetectionMode selects the recognition service a screen feeds.
type DetectionMode string

const (
	ModeDocument      DetectionMode = "document"
	ModeCurrency      DetectionMode = "currency"
	ModeCaption       DetectionMode = "caption"
	ModeProduct       DetectionMode = "product"
	ModeDistance      DetectionMode = "distance"
	ModeFaceRegister  DetectionMode = "face-register"
	ModeFaceRecognize DetectionMode = "face-recognize"
)

// AllModes lists every detection mode in tab order.
var AllModes = []DetectionMode{
	ModeDocument,
	ModeCurrency,
	ModeCaption,
	ModeProduct,
	ModeDistance,
	ModeFaceRegister,
	ModeFaceRecognize,
}

// Valid reports whether m is a known detection mode.
func (m DetectionMode) Valid() bool {
	for _, mode := range AllModes {
		if mode == m {
			return true
		}
	}
	return false
}

// Facing is the camera a mode captures from.
type Facing string

const (
	FacingBack  Facing = "back"
	FacingFront Facing = "front"
)

// Activity is the single thing a screen is doing at a given instant.
type Activity string

const (
	ActivityIdle      Activity = "idle"
	ActivityCapturing Activity = "capturing"
	ActivitySpeaking  Activity = "speaking"
	ActivityListening Activity = "listening"
)

// SessionState models the capture session lifecycle of the focused screen.
type SessionState string

const (
	SessionStateInactive SessionState = "inactive"
	SessionStateArmed    SessionState = "armed"
	SessionStateBlocked  SessionState = "blocked"
	SessionStateHolding  SessionState = "holding"
)

// SessionStateReason provides a structured reason for state transitions.
type SessionStateReason string

const (
	SessionReasonFocused          SessionStateReason = "focused"
	SessionReasonBlurred          SessionStateReason = "blurred"
	SessionReasonCameraDenied     SessionStateReason = "camera_denied"
	SessionReasonModeSwitched     SessionStateReason = "mode_switched"
	SessionReasonAwaitingProfile  SessionStateReason = "awaiting_profile"
	SessionReasonProfileSubmitted SessionStateReason = "profile_submitted"
	SessionReasonProfileCancelled SessionStateReason = "profile_cancelled"
	SessionReasonListening        SessionStateReason = "listening"
	SessionReasonCommandResolved  SessionStateReason = "command_resolved"
	SessionReasonCommandDefaulted SessionStateReason = "command_defaulted"
	SessionReasonMicrophoneDenied SessionStateReason = "microphone_denied"
)

// ErrorCode identifies non-fatal and fatal engine errors.
type ErrorCode string

const (
	ErrorCodeStartup       ErrorCode = "startup"
	ErrorCodeCamera        ErrorCode = "camera"
	ErrorCodeRecognition   ErrorCode = "recognition"
	ErrorCodeSpeech        ErrorCode = "speech"
	ErrorCodeRecorder      ErrorCode = "recorder"
	ErrorCodeTranscription ErrorCode = "transcription"
	ErrorCodeClassifier    ErrorCode = "classifier"
	ErrorCodePermission    ErrorCode = "permission"
)

// Frame is one captured still image.
type Frame struct {
	ID          string
	Data        []byte
	ContentType string
	CapturedAt  time.Time
}

// AudioClip is one finished voice-command recording.
type AudioClip struct {
	ID          string
	Data        []byte
	ContentType string
	Duration    time.Duration
}

// FaceProfile is the metadata a user types for a face registration.
type FaceProfile struct {
	Name         string `json:"name"`
	Hometown     string `json:"hometown"`
	Relationship string `json:"relationship"`
	DateOfBirth  string `json:"date_of_birth"`
}

// Params renders the profile as backend query parameters.
func (p FaceProfile) Params() map[string]string {
	return map[string]string{
		"name":          p.Name,
		"hometown":      p.Hometown,
		"relationship":  p.Relationship,
		"date_of_birth": p.DateOfBirth,
	}
}

// RecognitionResult is the backend response body, decoded as a generic object.
type RecognitionResult map[string]any

// UtteranceState is the lifecycle of a spoken utterance.
type UtteranceState string

const (
	UtteranceQueued   UtteranceState = "queued"
	UtteranceSpeaking UtteranceState = "speaking"
	UtteranceDone     UtteranceState = "done"
	UtteranceStopped  UtteranceState = "stopped"
	UtteranceErrored  UtteranceState = "errored"
)

// Terminal reports whether the utterance can no longer change state.
func (s UtteranceState) Terminal() bool {
	return s == UtteranceDone || s == UtteranceStopped || s == UtteranceErrored
}

// Utterance is text queued for speech.
type Utterance struct {
	ID       string
	Text     string
	Language string
}

// VoiceState models the press-and-hold voice command lifecycle.
type VoiceState string

const (
	VoiceStateIdle         VoiceState = "idle"
	VoiceStateRecording    VoiceState = "recording"
	VoiceStateTranscribing VoiceState = "transcribing"
	VoiceStateClassifying  VoiceState = "classifying"
	VoiceStateAnnouncing   VoiceState = "announcing"
)

// VoiceCommandResult is the outcome of one voice command.
type VoiceCommandResult struct {
	Transcript  string        `json:"transcript"`
	Intent      string        `json:"intent"`
	Destination DetectionMode `json:"destination"`
	Defaulted   bool          `json:"defaulted"`
}

// Status summarizes the current engine status.
type Status struct {
	Mode     DetectionMode `json:"mode"`
	Path     string        `json:"path"`
	Focused  bool          `json:"focused"`
	State    SessionState  `json:"state"`
	Activity Activity      `json:"activity"`
	Voice    VoiceState    `json:"voice"`
	Pending  bool          `json:"pending"`
	Message  string        `json:"message,omitempty"`
}
