package usecase

import "errors"

var (
	ErrNoActiveSession   = errors.New("no active capture session")
	ErrNoPendingCapture  = errors.New("no capture is waiting for a face profile")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrListeningBusy     = errors.New("voice command cannot start while speaking or listening")
	ErrNoActiveRecording = errors.New("no active voice command recording")
	ErrSpeechRefused     = errors.New("speech refused while a voice command is recording")
)
