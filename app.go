package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"novasight/internal/bootstrap"
	"novasight/internal/config"
	"novasight/internal/domain"
	"novasight/internal/usecase"
)

const (
	eventState       = "novasight:state"
	eventMode        = "novasight:mode"
	eventSpoken      = "novasight:spoken"
	eventFacePending = "novasight:face-pending"
	eventError       = "novasight:error"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	engine  *usecase.Engine
	cfg     config.Config
	logger  *slog.Logger
	bootErr error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a)
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.engine = services.Engine
	a.logger = services.Logger
	a.engine.Bind(ctx)

	if _, err := a.engine.Welcome(ctx); err != nil {
		a.logger.Warn("welcome announcement failed", "error", err)
	}
}

func (a *App) shutdown(context.Context) {
	if a.engine != nil {
		a.engine.Close()
	}
}

// Focus is called when a detection screen gains focus.
func (a *App) Focus(mode string) (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.engine.Focus(domain.DetectionMode(mode)); err != nil {
		return domain.Status{}, err
	}
	return a.engine.Status(), nil
}

// Blur is called when the focused screen loses focus.
func (a *App) Blur() domain.Status {
	if a.requireReady() != nil {
		return a.GetStatus()
	}
	a.engine.Blur()
	return a.engine.Status()
}

// PressIn starts recording a voice command.
func (a *App) PressIn() (domain.Status, error) {
	if err := a.requireReady(); err != nil {
		return domain.Status{}, err
	}
	if err := a.engine.PressIn(a.ctx); err != nil {
		if !errors.Is(err, usecase.ErrPermissionDenied) && !errors.Is(err, usecase.ErrListeningBusy) {
			a.SessionError(domain.ErrorCodeRecorder, err.Error())
		}
		return a.engine.Status(), err
	}
	return a.engine.Status(), nil
}

// PressOut stops recording and routes the spoken command.
func (a *App) PressOut() (domain.VoiceCommandResult, error) {
	if err := a.requireReady(); err != nil {
		return domain.VoiceCommandResult{}, err
	}
	result, err := a.engine.PressOut(a.ctx)
	if err != nil {
		if errors.Is(err, usecase.ErrNoActiveRecording) {
			return domain.VoiceCommandResult{}, nil
		}
		return domain.VoiceCommandResult{}, err
	}
	return result, nil
}

// SubmitFaceProfile sends the held face registration frame with its profile.
func (a *App) SubmitFaceProfile(profile domain.FaceProfile) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.engine.SubmitFaceProfile(a.ctx, profile)
}

// CancelFaceProfile drops the held face registration frame.
func (a *App) CancelFaceProfile() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	if err := a.engine.CancelFaceProfile(); err != nil && !errors.Is(err, usecase.ErrNoPendingCapture) {
		return err
	}
	return nil
}

// SetPermissions forwards the camera and microphone grants from the webview.
func (a *App) SetPermissions(camera bool, microphone bool) domain.Status {
	if a.requireReady() != nil {
		return a.GetStatus()
	}
	a.engine.SetPermissions(camera, microphone)
	return a.engine.Status()
}

// GetStatus returns the current engine status.
func (a *App) GetStatus() domain.Status {
	if a.engine == nil {
		if a.bootErr != nil {
			return domain.Status{State: domain.SessionStateInactive, Message: a.bootErr.Error()}
		}
		return domain.Status{State: domain.SessionStateInactive}
	}
	return a.engine.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"backend":       a.cfg.Backend.BaseURL,
		"transcription": "Deepgram " + a.cfg.Deepgram.Mode,
		"model":         a.cfg.Deepgram.Model,
		"language":      a.cfg.Deepgram.Language,
		"classifier":    a.cfg.OpenAI.Model,
		"voice":         a.cfg.Speech.Voice,
		"camera":        a.cfg.Camera.BackDevice,
		"audioInput":    a.cfg.Audio.InputDevice,
		"rulesFile":     a.cfg.Files.RulesPath,
	}
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.engine == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// SessionStateChanged emits capture session updates to the frontend.
func (a *App) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, map[string]string{
		"state":   string(state),
		"reason":  string(reason),
		"message": sessionReasonMessage(reason),
	})
}

// ModeChanged tells the frontend which screen to show.
func (a *App) ModeChanged(mode domain.DetectionMode, path string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventMode, map[string]string{"mode": string(mode), "path": path})
}

func (a *App) Spoken(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSpoken, map[string]string{"text": text})
}

// CaptureHeld opens the face registration form.
func (a *App) CaptureHeld(mode domain.DetectionMode, frameID string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventFacePending, map[string]string{"mode": string(mode), "frame": frameID})
}

// SessionError emits engine errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func sessionReasonMessage(reason domain.SessionStateReason) string {
	switch reason {
	case domain.SessionReasonFocused:
		return "Camera is capturing"
	case domain.SessionReasonBlurred:
		return "Capture stopped"
	case domain.SessionReasonCameraDenied:
		return "Camera permission is required"
	case domain.SessionReasonModeSwitched:
		return "Switched function"
	case domain.SessionReasonAwaitingProfile:
		return "Enter the person's details to save the face"
	case domain.SessionReasonProfileSubmitted:
		return "Saving face"
	case domain.SessionReasonProfileCancelled:
		return "Face registration cancelled"
	case domain.SessionReasonListening:
		return "Listening..."
	case domain.SessionReasonCommandResolved:
		return "Command recognized"
	case domain.SessionReasonCommandDefaulted:
		return "Command not recognized; using text recognition"
	case domain.SessionReasonMicrophoneDenied:
		return "Microphone permission is required"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeCamera:
		return "Camera capture failed"
	case domain.ErrorCodeRecognition:
		return "Recognition request failed"
	case domain.ErrorCodeSpeech:
		return "Speech playback failed"
	case domain.ErrorCodeRecorder:
		return "Microphone recording failed"
	case domain.ErrorCodeTranscription:
		return "Transcription error"
	case domain.ErrorCodeClassifier:
		return "Command classification failed"
	case domain.ErrorCodePermission:
		return "Permission denied"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
