package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"novasight/internal/domain"
	"novasight/internal/modes"
	"novasight/internal/ports"
)

// DefaultWelcomeText is spoken once when the client starts.
const DefaultWelcomeText = "Chào mừng bạn đến với NovaSight. Ứng dụng hỗ trợ bạn với các chức năng như: " +
	"Đọc tài liệu, nhận diện tiền mặt, mô tả hình ảnh, nhận diện sản phẩm, nhận diện khuôn mặt, " +
	"nhận diện hình ảnh, đăng ký khuôn mặt người thân. " +
	"Để ra lệnh bằng giọng nói, hãy nhấn giữ vào màn hình"

var ErrIncompleteProfile = errors.New("face profile requires a name")

// Dependencies are the adapters the engine drives.
type Dependencies struct {
	Camera      ports.Camera
	Backend     ports.RecognitionBackend
	Synthesizer ports.Synthesizer
	Rules       ports.PhraseRules
	Recorder    ports.AudioRecorder
	Transcriber ports.Transcriber
	Classifier  ports.IntentClassifier
	Events      ports.EventSink
	Table       *modes.Table
	Logger      *slog.Logger
}

// Config controls engine timing and speech.
type Config struct {
	SpeechLanguage string
	RequestTimeout time.Duration
	Voice          VoiceConfig
	WelcomeText    string
}

// Engine composes the capture loop, narrator, voice pipeline and router
// into the behavior of one focused detection screen.
type Engine struct {
	coord     *Coordinator
	narrator  *SpeechNarrator
	submitter *DetectionSubmitter
	loop      *CaptureLoop
	pipeline  *VoiceCommandPipeline
	router    *ModeRouter
	table     *modes.Table
	events    ports.EventSink
	logger    *slog.Logger
	welcome   string

	mu            sync.Mutex
	lifetime      context.Context
	focused       bool
	state         domain.SessionState
	cameraGranted bool
	micGranted    bool
}

func NewEngine(deps Dependencies, cfg Config) (*Engine, error) {
	switch {
	case deps.Camera == nil:
		return nil, errors.New("camera is required")
	case deps.Backend == nil:
		return nil, errors.New("recognition backend is required")
	case deps.Synthesizer == nil:
		return nil, errors.New("synthesizer is required")
	case deps.Recorder == nil:
		return nil, errors.New("audio recorder is required")
	case deps.Transcriber == nil:
		return nil, errors.New("transcriber is required")
	case deps.Classifier == nil:
		return nil, errors.New("intent classifier is required")
	}

	table := deps.Table
	if table == nil {
		table = modes.Defaults()
	}
	welcome := strings.TrimSpace(cfg.WelcomeText)
	if welcome == "" {
		welcome = DefaultWelcomeText
	}

	events := sinkOrNoop(deps.Events)
	coord := NewCoordinator()
	narrator := NewSpeechNarrator(deps.Synthesizer, deps.Rules, coord, events, deps.Logger, cfg.SpeechLanguage)
	submitter := NewDetectionSubmitter(deps.Backend, table, narrator, deps.Logger)

	e := &Engine{
		coord:         coord,
		narrator:      narrator,
		submitter:     submitter,
		loop:          NewCaptureLoop(deps.Camera, submitter, coord, table, events, deps.Logger, cfg.RequestTimeout),
		pipeline:      NewVoiceCommandPipeline(deps.Recorder, deps.Transcriber, deps.Classifier, narrator, coord, table, events, deps.Logger, cfg.Voice),
		table:         table,
		events:        events,
		logger:        componentLogger(deps.Logger, "engine"),
		welcome:       welcome,
		lifetime:      context.Background(),
		state:         domain.SessionStateInactive,
		cameraGranted: true,
		micGranted:    true,
	}
	e.router = NewModeRouter(table, e.switchMode)
	return e, nil
}

// Bind sets the context capture sessions run under.
func (e *Engine) Bind(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lifetime = ctx
}

// Welcome speaks the startup announcement. Captures wait until it ends.
func (e *Engine) Welcome(ctx context.Context) (string, error) {
	return e.narrator.Speak(ctx, e.welcome)
}

// Focus makes mode the active screen and starts its capture session.
func (e *Engine) Focus(mode domain.DetectionMode) error {
	if !mode.Valid() {
		return fmt.Errorf("unknown detection mode %q", mode)
	}

	e.mu.Lock()
	lifetime := e.lifetime
	armed := e.cameraGranted
	e.focused = true
	state, reason := domain.SessionStateArmed, domain.SessionReasonFocused
	if !armed {
		state, reason = domain.SessionStateBlocked, domain.SessionReasonCameraDenied
	}
	e.state = state
	e.mu.Unlock()

	spec := e.table.Lookup(mode)
	e.router.Set(mode)
	e.loop.Start(lifetime, CaptureSession{Mode: mode, Interval: spec.Interval, Armed: armed})

	e.logger.Info("screen focused", "mode", mode, "armed", armed)
	e.events.ModeChanged(mode, spec.Path)
	e.events.SessionStateChanged(state, reason)
	return nil
}

// Blur stops the capture session. Replies still in flight are not spoken.
func (e *Engine) Blur() {
	e.mu.Lock()
	wasFocused := e.focused
	e.focused = false
	e.state = domain.SessionStateInactive
	e.mu.Unlock()

	e.loop.Stop()
	if wasFocused {
		e.logger.Info("screen blurred", "mode", e.router.Current())
		e.events.SessionStateChanged(domain.SessionStateInactive, domain.SessionReasonBlurred)
	}
}

// PressIn silences speech and starts recording a voice command.
func (e *Engine) PressIn(ctx context.Context) error {
	e.mu.Lock()
	granted := e.micGranted
	state := e.state
	e.mu.Unlock()

	if !granted {
		e.events.SessionError(domain.ErrorCodePermission, "microphone permission denied")
		return fmt.Errorf("start voice command: %w", ErrPermissionDenied)
	}

	e.narrator.Stop()
	started, err := e.pipeline.StartListening(ctx)
	if err != nil {
		return fmt.Errorf("start voice command: %w", err)
	}
	if !started {
		return ErrListeningBusy
	}
	e.events.SessionStateChanged(state, domain.SessionReasonListening)
	return nil
}

// PressOut resolves the recorded command and switches mode when the
// destination differs from the active one.
func (e *Engine) PressOut(ctx context.Context) (domain.VoiceCommandResult, error) {
	result, err := e.pipeline.StopListening(ctx)
	if err != nil {
		return domain.VoiceCommandResult{}, err
	}

	if !e.router.Route(result) {
		reason := domain.SessionReasonCommandResolved
		if result.Defaulted {
			reason = domain.SessionReasonCommandDefaulted
		}
		e.events.SessionStateChanged(e.sessionState(), reason)
	}
	return result, nil
}

// SubmitFaceProfile resumes the held face registration frame.
func (e *Engine) SubmitFaceProfile(ctx context.Context, profile domain.FaceProfile) error {
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		return ErrIncompleteProfile
	}
	if !e.loop.Pending() {
		return ErrNoPendingCapture
	}

	e.setState(domain.SessionStateArmed)
	e.events.SessionStateChanged(domain.SessionStateArmed, domain.SessionReasonProfileSubmitted)
	if err := e.loop.ResumePending(ctx, profile.Params()); err != nil {
		return fmt.Errorf("register face %q: %w", profile.Name, err)
	}
	return nil
}

// CancelFaceProfile drops the held frame and lets the loop continue.
func (e *Engine) CancelFaceProfile() error {
	if !e.loop.DropPending() {
		return ErrNoPendingCapture
	}
	e.setState(domain.SessionStateArmed)
	e.events.SessionStateChanged(domain.SessionStateArmed, domain.SessionReasonProfileCancelled)
	return nil
}

// SetPermissions records the camera and microphone grants. A focused screen
// is restarted when the camera grant changes.
func (e *Engine) SetPermissions(camera, microphone bool) {
	e.mu.Lock()
	changed := e.cameraGranted != camera
	micRevoked := e.micGranted && !microphone
	e.cameraGranted = camera
	e.micGranted = microphone
	focused := e.focused
	e.mu.Unlock()

	if !microphone {
		e.pipeline.Abort()
	}
	if micRevoked {
		e.events.SessionStateChanged(e.sessionState(), domain.SessionReasonMicrophoneDenied)
	}
	if changed && focused {
		if err := e.Focus(e.router.Current()); err != nil {
			e.logger.Warn("refocus after permission change failed", "error", err)
		}
	}
}

func (e *Engine) Status() domain.Status {
	mode := e.router.Current()
	e.mu.Lock()
	focused := e.focused
	state := e.state
	e.mu.Unlock()

	pending := e.loop.Pending()
	if pending {
		state = domain.SessionStateHolding
	}
	return domain.Status{
		Mode:     mode,
		Path:     e.table.Lookup(mode).Path,
		Focused:  focused,
		State:    state,
		Activity: e.coord.Activity(),
		Voice:    e.pipeline.State(),
		Pending:  pending,
	}
}

// Close stops capture, recording and speech.
func (e *Engine) Close() {
	e.Blur()
	e.pipeline.Abort()
	e.narrator.Stop()
}

func (e *Engine) switchMode(mode domain.DetectionMode) {
	spec := e.table.Lookup(mode)

	e.mu.Lock()
	focused := e.focused
	if focused && e.cameraGranted {
		e.state = domain.SessionStateArmed
	}
	state := e.state
	e.mu.Unlock()

	if focused {
		if err := e.loop.SetMode(mode, spec.Interval); err != nil {
			e.logger.Warn("switching capture mode failed", "mode", mode, "error", err)
		}
	}
	e.logger.Info("mode switched", "mode", mode, "path", spec.Path)
	e.events.ModeChanged(mode, spec.Path)
	e.events.SessionStateChanged(state, domain.SessionReasonModeSwitched)
}

func (e *Engine) sessionState() domain.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loop.Pending() {
		return domain.SessionStateHolding
	}
	return e.state
}

func (e *Engine) setState(state domain.SessionState) {
	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}
