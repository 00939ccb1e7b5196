package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"novasight/internal/domain"
	"novasight/internal/modes"
	"novasight/internal/ports"
)

// VoiceConfig controls recording and the per-stage timeouts of a command.
type VoiceConfig struct {
	Recording         ports.RecordingConfig
	TranscribeTimeout time.Duration
	ClassifyTimeout   time.Duration
}

// VoiceCommandPipeline records a press-and-hold command, transcribes it,
// classifies the transcript and announces the destination. Every failure
// lands on the default mode.
type VoiceCommandPipeline struct {
	recorder    ports.AudioRecorder
	transcriber ports.Transcriber
	classifier  ports.IntentClassifier
	narrator    *SpeechNarrator
	coord       *Coordinator
	table       *modes.Table
	events      ports.EventSink
	logger      *slog.Logger
	cfg         VoiceConfig

	mu        sync.Mutex
	state     domain.VoiceState
	recording ports.Recording
}

func NewVoiceCommandPipeline(
	recorder ports.AudioRecorder,
	transcriber ports.Transcriber,
	classifier ports.IntentClassifier,
	narrator *SpeechNarrator,
	coord *Coordinator,
	table *modes.Table,
	events ports.EventSink,
	logger *slog.Logger,
	cfg VoiceConfig,
) *VoiceCommandPipeline {
	if cfg.TranscribeTimeout <= 0 {
		cfg.TranscribeTimeout = 15 * time.Second
	}
	if cfg.ClassifyTimeout <= 0 {
		cfg.ClassifyTimeout = 10 * time.Second
	}
	return &VoiceCommandPipeline{
		recorder:    recorder,
		transcriber: transcriber,
		classifier:  classifier,
		narrator:    narrator,
		coord:       coord,
		table:       table,
		events:      sinkOrNoop(events),
		logger:      componentLogger(logger, "voice_command"),
		cfg:         cfg,
		state:       domain.VoiceStateIdle,
	}
}

// StartListening begins recording. It returns false without error when
// speech or another recording holds the screen.
func (p *VoiceCommandPipeline) StartListening(ctx context.Context) (bool, error) {
	if !p.coord.TryBeginListening() {
		p.logger.Debug("listening refused", "activity", p.coord.Activity())
		return false, nil
	}

	recording, err := p.recorder.Start(ctx, p.cfg.Recording)
	if err != nil {
		p.coord.EndListening()
		p.logger.Warn("recorder failed to start", "error", err)
		p.events.SessionError(domain.ErrorCodeRecorder, err.Error())
		return false, err
	}

	p.mu.Lock()
	p.recording = recording
	p.state = domain.VoiceStateRecording
	p.mu.Unlock()

	p.logger.Info("listening for voice command")
	return true, nil
}

// StopListening finishes the recording and resolves it to a destination.
// Errors from transcription or classification are absorbed into a default
// result; only a missing recording is reported as an error.
func (p *VoiceCommandPipeline) StopListening(ctx context.Context) (domain.VoiceCommandResult, error) {
	p.mu.Lock()
	recording := p.recording
	p.recording = nil
	p.mu.Unlock()

	if recording == nil {
		return domain.VoiceCommandResult{}, ErrNoActiveRecording
	}
	defer p.setState(domain.VoiceStateIdle)
	// The listening marker stays set until the announcement takes it over.
	defer p.coord.EndListening()

	clip, err := recording.Stop()
	if err != nil {
		p.logger.Warn("recording failed", "error", err)
		p.events.SessionError(domain.ErrorCodeRecorder, err.Error())
		return p.announce(ctx, p.fallback("")), nil
	}

	p.setState(domain.VoiceStateTranscribing)
	transcript, err := p.transcribe(ctx, clip)
	if err != nil {
		p.logger.Warn("transcription failed", "clip", clip.ID, "error", err)
		p.events.SessionError(domain.ErrorCodeTranscription, err.Error())
		return p.announce(ctx, p.fallback("")), nil
	}
	if transcript == "" {
		p.logger.Info("empty transcript", "clip", clip.ID)
		return p.announce(ctx, p.fallback("")), nil
	}

	p.setState(domain.VoiceStateClassifying)
	intent, err := p.classify(ctx, transcript)
	if err != nil {
		p.logger.Warn("classification failed", "error", err)
		p.events.SessionError(domain.ErrorCodeClassifier, err.Error())
		return p.announce(ctx, p.fallback(transcript)), nil
	}

	mode, known := p.table.ModeForIntent(intent)
	result := domain.VoiceCommandResult{
		Transcript:  transcript,
		Intent:      intent,
		Destination: mode,
		Defaulted:   !known,
	}
	if !known {
		p.logger.Info("unknown intent, using default mode", "intent", intent)
		result.Intent = p.table.Lookup(mode).Intent
	}
	return p.announce(ctx, result), nil
}

// Abort drops an in-progress recording without resolving it.
func (p *VoiceCommandPipeline) Abort() bool {
	p.mu.Lock()
	recording := p.recording
	p.recording = nil
	p.state = domain.VoiceStateIdle
	p.mu.Unlock()

	if recording == nil {
		return false
	}
	if err := recording.Discard(); err != nil {
		p.logger.Warn("discard recording failed", "error", err)
	}
	p.coord.EndListening()
	return true
}

func (p *VoiceCommandPipeline) State() domain.VoiceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *VoiceCommandPipeline) setState(state domain.VoiceState) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
}

func (p *VoiceCommandPipeline) transcribe(ctx context.Context, clip domain.AudioClip) (string, error) {
	if len(clip.Data) == 0 {
		return "", errors.New("recording is empty")
	}
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.TranscribeTimeout)
	defer cancel()
	transcript, err := p.transcriber.Transcribe(stageCtx, clip)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(transcript), nil
}

func (p *VoiceCommandPipeline) classify(ctx context.Context, transcript string) (string, error) {
	stageCtx, cancel := context.WithTimeout(ctx, p.cfg.ClassifyTimeout)
	defer cancel()
	return p.classifier.Classify(stageCtx, transcript)
}

func (p *VoiceCommandPipeline) fallback(transcript string) domain.VoiceCommandResult {
	return domain.VoiceCommandResult{
		Transcript:  transcript,
		Intent:      p.table.Lookup(modes.DefaultMode).Intent,
		Destination: modes.DefaultMode,
		Defaulted:   true,
	}
}

func (p *VoiceCommandPipeline) announce(ctx context.Context, result domain.VoiceCommandResult) domain.VoiceCommandResult {
	p.setState(domain.VoiceStateAnnouncing)
	if _, err := p.narrator.Announce(ctx, p.table.Announcement(result.Destination)); err != nil {
		p.logger.Warn("announcement failed", "destination", result.Destination, "error", err)
	}
	p.logger.Info("voice command resolved",
		"destination", result.Destination,
		"intent", result.Intent,
		"defaulted", result.Defaulted,
	)
	return result
}
