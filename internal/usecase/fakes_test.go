package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"novasight/internal/domain"
	"novasight/internal/modes"
	"novasight/internal/ports"
)

type fakeCamera struct {
	mu      sync.Mutex
	calls   int
	facings []domain.Facing
	err     error
}

func (c *fakeCamera) Capture(_ context.Context, facing domain.Facing) (domain.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.facings = append(c.facings, facing)
	if c.err != nil {
		return domain.Frame{}, c.err
	}
	return domain.Frame{
		ID:          fmt.Sprintf("frame-%d", c.calls),
		Data:        []byte{0xff, 0xd8, 0xff},
		ContentType: "image/jpeg",
		CapturedAt:  time.Now(),
	}, nil
}

func (c *fakeCamera) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeBackend struct {
	mu       sync.Mutex
	requests []ports.UploadRequest
	result   domain.RecognitionResult
	err      error
	// gate, when set, blocks Upload until it is closed or receives.
	gate    chan struct{}
	entered chan struct{}
}

func (b *fakeBackend) Upload(ctx context.Context, req ports.UploadRequest) (domain.RecognitionResult, error) {
	b.mu.Lock()
	b.requests = append(b.requests, req)
	gate := b.gate
	entered := b.entered
	result, err := b.result, b.err
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return result, err
}

func (b *fakeBackend) snapshot() []ports.UploadRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]ports.UploadRequest(nil), b.requests...)
}

type fakeSynth struct {
	mu         sync.Mutex
	utterances []domain.Utterance
	callbacks  []ports.SpeechCallbacks
	stops      int
	speakErr   error
	// autoDone completes every utterance synchronously.
	autoDone bool
}

func (s *fakeSynth) Speak(_ context.Context, utterance domain.Utterance, callbacks ports.SpeechCallbacks) error {
	s.mu.Lock()
	if s.speakErr != nil {
		s.mu.Unlock()
		return s.speakErr
	}
	s.utterances = append(s.utterances, utterance)
	s.callbacks = append(s.callbacks, callbacks)
	auto := s.autoDone
	s.mu.Unlock()

	callbacks.OnStart()
	if auto {
		callbacks.OnDone()
	}
	return nil
}

func (s *fakeSynth) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	return nil
}

func (s *fakeSynth) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.utterances))
	for _, u := range s.utterances {
		out = append(out, u.Text)
	}
	return out
}

func (s *fakeSynth) last() ports.SpeechCallbacks {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callbacks[len(s.callbacks)-1]
}

func (s *fakeSynth) stopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

type fakeRules struct {
	replace map[string]string
	err     error
}

func (r *fakeRules) Apply(text string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if out, ok := r.replace[text]; ok {
		return out, nil
	}
	return text, nil
}

type fakeRecording struct {
	clip       domain.AudioClip
	stopErr    error
	stopped    bool
	discarded  bool
	discardErr error
}

func (r *fakeRecording) Stop() (domain.AudioClip, error) {
	r.stopped = true
	return r.clip, r.stopErr
}

func (r *fakeRecording) Discard() error {
	r.discarded = true
	return r.discardErr
}

type fakeRecorder struct {
	mu         sync.Mutex
	recordings []*fakeRecording
	started    int
	err        error
}

func (r *fakeRecorder) Start(_ context.Context, _ ports.RecordingConfig) (ports.Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	if r.started >= len(r.recordings) {
		return nil, errors.New("no fake recording configured")
	}
	rec := r.recordings[r.started]
	r.started++
	return rec, nil
}

func (r *fakeRecorder) startCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(context.Context, domain.AudioClip) (string, error) {
	return t.text, t.err
}

type fakeClassifier struct {
	intent string
	err    error
	calls  int
}

func (c *fakeClassifier) Classify(context.Context, string) (string, error) {
	c.calls++
	return c.intent, c.err
}

type stateEvent struct {
	state  domain.SessionState
	reason domain.SessionStateReason
}

type modeEvent struct {
	mode domain.DetectionMode
	path string
}

type errorEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu     sync.Mutex
	states []stateEvent
	modes  []modeEvent
	spoken []string
	held   []string
	errors []errorEvent
}

func (s *fakeEventSink) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states = append(s.states, stateEvent{state: state, reason: reason})
}

func (s *fakeEventSink) ModeChanged(mode domain.DetectionMode, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = append(s.modes, modeEvent{mode: mode, path: path})
}

func (s *fakeEventSink) Spoken(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
}

func (s *fakeEventSink) CaptureHeld(_ domain.DetectionMode, frameID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.held = append(s.held, frameID)
}

func (s *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errors = append(s.errors, errorEvent{code: code, detail: detail})
}

func (s *fakeEventSink) snapshotStates() []stateEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]stateEvent(nil), s.states...)
}

func (s *fakeEventSink) hasError(code domain.ErrorCode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.errors {
		if e.code == code {
			return true
		}
	}
	return false
}

func (s *fakeEventSink) lastReason() domain.SessionStateReason {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.states) == 0 {
		return ""
	}
	return s.states[len(s.states)-1].reason
}

// loopFixture wires a capture loop to fakes. The loop's ticker interval is
// long enough that tests drive ticks by hand.
type loopFixture struct {
	coord     *Coordinator
	synth     *fakeSynth
	camera    *fakeCamera
	backend   *fakeBackend
	events    *fakeEventSink
	narrator  *SpeechNarrator
	submitter *DetectionSubmitter
	loop      *CaptureLoop
}

func newLoopFixture() *loopFixture {
	f := &loopFixture{
		coord:   NewCoordinator(),
		synth:   &fakeSynth{},
		camera:  &fakeCamera{},
		backend: &fakeBackend{},
		events:  &fakeEventSink{},
	}
	table := modes.Defaults()
	f.narrator = NewSpeechNarrator(f.synth, nil, f.coord, f.events, nil, "vi-VN")
	f.submitter = NewDetectionSubmitter(f.backend, table, f.narrator, nil)
	f.loop = NewCaptureLoop(f.camera, f.submitter, f.coord, table, f.events, nil, time.Second)
	return f
}

func (f *loopFixture) start(mode domain.DetectionMode) {
	f.loop.Start(context.Background(), CaptureSession{Mode: mode, Interval: time.Hour, Armed: true})
}
