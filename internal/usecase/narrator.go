package usecase

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"novasight/internal/domain"
	"novasight/internal/ports"
)

// SpeechNarrator wraps the synthesizer and owns the speaking signal.
type SpeechNarrator struct {
	synth    ports.Synthesizer
	rules    ports.PhraseRules
	coord    *Coordinator
	events   ports.EventSink
	logger   *slog.Logger
	language string

	mu      sync.Mutex
	current *utteranceTrack
	// dispatchMu orders handing an utterance to the synthesizer against
	// stopping it.
	dispatchMu sync.Mutex
}

type utteranceTrack struct {
	id    string
	state domain.UtteranceState
	done  chan struct{}
}

func (t *utteranceTrack) finish(state domain.UtteranceState) bool {
	if t.state.Terminal() {
		return false
	}
	t.state = state
	close(t.done)
	return true
}

func NewSpeechNarrator(
	synth ports.Synthesizer,
	rules ports.PhraseRules,
	coord *Coordinator,
	events ports.EventSink,
	logger *slog.Logger,
	language string,
) *SpeechNarrator {
	if language == "" {
		language = "vi-VN"
	}
	return &SpeechNarrator{
		synth:    synth,
		rules:    rules,
		coord:    coord,
		events:   sinkOrNoop(events),
		logger:   componentLogger(logger, "narrator"),
		language: language,
	}
}

// Speak queues one utterance and returns its id. If another utterance is
// still speaking, Speak waits for it to reach a terminal state first. While a
// voice command is recording nothing is spoken and ErrSpeechRefused is
// returned.
func (n *SpeechNarrator) Speak(ctx context.Context, text string) (string, error) {
	return n.speak(ctx, text, false)
}

// Announce speaks text on behalf of the voice command pipeline, taking the
// screen over from the recording that is ending.
func (n *SpeechNarrator) Announce(ctx context.Context, text string) (string, error) {
	return n.speak(ctx, text, true)
}

func (n *SpeechNarrator) speak(ctx context.Context, text string, handOff bool) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", nil
	}
	if n.rules != nil {
		rewritten, err := n.rules.Apply(text)
		if err != nil {
			n.logger.Warn("phrase rules failed, speaking original text", "error", err)
		} else {
			text = rewritten
		}
	}

	track, err := n.claim(ctx, handOff)
	if err != nil {
		return "", err
	}

	utterance := domain.Utterance{ID: track.id, Text: text, Language: n.language}
	n.events.Spoken(text)
	n.logger.Debug("speaking", "utterance", track.id, "chars", len(text))

	n.dispatchMu.Lock()
	n.mu.Lock()
	queued := track.state == domain.UtteranceQueued
	n.mu.Unlock()
	if !queued {
		n.dispatchMu.Unlock()
		n.coord.EndSpeaking(track.id)
		n.logger.Debug("utterance stopped before playback", "utterance", track.id)
		return track.id, nil
	}
	err = n.synth.Speak(ctx, utterance, ports.SpeechCallbacks{
		OnStart:   func() { n.started(track.id) },
		OnDone:    func() { n.finish(track.id, domain.UtteranceDone) },
		OnStopped: func() { n.finish(track.id, domain.UtteranceStopped) },
		OnError: func(err error) {
			n.logger.Warn("synthesizer failed", "utterance", track.id, "error", err)
			n.events.SessionError(domain.ErrorCodeSpeech, err.Error())
			n.finish(track.id, domain.UtteranceErrored)
		},
	})
	n.dispatchMu.Unlock()
	if err != nil {
		n.logger.Warn("synthesizer rejected utterance", "utterance", track.id, "error", err)
		n.events.SessionError(domain.ErrorCodeSpeech, err.Error())
		n.finish(track.id, domain.UtteranceErrored)
		return track.id, err
	}
	return track.id, nil
}

// Stop forces the current utterance to stopped and releases the speaking
// signal without waiting for the synthesizer's callback. It is a no-op when
// idle.
func (n *SpeechNarrator) Stop() bool {
	n.dispatchMu.Lock()
	defer n.dispatchMu.Unlock()

	n.mu.Lock()
	track := n.current
	if track == nil || !track.finish(domain.UtteranceStopped) {
		n.mu.Unlock()
		return false
	}
	n.mu.Unlock()

	// The signal is released only after the synthesizer has been told to stop.
	if err := n.synth.Stop(); err != nil {
		n.logger.Warn("synthesizer stop failed", "utterance", track.id, "error", err)
	}
	n.coord.EndSpeaking(track.id)
	return true
}

// State returns the lifecycle state of the most recent utterance.
func (n *SpeechNarrator) State() domain.UtteranceState {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return domain.UtteranceDone
	}
	return n.current.state
}

func (n *SpeechNarrator) claim(ctx context.Context, handOff bool) (*utteranceTrack, error) {
	for {
		n.mu.Lock()
		if n.current == nil || n.current.state.Terminal() {
			id := uuid.New().String()
			if handOff {
				n.coord.HandOffListening(id)
			} else if !n.coord.TryBeginSpeaking(id) {
				n.mu.Unlock()
				return nil, ErrSpeechRefused
			}
			track := &utteranceTrack{
				id:    id,
				state: domain.UtteranceQueued,
				done:  make(chan struct{}),
			}
			n.current = track
			n.mu.Unlock()
			return track, nil
		}
		done := n.current.done
		n.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (n *SpeechNarrator) started(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current != nil && n.current.id == id && n.current.state == domain.UtteranceQueued {
		n.current.state = domain.UtteranceSpeaking
	}
}

func (n *SpeechNarrator) finish(id string, state domain.UtteranceState) {
	n.mu.Lock()
	if n.current != nil && n.current.id == id {
		n.current.finish(state)
	}
	n.mu.Unlock()

	// A late callback from an interrupted utterance must not release the
	// signal held by a newer one; EndSpeaking checks the owner.
	n.coord.EndSpeaking(id)
}
