package edgetts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/hajimehoshi/go-mp3"
	"github.com/wujunwei928/edge-tts-go/edge_tts"

	"novasight/internal/domain"
	"novasight/internal/ports"
)

const defaultVoice = "vi-VN-HoaiMyNeural"

// Player plays raw 16-bit little-endian PCM until the stream ends or ctx is
// cancelled.
type Player interface {
	Play(ctx context.Context, pcm io.Reader, sampleRate, channels int) error
}

type fetchFunc func(ctx context.Context, text, voice string) ([]byte, error)

type decodeFunc func(data []byte) (pcm io.Reader, sampleRate, channels int, err error)

// Synthesizer speaks through Microsoft Edge online voices. Only one utterance
// plays at a time; speaking again stops the previous one.
type Synthesizer struct {
	voice  string
	player Player
	fetch  fetchFunc
	decode decodeFunc
	logger *slog.Logger

	mu     sync.Mutex
	active *playback
}

func NewSynthesizer(voice string, player Player, logger *slog.Logger) *Synthesizer {
	if strings.TrimSpace(voice) == "" {
		voice = defaultVoice
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{
		voice:  voice,
		player: player,
		fetch:  fetchEdge,
		decode: decodeMP3,
		logger: logger.With("component", "edge_tts"),
	}
}

type playback struct {
	id        string
	cancel    context.CancelFunc
	callbacks ports.SpeechCallbacks

	mu      sync.Mutex
	stopped bool
	once    sync.Once
}

func (p *playback) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.cancel()
}

func (p *playback) wasStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

func (p *playback) terminate(err error) {
	p.once.Do(func() {
		switch {
		case p.wasStopped():
			call(p.callbacks.OnStopped)
		case err != nil:
			if p.callbacks.OnError != nil {
				p.callbacks.OnError(err)
			}
		default:
			call(p.callbacks.OnDone)
		}
	})
}

// Speak starts the utterance in the background and returns immediately.
// Playback outlives ctx; use Stop to interrupt it.
func (s *Synthesizer) Speak(ctx context.Context, utterance domain.Utterance, callbacks ports.SpeechCallbacks) error {
	if s.player == nil {
		return errors.New("no audio player configured")
	}
	text := strings.TrimSpace(utterance.Text)
	if text == "" {
		return errors.New("utterance is empty")
	}

	playCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	pb := &playback{id: utterance.ID, cancel: cancel, callbacks: callbacks}

	s.mu.Lock()
	previous := s.active
	s.active = pb
	s.mu.Unlock()

	if previous != nil {
		previous.stop()
	}

	go s.run(playCtx, pb, text)
	return nil
}

// Stop interrupts the current utterance. It is a no-op when idle.
func (s *Synthesizer) Stop() error {
	s.mu.Lock()
	pb := s.active
	s.active = nil
	s.mu.Unlock()

	if pb != nil {
		pb.stop()
	}
	return nil
}

func (s *Synthesizer) run(ctx context.Context, pb *playback, text string) {
	defer pb.cancel()
	defer s.release(pb)

	audio, err := s.fetch(ctx, text, s.voice)
	if err != nil {
		pb.terminate(fmt.Errorf("edge tts synthesis failed: %w", err))
		return
	}
	if pb.wasStopped() {
		pb.terminate(nil)
		return
	}

	pcm, sampleRate, channels, err := s.decode(audio)
	if err != nil {
		pb.terminate(fmt.Errorf("decode speech audio: %w", err))
		return
	}

	call(pb.callbacks.OnStart)
	s.logger.Debug("playing utterance", "utterance", pb.id, "sample_rate", sampleRate)

	if err := s.player.Play(ctx, pcm, sampleRate, channels); err != nil && !pb.wasStopped() {
		pb.terminate(fmt.Errorf("play speech audio: %w", err))
		return
	}
	pb.terminate(nil)
}

func (s *Synthesizer) release(pb *playback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == pb {
		s.active = nil
	}
}

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

func fetchEdge(ctx context.Context, text, voice string) ([]byte, error) {
	type result struct {
		audio []byte
		err   error
	}
	done := make(chan result, 1)

	go func() {
		conn, err := edge_tts.NewCommunicate(text, edge_tts.SetVoice(voice))
		if err != nil {
			done <- result{err: fmt.Errorf("create edge tts communicate: %w", err)}
			return
		}
		audio, err := conn.Stream()
		done <- result{audio: audio, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if len(r.audio) == 0 {
			return nil, errors.New("edge tts returned no audio")
		}
		return r.audio, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decodeMP3 yields 16-bit little-endian stereo PCM.
func decodeMP3(data []byte) (io.Reader, int, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, err
	}
	return decoder, decoder.SampleRate(), 2, nil
}
