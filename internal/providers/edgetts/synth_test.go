package edgetts

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"novasight/internal/domain"
	"novasight/internal/ports"
)

type fakePlayer struct {
	mu     sync.Mutex
	played [][]byte
	block  bool
	err    error
}

func (p *fakePlayer) Play(ctx context.Context, pcm io.Reader, _, _ int) error {
	data, _ := io.ReadAll(pcm)
	p.mu.Lock()
	p.played = append(p.played, data)
	block, err := p.block, p.err
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

type recorder struct {
	mu     sync.Mutex
	events []string
	done   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) callbacks() ports.SpeechCallbacks {
	terminal := func(name string) {
		r.mu.Lock()
		r.events = append(r.events, name)
		r.mu.Unlock()
		close(r.done)
	}
	return ports.SpeechCallbacks{
		OnStart: func() {
			r.mu.Lock()
			r.events = append(r.events, "start")
			r.mu.Unlock()
		},
		OnDone:    func() { terminal("done") },
		OnStopped: func() { terminal("stopped") },
		OnError:   func(error) { terminal("error") },
	}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(2 * time.Second):
		t.Fatalf("no terminal callback")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func newTestSynth(player Player, fetchErr error) *Synthesizer {
	s := NewSynthesizer("", player, nil)
	s.fetch = func(ctx context.Context, text, voice string) ([]byte, error) {
		if fetchErr != nil {
			return nil, fetchErr
		}
		return []byte(voice + ":" + text), nil
	}
	s.decode = func(data []byte) (io.Reader, int, int, error) {
		return bytes.NewReader(data), 24000, 2, nil
	}
	return s
}

func TestSynthesizerPlaysAndReportsDone(t *testing.T) {
	t.Parallel()

	player := &fakePlayer{}
	synth := newTestSynth(player, nil)
	rec := newRecorder()

	if err := synth.Speak(context.Background(), domain.Utterance{ID: "u1", Text: "xin chào"}, rec.callbacks()); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	if got := rec.wait(t); !reflect.DeepEqual(got, []string{"start", "done"}) {
		t.Fatalf("unexpected callbacks: %v", got)
	}
	if string(player.played[0]) != "vi-VN-HoaiMyNeural:xin chào" {
		t.Fatalf("unexpected audio: %q", player.played[0])
	}
}

func TestSynthesizerStopReportsStopped(t *testing.T) {
	t.Parallel()

	synth := newTestSynth(&fakePlayer{block: true}, nil)
	rec := newRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	if err := synth.Speak(ctx, domain.Utterance{ID: "u1", Text: "một hai ba"}, rec.callbacks()); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	// Cancelling the request context must not end playback.
	cancel()

	time.Sleep(20 * time.Millisecond)
	if err := synth.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	got := rec.wait(t)
	if got[len(got)-1] != "stopped" {
		t.Fatalf("unexpected callbacks: %v", got)
	}
	if err := synth.Stop(); err != nil {
		t.Fatalf("stop when idle failed: %v", err)
	}
}

func TestSynthesizerFetchErrorReportsError(t *testing.T) {
	t.Parallel()

	synth := newTestSynth(&fakePlayer{}, errors.New("network down"))
	rec := newRecorder()

	if err := synth.Speak(context.Background(), domain.Utterance{ID: "u1", Text: "xin chào"}, rec.callbacks()); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if got := rec.wait(t); !reflect.DeepEqual(got, []string{"error"}) {
		t.Fatalf("unexpected callbacks: %v", got)
	}
}

func TestSynthesizerSpeakStopsPrevious(t *testing.T) {
	t.Parallel()

	synth := newTestSynth(&fakePlayer{block: true}, nil)
	first := newRecorder()
	second := newRecorder()

	if err := synth.Speak(context.Background(), domain.Utterance{ID: "u1", Text: "một"}, first.callbacks()); err != nil {
		t.Fatalf("speak failed: %v", err)
	}
	if err := synth.Speak(context.Background(), domain.Utterance{ID: "u2", Text: "hai"}, second.callbacks()); err != nil {
		t.Fatalf("speak failed: %v", err)
	}

	got := first.wait(t)
	if got[len(got)-1] != "stopped" {
		t.Fatalf("first utterance should be stopped, got %v", got)
	}
	_ = synth.Stop()
	second.wait(t)
}

func TestSynthesizerRejectsEmptyText(t *testing.T) {
	t.Parallel()

	synth := newTestSynth(&fakePlayer{}, nil)
	if err := synth.Speak(context.Background(), domain.Utterance{Text: "  "}, ports.SpeechCallbacks{}); err == nil {
		t.Fatalf("expected empty utterance error")
	}
}

func TestExecPlayerPipesPCM(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	out := filepath.Join(dir, "out.raw")
	script := filepath.Join(dir, "player.sh")
	if err := os.WriteFile(script, []byte("#!/usr/bin/env bash\necho \"$@\" > "+out+".args\ncat > "+out+"\n"), 0o700); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	player := NewExecPlayer(script, nil)
	if err := player.Play(context.Background(), bytes.NewReader([]byte("pcm")), 24000, 2); err != nil {
		t.Fatalf("play failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil || string(data) != "pcm" {
		t.Fatalf("unexpected piped data: %q err=%v", data, err)
	}
	args, _ := os.ReadFile(out + ".args")
	if !bytes.Contains(args, []byte("-ar 24000")) || !bytes.Contains(args, []byte("-ch_layout stereo")) {
		t.Fatalf("unexpected player args: %s", args)
	}
}

func TestExpandArgs(t *testing.T) {
	t.Parallel()

	got := expandArgs([]string{"-ar", "{rate}", "-ac", "{channels}", "{layout}"}, 16000, 1)
	want := []string{"-ar", "16000", "-ac", "1", "mono"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected args: %v", got)
	}
}
