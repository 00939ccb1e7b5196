package usecase

import (
	"testing"

	"novasight/internal/domain"
)

func TestCoordinatorRefusesCaptureWhileSpeaking(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator()
	if !coord.TryBeginSpeaking("u1") {
		t.Fatalf("expected speech to be admitted when idle")
	}

	if coord.TryBeginCapture() {
		t.Fatalf("expected capture to be refused while speaking")
	}
	if coord.TryBeginListening() {
		t.Fatalf("expected listening to be refused while speaking")
	}
	if coord.Activity() != domain.ActivitySpeaking {
		t.Fatalf("unexpected activity: %s", coord.Activity())
	}

	if !coord.EndSpeaking("u1") {
		t.Fatalf("expected owner to clear speaking")
	}
	if !coord.TryBeginCapture() {
		t.Fatalf("expected capture after speech ended")
	}
}

func TestCoordinatorSingleOutstandingCapture(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator()
	if !coord.TryBeginCapture() {
		t.Fatalf("expected first capture to be admitted")
	}
	if coord.TryBeginCapture() {
		t.Fatalf("expected second capture to be refused")
	}
	coord.EndCapture()
	if !coord.TryBeginCapture() {
		t.Fatalf("expected capture after the first ended")
	}
}

func TestCoordinatorStaleEndSpeakingKeepsNewerOwner(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator()
	coord.TryBeginSpeaking("old")
	coord.TryBeginSpeaking("new")

	if coord.EndSpeaking("old") {
		t.Fatalf("stale id must not clear the signal")
	}
	if !coord.Speaking() {
		t.Fatalf("expected newer utterance to keep the signal")
	}
	if !coord.EndSpeaking("new") {
		t.Fatalf("expected owner to clear the signal")
	}
	if coord.Speaking() {
		t.Fatalf("expected signal cleared")
	}
}

func TestCoordinatorRefusesSpeechWhileListening(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator()
	if !coord.TryBeginListening() {
		t.Fatalf("expected listening to start")
	}
	if coord.TryBeginSpeaking("result") {
		t.Fatalf("expected speech to be refused while listening")
	}
	if coord.Speaking() || coord.Activity() != domain.ActivityListening {
		t.Fatalf("refused speech must not touch the markers, activity=%s", coord.Activity())
	}
}

func TestCoordinatorHandOffListening(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator()
	coord.TryBeginListening()
	coord.HandOffListening("announcement")

	if coord.Listening() || !coord.Speaking() {
		t.Fatalf("expected the announcement to hold the screen, activity=%s", coord.Activity())
	}
	if coord.TryBeginListening() {
		t.Fatalf("a new recording must wait for the announcement")
	}
	if !coord.EndSpeaking("announcement") {
		t.Fatalf("expected the announcement to own the signal")
	}
}

func TestCoordinatorActivityPriority(t *testing.T) {
	t.Parallel()

	coord := NewCoordinator()
	if coord.Activity() != domain.ActivityIdle {
		t.Fatalf("expected idle, got %s", coord.Activity())
	}
	coord.TryBeginCapture()
	if coord.Activity() != domain.ActivityCapturing {
		t.Fatalf("expected capturing, got %s", coord.Activity())
	}
	if !coord.TryBeginListening() {
		t.Fatalf("listening should be allowed while a capture is outstanding")
	}
	if coord.Activity() != domain.ActivityListening {
		t.Fatalf("expected listening, got %s", coord.Activity())
	}
	coord.EndListening()
	coord.EndCapture()
	if coord.Activity() != domain.ActivityIdle {
		t.Fatalf("expected idle, got %s", coord.Activity())
	}
}
