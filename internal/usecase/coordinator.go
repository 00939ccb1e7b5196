package usecase

import (
	"sync"

	"novasight/internal/domain"
)

// Coordinator holds the exclusion markers shared by the capture loop, the
// narrator and the voice command pipeline. Each marker has one writer:
// speaking belongs to SpeechNarrator, captureOutstanding to CaptureLoop and
// DetectionSubmitter, listening to VoiceCommandPipeline.
type Coordinator struct {
	mu                 sync.Mutex
	speakingID         string
	captureOutstanding bool
	listening          bool
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// TryBeginSpeaking marks utterance id as the one holding the speech signal.
// It refuses while a voice command is being recorded.
func (c *Coordinator) TryBeginSpeaking(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.listening {
		return false
	}
	c.speakingID = id
	return true
}

// HandOffListening moves the screen from the recording to utterance id in one
// step, so nothing can start between the two.
func (c *Coordinator) HandOffListening(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = false
	c.speakingID = id
}

// EndSpeaking clears the speech signal if id still holds it.
func (c *Coordinator) EndSpeaking(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakingID == "" || c.speakingID != id {
		return false
	}
	c.speakingID = ""
	return true
}

func (c *Coordinator) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speakingID != ""
}

// TryBeginCapture admits one capture when nothing else holds the screen.
func (c *Coordinator) TryBeginCapture() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakingID != "" || c.listening || c.captureOutstanding {
		return false
	}
	c.captureOutstanding = true
	return true
}

func (c *Coordinator) EndCapture() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captureOutstanding = false
}

func (c *Coordinator) CaptureOutstanding() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captureOutstanding
}

// TryBeginListening admits one recording when neither speech nor another
// recording is in progress.
func (c *Coordinator) TryBeginListening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.speakingID != "" || c.listening {
		return false
	}
	c.listening = true
	return true
}

func (c *Coordinator) EndListening() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listening = false
}

func (c *Coordinator) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listening
}

// Activity reports what currently holds the screen.
func (c *Coordinator) Activity() domain.Activity {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.listening:
		return domain.ActivityListening
	case c.speakingID != "":
		return domain.ActivitySpeaking
	case c.captureOutstanding:
		return domain.ActivityCapturing
	default:
		return domain.ActivityIdle
	}
}
