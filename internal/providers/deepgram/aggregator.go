package deepgram

import (
	"strings"
	"sync"
)

// transcriptAggregator joins final segments, falling back to the last
// interim hypothesis when the socket closes before a final arrives.
type transcriptAggregator struct {
	mu          sync.Mutex
	finals      []string
	lastInterim string
}

func newTranscriptAggregator() *transcriptAggregator {
	return &transcriptAggregator{}
}

func (a *transcriptAggregator) Add(text string, final bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if final {
		a.finals = append(a.finals, text)
		a.lastInterim = ""
		return
	}
	a.lastInterim = text
}

func (a *transcriptAggregator) Raw() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	parts := append([]string(nil), a.finals...)
	if a.lastInterim != "" {
		parts = append(parts, a.lastInterim)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
