package httpapi

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"novasight/internal/domain"
)

// Event is one engine notification as served by GET /api/events.
type Event struct {
	Seq    uint64            `json:"seq"`
	At     time.Time         `json:"at"`
	Kind   string            `json:"kind"`
	Fields map[string]string `json:"fields"`
}

// EventLog is the headless event sink. It logs every event and keeps the
// most recent ones for polling clients.
type EventLog struct {
	capacity int

	mu     sync.Mutex
	logger *slog.Logger
	seq    uint64
	events []Event
}

func NewEventLog(capacity int, logger *slog.Logger) *EventLog {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLog{logger: logger.With("component", "events"), capacity: capacity}
}

func (l *EventLog) SessionStateChanged(state domain.SessionState, reason domain.SessionStateReason) {
	l.add("state", map[string]string{"state": string(state), "reason": string(reason)})
}

func (l *EventLog) ModeChanged(mode domain.DetectionMode, path string) {
	l.add("mode", map[string]string{"mode": string(mode), "path": path})
}

func (l *EventLog) Spoken(text string) {
	l.add("spoken", map[string]string{"text": text})
}

func (l *EventLog) CaptureHeld(mode domain.DetectionMode, frameID string) {
	l.add("face-pending", map[string]string{"mode": string(mode), "frame": frameID})
}

func (l *EventLog) SessionError(code domain.ErrorCode, detail string) {
	l.add("error", map[string]string{"code": string(code), "detail": detail})
}

// SetLogger replaces the logger events are written to.
func (l *EventLog) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger = logger.With("component", "events")
}

// Since returns events with a sequence number greater than after.
func (l *EventLog) Since(after uint64) []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, 0, len(l.events))
	for _, event := range l.events {
		if event.Seq > after {
			out = append(out, event)
		}
	}
	return out
}

func (l *EventLog) add(kind string, fields map[string]string) {
	l.mu.Lock()
	l.seq++
	event := Event{Seq: l.seq, At: time.Now(), Kind: kind, Fields: fields}
	l.events = append(l.events, event)
	if over := len(l.events) - l.capacity; over > 0 {
		l.events = append([]Event(nil), l.events[over:]...)
	}
	logger := l.logger
	l.mu.Unlock()

	level := slog.LevelInfo
	if kind == "error" {
		level = slog.LevelWarn
	}
	args := make([]any, 0, 2+len(fields)*2)
	args = append(args, "seq", event.Seq)
	for key, value := range fields {
		args = append(args, key, value)
	}
	logger.Log(context.Background(), level, kind, args...)
}
