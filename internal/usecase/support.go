package usecase

import (
	"io"
	"log/slog"

	"novasight/internal/domain"
	"novasight/internal/ports"
)

func componentLogger(logger *slog.Logger, component string) *slog.Logger {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return logger.With("component", component)
}

func sinkOrNoop(events ports.EventSink) ports.EventSink {
	if events == nil {
		return noopEventSink{}
	}
	return events
}

type noopEventSink struct{}

func (noopEventSink) SessionStateChanged(domain.SessionState, domain.SessionStateReason) {}
func (noopEventSink) ModeChanged(domain.DetectionMode, string) {}
func (noopEventSink) Spoken(string) {}
func (noopEventSink) CaptureHeld(domain.DetectionMode, string) {}
func (noopEventSink) SessionError(domain.ErrorCode, string) {}
