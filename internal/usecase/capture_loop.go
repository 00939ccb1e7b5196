package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"novasight/internal/domain"
	"novasight/internal/modes"
	"novasight/internal/ports"
)

// CaptureSession is the capture schedule of the focused screen.
type CaptureSession struct {
	Mode     domain.DetectionMode
	Interval time.Duration
	Armed    bool
}

type tickOutcome int

const (
	tickSkippedDisarmed tickOutcome = iota
	tickSkippedBusy
	tickCaptureFailed
	tickHeld
	tickSubmitted
	tickSubmitFailed
	tickDiscarded
)

func (o tickOutcome) String() string {
	switch o {
	case tickSkippedDisarmed:
		return "skipped_disarmed"
	case tickSkippedBusy:
		return "skipped_busy"
	case tickCaptureFailed:
		return "capture_failed"
	case tickHeld:
		return "held"
	case tickSubmitted:
		return "submitted"
	case tickSubmitFailed:
		return "submit_failed"
	case tickDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

type pendingCapture struct {
	generation uint64
	mode       domain.DetectionMode
	frame      domain.Frame
}

// CaptureLoop periodically captures frames for the focused screen and hands
// them to the submitter. At most one capture is outstanding at a time and no
// capture starts while the speaking or listening markers are set.
type CaptureLoop struct {
	camera         ports.Camera
	submitter      *DetectionSubmitter
	coord          *Coordinator
	table          *modes.Table
	events         ports.EventSink
	logger         *slog.Logger
	requestTimeout time.Duration

	mu         sync.Mutex
	session    *CaptureSession
	generation uint64
	cancel     context.CancelFunc
	resetCh    chan struct{}
	pending    *pendingCapture
}

func NewCaptureLoop(
	camera ports.Camera,
	submitter *DetectionSubmitter,
	coord *Coordinator,
	table *modes.Table,
	events ports.EventSink,
	logger *slog.Logger,
	requestTimeout time.Duration,
) *CaptureLoop {
	if requestTimeout <= 0 {
		requestTimeout = 20 * time.Second
	}
	return &CaptureLoop{
		camera:         camera,
		submitter:      submitter,
		coord:          coord,
		table:          table,
		events:         sinkOrNoop(events),
		logger:         componentLogger(logger, "capture_loop"),
		requestTimeout: requestTimeout,
		resetCh:        make(chan struct{}, 1),
	}
}

// Start replaces any running session. The ticker only runs when the session
// is armed; a disarmed session is tracked but never captures.
func (l *CaptureLoop) Start(ctx context.Context, session CaptureSession) {
	l.Stop()

	if session.Interval <= 0 {
		session.Interval = l.table.Lookup(session.Mode).Interval
	}

	l.mu.Lock()
	l.generation++
	copied := session
	l.session = &copied
	if !session.Armed {
		l.mu.Unlock()
		l.logger.Info("capture session disarmed", "mode", session.Mode)
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()

	l.logger.Info("capture session armed", "mode", session.Mode, "interval", session.Interval)
	go l.run(runCtx, session.Interval)
}

// Stop cancels the session. Responses still in flight for it are discarded.
func (l *CaptureLoop) Stop() {
	l.mu.Lock()
	cancel := l.cancel
	l.cancel = nil
	hadSession := l.session != nil
	l.session = nil
	l.generation++
	hadPending := l.pending != nil
	l.pending = nil
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if hadPending {
		l.coord.EndCapture()
	}
	if hadSession {
		l.logger.Debug("capture session stopped")
	}
}

// SetMode points the running session at mode and restarts its interval.
// Responses already in flight are still narrated.
func (l *CaptureLoop) SetMode(mode domain.DetectionMode, interval time.Duration) error {
	if interval <= 0 {
		interval = l.table.Lookup(mode).Interval
	}

	l.mu.Lock()
	if l.session == nil {
		l.mu.Unlock()
		return ErrNoActiveSession
	}
	l.session.Mode = mode
	l.session.Interval = interval
	hadPending := l.pending != nil
	l.pending = nil
	l.mu.Unlock()

	if hadPending {
		l.coord.EndCapture()
	}
	select {
	case l.resetCh <- struct{}{}:
	default:
	}
	return nil
}

// Session returns a copy of the current session.
func (l *CaptureLoop) Session() (CaptureSession, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.session == nil {
		return CaptureSession{}, false
	}
	return *l.session, true
}

// Pending reports whether a held frame is waiting for a face profile.
func (l *CaptureLoop) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending != nil
}

// ResumePending submits the held frame with extra as metadata.
func (l *CaptureLoop) ResumePending(ctx context.Context, extra map[string]string) error {
	l.mu.Lock()
	pending := l.pending
	l.pending = nil
	l.mu.Unlock()

	if pending == nil {
		return ErrNoPendingCapture
	}
	_, err := l.submit(ctx, pending.generation, pending.mode, pending.frame, extra)
	return err
}

// DropPending releases a held frame without submitting it.
func (l *CaptureLoop) DropPending() bool {
	l.mu.Lock()
	hadPending := l.pending != nil
	l.pending = nil
	l.mu.Unlock()

	if hadPending {
		l.coord.EndCapture()
	}
	return hadPending
}

func (l *CaptureLoop) run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.resetCh:
			if session, ok := l.Session(); ok && session.Interval > 0 {
				interval = session.Interval
			}
			ticker.Reset(interval)
		case <-ticker.C:
			outcome := l.tick(ctx)
			l.logger.Debug("capture tick", "outcome", outcome.String())
		}
	}
}

func (l *CaptureLoop) tick(ctx context.Context) tickOutcome {
	l.mu.Lock()
	session := l.session
	generation := l.generation
	var mode domain.DetectionMode
	armed := session != nil && session.Armed
	if armed {
		mode = session.Mode
	}
	l.mu.Unlock()

	if !armed {
		return tickSkippedDisarmed
	}
	if !l.coord.TryBeginCapture() {
		return tickSkippedBusy
	}

	spec := l.table.Lookup(mode)
	frame, err := l.camera.Capture(ctx, spec.Facing)
	if err != nil {
		l.coord.EndCapture()
		if ctx.Err() != nil {
			return tickDiscarded
		}
		l.logger.Warn("camera capture failed", "mode", mode, "error", err)
		l.events.SessionError(domain.ErrorCodeCamera, err.Error())
		return tickCaptureFailed
	}

	if spec.Deferred {
		l.mu.Lock()
		if l.generation != generation {
			l.mu.Unlock()
			l.coord.EndCapture()
			return tickDiscarded
		}
		l.pending = &pendingCapture{generation: generation, mode: mode, frame: frame}
		l.mu.Unlock()

		// The capture marker stays set until the profile is submitted or
		// cancelled, which pauses the loop.
		l.logger.Info("holding frame for face profile", "frame", frame.ID)
		l.events.CaptureHeld(mode, frame.ID)
		l.events.SessionStateChanged(domain.SessionStateHolding, domain.SessionReasonAwaitingProfile)
		return tickHeld
	}

	outcome, _ := l.submit(ctx, generation, mode, frame, nil)
	return outcome
}

func (l *CaptureLoop) submit(ctx context.Context, generation uint64, mode domain.DetectionMode, frame domain.Frame, extra map[string]string) (tickOutcome, error) {
	defer l.coord.EndCapture()

	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.requestTimeout)
	defer cancel()

	result, err := l.submitter.Submit(reqCtx, frame, mode, extra)
	if !l.current(generation) {
		l.logger.Debug("discarding response for stale session", "mode", mode, "frame", frame.ID)
		return tickDiscarded, nil
	}
	if err != nil {
		l.logger.Warn("recognition failed", "mode", mode, "error", err)
		l.events.SessionError(domain.ErrorCodeRecognition, err.Error())
		return tickSubmitFailed, err
	}

	// Speech is queued before the capture marker clears so the next tick
	// sees the speaking marker.
	if _, err := l.submitter.Narrate(reqCtx, mode, result); err != nil {
		l.logger.Warn("narration failed", "mode", mode, "error", err)
	}
	return tickSubmitted, nil
}

func (l *CaptureLoop) current(generation uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.session != nil && l.generation == generation
}
