package usecase

import (
	"sync"

	"novasight/internal/domain"
	"novasight/internal/modes"
)

// ModeRouter tracks the active detection mode and switches to the
// destination of a voice command.
type ModeRouter struct {
	table *modes.Table
	rearm func(domain.DetectionMode)

	mu      sync.Mutex
	current domain.DetectionMode
}

func NewModeRouter(table *modes.Table, rearm func(domain.DetectionMode)) *ModeRouter {
	return &ModeRouter{
		table:   table,
		rearm:   rearm,
		current: modes.DefaultMode,
	}
}

// Set records mode as active without re-arming the capture loop.
func (r *ModeRouter) Set(mode domain.DetectionMode) {
	if !mode.Valid() {
		mode = modes.DefaultMode
	}
	r.mu.Lock()
	r.current = mode
	r.mu.Unlock()
}

func (r *ModeRouter) Current() domain.DetectionMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Path returns the navigation destination of the active mode.
func (r *ModeRouter) Path() string {
	return r.table.Lookup(r.Current()).Path
}

// Route switches to the command's destination and reports whether the mode
// changed. Routing to the active mode is a no-op.
func (r *ModeRouter) Route(result domain.VoiceCommandResult) bool {
	dest := result.Destination
	if !dest.Valid() {
		dest = modes.DefaultMode
	}

	r.mu.Lock()
	if r.current == dest {
		r.mu.Unlock()
		return false
	}
	r.current = dest
	r.mu.Unlock()

	if r.rearm != nil {
		r.rearm(dest)
	}
	return true
}
