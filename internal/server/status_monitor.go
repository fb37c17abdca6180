// Package server hosts the daemon's HTTP control/status surface (§6
// External Interfaces).
package server

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/engine"
	"github.com/aristath/sprinklerd/internal/events"
)

// StatusMonitor periodically polls the engine's status snapshot and emits
// live-bus events when the coarse run mode or the rain-delay hold state
// changes, so SSE subscribers don't have to diff full snapshots themselves.
type StatusMonitor struct {
	eventManager *events.Manager
	log          zerolog.Logger

	lastMode          engine.Mode
	lastRainDelayHeld bool
	haveLast          bool

	// Dependency injection for testing.
	getStatus func() engine.Status
}

// NewStatusMonitor builds a StatusMonitor polling eng's snapshot.
func NewStatusMonitor(eventManager *events.Manager, eng *engine.Engine, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager: eventManager,
		log:          log.With().Str("component", "status_monitor").Logger(),
		getStatus:    eng.StatusSnapshot,
	}
}

// Start begins periodic status monitoring.
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.checkStatus()
	for range ticker.C {
		m.checkStatus()
	}
}

// checkStatus compares the current snapshot against the last one seen and
// emits ModeChanged/RainDelayChanged only when something actually moved.
func (m *StatusMonitor) checkStatus() {
	if m.eventManager == nil || m.getStatus == nil {
		return
	}

	status := m.getStatus()

	if !m.haveLast {
		m.lastMode = status.Mode
		m.lastRainDelayHeld = status.RainDelay.Active
		m.haveLast = true
		return
	}

	if status.Mode != m.lastMode {
		m.eventManager.Emit(events.ModeChanged, "status_monitor", map[string]interface{}{
			"from": string(m.lastMode),
			"to":   string(status.Mode),
		})
		m.lastMode = status.Mode
	}

	if status.RainDelay.Active != m.lastRainDelayHeld {
		m.eventManager.Emit(events.RainDelayChanged, "status_monitor", map[string]interface{}{
			"active":    status.RainDelay.Active,
			"remaining": status.RainDelay.Remaining.String(),
		})
		m.lastRainDelayHeld = status.RainDelay.Active
	}
}
