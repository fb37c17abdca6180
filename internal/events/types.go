package events

import "time"

// EventType enumerates the live-bus event kinds. These mirror
// model.EventAction (the durable sink's vocabulary) plus a few internal
// kinds that never reach the persisted log: ErrorOccurred reports
// operational failures, and ModeChanged/RainDelayChanged are emitted by
// StatusMonitor when it notices the engine's coarse state changed.
type EventType string

const (
	Startup          EventType = "STARTUP"
	ZoneOn           EventType = "ON"
	ZoneOff          EventType = "OFF"
	RunStart         EventType = "START"
	RunEnd           EventType = "END"
	RunCancel        EventType = "CANCEL"
	RunSkip          EventType = "SKIP"
	ConfigUpdate     EventType = "UPDATE"
	Idle             EventType = "IDLE"
	ErrorOccurred    EventType = "ERROR"
	ModeChanged      EventType = "MODE_CHANGED"
	RainDelayChanged EventType = "RAINDELAY_CHANGED"
)

// Event is a single published notification: the live counterpart to a
// persisted model.EventRecord, fanned out to in-process subscribers (the
// HTTP SSE stream, the TUI) rather than written to the event log.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}
