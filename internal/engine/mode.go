package engine

// Mode is the controller's coarse run state (§4.7), derived on demand from
// the config on/off flag, the Executor's running state and the
// Scheduler's rain-delay status rather than tracked as its own field —
// there is nothing to keep consistent if it is always computed fresh.
type Mode string

const (
	ModeOff      Mode = "off"
	ModeIdle     Mode = "idle"
	ModeRainHold Mode = "rainhold"
	ModeRunning  Mode = "running"
)

// deriveMode implements §4.7's state table. Running is orthogonal to
// RainHold: an in-flight run continues through a newly armed hold, so a
// busy Executor always reports Running regardless of the delay.
func deriveMode(on, executorActive, rainHeld bool) Mode {
	switch {
	case !on:
		return ModeOff
	case executorActive:
		return ModeRunning
	case rainHeld:
		return ModeRainHold
	default:
		return ModeIdle
	}
}
