// Package hardware defines the capability contract the Executor drives
// physical (or simulated) zone outputs through, plus the edge-callback
// protocol for rain-sensor and button inputs (§4.1).
package hardware

// Info describes a driver's identity and zone-bank capacity, as returned by
// Info().
type Info struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Add     int    `json:"zones.add"`
	Pin     int    `json:"zones.pin"`
	Max     int    `json:"zones.max,omitempty"`
}

// EdgeEvent is the payload delivered to a registered rain/button interrupt
// callback.
type EdgeEvent struct {
	Output bool
}

// EdgeFunc is a callback registered with RainInterrupt/ButtonInterrupt.
type EdgeFunc func(EdgeEvent)

// Driver is the capability contract every hardware backend implements.
// setZone and Apply are best-effort: a driver that cannot yet reach its
// pins (a boot race) must store the intended value and retry in the
// background, applying it once ready, rather than returning an error the
// Executor would have to interpret (§4.1 Failure semantics).
type Driver interface {
	// Info reports the driver's identity and bank shape.
	Info() Info

	// Configure (re)initialises the driver from hardware and user
	// configuration. Safe to call again after a config reload.
	Configure(hwConfig, userConfig any) error

	// SetZone stages zone index's energised state. Never returns an error
	// to the caller; failures are logged and retried internally.
	SetZone(index int, on bool)

	// Apply commits any staged SetZone calls to the physical bank. A no-op
	// for drivers that write each pin immediately; required for drivers
	// (e.g. shift registers) that must transfer the whole bank atomically.
	Apply()

	// RainSensor reports the current rain sensor input. Drivers that
	// cannot observe it return false constantly.
	RainSensor() bool

	// Button reports the current button input. Drivers that cannot
	// observe it return false constantly.
	Button() bool

	// RainInterrupt registers cb to fire on the rain sensor's configured
	// active edge (falling, by default). Replaces any previously
	// registered callback.
	RainInterrupt(cb EdgeFunc)

	// ButtonInterrupt registers cb to fire on the button's configured
	// active edge. Replaces any previously registered callback.
	ButtonInterrupt(cb EdgeFunc)

	// Close releases any resources (sockets, file descriptors) held by the
	// driver.
	Close() error
}
