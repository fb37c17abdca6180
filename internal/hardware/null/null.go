// Package null provides a HardwareDriver that observes nothing and drives
// nothing: useful for running the controller's scheduling and executor
// logic on a development machine, or as the fallback when no other driver
// is configured.
package null

import "github.com/aristath/sprinklerd/internal/hardware"

// Driver is a no-op hardware.Driver: SetZone/Apply are accepted and
// discarded, RainSensor/Button always report false, and interrupt
// registration is accepted but never fires.
type Driver struct{}

// New returns a ready-to-use null driver.
func New() *Driver { return &Driver{} }

func (d *Driver) Info() hardware.Info {
	return hardware.Info{ID: "null", Title: "No hardware (simulation)"}
}

func (d *Driver) Configure(hwConfig, userConfig any) error { return nil }

func (d *Driver) SetZone(index int, on bool) {}

func (d *Driver) Apply() {}

func (d *Driver) RainSensor() bool { return false }

func (d *Driver) Button() bool { return false }

func (d *Driver) RainInterrupt(cb hardware.EdgeFunc) {}

func (d *Driver) ButtonInterrupt(cb hardware.EdgeFunc) {}

func (d *Driver) Close() error { return nil }
