// Package model holds the plain data types shared by every component of the
// controller: zones, programs, adjustment tables, run-queue items and event
// records. None of these types carry behaviour beyond small, pure helpers —
// they are passed by value or pointer between the scheduler, the executor
// and the configuration layer the way the teacher's internal/domain package
// passes broker types between services.
package model

// Zone is a single watering valve channel, addressed by a stable 0-based
// index assigned at configuration load time.
type Zone struct {
	Index int    `json:"-"`
	Name  string `json:"name"`

	// Pin is the output-pin identifier on the hardware driver's bank, if any.
	// Left nil when the zone has no direct pin mapping (e.g. it is only ever
	// referenced as a master by other zones on a driver that assigns pins
	// automatically).
	Pin *int `json:"pin,omitempty"`

	// Level is the active output level, "HIGH" or "LOW". Defaults to "HIGH".
	Level string `json:"on,omitempty"`

	// Master, when set, names the zone index that must be energised
	// concurrently with this one to supply water (a pump or the main valve).
	Master *int `json:"master,omitempty"`

	// Manual zones are skipped by program expansion but still respond to
	// direct activation (zoneOnManual) and button walk-through.
	Manual bool `json:"manual,omitempty"`

	// Pulse and Pause split long runs into bursts separated by rest periods.
	// Zero means "do not pulse this zone".
	Pulse int `json:"pulse,omitempty"`
	Pause int `json:"pause,omitempty"`

	// Adjust names the AdjustmentProfile to use for this zone. Empty means
	// the implicit "default" profile.
	Adjust string `json:"adjust,omitempty"`
}

// ActiveHigh reports whether energising the zone means driving its pin high.
func (z Zone) ActiveHigh() bool {
	return z.Level != "LOW"
}

// ZoneIndex maps zone names and indices to their configuration and exposes
// the few lookups the scheduler and executor need without reaching into the
// whole configuration document.
type ZoneIndex struct {
	zones   []Zone
	byName  map[string]int
}

// NewZoneIndex builds a ZoneIndex from an ordered zone list. The slice order
// becomes the stable index assignment.
func NewZoneIndex(zones []Zone) *ZoneIndex {
	idx := &ZoneIndex{
		zones:  make([]Zone, len(zones)),
		byName: make(map[string]int, len(zones)),
	}
	for i, z := range zones {
		z.Index = i
		idx.zones[i] = z
		idx.byName[z.Name] = i
	}
	return idx
}

// Len returns the number of configured zones.
func (zi *ZoneIndex) Len() int {
	if zi == nil {
		return 0
	}
	return len(zi.zones)
}

// Get returns the zone at index i and whether it exists.
func (zi *ZoneIndex) Get(i int) (Zone, bool) {
	if zi == nil || i < 0 || i >= len(zi.zones) {
		return Zone{}, false
	}
	return zi.zones[i], true
}

// IndexByName resolves a display name to a zone index, used by the
// iCalendar description DSL (§4.4) to turn "FrontLawn=15" into {zone, seconds}.
func (zi *ZoneIndex) IndexByName(name string) (int, bool) {
	if zi == nil {
		return 0, false
	}
	i, ok := zi.byName[name]
	return i, ok
}

// All returns every configured zone in index order.
func (zi *ZoneIndex) All() []Zone {
	if zi == nil {
		return nil
	}
	out := make([]Zone, len(zi.zones))
	copy(out, zi.zones)
	return out
}
