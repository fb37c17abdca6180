package model

import "time"

// PauseZone is the sentinel RunItem.Zone value meaning "this item is a pause
// between pulses", attributable to Parent but not energising any output.
const PauseZone = -1

// RunItem is one step of an expanded run plan: either an activation of a
// zone for Seconds, or — when Zone == PauseZone — a sleep between pulses.
type RunItem struct {
	Zone         int
	Seconds      int
	Parent       string // owning program name, empty for manual activations
	AdjustSource string // tag describing which adjustment produced Seconds, empty if none
	Ratio        int    // adjusted*100/raw, 100 when no adjustment applied
	RunID        string // correlates every item/event of one ProgramOn/ZoneOnManual admission
}

// IsPause reports whether this item is a group-level pause rather than a
// zone activation.
func (r RunItem) IsPause() bool {
	return r.Zone == PauseZone
}

// RunningState describes what the Executor currently has energised, if
// anything.
type RunningState struct {
	Active    bool
	Zone      int
	Parent    string
	Seconds   int
	Remaining int
	StartedAt time.Time
	RunID     string
}
