package model

import "time"

// EventAction enumerates the fixed set of things an EventRecord can
// describe. Modelled as a tagged record with an enumerated action and a bag
// of optional fields (§9 design notes), not a polymorphic map.
type EventAction string

const (
	ActionStartup EventAction = "STARTUP"
	ActionOn      EventAction = "ON"
	ActionOff     EventAction = "OFF"
	ActionStart   EventAction = "START"
	ActionEnd     EventAction = "END"
	ActionCancel  EventAction = "CANCEL"
	ActionSkip    EventAction = "SKIP"
	ActionUpdate  EventAction = "UPDATE"
	ActionIdle    EventAction = "IDLE"
)

// EventRecord is one immutable entry of the event log. Timestamp and
// Sequence are assigned by the sink on Record; every other field is
// optional and left at its zero value (nil pointer / empty string) when not
// applicable to the action.
type EventRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	Sequence  int         `json:"sequence"`
	Action    EventAction `json:"action"`

	Zone        *int     `json:"zone,omitempty"`
	Program     *string  `json:"program,omitempty"`
	Parent      *string  `json:"parent,omitempty"`
	Seconds     *int     `json:"seconds,omitempty"`
	Runtime     *int     `json:"runtime,omitempty"`
	Adjustment  *int     `json:"adjustment,omitempty"`
	Source      *string  `json:"source,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Rain        *float64 `json:"rain,omitempty"`
	Ratio       *int     `json:"ratio,omitempty"`
	RunID       *string  `json:"run_id,omitempty"`
}

// Before orders two records by (timestamp desc, sequence desc), the sort
// order §4.2 requires from Find.
func (e EventRecord) Before(o EventRecord) bool {
	if !e.Timestamp.Equal(o.Timestamp) {
		return e.Timestamp.After(o.Timestamp)
	}
	return e.Sequence > o.Sequence
}

func IntPtr(v int) *int                { return &v }
func StringPtr(v string) *string       { return &v }
func Float64Ptr(v float64) *float64    { return &v }
