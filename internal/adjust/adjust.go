// Package adjust holds the surface shared by the WeatherAdjuster and
// WateringIndexAdjuster (§4.3): both are schedule-armed pollers of an
// external percentage that scales a zone's configured run seconds.
package adjust

import (
	"strconv"
	"strings"
	"time"
)

// Adjuster is the common surface both external adjustment sources expose.
// The Executor depends only on this interface, never on the concrete
// weather or watering-index client, so either can be swapped or disabled
// independently.
type Adjuster interface {
	// Refresh is a heartbeat call: it fetches only when due (see Schedule).
	Refresh()
	// Enabled reports whether this adjuster is configured and armed.
	Enabled() bool
	// Updated returns the timestamp of the last successful fetch.
	Updated() time.Time
	// Adjustment returns the raw adjustment percentage most recently
	// computed (0-100+, clamped by Adjust but not here).
	Adjustment() int
	// Adjust scales seconds by Adjustment(), clamped to [min, max] percent
	// and half-rounded: ((seconds*percent)+50)/100.
	Adjust(seconds int) int
	// Source returns the tag attached to RunItems produced using this
	// adjuster (e.g. "WEATHER", "WATERDEX").
	Source() string
}

// Clamp applies the documented clamp/round formula from §4.3:
// clamp(min*s/100, round(raw*s/100), max*s/100).
func Clamp(seconds, raw, min, max int) int {
	adjusted := HalfRound(seconds, raw)
	lo := HalfRound(seconds, min)
	hi := HalfRound(seconds, max)
	if adjusted < lo {
		adjusted = lo
	}
	if adjusted > hi {
		adjusted = hi
	}
	return adjusted
}

// HalfRound computes ((seconds*percent)+50)/100, the half-rounded integer
// arithmetic §4.3 specifies for every percentage scaling in this system.
func HalfRound(seconds, percent int) int {
	return ((seconds * percent) + 50) / 100
}

// Slot is one entry of a refresh schedule: "fetch when the wall clock
// hour matches and Armed is still true, at or after Minute". After firing,
// Armed is cleared; it is set again the first tick where the current hour
// no longer matches, giving a one-shot-per-hour firing pattern (§4.3).
type Slot struct {
	Hour   int
	Minute int
	Armed  bool
}

// ParseSchedule builds a Slot list from the config strings ("HH" or
// "HH:MM"), each initially armed. Entries that don't parse are skipped.
func ParseSchedule(entries []string) []Slot {
	slots := make([]Slot, 0, len(entries))
	for _, e := range entries {
		h, m, ok := parseHHMM(e)
		if !ok {
			continue
		}
		slots = append(slots, Slot{Hour: h, Minute: m, Armed: true})
	}
	return slots
}

func parseHHMM(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || h < 0 || h > 23 {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return h, 0, true
	}
	m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

// Due reports whether any slot in schedule is due at now, and updates each
// slot's Armed flag per §4.3's one-shot-per-hour rule. When schedule is
// empty, Due falls back to "at least 6 hours since lastFetch".
func Due(now time.Time, schedule []Slot, lastFetch time.Time) bool {
	if len(schedule) == 0 {
		return lastFetch.IsZero() || now.Sub(lastFetch) >= 6*time.Hour
	}

	fired := false
	for i := range schedule {
		slot := &schedule[i]
		if now.Hour() != slot.Hour {
			slot.Armed = true
			continue
		}
		if slot.Armed && now.Minute() >= slot.Minute {
			slot.Armed = false
			fired = true
		}
	}
	return fired
}
