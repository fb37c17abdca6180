package model

// AdjustmentProfile is a named percentage table applied to a zone's
// configured run seconds, indexed either by ISO week number or by month.
// Exactly one of Monthly/Weekly is set. A zone without a profile name uses
// the profile named "default"; when no such entry is configured, no
// profile applies and the Executor falls through to its other adjustment
// sources.
type AdjustmentProfile struct {
	Name    string `json:"name"`
	Monthly []int  `json:"monthly,omitempty"` // len 12, percent
	Weekly  []int  `json:"weekly,omitempty"`  // len <= 53, percent
}

// Ratio returns the percentage to apply for the given ISO week number and
// month (1-12), and a tag describing which vector supplied it ("weekly" or
// "monthly"). ok is false if the profile has neither vector populated.
func (p AdjustmentProfile) Ratio(isoWeek, month int) (ratio int, tag string, ok bool) {
	if len(p.Weekly) > 0 {
		i := isoWeek - 1
		if i >= 0 && i < len(p.Weekly) {
			return p.Weekly[i], "weekly", true
		}
		return 0, "weekly", false
	}
	if len(p.Monthly) == 12 {
		i := month - 1
		if i >= 0 && i < 12 {
			return p.Monthly[i], "monthly", true
		}
		return 0, "monthly", false
	}
	return 0, "", false
}

// Season is a named boolean calendar table: a Program tagged with a season
// only runs when the current week or month bit is true.
type Season struct {
	Name    string `json:"name"`
	Monthly []bool `json:"monthly,omitempty"` // len 12
	Weekly  []bool `json:"weekly,omitempty"`  // len <= 53
}

// Active reports whether the season permits a run this ISO week / month,
// and whether the season has any vector configured at all (ok=false means
// "treat as always active" — an empty season never suppresses a program).
func (s Season) Active(isoWeek, month int) (active bool, ok bool) {
	if len(s.Weekly) > 0 {
		i := isoWeek - 1
		if i >= 0 && i < len(s.Weekly) {
			return s.Weekly[i], true
		}
		return false, true
	}
	if len(s.Monthly) == 12 {
		i := month - 1
		if i >= 0 && i < 12 {
			return s.Monthly[i], true
		}
		return false, true
	}
	return true, false
}
