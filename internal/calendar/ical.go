package calendar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/sprinklerd/internal/model"
)

// vevent is one unfolded, parsed VEVENT block.
type vevent struct {
	uid          string
	recurrenceID *time.Time
	sequence     int
	summary      string
	description  string
	location     string
	start        time.Time
	allDay       bool
	freq         string
	interval     int
	byday        string
	until        *time.Time
	exdates      []time.Time
}

// unfold joins RFC 5545 §3.1 line continuations: any line beginning with a
// space or tab is appended to the previous line with the leading
// whitespace stripped.
func unfold(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var lines []string
	for _, l := range raw {
		if len(l) > 0 && (l[0] == ' ' || l[0] == '\t') && len(lines) > 0 {
			lines[len(lines)-1] += l[1:]
			continue
		}
		if strings.TrimSpace(l) == "" {
			continue
		}
		lines = append(lines, l)
	}
	return lines
}

// property is one unfolded "NAME;PARAM=VAL;...:VALUE" line.
type property struct {
	name   string
	params map[string]string
	value  string
}

func parseProperty(line string) property {
	colon := strings.IndexByte(line, ':')
	if colon < 0 {
		return property{name: line, params: map[string]string{}}
	}
	head := line[:colon]
	value := line[colon+1:]

	parts := strings.Split(head, ";")
	p := property{name: strings.ToUpper(parts[0]), params: map[string]string{}, value: value}
	for _, param := range parts[1:] {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) == 2 {
			p.params[strings.ToUpper(kv[0])] = kv[1]
		}
	}
	return p
}

// parseICalendar parses raw iCalendar text into active, non-expired,
// location-matching Programs keyed by synthesised name ("summary@calendar").
// Update events (UID + RECURRENCE-ID) are attached to their main event as
// exceptions rather than returned standalone.
func parseICalendar(text, calendarName, season string, zones *model.ZoneIndex, location string, defaultLoc *time.Location, now time.Time) (map[string]*model.Program, error) {
	lines := unfold(text)

	calTZID := ""
	mains := map[string]*vevent{}
	updates := map[string][]*vevent{} // uid -> updates, later SEQUENCE wins per recurrenceTime

	var cur *vevent
	inEvent := false
	inTZ := false

	for _, line := range lines {
		p := parseProperty(line)

		switch p.name {
		case "BEGIN":
			switch strings.ToUpper(p.value) {
			case "VEVENT":
				inEvent = true
				cur = &vevent{interval: 1}
			case "VTIMEZONE":
				inTZ = true
			}
			continue
		case "END":
			switch strings.ToUpper(p.value) {
			case "VEVENT":
				inEvent = false
				if cur != nil && cur.uid != "" {
					if cur.recurrenceID != nil {
						updates[cur.uid] = append(updates[cur.uid], cur)
					} else {
						mains[cur.uid] = cur
					}
				}
				cur = nil
			case "VTIMEZONE":
				inTZ = false
			}
			continue
		}

		if inTZ && p.name == "TZID" {
			calTZID = p.value
			continue
		}

		if !inEvent || cur == nil {
			continue
		}

		switch p.name {
		case "UID":
			cur.uid = p.value
		case "SUMMARY":
			cur.summary = p.value
		case "DESCRIPTION":
			cur.description = p.value
		case "LOCATION":
			cur.location = p.value
		case "SEQUENCE":
			n, _ := strconv.Atoi(p.value)
			cur.sequence = n
		case "DTSTART":
			t, allDay, err := parseDateTime(p, calTZID, defaultLoc)
			if err == nil {
				cur.start = t
				cur.allDay = allDay
			}
		case "RECURRENCE-ID":
			t, _, err := parseDateTime(p, calTZID, defaultLoc)
			if err == nil {
				cur.recurrenceID = &t
			}
		case "EXDATE":
			for _, part := range strings.Split(p.value, ",") {
				pp := p
				pp.value = part
				t, _, err := parseDateTime(pp, calTZID, defaultLoc)
				if err == nil {
					cur.exdates = append(cur.exdates, t)
				}
			}
		case "RRULE":
			for _, part := range strings.Split(p.value, ";") {
				kv := strings.SplitN(part, "=", 2)
				if len(kv) != 2 {
					continue
				}
				switch strings.ToUpper(kv[0]) {
				case "FREQ":
					cur.freq = strings.ToUpper(kv[1])
				case "INTERVAL":
					n, err := strconv.Atoi(kv[1])
					if err == nil && n > 0 {
						cur.interval = n
					}
				case "BYDAY":
					cur.byday = strings.ToUpper(kv[1])
				case "UNTIL":
					untilProp := property{name: "UNTIL", params: map[string]string{}, value: kv[1]}
					t, _, err := parseDateTime(untilProp, calTZID, defaultLoc)
					if err == nil {
						cur.until = &t
					}
				}
			}
		}
	}

	// Later SEQUENCE wins per recurrence-id when multiple updates target it.
	bestUpdate := map[string]map[time.Time]*vevent{}
	for uid, upds := range updates {
		sort.Slice(upds, func(i, j int) bool { return upds[i].sequence < upds[j].sequence })
		m := map[time.Time]*vevent{}
		for _, u := range upds {
			if u.recurrenceID == nil {
				continue
			}
			m[*u.recurrenceID] = u // last write (highest sequence) wins
		}
		bestUpdate[uid] = m
	}

	result := make(map[string]*model.Program)
	for uid, ev := range mains {
		prog, err := buildProgram(ev, calendarName, season, zones, location, now)
		if err != nil || prog == nil {
			continue
		}

		for recTime, upd := range bestUpdate[uid] {
			if upd.location != "" && !strings.EqualFold(upd.location, location) {
				continue
			}
			if upd.allDay {
				continue
			}
			if upd.start.Before(now) && recTime.Before(now) {
				continue // neither the new start nor the replaced occurrence is still ahead
			}
			excProg, err := buildExceptionProgram(upd, calendarName, zones)
			if err != nil {
				continue
			}
			prog.Exceptions = append(prog.Exceptions, excProg)
			prog.Exclusions = append(prog.Exclusions, recTime)
		}

		result[prog.Name] = prog
	}

	return result, nil
}

// buildProgram synthesises a Program from a main (non-update) VEVENT,
// applying the expiry, location-filter and all-day rules of §4.4.
func buildProgram(ev *vevent, calendarName, season string, zones *model.ZoneIndex, location string, now time.Time) (*model.Program, error) {
	if ev.allDay {
		return nil, nil
	}
	if ev.location != "" && !strings.EqualFold(ev.location, location) {
		return nil, nil
	}

	repeat := model.RepeatNone
	interval := 0
	var days [7]bool
	switch ev.freq {
	case "":
		// single occurrence
	case "DAILY":
		repeat = model.RepeatDaily
		interval = ev.interval
	case "WEEKLY":
		repeat = model.RepeatWeekly
		days = parseByDay(ev.byday)
	default:
		return nil, fmt.Errorf("unsupported RRULE frequency %q", ev.freq)
	}

	if repeat == model.RepeatNone {
		if ev.start.Before(now.Add(-60 * time.Second)) {
			return nil, nil // expired single occurrence
		}
	} else if ev.until != nil && ev.until.Before(now) {
		return nil, nil // recurrence's UNTIL has passed
	}

	zoneList, options, err := parseDescription(ev.description, zones)
	if err != nil {
		return nil, err
	}

	p := &model.Program{
		Name:     ev.summary + "@" + calendarName,
		Active:   true,
		Start:    ev.start.Format("15:04"),
		Repeat:   repeat,
		Interval: interval,
		Days:     days,
		Date:     ev.start.Format("20060102"),
		Season:   season,
		Options:  options,
		Zones:    zoneList,
		Calendar: calendarName,
	}
	if ev.until != nil {
		p.Until = ev.until.Format("20060102")
	}
	for _, ex := range ev.exdates {
		p.Exclusions = append(p.Exclusions, ex)
	}
	return p, nil
}

// buildExceptionProgram synthesises the replacement, non-repeating Program
// for an update event.
func buildExceptionProgram(ev *vevent, calendarName string, zones *model.ZoneIndex) (*model.Program, error) {
	zoneList, options, err := parseDescription(ev.description, zones)
	if err != nil {
		return nil, err
	}
	return &model.Program{
		Name:    ev.summary + "@" + calendarName,
		Active:  true,
		Start:   ev.start.Format("15:04"),
		Repeat:  model.RepeatNone,
		Date:    ev.start.Format("20060102"),
		Options: options,
		Zones:   zoneList,
	}, nil
}

// parseByDay turns an RRULE BYDAY value (e.g. "MO,WE,FR") into a Sun=0
// 7-bit day vector.
func parseByDay(byday string) [7]bool {
	var days [7]bool
	if byday == "" {
		return days
	}
	index := map[string]int{"SU": 0, "MO": 1, "TU": 2, "WE": 3, "TH": 4, "FR": 5, "SA": 6}
	for _, tok := range strings.Split(byday, ",") {
		tok = strings.TrimSpace(tok)
		// Strip any leading ordinal (e.g. "1MO"); not meaningful for a
		// plain weekly rule, which is all this importer supports.
		for len(tok) > 0 && (tok[0] == '+' || tok[0] == '-' || (tok[0] >= '0' && tok[0] <= '9')) {
			tok = tok[1:]
		}
		if i, ok := index[tok]; ok {
			days[i] = true
		}
	}
	return days
}

// parseDescription implements the event description DSL (§4.4): space- or
// comma-separated tokens, each either "append" or "zoneName[=|:]minutes".
// If any zone name token is unknown, the entire event is rejected.
func parseDescription(desc string, zones *model.ZoneIndex) ([]model.ProgramZone, model.ProgramOptions, error) {
	var out []model.ProgramZone
	var opts model.ProgramOptions

	fields := strings.FieldsFunc(desc, func(r rune) bool {
		return r == ' ' || r == ','
	})

	for _, tok := range fields {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if strings.EqualFold(tok, "append") {
			opts.Append = true
			continue
		}

		sep := strings.IndexAny(tok, "=:")
		if sep < 0 {
			return nil, opts, fmt.Errorf("unrecognised description token %q", tok)
		}
		name := tok[:sep]
		valueStr := tok[sep+1:]
		minutes, err := strconv.Atoi(strings.TrimSpace(valueStr))
		if err != nil {
			return nil, opts, fmt.Errorf("description token %q has non-integer value: %w", tok, err)
		}
		idx, ok := zones.IndexByName(name)
		if !ok {
			return nil, opts, fmt.Errorf("description token %q references unknown zone %q", tok, name)
		}
		out = append(out, model.ProgramZone{Zone: idx, Seconds: minutes * 60})
	}

	return out, opts, nil
}

// parseDateTime resolves a DTSTART/EXDATE/RECURRENCE-ID/UNTIL value's
// timezone per §4.4: a trailing Z means UTC; a TZID parameter names an
// IANA zone; otherwise the calendar's enclosing VTIMEZONE, falling back to
// the controller's default timezone. The result is converted to
// defaultLoc (the controller's local timezone) for storage.
func parseDateTime(p property, calendarTZID string, defaultLoc *time.Location) (time.Time, bool, error) {
	if p.params["VALUE"] == "DATE" {
		t, err := time.ParseInLocation("20060102", p.value, defaultLoc)
		return t, true, err
	}

	value := p.value
	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return time.Time{}, false, err
		}
		return t.In(defaultLoc), false, nil
	}

	tzid := p.params["TZID"]
	if tzid == "" {
		tzid = calendarTZID
	}

	loc := defaultLoc
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	t, err := time.ParseInLocation("20060102T150405", value, loc)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.In(defaultLoc), false, nil
}
