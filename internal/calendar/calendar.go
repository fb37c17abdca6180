// Package calendar implements the iCalendar importer (§4.4): it fetches
// iCalendar text from each configured source on an hour-aligned schedule,
// parses it into Program objects, and prunes calendars no longer present
// in the configuration. Concurrency and the per-source "one fetch at a
// time" sequencing follow the same shape as internal/weather's HTTP
// client, generalized here to a set of sources instead of one.
package calendar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/model"
)

// Config describes one configured iCalendar source (§6 calendars[]).
type Config struct {
	Name     string
	Format   string // must be "ical" or "icalendar"
	Source   string // file:, http:// or https://
	Season   string
	Disabled bool
}

// Status is the per-calendar health snapshot returned by Status().
type Status struct {
	Name    string
	OK      bool
	Updated time.Time
}

// supported reports whether cfg names a scheme/format this importer can
// fetch. Unsupported combinations are marked disabled per §4.4.
func (c Config) supported() bool {
	switch strings.ToLower(c.Format) {
	case "ical", "icalendar":
	default:
		return false
	}
	return strings.HasPrefix(c.Source, "file:") ||
		strings.HasPrefix(c.Source, "http://") ||
		strings.HasPrefix(c.Source, "https://")
}

type calendarState struct {
	cfg      Config
	ok       bool
	updated  time.Time
	programs map[string]*model.Program // keyed by synthesised program name
}

// Importer is the CalendarImporter (§4.4).
type Importer struct {
	httpClient *http.Client
	log        zerolog.Logger

	mu        sync.Mutex
	zones     *model.ZoneIndex
	location  string
	loc       *time.Location
	calendars []*calendarState

	lastRefreshHour int // -1 = never refreshed
	refreshing      bool
}

// New builds an Importer. Configure must be called before Refresh does
// anything useful.
func New(log zerolog.Logger) *Importer {
	return &Importer{
		httpClient:      &http.Client{Timeout: 15 * time.Second},
		log:             log.With().Str("component", "calendar").Logger(),
		lastRefreshHour: -1,
		loc:             time.UTC,
	}
}

// Configure rebuilds the calendar list from cfgs. Calendars kept across a
// reconfigure retain their cached programs and status; calendars dropped
// from cfgs are pruned entirely (§4.4 "a final prune removes programs
// whose parent calendar no longer exists in the configuration").
func (imp *Importer) Configure(cfgs []Config, zones *model.ZoneIndex, location string, loc *time.Location) {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	imp.zones = zones
	imp.location = location
	if loc != nil {
		imp.loc = loc
	}

	existing := make(map[string]*calendarState, len(imp.calendars))
	for _, cs := range imp.calendars {
		existing[cs.cfg.Name] = cs
	}

	next := make([]*calendarState, 0, len(cfgs))
	for _, c := range cfgs {
		if cs, ok := existing[c.Name]; ok {
			cs.cfg = c
			next = append(next, cs)
			continue
		}
		next = append(next, &calendarState{cfg: c, programs: make(map[string]*model.Program)})
	}
	imp.calendars = next
}

// Refresh is throttled per §4.4: fetches at most once per wall-clock hour,
// and only after minute >= 55. Calendars are loaded sequentially, one
// outstanding request at a time, to avoid ambiguity in response/request
// association.
func (imp *Importer) Refresh() {
	now := time.Now()

	imp.mu.Lock()
	if imp.refreshing {
		imp.mu.Unlock()
		return
	}
	due := now.Minute() >= 55 && now.Hour() != imp.lastRefreshHour
	if !due {
		imp.mu.Unlock()
		return
	}
	imp.refreshing = true
	imp.lastRefreshHour = now.Hour()
	calendars := make([]*calendarState, len(imp.calendars))
	copy(calendars, imp.calendars)
	zones := imp.zones
	location := imp.location
	loc := imp.loc
	imp.mu.Unlock()

	defer func() {
		imp.mu.Lock()
		imp.refreshing = false
		imp.mu.Unlock()
	}()

	for _, cs := range calendars {
		imp.refreshOne(cs, zones, location, loc)
	}
}

func (imp *Importer) refreshOne(cs *calendarState, zones *model.ZoneIndex, location string, loc *time.Location) {
	if cs.cfg.Disabled || !cs.cfg.supported() {
		return
	}

	text, err := imp.fetch(cs.cfg.Source)
	if err != nil {
		imp.log.Warn().Err(err).Str("calendar", cs.cfg.Name).Msg("calendar refresh failed")
		imp.mu.Lock()
		cs.ok = false
		imp.mu.Unlock()
		return
	}

	programs, err := parseICalendar(text, cs.cfg.Name, cs.cfg.Season, zones, location, loc, time.Now())
	if err != nil {
		imp.log.Warn().Err(err).Str("calendar", cs.cfg.Name).Msg("calendar parse failed")
		imp.mu.Lock()
		cs.ok = false
		imp.mu.Unlock()
		return
	}

	imp.mu.Lock()
	for _, p := range cs.programs {
		p.Active = false // not refreshed this pass; stays inactive unless re-seen below
	}
	for name, p := range programs {
		if prev, ok := cs.programs[name]; ok {
			*prev = *p
			prev.Active = true
		} else {
			cs.programs[name] = p
		}
	}
	cs.ok = true
	cs.updated = time.Now()
	imp.mu.Unlock()
}

func (imp *Importer) fetch(source string) (string, error) {
	if strings.HasPrefix(source, "file:") {
		path := strings.TrimPrefix(source, "file://")
		path = strings.TrimPrefix(path, "file:")
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read calendar file %s: %w", path, err)
		}
		return string(data), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", fmt.Errorf("build calendar request: %w", err)
	}
	resp, err := imp.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("calendar source returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read calendar response: %w", err)
	}
	return string(body), nil
}

// Programs returns every currently active program across all calendars,
// deduplicated by name (a later calendar in configuration order wins) and
// sorted by name, so an index into the result is stable between calls.
func (imp *Importer) Programs() []*model.Program {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	out := make(map[string]*model.Program)
	for _, cs := range imp.calendars {
		for name, p := range cs.programs {
			if p.Active {
				out[name] = p
			}
		}
	}
	result := make([]*model.Program, 0, len(out))
	for _, p := range out {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// Status returns the per-calendar health snapshot (§4.4).
func (imp *Importer) Status() []Status {
	imp.mu.Lock()
	defer imp.mu.Unlock()

	out := make([]Status, 0, len(imp.calendars))
	for _, cs := range imp.calendars {
		out = append(out, Status{Name: cs.cfg.Name, OK: cs.ok, Updated: cs.updated})
	}
	return out
}
