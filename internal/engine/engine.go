// Package engine ties the Scheduler, Executor, CalendarImporter and the
// two refresher Adjusters into the single daemon-wide Engine (§4.7,
// §5 CONCURRENCY & RESOURCE MODEL): it owns the current Configuration,
// rebuilds every collaborator on a reload, drives hardware rain/button
// edges into the right component, and exposes the public operations the
// ambient HTTP surface and cmd/sprinklerd adapt for outside callers.
// Modelled on the teacher's internal/app.App root-object wiring: one
// struct holding every long-lived collaborator, built once at startup and
// reconfigured in place rather than replaced, the same shape
// internal/queue.Manager uses for its own dependency set.
package engine

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/calendar"
	"github.com/aristath/sprinklerd/internal/config"
	"github.com/aristath/sprinklerd/internal/events"
	"github.com/aristath/sprinklerd/internal/eventlog"
	"github.com/aristath/sprinklerd/internal/executor"
	"github.com/aristath/sprinklerd/internal/hardware"
	"github.com/aristath/sprinklerd/internal/model"
	"github.com/aristath/sprinklerd/internal/scheduler"
	"github.com/aristath/sprinklerd/internal/wateringindex"
	"github.com/aristath/sprinklerd/internal/weather"
)

// Status is the read-only snapshot the HTTP surface and the TUI poll
// (§6 GET /api/status).
type Status struct {
	Mode          Mode
	On            bool
	RainDelay     RainDelayStatus
	Running       model.RunningState
	QueueDepth    int
	Calendars     []calendar.Status
	Weather       AdjusterStatus
	WateringIndex AdjusterStatus
}

// RainDelayStatus is the §3 RainDelay view exposed to callers.
type RainDelayStatus struct {
	Enabled   bool
	Active    bool
	Remaining time.Duration
}

// AdjusterStatus is the {ok, updated} pair both refresher adjusters report.
type AdjusterStatus struct {
	OK      bool
	Updated time.Time
}

// Engine is the daemon's root object.
type Engine struct {
	log zerolog.Logger

	hw   hardware.Driver
	sink *eventlog.Sink
	bus  *events.Bus

	scheduler     *scheduler.Scheduler
	executor      *executor.Executor
	calendar      *calendar.Importer
	weather       *weather.Adjuster
	wateringIndex *wateringindex.Adjuster
	ticker        *scheduler.Ticker

	mu       sync.Mutex
	cfg      *config.Config
	zones    *model.ZoneIndex
	programs []*model.Program
}

// New builds an Engine and wires the hardware rain/button edge callbacks
// into the Scheduler and Executor. ActivateConfig must be called before
// Start does anything useful.
func New(hw hardware.Driver, sink *eventlog.Sink, bus *events.Bus, log zerolog.Logger) *Engine {
	e := &Engine{
		log:           log.With().Str("component", "engine").Logger(),
		hw:            hw,
		sink:          sink,
		bus:           bus,
		scheduler:     scheduler.New(log),
		executor:      executor.New(hw, sink, bus, log),
		calendar:      calendar.New(log),
		weather:       weather.New(log),
		wateringIndex: wateringindex.New(log),
	}

	hw.RainInterrupt(func(ev hardware.EdgeEvent) {
		if ev.Output {
			e.scheduler.ExtendRainDelay(time.Now())
		}
	})
	hw.ButtonInterrupt(func(ev hardware.EdgeEvent) {
		if ev.Output {
			e.executor.ButtonPress()
		}
	})

	e.ticker = scheduler.NewTicker(log, e.scheduler.Tick, e.refreshTick)
	return e
}

// ActivateConfig rebuilds every collaborator from cfg (§9 activateConfig).
// hwConfig is the driver-specific document loaded from hardware.json, if
// any, and is passed through to the driver untouched. It is safe to call
// ActivateConfig again after the initial activation: in-flight queue state
// and the rain-delay deadline are untouched, since Scheduler.Configure and
// Executor.Configure only rewire collaborators, never reset state.
func (e *Engine) ActivateConfig(cfg *config.Config, hwConfig any) error {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		e.log.Warn().Err(err).Str("timezone", cfg.Timezone).Msg("unknown timezone, falling back to UTC")
		loc = time.UTC
	}

	zones := cfg.ZoneIndex()
	programs := make([]*model.Program, len(cfg.Programs))
	for i := range cfg.Programs {
		programs[i] = &cfg.Programs[i]
	}

	calConfigs := make([]calendar.Config, 0, len(cfg.Calendars))
	for _, c := range cfg.Calendars {
		calConfigs = append(calConfigs, calendar.Config{
			Name: c.Name, Format: c.Format, Source: c.Source,
			Season: c.Season, Disabled: c.Disabled,
		})
	}

	e.mu.Lock()
	e.cfg = cfg
	e.zones = zones
	e.programs = programs
	e.mu.Unlock()

	e.calendar.Configure(calConfigs, zones, cfg.Location, loc)
	e.weather.Configure(cfg.Weather)
	e.wateringIndex.Configure(cfg.WateringIndex)

	e.scheduler.Configure(scheduler.Deps{
		Location:         loc,
		On:               cfg.On,
		RainDelayEnabled: cfg.RainDelay,
		HardwareRain:     e.hw,
		WeatherRain:      e.weather,
		UserPrograms:     e.userPrograms,
		CalendarPrograms: e.calendar.Programs,
		Seasons:          e.seasonByName,
		Launcher:         e.executor,
	})

	e.executor.Configure(executor.Deps{
		Zones:         zones,
		Adjustments:   e.adjustmentByName,
		WateringIndex: e.wateringIndex,
		Weather:       e.weather,
	})

	if err := e.hw.Configure(hwConfig, cfg); err != nil {
		e.log.Warn().Err(err).Msg("hardware reconfiguration failed, continuing with previous state")
	}

	e.log.Info().Int("zones", zones.Len()).Int("programs", len(programs)).Msg("configuration activated")
	return nil
}

func (e *Engine) userPrograms() []*model.Program {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.programs
}

func (e *Engine) adjustmentByName(name string) (model.AdjustmentProfile, bool) {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()
	if cfg == nil {
		return model.AdjustmentProfile{}, false
	}
	return cfg.AdjustmentByName(name)
}

func (e *Engine) seasonByName(name string) (model.Season, bool) {
	e.mu.Lock()
	cfg := e.cfg
	e.mu.Unlock()
	if cfg == nil {
		return model.Season{}, false
	}
	return cfg.SeasonByName(name)
}

// refreshTick drives the 60-second calendar/weather/watering-index
// refreshers (§4.3, §4.4); each refresher enforces its own throttle.
func (e *Engine) refreshTick(time.Time) {
	e.calendar.Refresh()
	e.weather.Refresh()
	e.wateringIndex.Refresh()
}

// Start begins the scheduling/refresh ticker.
func (e *Engine) Start() {
	e.ticker.Start()
	e.log.Info().Msg("engine started")
}

// Stop halts the ticker. It does not force zones off; callers that want a
// clean shutdown run cmd/reset afterwards (§6 Persistence).
func (e *Engine) Stop() {
	e.ticker.Stop()
}

// Mode reports the current coarse run state (§4.7).
func (e *Engine) Mode() Mode {
	on := e.scheduler.On()
	_, active, _ := e.scheduler.RainDelayStatus(time.Now())
	running := e.executor.Running()
	return deriveMode(on, running.Active, active)
}

// SetOn toggles the scheduler on/off run mode.
func (e *Engine) SetOn(on bool) {
	e.scheduler.SetOn(on)
	e.mu.Lock()
	if e.cfg != nil {
		e.cfg.On = on
	}
	e.mu.Unlock()
}

// SetRainDelayEnabled toggles whether the rain-delay gate applies at all.
func (e *Engine) SetRainDelayEnabled(enabled bool) {
	e.scheduler.SetRainDelayEnabled(enabled)
}

// ExtendRainDelay arms or extends the suppression window (§6 control
// surface "extend raindelay").
func (e *Engine) ExtendRainDelay() {
	e.scheduler.ExtendRainDelay(time.Now())
}

// ClearRainDelay disarms the suppression window immediately.
func (e *Engine) ClearRainDelay() {
	e.scheduler.ClearRainDelay()
}

// SetWeatherEnabled toggles whether the weather adjuster participates in
// seconds adjustment, independent of a config reload (§6 control surface
// "enable/disable weather").
func (e *Engine) SetWeatherEnabled(enabled bool) {
	e.weather.SetEnabled(enabled)
}

// SetWateringIndexEnabled toggles whether the watering-index adjuster
// participates in seconds adjustment, independent of a config reload (§6
// control surface "enable/disable watering index").
func (e *Engine) SetWateringIndexEnabled(enabled bool) {
	e.wateringIndex.SetEnabled(enabled)
}

// Refresh triggers an on-demand calendar/weather/watering-index refresh
// pass (§6 control surface "trigger refresh"). Each refresher still
// enforces its own due-slot throttle, same as the 60-second ticker call.
func (e *Engine) Refresh() {
	e.refreshTick(time.Now())
}

// RunProgram launches the program addressed by id immediately, bypassing
// the Scheduler's due check entirely (§6 "run program on demand"). id
// follows the control surface's addressing grammar: "C<idx>" addresses
// the calendar-imported program at that index (stable iteration order of
// calendar.Programs()), "L<idx>" or a bare integer addresses the local,
// user-authored program at that index.
func (e *Engine) RunProgram(id string) error {
	idx, calendarProgram, err := parseProgramID(id)
	if err != nil {
		return err
	}

	if calendarProgram {
		programs := e.calendar.Programs()
		if idx < 0 || idx >= len(programs) {
			return fmt.Errorf("no calendar program at index %d", idx)
		}
		e.executor.ProgramOn(programs[idx])
		return nil
	}

	e.mu.Lock()
	programs := e.programs
	e.mu.Unlock()
	if idx < 0 || idx >= len(programs) {
		return fmt.Errorf("no local program at index %d", idx)
	}
	e.executor.ProgramOn(programs[idx])
	return nil
}

// parseProgramID parses the control surface's program-addressing grammar:
// a leading "C" or "L" (case-insensitive) selects calendar vs. local, a
// bare integer defaults to local.
func parseProgramID(id string) (idx int, calendarProgram bool, err error) {
	switch {
	case strings.HasPrefix(id, "C") || strings.HasPrefix(id, "c"):
		idx, err = strconv.Atoi(id[1:])
		if err != nil {
			return 0, false, fmt.Errorf("invalid calendar program id %q: %w", id, err)
		}
		return idx, true, nil
	case strings.HasPrefix(id, "L") || strings.HasPrefix(id, "l"):
		idx, err = strconv.Atoi(id[1:])
		if err != nil {
			return 0, false, fmt.Errorf("invalid local program id %q: %w", id, err)
		}
		return idx, false, nil
	default:
		idx, err = strconv.Atoi(id)
		if err != nil {
			return 0, false, fmt.Errorf("invalid program id %q: want C<idx>, L<idx>, or a bare integer", id)
		}
		return idx, false, nil
	}
}

// ZoneOn starts zone i manually for the given duration, cancelling
// whatever the Executor was doing (§4.6 Manual activation).
func (e *Engine) ZoneOn(zone, seconds int) error {
	return e.executor.ZoneOnManual(zone, seconds)
}

// AllOff cancels the run queue and forces every zone off immediately.
func (e *Engine) AllOff() {
	e.executor.KillQueue()
}

// History returns matching persisted events, newest first (§4.2 Find).
func (e *Engine) History(filter eventlog.Filter) ([]model.EventRecord, error) {
	if e.sink == nil {
		return nil, nil
	}
	return e.sink.Find(filter)
}

// StatusSnapshot builds the §6 GET /api/status response.
func (e *Engine) StatusSnapshot() Status {
	now := time.Now()
	enabled, active, remaining := e.scheduler.RainDelayStatus(now)
	weatherOK, weatherUpdated := e.weather.Status()
	indexOK, indexUpdated := e.wateringIndex.Status()

	return Status{
		Mode:          e.Mode(),
		On:            e.scheduler.On(),
		RainDelay:     RainDelayStatus{Enabled: enabled, Active: active, Remaining: remaining},
		Running:       e.executor.Running(),
		QueueDepth:    e.executor.QueueDepth(),
		Calendars:     e.calendar.Status(),
		Weather:       AdjusterStatus{OK: weatherOK, Updated: weatherUpdated},
		WateringIndex: AdjusterStatus{OK: indexOK, Updated: indexUpdated},
	}
}
