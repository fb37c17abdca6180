// Package scheduler implements the time-driven Scheduler (§4.5): once per
// minute it walks the user-authored and calendar-imported program lists,
// decides which are due right now, and hands them to the Executor via
// Launch. It also owns the rain-delay suppression window (§3 RainDelay),
// since the Scheduler is the component that both arms it (from hardware
// and weather rain sensors) and consults it before every launch.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/model"
)

// RainSensor is the minimal surface the Scheduler needs from a hardware
// driver or weather adjuster to decide whether rain is currently detected.
type RainSensor interface {
	RainSensor() bool
}

// Launcher is the Executor's surface the Scheduler drives programs
// through.
type Launcher interface {
	ProgramOn(p *model.Program)
}

// SeasonLookup resolves a configured Season by name.
type SeasonLookup func(name string) (model.Season, bool)

// Scheduler evaluates due programs on a 10-second heartbeat (§4.5),
// enforcing "each wall-clock minute is evaluated at most once".
type Scheduler struct {
	log zerolog.Logger

	mu              sync.Mutex
	loc             *time.Location
	lastMinuteKey   string
	on              bool
	rainDelayArm    bool
	rainDelay       model.RainDelay
	hardwareRain    RainSensor
	weatherRain     RainSensor
	userPrograms    func() []*model.Program
	calendarProgram func() []*model.Program
	seasons         SeasonLookup
	launcher        Launcher
}

// New builds a Scheduler. Configure must be called before Tick does
// anything.
func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log: log.With().Str("component", "scheduler").Logger(),
		loc: time.UTC,
	}
}

// Deps bundles the collaborators Configure wires in, rebuilt on every
// config reload.
type Deps struct {
	Location         *time.Location
	On               bool
	RainDelayEnabled bool
	HardwareRain     RainSensor
	WeatherRain      RainSensor
	UserPrograms     func() []*model.Program
	CalendarPrograms func() []*model.Program
	Seasons          SeasonLookup
	Launcher         Launcher
}

// Configure rewires the Scheduler's collaborators. It does not reset
// lastMinuteKey or the rain-delay deadline: a config reload must not let
// the same minute fire twice, nor shorten an armed rain hold.
func (s *Scheduler) Configure(d Deps) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d.Location != nil {
		s.loc = d.Location
	}
	s.on = d.On
	s.rainDelayArm = d.RainDelayEnabled
	s.hardwareRain = d.HardwareRain
	s.weatherRain = d.WeatherRain
	s.userPrograms = d.UserPrograms
	s.calendarProgram = d.CalendarPrograms
	s.seasons = d.Seasons
	s.launcher = d.Launcher
}

// Tick is the 10-second heartbeat. It is a no-op unless the wall-clock
// minute has changed since the last evaluation.
func (s *Scheduler) Tick(now time.Time) {
	s.mu.Lock()
	local := now.In(s.loc)
	minuteKey := local.Format("2006-01-02 15:04")
	if minuteKey == s.lastMinuteKey {
		s.mu.Unlock()
		return
	}
	s.lastMinuteKey = minuteKey

	held := s.evaluateRainLocked(local)
	on := s.on
	launcher := s.launcher
	userPrograms := s.userPrograms
	calendarPrograms := s.calendarProgram
	s.mu.Unlock()

	if held || !on || launcher == nil {
		return
	}

	if userPrograms != nil {
		for _, p := range userPrograms() {
			s.evaluateProgram(local, p, launcher)
		}
	}
	if calendarPrograms != nil {
		for _, p := range calendarPrograms() {
			s.evaluateProgram(local, p, launcher)
		}
	}
}

// evaluateRainLocked implements §4.5's rain handling, called with s.mu
// held. It returns whether the Scheduler must skip program evaluation
// this tick.
func (s *Scheduler) evaluateRainLocked(now time.Time) bool {
	if !s.rainDelayArm {
		return false
	}
	rainNow := (s.hardwareRain != nil && s.hardwareRain.RainSensor()) ||
		(s.weatherRain != nil && s.weatherRain.RainSensor())
	if rainNow {
		s.rainDelay.Extend(now)
	}
	return s.rainDelay.Active(now)
}

// evaluateProgram implements the per-program due check of §4.5: skip
// inactive programs, apply the season gate, try exceptions before the
// program itself, and launch whichever fires first.
func (s *Scheduler) evaluateProgram(now time.Time, p *model.Program, launcher Launcher) {
	if p == nil || !p.Active {
		return
	}

	if p.Season != "" {
		s.mu.Lock()
		seasons := s.seasons
		s.mu.Unlock()
		if seasons != nil {
			if season, ok := seasons(p.Season); ok {
				_, isoWeek := now.ISOWeek()
				month := int(now.Month())
				active, hasVector := season.Active(isoWeek, month)
				if hasVector && !active {
					return
				}
			}
		}
	}

	for _, exc := range p.Exceptions {
		if scheduleOneProgram(now, exc) {
			launcher.ProgramOn(exc)
			return
		}
	}

	if scheduleOneProgram(now, p) {
		launcher.ProgramOn(p)
	}
}

// scheduleOneProgram implements §4.5's "is it due now" algorithm,
// mutating p.Date (to anchor on first match) and p.Active (to disarm a
// one-shot program) as the spec requires.
func scheduleOneProgram(now time.Time, p *model.Program) bool {
	if now.Format("15:04") != p.Start {
		return false
	}

	if p.Until != "" {
		until, err := time.ParseInLocation("20060102", p.Until, now.Location())
		if err == nil {
			untilEnd := time.Date(until.Year(), until.Month(), until.Day(), 23, 59, 59, 0, now.Location())
			if now.After(untilEnd) {
				return false
			}
		}
	}

	if p.IsExcluded(now) {
		return false
	}

	var delta int
	if p.Date == "" {
		p.Date = now.Format("20060102")
		delta = 0
	} else {
		anchor, err := time.ParseInLocation("20060102", p.Date, now.Location())
		if err != nil {
			return false
		}
		today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		delta = int(today.Sub(anchor).Hours() / 24)
		if delta < 0 {
			return false
		}
	}

	switch p.Repeat {
	case model.RepeatWeekly:
		return p.Days[int(now.Weekday())]
	case model.RepeatDaily:
		interval := p.Interval
		if interval <= 0 {
			interval = 1
		}
		return delta%interval == 0
	default: // none
		p.Active = false
		return delta == 0
	}
}

// RainDelayStatus reports whether the suppression window is currently
// armed/active and the remaining time until it lifts.
func (s *Scheduler) RainDelayStatus(now time.Time) (enabled bool, active bool, remaining time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rainDelay.Enabled, s.rainDelay.Active(now), s.rainDelay.Remaining(now)
}

// SetRainDelayEnabled toggles whether the rain-delay gate applies at all
// (the §6 control surface's "enable/disable raindelay").
func (s *Scheduler) SetRainDelayEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rainDelayArm = enabled
	if !enabled {
		s.rainDelay.Clear()
	}
}

// ExtendRainDelay arms or extends the suppression window by
// model.RainDelayInterval from now (the control surface's "extend
// raindelay").
func (s *Scheduler) ExtendRainDelay(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rainDelay.Extend(now)
}

// ClearRainDelay disarms the suppression window immediately.
func (s *Scheduler) ClearRainDelay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rainDelay.Clear()
}

// SetOn toggles the §4.7 on/off run mode: when false the Scheduler
// short-circuits every tick (manual activation is unaffected, since it
// goes straight to the Executor).
func (s *Scheduler) SetOn(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.on = on
}

// On reports the current on/off run mode.
func (s *Scheduler) On() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.on
}
