package scheduler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sprinklerd/internal/model"
)

type fakeRainSensor struct{ on bool }

func (f *fakeRainSensor) RainSensor() bool { return f.on }

type fakeLauncher struct{ launched []*model.Program }

func (f *fakeLauncher) ProgramOn(p *model.Program) { f.launched = append(f.launched, p) }

func TestScheduler_WeeklyProgramFiresOnRightDay(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "W", Active: true, Start: "06:00", Repeat: model.RepeatWeekly,
		Days:  [7]bool{false, false, true, false, false, false, false}, // Tuesday
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 60}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	// 2024-01-02 is a Tuesday.
	s.Tick(time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	require.Len(t, launcher.launched, 1)
	assert.Equal(t, "W", launcher.launched[0].Name)
}

func TestScheduler_WeeklyProgramSkipsWrongDay(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "W", Active: true, Start: "06:00", Repeat: model.RepeatWeekly,
		Days:  [7]bool{false, false, true, false, false, false, false}, // Tuesday
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 60}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	// 2024-01-03 is a Wednesday.
	s.Tick(time.Date(2024, 1, 3, 6, 0, 0, 0, time.UTC))
	assert.Empty(t, launcher.launched)
}

func TestScheduler_DailyIntervalSkipping(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "D", Active: true, Start: "07:00", Repeat: model.RepeatDaily, Interval: 2,
		Date:  "20240101",
		Zones: []model.ProgramZone{{Zone: 1, Seconds: 30}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	s.Tick(time.Date(2024, 1, 2, 7, 0, 0, 0, time.UTC))
	assert.Empty(t, launcher.launched)

	s.Tick(time.Date(2024, 1, 3, 7, 0, 0, 0, time.UTC))
	require.Len(t, launcher.launched, 1)
}

func TestScheduler_EvaluatesEachMinuteAtMostOnce(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "Once", Active: true, Start: "06:00", Repeat: model.RepeatNone,
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 10}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	now := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	s.Tick(now)
	s.Tick(now.Add(5 * time.Second))
	s.Tick(now.Add(9 * time.Second))
	assert.Len(t, launcher.launched, 1, "same minute must only be evaluated once")
}

func TestScheduler_OneShotProgramDeactivatesAfterRun(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "Once", Active: true, Start: "06:00", Repeat: model.RepeatNone,
		Date:  "20240102",
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 10}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	s.Tick(time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	require.Len(t, launcher.launched, 1)
	assert.False(t, p.Active)
}

func TestScheduler_RainHoldBlocksNewLaunchesButPersists(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "W", Active: true, Start: "06:00", Repeat: model.RepeatDaily, Interval: 1,
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 10}},
	}
	rain := &fakeRainSensor{on: true}
	s.Configure(Deps{
		Location: time.UTC, On: true, RainDelayEnabled: true,
		HardwareRain: rain,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	now := time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC)
	s.Tick(now)
	assert.Empty(t, launcher.launched, "rain hold must suppress new launches")

	_, active, remaining := s.RainDelayStatus(now)
	assert.True(t, active)
	assert.True(t, remaining > 23*time.Hour)
}

func TestScheduler_OffModeShortCircuits(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "W", Active: true, Start: "06:00", Repeat: model.RepeatNone,
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 10}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: false,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	s.Tick(time.Date(2024, 1, 2, 6, 0, 0, 0, time.UTC))
	assert.Empty(t, launcher.launched)
}

func TestScheduler_SeasonGateSuppressesProgram(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	p := &model.Program{
		Name: "W", Active: true, Start: "06:00", Repeat: model.RepeatNone, Season: "winter",
		Zones: []model.ProgramZone{{Zone: 0, Seconds: 10}},
	}
	seasons := map[string]model.Season{
		"winter": {Name: "winter", Monthly: []bool{true, false, false, false, false, false, false, false, false, false, false, true}},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Seasons: func(name string) (model.Season, bool) {
			sn, ok := seasons[name]
			return sn, ok
		},
		Launcher: launcher,
	})

	// July (month 7) is false in the winter vector.
	s.Tick(time.Date(2024, 7, 2, 6, 0, 0, 0, time.UTC))
	assert.Empty(t, launcher.launched)
}

func TestScheduler_ExceptionPreemptsRegularOccurrence(t *testing.T) {
	s := New(zerolog.Nop())
	launcher := &fakeLauncher{}
	exc := &model.Program{Name: "W-moved", Active: true, Start: "07:00", Repeat: model.RepeatNone, Date: "20240109"}
	p := &model.Program{
		Name: "W", Active: true, Start: "06:00", Repeat: model.RepeatWeekly,
		Days:       [7]bool{false, false, true, false, false, false, false},
		Exceptions: []*model.Program{exc},
		Exclusions: []time.Time{time.Date(2024, 1, 9, 6, 0, 0, 0, time.UTC)},
	}
	s.Configure(Deps{
		Location: time.UTC, On: true,
		UserPrograms: func() []*model.Program { return []*model.Program{p} },
		Launcher:     launcher,
	})

	// The regular 06:00 Tuesday occurrence is excluded.
	s.Tick(time.Date(2024, 1, 9, 6, 0, 0, 0, time.UTC))
	assert.Empty(t, launcher.launched)

	// Only the 07:00 exception runs.
	s.Tick(time.Date(2024, 1, 9, 7, 0, 0, 0, time.UTC))
	require.Len(t, launcher.launched, 1)
	assert.Equal(t, "W-moved", launcher.launched[0].Name)
}
