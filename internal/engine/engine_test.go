package engine

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sprinklerd/internal/config"
	"github.com/aristath/sprinklerd/internal/hardware/null"
	"github.com/aristath/sprinklerd/internal/model"
)

func testConfig() *config.Config {
	return &config.Config{
		On:       true,
		Timezone: "UTC",
		Zones: []model.Zone{
			{Name: "Front Lawn"},
			{Name: "Back Lawn"},
		},
		Programs: []model.Program{
			{
				Name: "Morning", Active: true, Start: "06:00", Repeat: model.RepeatNone,
				Zones: []model.ProgramZone{{Zone: 0, Seconds: 30}},
			},
		},
	}
}

func TestEngine_ActivateConfigThenStatusReflectsOnMode(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	assert.Equal(t, ModeIdle, e.Mode())

	status := e.StatusSnapshot()
	assert.True(t, status.On)
	assert.Equal(t, ModeIdle, status.Mode)
	assert.Equal(t, 0, status.QueueDepth)
}

func TestEngine_SetOnTurnsModeOff(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	e.SetOn(false)
	assert.Equal(t, ModeOff, e.Mode())
}

func TestEngine_RunProgramByLocalIndexStartsExecutor(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	require.NoError(t, e.RunProgram("L0"))
	running := e.executor.Running()
	assert.True(t, running.Active)
	assert.Equal(t, 0, running.Zone)
}

func TestEngine_RunProgramUnknownNameErrors(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	err := e.RunProgram("does-not-exist")
	assert.Error(t, err)
}

func TestEngine_RunProgramBareIntAddressesLocalProgram(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	require.NoError(t, e.RunProgram("0"))
	running := e.executor.Running()
	assert.True(t, running.Active)
	assert.Equal(t, 0, running.Zone)
}

func TestEngine_RunProgramLocalIndexOutOfRangeErrors(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	assert.Error(t, e.RunProgram("L5"))
	assert.Error(t, e.RunProgram("5"))
}

func TestParseProgramID_AllThreeForms(t *testing.T) {
	idx, isCalendar, err := parseProgramID("C3")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	assert.True(t, isCalendar)

	idx, isCalendar, err = parseProgramID("L2")
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	assert.False(t, isCalendar)

	idx, isCalendar, err = parseProgramID("7")
	require.NoError(t, err)
	assert.Equal(t, 7, idx)
	assert.False(t, isCalendar)
}

func TestEngine_RunProgramCalendarIndexOutOfRangeErrors(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	assert.Error(t, e.RunProgram("C0"))
}

func TestEngine_RunProgramInvalidIDErrors(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	assert.Error(t, e.RunProgram("Cabc"))
	assert.Error(t, e.RunProgram("Labc"))
}

func TestEngine_SetWeatherEnabledTogglesAdjuster(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	e.SetWeatherEnabled(true)
	assert.True(t, e.weather.Enabled())
	e.SetWeatherEnabled(false)
	assert.False(t, e.weather.Enabled())
}

func TestEngine_SetWateringIndexEnabledTogglesAdjuster(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	cfg := testConfig()
	cfg.WateringIndex.Provider = "waterdex"
	require.NoError(t, e.ActivateConfig(cfg, nil))

	e.SetWateringIndexEnabled(true)
	assert.True(t, e.wateringIndex.Enabled())
	e.SetWateringIndexEnabled(false)
	assert.False(t, e.wateringIndex.Enabled())
}

func TestEngine_RefreshDoesNotPanicWithoutExternalSources(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	assert.NotPanics(t, e.Refresh)
}

func TestEngine_ZoneOnManualStartsThatZone(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	require.NoError(t, e.ZoneOn(1, 5))
	running := e.executor.Running()
	assert.Equal(t, 1, running.Zone)
}

func TestEngine_AllOffClearsRunningState(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	require.NoError(t, e.ActivateConfig(testConfig(), nil))

	require.NoError(t, e.RunProgram("L0"))
	e.AllOff()
	assert.False(t, e.executor.Running().Active)
	assert.Equal(t, 0, e.executor.QueueDepth())
}

func TestEngine_RainDelayControlSurface(t *testing.T) {
	e := New(null.New(), nil, nil, zerolog.Nop())
	cfg := testConfig()
	cfg.RainDelay = true
	require.NoError(t, e.ActivateConfig(cfg, nil))

	e.ExtendRainDelay()
	status := e.StatusSnapshot()
	assert.True(t, status.RainDelay.Active)
	assert.Equal(t, ModeRainHold, status.Mode)

	e.ClearRainDelay()
	status = e.StatusSnapshot()
	assert.False(t, status.RainDelay.Active)
}
