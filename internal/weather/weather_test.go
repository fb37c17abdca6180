package weather

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/sprinklerd/internal/config"
)

func TestAdjustmentBeforeFirstFetchDefaultsTo100(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WeatherConfig{Enable: true, Key: "k", Adjust: config.WeatherAdjustConfig{Sensitivity: 100}})
	assert.Equal(t, 100, a.Adjustment())
}

func TestAdjustmentFormula(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WeatherConfig{Enable: true, Key: "k", Adjust: config.WeatherAdjustConfig{
		Sensitivity: 100, Humidity: 30, Temperature: 70,
	}})

	a.mu.Lock()
	a.last = payload{Temperature: 70, Humidity: 30, RainInches: 0}
	a.updated = time.Now()
	a.mu.Unlock()

	// humidityBase(30) - humidity(30) + 4*(70-70) - 200*0 = 0 -> 100+0 = 100
	assert.Equal(t, 100, a.Adjustment())
}

func TestAdjustmentNeverNegative(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WeatherConfig{Enable: true, Key: "k", Adjust: config.WeatherAdjustConfig{
		Sensitivity: 100, Humidity: 30, Temperature: 70,
	}})

	a.mu.Lock()
	a.last = payload{Temperature: 70, Humidity: 100, RainInches: 5}
	a.updated = time.Now()
	a.mu.Unlock()

	assert.Equal(t, 0, a.Adjustment())
}

func TestRainSensorComparesAgainstTrigger(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WeatherConfig{Enable: true, Key: "k", RainTrigger: 0.1})

	a.mu.Lock()
	a.last = payload{RainInches: 0.2}
	a.updated = time.Now()
	a.mu.Unlock()

	assert.True(t, a.RainSensor())
}

func TestRainSensorFalseBeforeAnyFetch(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WeatherConfig{Enable: true, Key: "k", RainTrigger: 0})
	assert.False(t, a.RainSensor())
}

func TestEnabledRequiresKeyAndFlag(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WeatherConfig{Enable: false, Key: "k"})
	assert.False(t, a.Enabled())

	a.Configure(config.WeatherConfig{Enable: true, Key: ""})
	assert.False(t, a.Enabled())

	a.Configure(config.WeatherConfig{Enable: true, Key: "k"})
	assert.True(t, a.Enabled())
}
