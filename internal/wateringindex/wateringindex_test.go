package wateringindex

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/sprinklerd/internal/config"
)

func TestAdjustmentDefaultsTo100BeforeFirstFetch(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WateringIndexConfig{Enable: true, Provider: "waterdex"})
	assert.Equal(t, 100, a.Adjustment())
}

func TestAdjustmentReturnsScrapedPercentageDirectly(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WateringIndexConfig{Enable: true, Provider: "waterdex"})

	a.mu.Lock()
	a.percent = 65
	a.updated = time.Now()
	a.mu.Unlock()

	assert.Equal(t, 65, a.Adjustment())
}

func TestSourceTagsByProvider(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WateringIndexConfig{Provider: "waterdex"})
	assert.Equal(t, "WATERDEX", a.Source())

	a.Configure(config.WateringIndexConfig{Provider: "mwdsocal"})
	assert.Equal(t, "MWDSOCAL", a.Source())

	a.Configure(config.WateringIndexConfig{Provider: "unknown"})
	assert.Equal(t, "WATERINGINDEX", a.Source())
}

func TestEnabledRequiresFlagAndProvider(t *testing.T) {
	a := New(zerolog.Nop())
	a.Configure(config.WateringIndexConfig{Enable: true, Provider: ""})
	assert.False(t, a.Enabled())

	a.Configure(config.WateringIndexConfig{Enable: true, Provider: "waterdex"})
	assert.True(t, a.Enabled())
}
