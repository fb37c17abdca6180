// Package weather implements the WeatherAdjuster (§4.3): a schedule-armed
// poller of a weather API that turns humidity/temperature/rain into a
// watering percentage and a rain-sensor reading.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/adjust"
	"github.com/aristath/sprinklerd/internal/config"
)

const baseURL = "https://api.weatherapi.com/v1/current.json"

// payload is the last-successful fetch, cached between refreshes.
type payload struct {
	Temperature float64 // degrees Fahrenheit
	Humidity    float64 // percent relative humidity
	RainInches  float64 // rain accumulation today, inches
}

// Adjuster is the WeatherAdjuster implementation. It satisfies
// adjust.Adjuster and additionally exposes RainSensor, consulted by the
// Scheduler's rain-handling step (§4.5).
type Adjuster struct {
	httpClient *http.Client
	log        zerolog.Logger

	mu       sync.Mutex
	cfg      config.WeatherConfig
	schedule []adjust.Slot
	last     payload
	updated  time.Time
}

// New builds an Adjuster; Configure must still be called before Refresh
// does anything.
func New(log zerolog.Logger) *Adjuster {
	return &Adjuster{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "weather").Logger(),
	}
}

// Configure rebuilds the refresh schedule from cfg. When cfg is re-applied
// with a payload already cached, the next fetch is forced to 10 minutes
// from now to avoid a stampede of simultaneous refreshes across adjusters
// on a config reload (§4.3).
func (a *Adjuster) Configure(cfg config.WeatherConfig) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.cfg = cfg
	a.schedule = adjust.ParseSchedule(cfg.Refresh)
	if !a.updated.IsZero() {
		a.updated = time.Now().Add(-6*time.Hour + 10*time.Minute)
	}
}

func (a *Adjuster) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Enable && a.cfg.Key != ""
}

// SetEnabled toggles whether the weather adjuster is consulted at all,
// independent of a config reload (§6 control surface "enable/disable
// weather").
func (a *Adjuster) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Enable = enabled
}

func (a *Adjuster) Updated() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.updated
}

// Refresh is the heartbeat call the 60-second timer drives. It fetches
// only when due, per the schedule/6h-fallback rule in adjust.Due.
func (a *Adjuster) Refresh() {
	a.mu.Lock()
	enabled := a.cfg.Enable && a.cfg.Key != ""
	due := enabled && adjust.Due(time.Now(), a.schedule, a.updated)
	cfg := a.cfg
	a.mu.Unlock()

	if !due {
		return
	}

	p, err := a.fetch(cfg)
	if err != nil {
		a.log.Warn().Err(err).Msg("weather refresh failed")
		return
	}

	a.mu.Lock()
	a.last = p
	a.updated = time.Now()
	a.mu.Unlock()
}

func (a *Adjuster) fetch(cfg config.WeatherConfig) (payload, error) {
	q := url.Values{}
	q.Set("key", cfg.Key)
	q.Set("q", cfg.Station)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return payload{}, fmt.Errorf("build weather request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return payload{}, fmt.Errorf("fetch weather: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return payload{}, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var body struct {
		Current struct {
			TempF        float64 `json:"temp_f"`
			Humidity     float64 `json:"humidity"`
			PrecipInches float64 `json:"precip_in"`
		} `json:"current"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return payload{}, fmt.Errorf("decode weather response: %w", err)
	}

	return payload{
		Temperature: body.Current.TempF,
		Humidity:    body.Current.Humidity,
		RainInches:  body.Current.PrecipInches,
	}, nil
}

// Adjustment implements the documented formula (§4.3):
// adjust = humidityBase - humidity + 4*(temp - tempBase) - 200*rainInches,
// scaled by sensitivity/100, returned as max(0, 100+adjust).
func (a *Adjuster) Adjustment() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.updated.IsZero() {
		return 100
	}

	raw := a.cfg.Adjust.Humidity - a.last.Humidity + 4*(a.last.Temperature-a.cfg.Adjust.Temperature) - 200*a.last.RainInches
	sensitivity := float64(a.cfg.Adjust.Sensitivity)
	if sensitivity == 0 {
		sensitivity = 100
	}
	scaled := raw * (sensitivity / 100)

	result := 100 + int(scaled)
	if result < 0 {
		result = 0
	}
	return result
}

// Adjust scales seconds by Adjustment(), clamped to the configured
// min/max percent.
func (a *Adjuster) Adjust(seconds int) int {
	a.mu.Lock()
	min, max := a.cfg.Adjust.Min, a.cfg.Adjust.Max
	a.mu.Unlock()
	return adjust.Clamp(seconds, a.Adjustment(), min, max)
}

func (a *Adjuster) Source() string { return "WEATHER" }

// RainSensor reports whether configured raintrigger <= today's rain
// inches (§4.3).
func (a *Adjuster) RainSensor() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.updated.IsZero() {
		return false
	}
	return a.cfg.RainTrigger <= a.last.RainInches
}

// Status reports the {ok, updated} pair used by the operations console.
func (a *Adjuster) Status() (ok bool, updated time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.updated.IsZero(), a.updated
}

var _ adjust.Adjuster = (*Adjuster)(nil)
