// Package wateringindex implements the WateringIndexAdjuster (§4.3): a
// schedule-armed poller of a regional watering-index page, returning the
// scraped percentage directly as the adjustment (no formula, unlike
// WeatherAdjuster).
package wateringindex

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/adjust"
	"github.com/aristath/sprinklerd/internal/config"
)

// providerURLs maps a configured provider name to the page it scrapes its
// percentage from.
var providerURLs = map[string]string{
	"waterdex": "https://www.waterdex.org/current",
	"mwdsocal": "https://www.mwdh2o.com/wp-content/uploads/WaterWiseIndex.html",
}

var percentPattern = regexp.MustCompile(`(\d{1,3})\s*%`)

// Adjuster is the WateringIndexAdjuster implementation.
type Adjuster struct {
	httpClient *http.Client
	log        zerolog.Logger

	mu       sync.Mutex
	cfg      config.WateringIndexConfig
	schedule []adjust.Slot
	percent  int
	updated  time.Time
}

// New builds an Adjuster; Configure must still be called before Refresh
// does anything.
func New(log zerolog.Logger) *Adjuster {
	return &Adjuster{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log.With().Str("component", "wateringindex").Logger(),
		percent:    100,
	}
}

// Configure rebuilds the refresh schedule from cfg (§4.3, same stampede
// avoidance rule as weather.Adjuster).
func (a *Adjuster) Configure(cfg config.WateringIndexConfig) {
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
	return a.cfg.Enable && a.cfg.Provider != ""
}

// SetEnabled toggles whether the watering-index adjuster is consulted at
// all, independent of a config reload (§6 control surface "enable/disable
// watering index").
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

func (a *Adjuster) Refresh() {
	a.mu.Lock()
	enabled := a.cfg.Enable && a.cfg.Provider != ""
	due := enabled && adjust.Due(time.Now(), a.schedule, a.updated)
	provider := a.cfg.Provider
	a.mu.Unlock()

	if !due {
		return
	}

	pct, err := a.fetch(provider)
	if err != nil {
		a.log.Warn().Err(err).Str("provider", provider).Msg("watering index refresh failed, keeping last value")
		return
	}

	a.mu.Lock()
	a.percent = pct
	a.updated = time.Now()
	a.mu.Unlock()
}

func (a *Adjuster) fetch(provider string) (int, error) {
	u, ok := providerURLs[provider]
	if !ok {
		return 0, fmt.Errorf("unknown watering index provider %q", provider)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, fmt.Errorf("build watering index request: %w", err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch watering index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("watering index provider returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read watering index body: %w", err)
	}

	match := percentPattern.FindSubmatch(body)
	if match == nil {
		return 0, fmt.Errorf("no percentage found on %s", provider)
	}
	pct, err := strconv.Atoi(string(match[1]))
	if err != nil {
		return 0, fmt.Errorf("parse watering index percentage: %w", err)
	}
	return pct, nil
}

// Adjustment returns the scraped percentage directly, default 100 when
// unavailable (§4.3).
func (a *Adjuster) Adjustment() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.updated.IsZero() {
		return 100
	}
	return a.percent
}

func (a *Adjuster) Adjust(seconds int) int {
	a.mu.Lock()
	min, max := a.cfg.Adjust.Min, a.cfg.Adjust.Max
	a.mu.Unlock()
	return adjust.Clamp(seconds, a.Adjustment(), min, max)
}

// Source returns the configured provider name, upper-cased, as the tag
// attached to RunItems produced using this adjuster.
func (a *Adjuster) Source() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.cfg.Provider {
	case "waterdex":
		return "WATERDEX"
	case "mwdsocal":
		return "MWDSOCAL"
	default:
		return "WATERINGINDEX"
	}
}

// Status reports the {ok, updated} pair used by the operations console.
func (a *Adjuster) Status() (ok bool, updated time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return !a.updated.IsZero(), a.updated
}

var _ adjust.Adjuster = (*Adjuster)(nil)
