package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Ticker drives the Scheduler's 10-second evaluation tick and the
// engine's 60-second refresh tick (calendar/weather/watering-index) off a
// single robfig/cron/v3 instance, using its seconds-resolution @every
// entries. The teacher used a hand-rolled time.Ticker for its own
// time-based queue scheduler; this generalizes that to the cron library
// the teacher already depends on elsewhere.
type Ticker struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewTicker builds a Ticker. scheduleFn fires every 10 seconds and is
// expected to call Scheduler.Tick; refreshFn fires every 60 seconds and is
// expected to drive the calendar/weather/watering-index refreshers.
func NewTicker(log zerolog.Logger, scheduleFn func(time.Time), refreshFn func(time.Time)) *Ticker {
	c := cron.New(cron.WithSeconds())
	_, _ = c.AddFunc("@every 10s", func() { scheduleFn(time.Now()) })
	_, _ = c.AddFunc("@every 60s", func() { refreshFn(time.Now()) })
	return &Ticker{cron: c, log: log.With().Str("component", "ticker").Logger()}
}

// Start begins firing entries in the background.
func (t *Ticker) Start() {
	t.cron.Start()
	t.log.Info().Msg("ticker started: 10s schedule, 60s refresh")
}

// Stop halts the cron scheduler, waiting for any in-flight job.
func (t *Ticker) Stop() {
	ctx := t.cron.Stop()
	<-ctx.Done()
}
