package server

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/sprinklerd/internal/engine"
	"github.com/aristath/sprinklerd/internal/events"
)

func TestStatusMonitorEmitsOnlyOnModeChange(t *testing.T) {
	log := zerolog.Nop()
	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	current := engine.Status{Mode: engine.ModeIdle}
	monitor := &StatusMonitor{
		eventManager: manager,
		log:          log,
		getStatus:    func() engine.Status { return current },
	}

	modeChanges := make(chan events.Event, 5)
	_ = bus.Subscribe(events.ModeChanged, func(event *events.Event) {
		modeChanges <- *event
	})

	monitor.checkStatus() // seeds lastMode without emitting

	select {
	case evt := <-modeChanges:
		t.Fatalf("unexpected event on first check: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	monitor.checkStatus() // same snapshot, still no emission

	select {
	case evt := <-modeChanges:
		t.Fatalf("unexpected event on unchanged snapshot: %+v", evt)
	case <-time.After(100 * time.Millisecond):
	}

	current = engine.Status{Mode: engine.ModeRunning}
	monitor.checkStatus()

	select {
	case <-modeChanges:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected mode change event")
	}

	assert.Equal(t, engine.ModeRunning, monitor.lastMode)
}

func TestStatusMonitorEmitsOnRainDelayChange(t *testing.T) {
	log := zerolog.Nop()
	bus := events.NewBus(log)
	manager := events.NewManager(bus, log)

	current := engine.Status{Mode: engine.ModeIdle, RainDelay: engine.RainDelayStatus{Active: false}}
	monitor := &StatusMonitor{
		eventManager: manager,
		log:          log,
		getStatus:    func() engine.Status { return current },
	}

	rainChanges := make(chan events.Event, 5)
	_ = bus.Subscribe(events.RainDelayChanged, func(event *events.Event) {
		rainChanges <- *event
	})

	monitor.checkStatus()

	current = engine.Status{Mode: engine.ModeRainHold, RainDelay: engine.RainDelayStatus{Active: true, Remaining: 5 * time.Minute}}
	monitor.checkStatus()

	select {
	case <-rainChanges:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected raindelay change event")
	}

	assert.True(t, monitor.lastRainDelayHeld)
}
