// Package di wires the daemon's long-lived singletons together: load the
// configuration document, open the event database, build the hardware
// driver, and assemble the engine.Engine. Modelled on the teacher's
// internal/di.Wire: a handful of named, sequential, fail-fast steps each
// wrapped with fmt.Errorf, cleaning up everything already opened before
// returning an error rather than leaving partially-initialised resources
// behind (trader/internal/di/wire.go).
package di

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/config"
	"github.com/aristath/sprinklerd/internal/engine"
	"github.com/aristath/sprinklerd/internal/events"
	"github.com/aristath/sprinklerd/internal/eventlog"
	"github.com/aristath/sprinklerd/internal/hardware"
	"github.com/aristath/sprinklerd/internal/hardware/null"
	"github.com/aristath/sprinklerd/internal/hardware/rpc"
)

// Options selects the files Wire loads and the hardware backend it builds.
type Options struct {
	// ConfigPath, when set, bypasses config.Resolve's search path.
	ConfigPath string
	// HardwareConfigPath, when set, bypasses hardware.json's search path.
	HardwareConfigPath string
	// EventDBPath, when set, bypasses the event database's search path.
	EventDBPath string
	// HardwareSocket selects the rpc.Driver backend when non-empty; an
	// empty value selects the inert null.Driver (development/simulation).
	HardwareSocket string
}

// Container holds every singleton Wire assembled, for cmd/sprinklerd to
// start and cmd/reset to reach the hardware driver directly.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger
	HW     hardware.Driver
	Sink   *eventlog.Sink
	Bus    *events.Bus
	Engine *engine.Engine
}

// Wire initializes every dependency in order and returns a fully
// configured Container:
//  1. load the configuration document
//  2. open the event database
//  3. build the hardware driver
//  4. assemble and activate the engine
func Wire(opts Options, log zerolog.Logger) (*Container, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	sink, err := openEventSink(cfg, opts, log)
	if err != nil {
		return nil, fmt.Errorf("open event database: %w", err)
	}

	hw := buildHardwareDriver(opts, log)

	bus := events.NewBus(log)

	hwConfig, err := loadHardwareConfig(opts)
	if err != nil {
		_ = sink.Close()
		_ = hw.Close()
		return nil, fmt.Errorf("load hardware config: %w", err)
	}

	eng := engine.New(hw, sink, bus, log)
	if err := eng.ActivateConfig(cfg, hwConfig); err != nil {
		_ = sink.Close()
		_ = hw.Close()
		return nil, fmt.Errorf("activate configuration: %w", err)
	}

	log.Info().Msg("dependency injection wiring completed")

	return &Container{
		Config: cfg,
		Log:    log,
		HW:     hw,
		Sink:   sink,
		Bus:    bus,
		Engine: eng,
	}, nil
}

func openEventSink(cfg *config.Config, opts Options, log zerolog.Logger) (*eventlog.Sink, error) {
	// Unlike config.json/hardware.json, the event database need not exist
	// yet on a first run, so an explicit path is used directly rather than
	// through config.Resolve (which requires the target to already exist).
	path := opts.EventDBPath
	if path == "" {
		if resolved, err := config.Resolve("events.db", ""); err == nil {
			path = resolved
		} else {
			path = "events.db"
		}
	}
	return eventlog.Open(eventlog.Config{
		Path:        path,
		Syslog:      cfg.Event.Syslog,
		CleanupDays: cfg.Event.Cleanup,
	}, log)
}

func buildHardwareDriver(opts Options, log zerolog.Logger) hardware.Driver {
	if opts.HardwareSocket == "" {
		return null.New()
	}
	return rpc.New(opts.HardwareSocket, log)
}

// loadHardwareConfig reads hardware.json, if one is found, as an opaque
// document passed through to the driver untouched (§4.1: the bit-level
// shape of hwConfig is driver-specific and out of the core's concern).
func loadHardwareConfig(opts Options) (any, error) {
	path, err := config.Resolve("hardware.json", opts.HardwareConfigPath)
	if err != nil {
		return nil, nil // no hardware.json is fine; drivers default internally
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read hardware config %s: %w", path, err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse hardware config %s: %w", path, err)
	}
	return doc, nil
}

// Close releases every resource Wire opened.
func (c *Container) Close() {
	c.Engine.Stop()
	if c.Sink != nil {
		_ = c.Sink.Close()
	}
	_ = c.HW.Close()
}
