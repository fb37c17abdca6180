// Command reset is invoked unconditionally on stop/restart (§6
// Persistence): it wires the container through di.Wire (configuration,
// event log, hardware driver and an activated but never started engine),
// drives the hardware driver directly to de-energise every configured
// zone, records a single CANCEL event, and exits. It never starts the
// engine's ticks, the scheduler or the HTTP surface.
package main

import (
	"flag"

	"github.com/aristath/sprinklerd/internal/di"
	"github.com/aristath/sprinklerd/internal/model"
	"github.com/aristath/sprinklerd/pkg/logger"
)

func main() {
	var configPath, hwConfigPath, eventDBPath, hwSocket string
	flag.StringVar(&configPath, "config", "", "path to config.json")
	flag.StringVar(&hwConfigPath, "hardware-config", "", "path to hardware.json")
	flag.StringVar(&eventDBPath, "event-db", "", "path to the event log sqlite file")
	flag.StringVar(&hwSocket, "hardware-socket", "", "unix socket of the rpc hardware driver")
	flag.Parse()

	log := logger.New(logger.Config{Level: "info", Pretty: false})

	container, err := di.Wire(di.Options{
		ConfigPath:         configPath,
		HardwareConfigPath: hwConfigPath,
		EventDBPath:        eventDBPath,
		HardwareSocket:     hwSocket,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to wire dependencies")
	}
	defer container.Close()

	n := container.Config.ZoneIndex().Len()
	for i := 0; i < n; i++ {
		container.HW.SetZone(i, false)
	}
	container.HW.Apply()

	container.Sink.Record(model.EventRecord{Action: model.ActionCancel})

	log.Info().Int("zones", n).Msg("all zones forced off")
}
