// Command sprinklerd is the irrigation controller daemon: it wires the
// configuration, event database and hardware driver together via
// internal/di, starts the ambient HTTP control/status surface, and runs
// the engine's scheduling/refresh ticker until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/sprinklerd/internal/di"
	"github.com/aristath/sprinklerd/internal/events"
	"github.com/aristath/sprinklerd/internal/model"
	"github.com/aristath/sprinklerd/internal/server"
	"github.com/aristath/sprinklerd/pkg/logger"
)

const statusMonitorInterval = 10 * time.Second

func main() {
	var (
		configPath   string
		hwConfigPath string
		eventDBPath  string
		hwSocket     string
		logLevel     string
		pretty       bool
	)
	flag.StringVar(&configPath, "config", "", "path to config.json (overrides the cwd/system search path)")
	flag.StringVar(&hwConfigPath, "hardware-config", "", "path to hardware.json (overrides the cwd/system search path)")
	flag.StringVar(&eventDBPath, "event-db", "", "path to the event log sqlite file")
	flag.StringVar(&hwSocket, "hardware-socket", "", "unix socket of the rpc hardware driver (empty selects the null/simulation driver)")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")
	flag.BoolVar(&pretty, "log-pretty", false, "human-readable console logging instead of JSON")
	flag.Parse()

	log := logger.New(logger.Config{Level: logLevel, Pretty: pretty})
	log.Info().Msg("starting sprinklerd")

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

	container.Sink.Record(model.EventRecord{Action: model.ActionStartup})

	srv := server.New(server.Config{
		Port:   container.Config.WebServer.Port,
		Log:    log,
		Engine: container.Engine,
		Bus:    container.Bus,
	})
	if err := srv.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start http server")
	}

	eventManager := events.NewManager(container.Bus, log)
	statusMonitor := server.NewStatusMonitor(eventManager, container.Engine, log)
	statusMonitor.Start(statusMonitorInterval)

	container.Engine.Start()
	log.Info().Msg("sprinklerd started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down sprinklerd")
	container.Engine.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server forced to shutdown")
	}

	log.Info().Msg("sprinklerd stopped")
}
