package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"muc-lab/internal"
	"muc-lab/runtime"
	"muc-lab/runtime/workers"
	"muc-lab/transport"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK     = 0
	exitConfig = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Component terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the stream lifecycle, and
// centralizes error reporting, keeping 'defer' statements effective and the
// wiring testable away from os.Exit.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	// 2. Room state
	// The registry lives above the connection so occupancy survives a
	// reconnect; it is the only shared mutable state in the process.
	registry := runtime.NewRegistry()

	if config.DebugPort > 0 {
		logger.Info("Occupancy inspector available",
			"url", fmt.Sprintf("http://localhost:%d/inspect", config.DebugPort))
		internal.StartDebugServer(logger, registry, config.DebugPort, "/inspect")
	}

	// 3. Supervision
	// The supervisor's restart interval is the reconnect delay: the
	// connection worker returns when the stream drops and comes back up
	// one interval later, forever.
	sup := workers.NewSupervisor(logger, config.ReconnectInterval)
	connection := workers.NewConnectionWorker(logger, transport.Options{
		ComponentName: config.ComponentName,
		SharedSecret:  config.SharedSecret,
		Host:          config.ServerHost,
		Port:          config.ServerPort,
	}, registry)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting component", "name", config.ComponentName,
		"server", fmt.Sprintf("%s:%d", config.ServerHost, config.ServerPort))
	sup.Add(connection).Run(ctx)

	logger.Info("Component stopped")
	return exitOK, nil
}
