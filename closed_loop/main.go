package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"follow-core/utils"
)

func main() {
	var (
		cfgPath  = flag.String("config", "config/follow.json", "Follow config JSON file")
		logLevel = flag.String("log", "", "trace|debug|info|warn|error|critical (overrides config)")
		logFile  = flag.String("log-file", "", "Log file path (overrides config)")
		device   = flag.String("device", "", "Actuator serial device (overrides config)")
		dryRun   = flag.Bool("dry-run", false, "Record drive commands instead of sending them")
	)
	flag.Parse()

	cfg, err := LoadConfig(*cfgPath)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: load config " + *cfgPath + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *device != "" {
		cfg.Actuator.Device = *device
	}
	if *dryRun {
		cfg.Actuator.Kind = "dry"
	}

	log, err := utils.NewFileLogger(cfg.Log.File, utils.ParseLevel(cfg.Log.Level), cfg.Log.Stdout)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open " + cfg.Log.File + ": " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}

	runErr := runner.Run(ctx)
	if err := runner.Close(); err != nil {
		log.Error("Shutdown: %v", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Critical("Run failed: %v", runErr)
		log.Close()
		os.Exit(1)
	}
}
