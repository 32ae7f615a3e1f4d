package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"accel-dashboard/services/hub"
	"accel-dashboard/services/ingest"
	"accel-dashboard/utils"
)

func main() {
	// ── CLI flags ────────────────────────────────────────────────────
	configPath := pflag.StringP("config", "c", "config/hub.yaml", "path to hub.yaml")
	listen := pflag.StringP("listen", "l", "", "listen address (overrides hub.listen)")
	logLevel := pflag.String("log-level", "", "debug, info, warn or error (overrides log.level)")
	logFile := pflag.String("log-file", "", "optional log file path (stdout is always included)")
	simulate := pflag.Bool("simulate", false, "feed simulated samples (overrides simulation.enabled)")
	pflag.Parse()

	// ── Load config ──────────────────────────────────────────────────
	cfg, err := utils.LoadHubConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *listen != "" {
		cfg.Hub.Listen = *listen
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *simulate {
		cfg.Simulation.Enabled = true
	}

	// ── Logger ───────────────────────────────────────────────────────
	level, err := utils.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := utils.InitLogger(utils.LogOptions{Level: level, FilePath: cfg.Log.File})
	defer logger.Close()

	utils.L().Info("═══════════════════════════════════════════════════")
	utils.L().Info("  accel-hub  ·  accelerometer telemetry hub")
	utils.L().Info("  GOMAXPROCS=%d  ·  PID=%d", runtime.GOMAXPROCS(0), os.Getpid())
	utils.L().Info("═══════════════════════════════════════════════════")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := hub.NewServer(cfg, nil)
	server.Metrics().Registry().MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return server.Run(ctx) })

	if cfg.MQTT.Enabled {
		sub, err := server.BridgeMQTT(ctx)
		if err != nil {
			utils.L().Fatal("mqtt bridge: %v", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			return sub.Close()
		})
	}

	if cfg.Simulation.Enabled {
		sim := ingest.NewAccelSimulator(cfg.Simulation, nil, time.Now().UnixNano())
		g.Go(func() error {
			server.RunSimulation(ctx, sim)
			return nil
		})
	}

	// ── Stats ticker ─────────────────────────────────────────────────
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				snap := server.Snapshot()
				latest := server.Latest()
				utils.L().Info("window=%d/%d  latest ax=%.3f ay=%.3f az=%.3f",
					snap.Len, snap.Capacity, latest.AX, latest.AY, latest.AZ)
			}
		}
	})

	if err := g.Wait(); err != nil {
		utils.L().Error("%v", err)
		logger.Close()
		os.Exit(1)
	}
	utils.L().Info("hub finished")
}
