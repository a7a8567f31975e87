package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rackwatch/rackwatch/agent/internal/config"
	"github.com/rackwatch/rackwatch/agent/internal/scraper"
	"github.com/rackwatch/rackwatch/agent/internal/shipper"
	"github.com/rackwatch/rackwatch/agent/internal/synth"
	"github.com/rackwatch/rackwatch/pkg/types"
)

// snapshotSource produces one complete fleet snapshot per call.
type snapshotSource interface {
	Snapshot(ctx context.Context) (*types.FleetSnapshot, error)
}

func main() {
	configPath := pflag.StringP("config", "c", "agent.yaml", "path to config file")
	logLevel := pflag.String("log-level", "info", "log level: debug|info|warn|error")
	once := pflag.Bool("once", false, "print a single snapshot as JSON to stdout and exit")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("rackwatch-agent starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"server_endpoint", cfg.Agent.ServerEndpoint,
		"source", cfg.Agent.Source,
		"interval", cfg.Agent.Interval,
	)

	src, err := newSource(cfg.Agent)
	if err != nil {
		slog.Error("failed to build snapshot source", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		if err := printOnce(ctx, src); err != nil {
			slog.Error("snapshot failed", "err", err)
			os.Exit(1)
		}
		return
	}

	// The running source, shipper and thresholds are fixed for the process
	// lifetime; a reload only reports what changed.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			if changed := config.RestartRequired(cfg, updated); len(changed) > 0 {
				slog.Warn("config changed, restart to apply", "settings", changed)
				return
			}
			slog.Info("config hot-reloaded, no effective change")
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	ship := shipper.New(cfg.Agent.ServerEndpoint, cfg.Agent.BufferSize)
	go ship.Run(ctx)

	// Produce one snapshot immediately, then every interval.
	go func() {
		ticker := time.NewTicker(cfg.Agent.Interval)
		defer ticker.Stop()
		for {
			collect(ctx, src, ship)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	<-ctx.Done()
	st := ship.Stats()
	slog.Info("rackwatch-agent shutting down",
		"delivered", st.Delivered,
		"rejected", st.Rejected,
		"superseded", st.Superseded,
		"evicted", st.Evicted)
}

func newSource(cfg config.AgentConfig) (snapshotSource, error) {
	switch cfg.Source {
	case config.SourcePrometheus:
		for _, c := range cfg.Cabinets {
			slog.Info("registered cabinet", "id", c.ID, "endpoint", c.Endpoint)
		}
		f, err := scraper.New(cfg.Cabinets)
		if err != nil {
			return nil, err
		}
		return f, nil
	case config.SourceSynthetic:
		return synth.New(cfg.Synthetic, cfg.Thresholds), nil
	default:
		return nil, fmt.Errorf("unknown source %q", cfg.Source)
	}
}

func collect(ctx context.Context, src snapshotSource, ship *shipper.Shipper) {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		if ctx.Err() == nil {
			slog.Warn("snapshot error, skipping cycle", "err", err)
		}
		return
	}
	ship.Ship(snap)
	slog.Debug("queued snapshot", "snapshot", snap.ID, "cabinets", len(snap.Enclosures))
}

func printOnce(ctx context.Context, src snapshotSource) error {
	snap, err := src.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
