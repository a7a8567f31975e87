package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rackwatch/rackwatch/pkg/compute"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(p, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoad_Defaults(t *testing.T) {
	// Agent-only file; the server section is absent.
	p := writeConfig(t, `agent:
  server_endpoint: "localhost:50051"
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != DefaultGRPCPort {
		t.Errorf("grpc_port: got %d, want %d", cfg.Server.GRPCPort, DefaultGRPCPort)
	}
	if cfg.Server.HTTPPort != DefaultHTTPPort {
		t.Errorf("http_port: got %d, want %d", cfg.Server.HTTPPort, DefaultHTTPPort)
	}
	if cfg.Server.BroadcastInterval != DefaultBroadcastInterval {
		t.Errorf("broadcast_interval: got %v, want %v", cfg.Server.BroadcastInterval, DefaultBroadcastInterval)
	}
	if cfg.Server.Snapshot.TTL != DefaultSnapshotTTL {
		t.Errorf("snapshot.ttl: got %v, want %v", cfg.Server.Snapshot.TTL, DefaultSnapshotTTL)
	}
	if err := cfg.Server.Thresholds.Validate(); err != nil {
		t.Errorf("default thresholds invalid: %v", err)
	}
}

func TestLoad_FullServer(t *testing.T) {
	p := writeConfig(t, `server:
  grpc_port: 9090
  http_port: 9091
  broadcast_interval: 2s
  snapshot:
    ttl: 10m
  thresholds:
    cabinet.liquid_level:
      baseline: 90
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.GRPCPort != 9090 {
		t.Errorf("grpc_port: got %d, want 9090", cfg.Server.GRPCPort)
	}
	if cfg.Server.HTTPPort != 9091 {
		t.Errorf("http_port: got %d, want 9091", cfg.Server.HTTPPort)
	}
	if cfg.Server.BroadcastInterval != 2*time.Second {
		t.Errorf("broadcast_interval: got %v, want 2s", cfg.Server.BroadcastInterval)
	}
	if cfg.Server.Snapshot.TTL != 10*time.Minute {
		t.Errorf("snapshot.ttl: got %v, want 10m", cfg.Server.Snapshot.TTL)
	}
	liq := cfg.Server.Thresholds[compute.KeyLiquidLevel]
	if liq.Baseline != 90 || liq.Direction != compute.Below {
		t.Errorf("liquid level threshold: got %+v", liq)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]struct {
		yaml string
		want string
	}{
		"grpc port":  {"server:\n  grpc_port: 70000\n", "grpc_port"},
		"http port":  {"server:\n  http_port: -1\n", "http_port"},
		"same ports": {"server:\n  grpc_port: 9000\n  http_port: 9000\n", "must differ"},
		"broadcast":  {"server:\n  broadcast_interval: 0s\n", "broadcast_interval"},
		"ttl":        {"server:\n  snapshot:\n    ttl: -1m\n", "ttl"},
		"threshold":  {"server:\n  thresholds:\n    power.current:\n      caution: -2\n", "power.current"},
		"misspelled": {"server:\n  thresholds:\n    cabinet.liquid_levl:\n      baseline: 50\n", `unknown metric "cabinet.liquid_levl"`},
		"bad yaml":   {"server: [", "parse yaml"},
		"bad number": {"server:\n  thresholds:\n    power.current:\n      baseline: lots\n", "parse yaml"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
