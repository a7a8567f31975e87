package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"github.com/rackwatch/rackwatch/pkg/compute"
	"github.com/rackwatch/rackwatch/pkg/wire"
	"github.com/rackwatch/rackwatch/server/internal/api"
	"github.com/rackwatch/rackwatch/server/internal/config"
	"github.com/rackwatch/rackwatch/server/internal/metrics"
	"github.com/rackwatch/rackwatch/server/internal/receiver"
	"github.com/rackwatch/rackwatch/server/internal/store"
	"github.com/rackwatch/rackwatch/server/internal/ws"
)

// shutdownTimeout bounds the HTTP server's graceful shutdown.
const shutdownTimeout = 10 * time.Second

func main() {
	configPath := pflag.StringP("config", "c", "config.yaml", "path to config file")
	uiDir := pflag.String("ui-dir", "", "serve the dashboard static files from this directory (e.g. ui/dist); leave empty to disable")
	logLevel := pflag.String("log-level", "info", "log level: debug|info|warn|error")
	pflag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(*logLevel)}))
	slog.SetDefault(logger)

	slog.Info("rackwatch-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"grpc_port", cfg.Server.GRPCPort,
		"http_port", cfg.Server.HTTPPort,
		"broadcast_interval", cfg.Server.BroadcastInterval,
		"snapshot_ttl", cfg.Server.Snapshot.TTL,
	)

	engine, err := compute.NewEngine(cfg.Server.Thresholds)
	if err != nil {
		slog.Error("invalid threshold table", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Last-known-good status with background TTL expiry.
	st := store.New(cfg.Server.Snapshot.TTL)
	go st.Run(ctx)

	m := metrics.New(st)
	hub := ws.New(st, cfg.Server.BroadcastInterval)
	go hub.Run(ctx)

	rec := receiver.New(engine, st, m)
	rec.OnAccept(func(*compute.FleetStatus) { hub.Notify() })

	grpcSrv := grpc.NewServer(grpc.UnaryInterceptor(receiver.LoggingInterceptor()))
	wire.RegisterSnapshotServiceServer(grpcSrv, rec)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		slog.Error("failed to listen on gRPC port",
			"port", cfg.Server.GRPCPort, "err", err)
		os.Exit(1)
	}

	go func() {
		slog.Info("gRPC receiver listening", "port", cfg.Server.GRPCPort)
		if err := grpcSrv.Serve(lis); err != nil {
			slog.Error("gRPC server stopped", "err", err)
		}
	}()

	// Combined HTTP server: REST API, WebSocket hub and self-metrics on HTTPPort.
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", api.New(st, engine.Table(), rec))
	httpMux.Handle("/ws/stream", hub)
	httpMux.Handle("/metrics", m.Handler())

	// Optional: serve the pre-built dashboard from a local directory.
	// The "/" catch-all serves index.html for any unknown path (SPA routing).
	if *uiDir != "" {
		httpMux.Handle("/", spaHandler(*uiDir))
		slog.Info("serving UI static files", "dir", *uiDir)
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("rackwatch-server shutting down")
	grpcSrv.GracefulStop()

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "err", err)
	}
}

// spaHandler serves files from dir, falling back to index.html for paths
// that do not exist on disk.
func spaHandler(dir string) http.Handler {
	fs := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+r.URL.Path)))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			http.ServeFile(w, r, filepath.Join(dir, "index.html"))
			return
		}
		fs.ServeHTTP(w, r)
	})
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
