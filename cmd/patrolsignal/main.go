package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/patrolsignal/internal/bridge"
	"github.com/udisondev/patrolsignal/internal/config"
	"github.com/udisondev/patrolsignal/internal/game/patrolsignal"
	"github.com/udisondev/patrolsignal/internal/i18n"
	"github.com/udisondev/patrolsignal/internal/scheduler"
	"github.com/udisondev/patrolsignal/internal/telemetry"
)

const (
	ServiceConfigPath = "config/patrolsignal.yaml"

	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run serves the plugin until ctx is canceled. The plugin is unloaded on the
// loop while the host is still connected, so a running encounter is torn down
// before the process exits.
func run(ctx context.Context) error {
	cfgPath := ServiceConfigPath
	if p := os.Getenv("PATROLSIGNAL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadService(cfgPath)
	if err != nil {
		return fmt.Errorf("loading service config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	})))
	slog.Info("patrolsignal starting", "log_level", cfg.LogLevel, "bridge", cfg.Addr()+cfg.BridgePath)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			slog.Error("flushing traces", "error", err)
		}
	}()

	pluginCfg, err := config.LoadPlugin(cfg.PluginConfig)
	if err != nil {
		return fmt.Errorf("loading plugin config: %w", err)
	}

	catalog, err := i18n.New()
	if err != nil {
		return fmt.Errorf("loading messages: %w", err)
	}

	store, releaseStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer releaseStore()

	loop := scheduler.NewLoop(scheduler.DefaultQueueSize)
	srv := bridge.NewServer(loop, bridge.Options{
		Token:       cfg.BridgeToken,
		CallTimeout: cfg.CallTimeout(),
	})
	remote := srv.Remote()

	plugin := patrolsignal.New(patrolsignal.Options{
		Host:      remote,
		Blocks:    remote,
		Scheduler: loop,
		Store:     store,
		Catalog:   catalog,
		Config:    pluginCfg,
	})
	if err := plugin.Init(ctx); err != nil {
		return fmt.Errorf("initializing plugin: %w", err)
	}
	srv.Bind(plugin)

	mux := http.NewServeMux()
	mux.Handle(cfg.BridgePath, srv)
	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	runCtx, stop := context.WithCancel(context.Background())
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := loop.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("scheduler loop: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		slog.Info("bridge listening", "addr", httpSrv.Addr, "path", cfg.BridgePath)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("bridge server: %w", err)
		}
		return nil
	})

	saves := loop.Repeat(cfg.SaveEvery(), 0, func() {
		if err := plugin.OnServerSave(gctx); err != nil {
			slog.Error("periodic cooldown save", "error", err)
		}
	})

	unloaded := false
	g.Go(func() error {
		select {
		case <-ctx.Done():
		case <-gctx.Done():
			return nil
		}

		saves.Stop()
		uctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := loop.Do(uctx, func() {
			unloaded = true
			if err := plugin.Unload(uctx); err != nil {
				slog.Error("unloading plugin", "error", err)
			}
		})
		if err != nil {
			slog.Error("scheduling unload", "error", err)
		}
		stop()
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(sctx); err != nil {
			slog.Error("bridge server shutdown", "error", err)
		}
		return srv.Close()
	})

	err = g.Wait()

	// The loop has stopped; finish the unload on this goroutine if it never ran there.
	if !unloaded {
		saves.Stop()
		uctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if uerr := plugin.Unload(uctx); uerr != nil {
			slog.Error("unloading plugin", "error", uerr)
		}
	}

	slog.Info("patrolsignal stopped")
	return err
}
