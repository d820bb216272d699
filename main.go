package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/smazurov/camctl/cmd"
	"github.com/smazurov/camctl/internal/camera"
	"github.com/smazurov/camctl/internal/config"
	"github.com/smazurov/camctl/internal/dispatch"
	"github.com/smazurov/camctl/internal/events"
	"github.com/smazurov/camctl/internal/host"
	"github.com/smazurov/camctl/internal/logging"
	"github.com/smazurov/camctl/internal/mainloop"
	"github.com/smazurov/camctl/internal/platform/sim"
	"github.com/smazurov/camctl/internal/systemd"
	"github.com/smazurov/camctl/internal/version"
)

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *config.Options) {
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}
		if validateErr := opts.Validate(); validateErr != nil {
			slog.Error("Invalid configuration", "error", validateErr)
			os.Exit(1)
		}

		logging.Initialize(opts.Logging())
		logger := logging.GetLogger("main")
		logger.Info("camctl starting", "version", version.Version, "config", opts.Config)

		cameras, err := sim.LoadConfig(opts.CamerasFile)
		if err != nil {
			logger.Error("Failed to load cameras", "file", opts.CamerasFile, "error", err)
			os.Exit(1)
		}
		platform, err := sim.New(cameras, sim.Options{
			FrameInterval: time.Second / time.Duration(opts.FrameRate),
		})
		if err != nil {
			logger.Error("Failed to create platform", "error", err)
			os.Exit(1)
		}

		bridge, err := host.NewBridge(opts.Permissions, opts.Screen())
		if err != nil {
			logger.Error("Failed to create host bridge", "error", err)
			os.Exit(1)
		}

		loop := mainloop.New()
		eventBus := events.New()
		publisher := events.NewPublisher(eventBus, opts.ChannelPrefix)
		orientation := camera.NewOrientationWatcher()

		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.UTC().Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		dispatcher := dispatch.New(dispatch.Options{
			Manager:     platform,
			Host:        bridge,
			Executor:    loop,
			Bus:         eventBus,
			Orientation: orientation,
		})

		server := host.NewServer(&host.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			CommandTimeout:    time.Duration(opts.CommandTimeoutMs) * time.Millisecond,
			Commander:         dispatcher,
			Bridge:            bridge,
			Publisher:         publisher,
			Bus:               eventBus,
			Orientation:       orientation,
			PrometheusHandler: promhttp.Handler(),
		})

		watcher := config.NewConfigWatcher(opts.Config, config.LoadLoggingConfig, logging.GetLogger("config"))
		watcher.OnReload(func(cfg logging.Config) {
			logging.SetLevels(cfg)
			logger.Info("Logging levels reloaded", "level", cfg.Level, "modules", cfg.Modules)
		})

		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			go loop.Run(ctx)
			go platform.Run(ctx)

			if startErr := watcher.Start(ctx); startErr != nil {
				logger.Warn("Config hot reload disabled", "error", startErr)
			}

			go notifier.RunWatchdog(ctx)
			notifier.Ready()

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down server")
			notifier.Stopping()
			logging.SetLogCallback(nil)
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			// Release the camera before the loop stops accepting work.
			disposeCtx, disposeCancel := context.WithTimeout(context.Background(), 2*time.Second)
			if _, callErr := dispatcher.Call(disposeCtx, dispatch.MethodDispose, nil); callErr != nil {
				logger.Warn("Session not disposed", "error", callErr)
			}
			disposeCancel()

			if stopErr := watcher.Stop(); stopErr != nil {
				logger.Warn("Error stopping config watcher", "error", stopErr)
			}
			cancel()
			<-loop.Done()
			publisher.Close()
			eventBus.Close()
		})
	})

	cli.Root().Use = "camctl"
	cli.Root().Version = version.String()
	cli.Root().AddCommand(cmd.CreateCamerasCmd())
	cli.Root().AddCommand(cmd.CreateSizesCmd())

	cli.Run()
}
