package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tvcompanion/host/internal/config"
	"github.com/tvcompanion/host/internal/control"
	"github.com/tvcompanion/host/internal/mqtt"
	"github.com/tvcompanion/host/internal/preset"
	"github.com/tvcompanion/host/internal/server"
	"github.com/tvcompanion/host/internal/storage"
	"github.com/tvcompanion/host/internal/transport/webos"
	"github.com/tvcompanion/host/internal/wol"
)

// shutdownTimeout bounds the graceful stop: HTTP drain plus the guarded
// power-off of devices flagged for it.
const shutdownTimeout = 15 * time.Second

func runStart(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		addr       string
		logLevel   string
	)
	fs.StringVar(&configPath, "config", "", "Path to config file (default: ~/.tvcompanion/config.toml)")
	fs.StringVar(&addr, "addr", "", "API listen address (overrides config)")
	fs.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if addr != "" {
		cfg.Addr = addr
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8320"
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	setupLogging(cfg.LogLevel, stderr)

	if len(cfg.Devices) == 0 {
		fmt.Fprintln(stderr, "Error: no devices configured")
		if p, err := config.DefaultConfigPath(); err == nil {
			if werr := config.WriteDefault(p); werr == nil {
				fmt.Fprintf(stderr, "A starter config was written to %s\n", p)
			}
		}
		return 1
	}

	// Storage is optional; the daemon runs without an audit trail.
	var store *storage.Store
	dbPath := cfg.Database
	if dbPath == "" {
		dbPath, _ = config.DefaultDatabasePath()
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err == nil {
			store, err = storage.Open(dbPath)
			if err != nil {
				log.Warn().Err(err).Str("path", dbPath).Msg("audit storage disabled")
				store = nil
			}
		}
	}
	if store != nil {
		defer store.Close()
	}

	hub := server.NewHub()
	go hub.Run()

	var notifier *mqtt.Notifier
	if cfg.MQTT.Host != "" {
		notifier = mqtt.NewNotifier(cfg.MQTT)
		if err := notifier.Connect(); err != nil {
			log.Warn().Err(err).Msg("mqtt notifier disabled")
			notifier = nil
		} else {
			hub.AddSink(notifier.Publish)
			defer notifier.Close()
		}
	}

	controllers := buildControllers(cfg, hub, store)

	srv := server.New(cfg.Addr, controllers, hub, store)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	// Startup policy: power on devices that opted in.
	startupCtx, cancelStartup := context.WithTimeout(context.Background(), time.Minute)
	for _, c := range controllers {
		go c.HandleHostEvent(startupCtx, control.HostStartup)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		cancelStartup()
		if err != nil {
			log.Error().Err(err).Msg("api server failed")
			return 1
		}
		return 0
	case sig := <-sigCh:
		cancelStartup()
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown policy: power off devices that opted in, then drain.
	for _, c := range controllers {
		c.HandleHostEvent(ctx, control.HostShutdown)
		c.Close()
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("api shutdown incomplete")
	}
	hub.Stop()
	return 0
}

// buildControllers wires one controller per configured device, sharing the
// session factory and wake sender.
func buildControllers(cfg *config.Config, hub *server.Hub, store *storage.Store) map[string]*control.Controller {
	var keys webos.KeyStore
	var audit control.AuditSink
	if store != nil {
		keys = store
		audit = store
	}
	factory := webos.NewFactory(keys)
	wakeSender := wol.NewSender()

	controllers := make(map[string]*control.Controller, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		dev := dc.ToDevice()
		dev.SetNotifier(hub.Publish)

		var presets []*preset.Preset
		for i := range cfg.Presets {
			p := &cfg.Presets[i]
			if p.Device == "" || p.Device == dev.Name {
				presets = append(presets, p)
			}
		}

		controllers[dev.Name] = control.New(dev, control.Options{
			Factory:         factory,
			Wake:            wakeSender,
			Presets:         presets,
			AdvancedActions: cfg.AdvancedActions,
			WakeDelay:       cfg.WakeDelay(),
			ConnectDelay:    cfg.ConnectDelay(),
			ConnectRetries:  cfg.ConnectRetries,
			Audit:           audit,
		})
	}
	return controllers
}

// setupLogging configures the global zerolog logger.
func setupLogging(level string, stderr io.Writer) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339})
}
