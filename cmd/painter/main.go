package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fkcurrie/led-matrix-painter/internal/bridge"
	"github.com/fkcurrie/led-matrix-painter/internal/config"
	"github.com/fkcurrie/led-matrix-painter/internal/emitter"
	"github.com/fkcurrie/led-matrix-painter/internal/framebuffer"
	"github.com/fkcurrie/led-matrix-painter/internal/hub"
	"github.com/fkcurrie/led-matrix-painter/internal/icons"
	"github.com/fkcurrie/led-matrix-painter/internal/render"
	"github.com/fkcurrie/led-matrix-painter/internal/router"
	"github.com/fkcurrie/led-matrix-painter/internal/server"
	"github.com/fkcurrie/led-matrix-painter/pkg/gpio"
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML config file")
	addr       = flag.String("addr", "", "Address to listen on (overrides config)")
	storePath  = flag.String("store", "", "Icon store file (overrides config)")
	logLevel   = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
)

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "painter: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("painter stopped", "error", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *storePath != "" {
		cfg.Store.Path = *storePath
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	return cfg, cfg.Validate()
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fb, err := framebuffer.New(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return err
	}

	store, err := icons.NewStore(cfg.Store.Path, cfg.Grid.Width, cfg.Grid.Height, logger)
	if err != nil {
		return err
	}
	logger.Info("icon store ready", "path", store.Path(), "icons", store.Len())

	renderer, err := render.NewRenderer(cfg.Grid.Width, cfg.Grid.Height)
	if err != nil {
		return err
	}

	h := hub.New(cfg.Server.SendQueue, logger)
	r := router.New(fb, store, h, router.WithLogger(logger), router.WithRenderer(renderer))
	r.Register()

	var wg sync.WaitGroup

	if cfg.MQTT.Enabled {
		mirror := emitter.NewEmitter(cfg.MQTT, logger)
		if err := mirror.Connect(ctx); err != nil {
			logger.Warn("mqtt mirror disabled", "error", err)
		} else {
			defer mirror.Disconnect()
			h.AddTap(mirror.Tap)
			if err := mirror.StartControl(r); err != nil {
				logger.Warn("mqtt control disabled", "error", err)
			} else {
				defer mirror.StopControl()
			}
		}
	}

	if cfg.Bridge.Enabled {
		var sinks []bridge.Sink
		if cfg.GPIO.Enabled {
			reg, err := gpio.NewShiftRegister(cfg.GPIO.Chip, cfg.GPIO.DataPin, cfg.GPIO.ClockPin, cfg.GPIO.LatchPin)
			if err != nil {
				return err
			}
			defer reg.Close()
			sinks = append(sinks, bridge.NewShiftRegisterSink(reg))
			logger.Info("shift register attached", "chip", cfg.GPIO.Chip,
				"data", cfg.GPIO.DataPin, "clock", cfg.GPIO.ClockPin, "latch", cfg.GPIO.LatchPin)
		}

		interval := time.Duration(cfg.Bridge.PollIntervalMS) * time.Millisecond
		poller := bridge.NewPoller(fb, interval, logger, sinks...)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := poller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("frame poller stopped", "error", err)
			}
		}()
	}

	srv := server.New(cfg.Server, fb, store, h, logger)
	err = srv.Run(ctx)
	cancel()
	wg.Wait()
	logger.Info("shutting down")
	return err
}
