package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fkcurrie/led-matrix-painter/internal/config"
	"github.com/fkcurrie/led-matrix-painter/pkg/gpio"
)

var (
	configPath = flag.String("config", "", "Path to a JSON or YAML config file")
	period     = flag.Duration("period", time.Second, "Time between steps")
)

func main() {
	flag.Parse()

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	g := cfg.GPIO
	log.Printf("Starting shift register test on %s (data=%d clock=%d latch=%d)", g.Chip, g.DataPin, g.ClockPin, g.LatchPin)

	reg, err := gpio.NewShiftRegister(g.Chip, g.DataPin, g.ClockPin, g.LatchPin)
	if err != nil {
		log.Fatalf("Failed to open shift register: %v", err)
	}
	defer reg.Close()

	// Walk a single lit pixel along the chain until terminated
	size := cfg.Grid.Width * cfg.Grid.Height
	bits := make([]int, size)
	ticker := time.NewTicker(*period)
	defer ticker.Stop()

	pos := 0
	for {
		for i := range bits {
			bits[i] = 0
		}
		bits[pos] = 1
		if err := reg.WriteBits(bits); err != nil {
			log.Printf("Failed to write bits: %v", err)
		} else {
			log.Printf("Lit pixel %d (x=%d, y=%d)", pos, pos%cfg.Grid.Width, pos/cfg.Grid.Width)
		}
		pos = (pos + 1) % size

		select {
		case <-sigChan:
			log.Println("Shutting down...")
			return
		case <-ticker.C:
		}
	}
}
