// Package bridge exposes the current frame to external consumers: an HTTP
// pull endpoint for the microcontroller link and a poller that pushes
// changed frames to hardware sinks.
package bridge

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

// Sink receives the encoded frame whenever it changes
type Sink interface {
	Push(encoded string) error
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(encoded string) error

// Push calls f
func (f SinkFunc) Push(encoded string) error { return f(encoded) }

// Handler serves the encoded frame as plain text
func Handler(src types.FrameSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		io.WriteString(w, src.ReadEncoded())
	})
}

// Decode turns an encoded frame back into pixel values
func Decode(encoded string) []int {
	if encoded == "" {
		return nil
	}
	cells := strings.Split(encoded, ",")
	bits := make([]int, len(cells))
	for i, c := range cells {
		if c != "0" {
			bits[i] = 1
		}
	}
	return bits
}

// Poller pulls the encoded frame at a fixed interval and pushes it to every
// sink when it differs from the last push
type Poller struct {
	src      types.FrameSource
	interval time.Duration
	sinks    []Sink
	logger   *slog.Logger
	last     string
	pushed   bool
}

// NewPoller creates a poller reading src every interval
func NewPoller(src types.FrameSource, interval time.Duration, logger *slog.Logger, sinks ...Sink) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		src:      src,
		interval: interval,
		sinks:    sinks,
		logger:   logger.With("component", "bridge"),
	}
}

// Start polls until ctx is cancelled
func (p *Poller) Start(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.Poll()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.Poll()
		}
	}
}

// Poll performs a single pull and reports whether the sinks were pushed
func (p *Poller) Poll() bool {
	encoded := p.src.ReadEncoded()
	if p.pushed && encoded == p.last {
		return false
	}

	for _, sink := range p.sinks {
		if err := sink.Push(encoded); err != nil {
			p.logger.Warn("failed to push frame", "error", err)
		}
	}
	p.last = encoded
	p.pushed = true
	return true
}
