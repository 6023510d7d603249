// Package server exposes the painter over HTTP: the websocket hub, the
// microcontroller pull endpoint, a small JSON API and the browser UI.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/netutil"

	"github.com/fkcurrie/led-matrix-painter/internal/bridge"
	"github.com/fkcurrie/led-matrix-painter/internal/render"
	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

//go:embed assets
var assets embed.FS

// PreviewScale is the size in PNG pixels of one matrix pixel in icon previews
const PreviewScale = 16

// Frame is the read side of the framebuffer the API serves
type Frame interface {
	types.FrameSource
	Read() types.State
}

// Icons is the read side of the icon store the API serves
type Icons interface {
	List() []types.Icon
	Load(name string) ([]int, bool)
}

// Server wires the HTTP routes
type Server struct {
	cfg    types.ServerConfig
	frame  Frame
	icons  Icons
	ws     http.Handler
	logger *slog.Logger
}

// New creates a server. ws is the websocket hub mounted at /ws.
func New(cfg types.ServerConfig, frame Frame, icons Icons, ws http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:    cfg,
		frame:  frame,
		icons:  icons,
		ws:     ws,
		logger: logger.With("component", "server"),
	}
}

// Handler returns the route multiplexer
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /ws", s.ws)
	mux.Handle("GET /api/pixels_gs3", bridge.Handler(s.frame))
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/icons", s.handleIcons)
	mux.HandleFunc("GET /api/icons/{file}", s.handleIconPreview)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	static, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	mux.Handle("GET /", http.FileServer(http.FS(static)))
	return mux
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("failed to shutdown server", "error", err)
		return err
	}
	return nil
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.frame.Read())
}

func (s *Server) handleIcons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.icons.List())
}

func (s *Server) handleIconPreview(w http.ResponseWriter, r *http.Request) {
	file := r.PathValue("file")
	name, ok := strings.CutSuffix(file, ".png")
	if !ok {
		http.NotFound(w, r)
		return
	}

	frame, found := s.icons.Load(name)
	if !found {
		http.NotFound(w, r)
		return
	}

	state := s.frame.Read()
	data, err := render.PreviewPNG(frame, state.Width, state.Height, PreviewScale)
	if err != nil {
		s.logger.Warn("failed to render icon preview", "name", name, "error", err)
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	json.NewEncoder(w).Encode(v)
}
