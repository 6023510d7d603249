// Package icons stores named frames in a single JSON document on disk.
//
// The whole document is read at startup and rewritten after every save or
// delete. Persistence failures are logged and never surface to callers: the
// in-memory map stays authoritative for the rest of the process lifetime.
package icons

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fkcurrie/led-matrix-painter/internal/framebuffer"
	"github.com/fkcurrie/led-matrix-painter/internal/types"
)

const (
	// MaxNameLength is the longest name kept after sanitizing
	MaxNameLength = 64
	// DefaultName replaces names that sanitize to nothing
	DefaultName = "icon"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9 _.\-]`)

// Store represents the persisted icon collection
type Store struct {
	path   string
	size   int
	logger *slog.Logger

	mu    sync.Mutex
	icons map[string][]int
}

// NewStore creates a store for frames of width*height pixels backed by the
// document at path. A missing document yields an empty store; an unreadable
// one is logged and also yields an empty store.
func NewStore(path string, width, height int, logger *slog.Logger) (*Store, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: %dx%d", width, height)
	}
	if path == "" {
		return nil, fmt.Errorf("icon store path must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		path:   path,
		size:   width * height,
		logger: logger.With("component", "icons"),
		icons:  make(map[string][]int),
	}
	s.load()
	return s, nil
}

// Path returns the location of the backing document
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of stored icons
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.icons)
}

// List returns every icon sorted by name. Frames are copies.
func (s *Store) List() []types.Icon {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.icons))
	for name := range s.icons {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]types.Icon, 0, len(names))
	for _, name := range names {
		list = append(list, types.Icon{
			Name:  name,
			Frame: append([]int(nil), s.icons[name]...),
		})
	}
	return list
}

// Save stores frame under the sanitized name and returns the name actually
// used. A name already in use gets a " (2)", " (3)", ... suffix. A nil frame,
// or one of the wrong length, is not stored and only the sanitized name is
// returned.
func (s *Store) Save(name string, frame []int) string {
	name = SanitizeName(name)
	if frame == nil {
		return name
	}
	normalized := framebuffer.Normalize(frame, s.size)
	if normalized == nil {
		return name
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.icons[name]; taken {
		base := name
		for i := 2; ; i++ {
			candidate := base + " (" + strconv.Itoa(i) + ")"
			if _, taken := s.icons[candidate]; !taken {
				name = candidate
				break
			}
		}
	}

	s.icons[name] = normalized
	s.flush()
	return name
}

// Load returns a copy of the frame stored under the sanitized name
func (s *Store) Load(name string) ([]int, bool) {
	name = SanitizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	frame, ok := s.icons[name]
	if !ok {
		return nil, false
	}
	return append([]int(nil), frame...), true
}

// Delete removes the icon stored under the sanitized name and reports
// whether anything was removed
func (s *Store) Delete(name string) bool {
	name = SanitizeName(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.icons[name]; !ok {
		return false
	}
	delete(s.icons, name)
	s.flush()
	return true
}

// SanitizeName trims whitespace, replaces every character outside
// [A-Za-z0-9 _.-] with an underscore and caps the length
func SanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeChars.ReplaceAllString(name, "_")
	if len(name) > MaxNameLength {
		name = name[:MaxNameLength]
	}
	if name == "" {
		return DefaultName
	}
	return name
}

// load reads the backing document into memory. Callers hold no lock; it is
// only called from NewStore.
func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read icon store, starting empty", "path", s.path, "error", err)
		}
		return
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("failed to parse icon store, starting empty", "path", s.path, "error", err)
		return
	}

	for name, raw := range doc {
		var values []json.RawMessage
		if err := json.Unmarshal(raw, &values); err != nil || values == nil {
			s.logger.Debug("dropping icon that is not an array", "name", name)
			continue
		}
		s.icons[name] = s.decodeFrame(name, values)
	}

	s.logger.Info("icon store loaded", "path", s.path, "icons", len(s.icons))
}

// decodeFrame turns a stored array into a frame. Arrays of the wrong length
// or with non-numeric cells load as a blank frame.
func (s *Store) decodeFrame(name string, values []json.RawMessage) []int {
	blank := make([]int, s.size)
	if len(values) != s.size {
		s.logger.Warn("icon has wrong frame length, loading blank", "name", name, "length", len(values), "want", s.size)
		return blank
	}

	frame := make([]int, s.size)
	for i, raw := range values {
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			var b bool
			if json.Unmarshal(raw, &b) != nil {
				s.logger.Warn("icon has non-numeric pixel, loading blank", "name", name, "index", i)
				return blank
			}
			if b {
				v = 1
			}
		}
		if int(v) != 0 {
			frame[i] = 1
		}
	}
	return frame
}

// flush rewrites the backing document. The caller must hold s.mu.
func (s *Store) flush() {
	if err := s.writeFile(); err != nil {
		s.logger.Error("failed to save icon store", "path", s.path, "error", err)
	}
}

func (s *Store) writeFile() error {
	data, err := json.MarshalIndent(s.icons, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode icons: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	return nil
}
