package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/led-matrix-painter/internal/framebuffer"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type collector struct {
	mu     sync.Mutex
	frames []string
}

func (c *collector) Push(encoded string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, encoded)
	return nil
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func TestHandlerServesEncodedFrame(t *testing.T) {
	fb, err := framebuffer.New(2, 2)
	require.NoError(t, err)
	fb.SetFrame([]int{1, 0, 1, 0})

	rec := httptest.NewRecorder()
	Handler(fb).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/pixels_gs3", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7,0,7,0", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
}

func TestDecode(t *testing.T) {
	assert.Nil(t, Decode(""))
	assert.Equal(t, []int{1, 0, 1, 0}, Decode("7,0,7,0"))
}

func TestPollPushesOnlyChanges(t *testing.T) {
	fb, err := framebuffer.New(2, 1)
	require.NoError(t, err)
	sink := &collector{}
	p := NewPoller(fb, time.Hour, quietLogger(), sink)

	assert.True(t, p.Poll(), "first poll always pushes")
	assert.False(t, p.Poll())

	fb.SetPixel(1, 0, 1)
	assert.True(t, p.Poll())
	assert.False(t, p.Poll())

	assert.Equal(t, []string{"0,0", "0,7"}, sink.frames)
}

func TestPollSinkErrorDoesNotStopOthers(t *testing.T) {
	fb, err := framebuffer.New(1, 1)
	require.NoError(t, err)
	good := &collector{}
	bad := SinkFunc(func(string) error { return errors.New("unplugged") })

	p := NewPoller(fb, time.Hour, quietLogger(), bad, good)
	p.Poll()
	assert.Equal(t, []string{"0"}, good.frames)
}

func TestStartStopsOnCancel(t *testing.T) {
	fb, err := framebuffer.New(1, 1)
	require.NoError(t, err)
	sink := &collector{}
	p := NewPoller(fb, 5*time.Millisecond, quietLogger(), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, 5*time.Millisecond)
	fb.Fill()
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

type bitRecorder struct {
	bits [][]int
}

func (b *bitRecorder) WriteBits(bits []int) error {
	b.bits = append(b.bits, bits)
	return nil
}

func TestShiftRegisterSink(t *testing.T) {
	w := &bitRecorder{}
	require.NoError(t, NewShiftRegisterSink(w).Push("7,0,0,7"))
	assert.Equal(t, [][]int{{1, 0, 0, 1}}, w.bits)
}
