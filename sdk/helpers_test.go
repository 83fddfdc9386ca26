package tempo

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeSink records played chunks and flags any overlapping Play calls.
type fakeSink struct {
	mu      sync.Mutex
	played  [][]byte
	playing bool
	overlap bool
	closed  bool

	// delay holds each Play open so tests can observe in-flight state.
	delay time.Duration
	// gate, when non-nil, blocks each Play until a value is received.
	gate chan struct{}
}

func (f *fakeSink) Play(ctx context.Context, pcm []byte) error {
	f.mu.Lock()
	if f.playing {
		f.overlap = true
	}
	f.playing = true
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			f.mu.Lock()
			f.playing = false
			f.mu.Unlock()
			return ctx.Err()
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			f.mu.Lock()
			f.playing = false
			f.mu.Unlock()
			return ctx.Err()
		}
	}

	f.mu.Lock()
	f.played = append(f.played, append([]byte(nil), pcm...))
	f.playing = false
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSink) playedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

func (f *fakeSink) playedChunks() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]byte, len(f.played))
	copy(out, f.played)
	return out
}

func (f *fakeSink) sawOverlap() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlap
}

func (f *fakeSink) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// fakeMic is a MicrophoneSource whose stream is fed by the test.
type fakeMic struct {
	frames  chan []float32
	openErr error

	mu        sync.Mutex
	opened    bool
	closed    bool
	lastCfg   StreamConfig
	openCount int
}

func newFakeMic() *fakeMic {
	return &fakeMic{frames: make(chan []float32, 16)}
}

func (m *fakeMic) Open(ctx context.Context, cfg StreamConfig) (MicStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened = true
	m.openCount++
	m.lastCfg = cfg
	return m, nil
}

func (m *fakeMic) Frames() <-chan []float32 { return m.frames }

func (m *fakeMic) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeMic) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// waitFor polls cond until it holds or the timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}
