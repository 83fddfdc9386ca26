package tempo

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tempo-ai/tempo-go/pkg/core"
	"github.com/tempo-ai/tempo-go/pkg/core/pcm"
)

// CaptureBlockSize is the number of samples per capture frame: ~170ms of
// latency at the 24kHz wire rate.
const CaptureBlockSize = 4096

// StreamConfig describes the input stream requested from a microphone.
type StreamConfig struct {
	SampleRate       int
	Channels         int
	BlockSize        int
	EchoCancellation bool
	NoiseSuppression bool
}

// MicrophoneSource opens live audio input streams. Implementations map
// permission or device failures to a *core.Error of type ErrPermission.
type MicrophoneSource interface {
	Open(ctx context.Context, cfg StreamConfig) (MicStream, error)
}

// MicStream delivers fixed-size frames of normalized samples until closed.
// Close stops the underlying tracks and releases the device resources.
type MicStream interface {
	Frames() <-chan []float32
	Close() error
}

// CaptureConfig configures a CapturePipeline.
type CaptureConfig struct {
	Source MicrophoneSource
	// Send transmits one encoded frame as a binary message.
	Send func(pcm []byte) error
	// TransportOpen reports whether the session can accept frames. Frames
	// arriving while it returns false are dropped silently (gating).
	TransportOpen func() bool
	Logger        *slog.Logger
}

// CapturePipeline frames live microphone audio into fixed-size blocks and
// transmits them while the listening flag is set. Frames that arrive while
// not listening, or while the transport is not open, are dropped without
// error: that is deliberate backpressure gating, not a fault.
type CapturePipeline struct {
	source        MicrophoneSource
	send          func([]byte) error
	transportOpen func() bool
	logger        *slog.Logger

	listening atomic.Bool

	mu      sync.Mutex
	started bool
	stream  MicStream
	stop    chan struct{}
	done    chan struct{}
}

// NewCapturePipeline creates a pipeline; Start acquires the device.
func NewCapturePipeline(cfg CaptureConfig) *CapturePipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CapturePipeline{
		source:        cfg.Source,
		send:          cfg.Send,
		transportOpen: cfg.TransportOpen,
		logger:        cfg.Logger,
	}
}

// Start acquires a mono input stream at the wire sample rate with echo
// cancellation and noise suppression, then begins forwarding frames. It
// fails with a permission error when the device is denied or unavailable.
// Starting an already-started pipeline is a no-op.
func (c *CapturePipeline) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	stream, err := c.source.Open(ctx, StreamConfig{
		SampleRate:       pcm.SampleRate,
		Channels:         pcm.Channels,
		BlockSize:        CaptureBlockSize,
		EchoCancellation: true,
		NoiseSuppression: true,
	})
	if err != nil {
		var coreErr *core.Error
		if errors.As(err, &coreErr) {
			return coreErr
		}
		return core.NewPermissionError("microphone unavailable: " + err.Error())
	}

	c.mu.Lock()
	if c.started {
		// Lost the race against a concurrent Start.
		c.mu.Unlock()
		_ = stream.Close()
		return nil
	}
	c.started = true
	c.stream = stream
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	stop, done := c.stop, c.done
	c.mu.Unlock()

	go c.run(stream, stop, done)
	return nil
}

// SetListening flips the gate. Turning it off takes effect immediately for
// any frame already in flight.
func (c *CapturePipeline) SetListening(on bool) {
	c.listening.Store(on)
}

// Listening reports the gate state.
func (c *CapturePipeline) Listening() bool {
	return c.listening.Load()
}

// Stop tears down capture. Order matters to avoid sending on a half-torn-
// down pipeline: the listening flag goes cold first so in-flight frames
// stop transmitting immediately, then the framing tap is detached, then the
// stream's tracks and device context are released. Idempotent and safe to
// call before Start.
func (c *CapturePipeline) Stop() {
	c.listening.Store(false)

	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	stream, stop, done := c.stream, c.stop, c.done
	c.stream = nil
	c.mu.Unlock()

	close(stop)
	<-done
	if err := stream.Close(); err != nil {
		c.logger.Warn("closing microphone stream", "error", err)
	}
}

func (c *CapturePipeline) run(stream MicStream, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case frame, ok := <-stream.Frames():
			if !ok {
				return
			}
			if !c.listening.Load() || c.transportOpen == nil || !c.transportOpen() {
				continue
			}
			if err := c.send(pcm.EncodeFloat32(frame)); err != nil {
				// The session may have closed between the gate check and the
				// write; the frame is simply lost.
				c.logger.Debug("capture frame not sent", "error", err)
			}
		}
	}
}
