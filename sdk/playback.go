package tempo

import (
	"context"
	"log/slog"
	"sync"
)

// AudioSink plays raw 16-bit little-endian PCM at the wire sample rate.
// Play blocks until the chunk has been played to completion (or ctx is
// canceled), so sequential calls produce gapless output.
type AudioSink interface {
	Play(ctx context.Context, pcm []byte) error
	Close() error
}

// PlaybackConfig configures a PlaybackQueue.
type PlaybackConfig struct {
	Sink   AudioSink
	Logger *slog.Logger

	// OnDrained fires when the queue empties and playback goes idle. It does
	// not fire on Stop.
	OnDrained func()
}

// PlaybackQueue is an ordered buffer of assistant audio chunks drained by a
// single playback loop. Insertion order = arrival order = play order; each
// chunk is consumed exactly once and chunks never overlap.
//
// The drain is one long-lived goroutine woken by Enqueue, so the
// single-active-drain invariant holds by construction: concurrent arrivals
// enqueue and signal, they never spawn a second player. Chunks that arrive
// while the last one is playing are picked up by the same loop rather than
// stranded.
type PlaybackQueue struct {
	sink      AudioSink
	logger    *slog.Logger
	onDrained func()

	mu     sync.Mutex
	chunks [][]byte
	active bool
	closed bool

	wake chan struct{}
	done chan struct{}

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewPlaybackQueue creates a queue and starts its drain loop.
func NewPlaybackQueue(cfg PlaybackConfig) *PlaybackQueue {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &PlaybackQueue{
		sink:      cfg.Sink,
		logger:    cfg.Logger,
		onDrained: cfg.OnDrained,
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	go q.drainLoop()
	return q
}

// Enqueue appends a chunk and wakes the drain. Empty chunks are ignored;
// enqueueing after Stop is a no-op.
func (q *PlaybackQueue) Enqueue(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.chunks = append(q.chunks, chunk)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
		// A wake is already pending; the drain loop will see this chunk.
	}
}

// Len returns the number of queued chunks not yet handed to the sink.
func (q *PlaybackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.chunks)
}

// Active reports whether a chunk is queued or currently being played.
func (q *PlaybackQueue) Active() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active || len(q.chunks) > 0
}

// Idle reports whether the queue is empty with no chunk in flight.
func (q *PlaybackQueue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.active && len(q.chunks) == 0
}

// Stop tears the queue down: empties it, closes the sink, and force-clears
// the active flag regardless of in-flight playback. Safe to call more than
// once and concurrently with Enqueue.
func (q *PlaybackQueue) Stop() {
	q.closeOnce.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.chunks = nil
		q.mu.Unlock()

		q.cancel()
		<-q.done

		q.mu.Lock()
		q.active = false
		q.mu.Unlock()

		if err := q.sink.Close(); err != nil {
			q.logger.Warn("closing audio sink", "error", err)
		}
	})
}

func (q *PlaybackQueue) drainLoop() {
	defer close(q.done)
	for {
		select {
		case <-q.ctx.Done():
			return
		case <-q.wake:
		}
		q.drain()
	}
}

// drain plays queued chunks strictly sequentially until the queue is empty.
// It runs only on the drain goroutine.
func (q *PlaybackQueue) drain() {
	for {
		q.mu.Lock()
		if q.closed || len(q.chunks) == 0 {
			wasActive := q.active
			q.active = false
			closed := q.closed
			q.mu.Unlock()
			if wasActive && !closed && q.onDrained != nil {
				q.onDrained()
			}
			return
		}
		chunk := q.chunks[0]
		q.chunks = q.chunks[1:]
		q.active = true
		q.mu.Unlock()

		if err := q.sink.Play(q.ctx, chunk); err != nil {
			if q.ctx.Err() != nil {
				return
			}
			// A failed chunk is dropped; playback continues with the next.
			q.logger.Warn("playback failed, dropping chunk", "bytes", len(chunk), "error", err)
		}
	}
}
