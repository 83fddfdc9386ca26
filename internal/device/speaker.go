package device

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/tempo-ai/tempo-go/pkg/core/pcm"
)

// speakerBufferBytes is ~100ms at 24kHz mono 16-bit. Smaller buffers lower
// latency at the cost of glitch risk.
const speakerBufferBytes = 4800

// Speaker plays PCM16 chunks on the default output device. The underlying
// audio context is created lazily on first Play because the process may
// never need playback (text-only chat).
type Speaker struct {
	mu     sync.Mutex
	ctx    *oto.Context
	closed bool
}

// NewSpeaker creates a speaker sink.
func NewSpeaker() *Speaker {
	return &Speaker{}
}

// Play blocks until the chunk has been played out or ctx is canceled.
func (s *Speaker) Play(ctx context.Context, data []byte) error {
	otoCtx, err := s.context()
	if err != nil {
		return err
	}

	player := otoCtx.NewPlayer(bytes.NewReader(data))
	defer player.Close()
	player.Play()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
	return nil
}

// Close marks the speaker closed. The oto context itself has process
// lifetime and cannot be torn down.
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Speaker) context() (*oto.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("speaker is closed")
	}
	if s.ctx != nil {
		return s.ctx, nil
	}

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   pcm.SampleRate,
		ChannelCount: pcm.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   time.Duration(pcm.DurationMs(speakerBufferBytes, pcm.SampleRate)) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("init speaker: %w", err)
	}
	<-ready
	s.ctx = otoCtx
	return otoCtx, nil
}
