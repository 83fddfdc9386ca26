package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/tempo-ai/tempo-go/internal/device"
	"github.com/tempo-ai/tempo-go/pkg/core/pcm"
	tempo "github.com/tempo-ai/tempo-go/sdk"
)

var (
	talkSaveAudio string
	talkTestTone  bool
)

var talkCmd = &cobra.Command{
	Use:   "talk",
	Short: "Hold a realtime voice conversation with the assistant",
	Long: `Connect to the assistant over a realtime audio session.
Speak into the microphone; the assistant answers out loud.
Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: runTalk,
}

func init() {
	talkCmd.Flags().StringVar(&talkSaveAudio, "save-audio", "", "Also write the assistant's audio to a WAV file")
	talkCmd.Flags().BoolVar(&talkTestTone, "test-tone", false, "Play a short tone before connecting to verify the speaker")
}

func runTalk(cmd *cobra.Command, args []string) error {
	client, logger, err := newClient()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var speaker tempo.AudioSink = device.NewSpeaker()
	var recorder *recordingSink
	if talkSaveAudio != "" {
		recorder = &recordingSink{inner: speaker}
		speaker = recorder
	}

	if talkTestTone {
		tone := pcm.SineTone(440, pcm.SampleRate, 300*time.Millisecond, 0.2)
		if err := speaker.Play(ctx, tone); err != nil {
			return fmt.Errorf("speaker check failed: %w", err)
		}
	}

	mic := &meterSource{inner: device.NewMicrophone(logger)}

	fmt.Println("Connecting...")
	sess, err := client.Realtime.Connect(ctx, &tempo.RealtimeConnectRequest{
		Microphone: mic,
		Speaker:    speaker,
		OnState: func(st tempo.State) {
			rms, peak := mic.levels()
			renderState(st, rms, peak)
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.StartListening(ctx); err != nil {
		return err
	}
	fmt.Println("Connected. Speak whenever you like; Ctrl-C to hang up.")

	// The state callback only fires on transitions; keep the level meter
	// fresh between them.
	go func() {
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rms, peak := mic.levels()
				renderState(sess.State(), rms, peak)
			}
		}
	}()

	<-ctx.Done()
	fmt.Println("\nHanging up...")
	if err := sess.Close(); err != nil {
		return err
	}

	if recorder != nil {
		if err := recorder.writeWAV(talkSaveAudio); err != nil {
			return fmt.Errorf("saving audio: %w", err)
		}
		fmt.Println("Assistant audio written to", talkSaveAudio)
	}
	return nil
}

var renderMu sync.Mutex
var lastLine string

// renderState keeps a single status line updated in place.
func renderState(st tempo.State, rms, peak float64) {
	line := "idle"
	switch {
	case st.Err != nil:
		line = "error: " + st.Err.Error()
	case st.Speaking:
		line = "assistant speaking"
	case st.Loading:
		line = "thinking"
	case st.Listening:
		line = "listening " + levelBar(rms)
		if peak > 0.99 {
			line += " CLIP"
		}
	case !st.Connected:
		line = "disconnected"
	}

	renderMu.Lock()
	defer renderMu.Unlock()
	if line == lastLine {
		return
	}
	lastLine = line
	fmt.Printf("\r\033[K[%s]", line)
}

// levelBar renders the input level as a ten-slot meter. RMS of normal
// speech sits well under full scale, so the scale is stretched.
func levelBar(rms float64) string {
	filled := int(rms * 40)
	if filled > 10 {
		filled = 10
	}
	return "|" + strings.Repeat("=", filled) + strings.Repeat(" ", 10-filled) + "|"
}

// meterSource wraps a microphone source and measures the level of each
// captured frame for the status line.
type meterSource struct {
	inner tempo.MicrophoneSource

	rms  atomic.Uint64
	peak atomic.Uint64
}

func (m *meterSource) Open(ctx context.Context, cfg tempo.StreamConfig) (tempo.MicStream, error) {
	stream, err := m.inner.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	tap := &meterStream{inner: stream, frames: make(chan []float32, 8)}
	go func() {
		defer close(tap.frames)
		for frame := range stream.Frames() {
			raw := pcm.EncodeFloat32(frame)
			m.rms.Store(math.Float64bits(pcm.RMSEnergy(raw)))
			m.peak.Store(math.Float64bits(pcm.PeakAmplitude(raw)))
			select {
			case tap.frames <- frame:
			default:
				// Consumer is behind; the meter already saw the frame.
			}
		}
	}()
	return tap, nil
}

func (m *meterSource) levels() (rms, peak float64) {
	return math.Float64frombits(m.rms.Load()), math.Float64frombits(m.peak.Load())
}

type meterStream struct {
	inner  tempo.MicStream
	frames chan []float32
}

func (s *meterStream) Frames() <-chan []float32 { return s.frames }

func (s *meterStream) Close() error { return s.inner.Close() }

// recordingSink tees everything played to the inner sink into a buffer so
// the session's audio can be written out as a WAV file afterwards.
type recordingSink struct {
	inner tempo.AudioSink

	mu  sync.Mutex
	buf []byte
}

func (r *recordingSink) Play(ctx context.Context, data []byte) error {
	r.mu.Lock()
	r.buf = append(r.buf, data...)
	r.mu.Unlock()
	return r.inner.Play(ctx, data)
}

func (r *recordingSink) Close() error {
	return r.inner.Close()
}

func (r *recordingSink) writeWAV(path string) error {
	r.mu.Lock()
	data := append([]byte(nil), r.buf...)
	r.mu.Unlock()
	if len(data) == 0 {
		return fmt.Errorf("no audio captured")
	}
	return os.WriteFile(path, pcm.ToWAVDefault(data), 0o644)
}
