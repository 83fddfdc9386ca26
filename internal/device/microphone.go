// Package device provides microphone capture and speaker playback backed by
// the operating system's audio stack. It implements the tempo.MicrophoneSource
// and tempo.AudioSink interfaces used by realtime sessions.
package device

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/tempo-ai/tempo-go/pkg/core"
	tempo "github.com/tempo-ai/tempo-go/sdk"
)

// Microphone opens capture streams on the default input device.
type Microphone struct {
	logger *slog.Logger
}

// NewMicrophone creates a microphone source. A nil logger means slog.Default.
func NewMicrophone(logger *slog.Logger) *Microphone {
	if logger == nil {
		logger = slog.Default()
	}
	return &Microphone{logger: logger}
}

// Open acquires the default capture device and starts delivering fixed-size
// frames of normalized samples. Device failures surface as permission errors
// so callers can tell the user to check microphone access.
func (m *Microphone) Open(ctx context.Context, cfg tempo.StreamConfig) (tempo.MicStream, error) {
	ctxConfig := malgo.ContextConfig{}
	ctxConfig.ThreadPriority = malgo.ThreadPriorityRealtime

	malgoCtx, err := malgo.InitContext(nil, ctxConfig, nil)
	if err != nil {
		return nil, core.NewPermissionError(fmt.Sprintf("audio context unavailable: %v", err))
	}

	stream := &micStream{
		malgoCtx: malgoCtx,
		frames:   make(chan []float32, 8),
		block:    make([]float32, 0, cfg.BlockSize),
		size:     cfg.BlockSize,
		logger:   m.logger,
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockSize)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			stream.push(input)
		},
	}

	dev, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, core.NewPermissionError(fmt.Sprintf("microphone unavailable: %v", err))
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
		return nil, core.NewPermissionError(fmt.Sprintf("microphone start failed: %v", err))
	}

	stream.device = dev
	m.logger.Debug("microphone acquired",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"block_size", cfg.BlockSize)
	return stream, nil
}

// micStream frames the device callback's float32 samples into fixed-size
// blocks. The callback runs on the audio thread, so push never blocks: a
// full channel drops the frame instead of stalling capture.
type micStream struct {
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	frames   chan []float32
	block    []float32
	size     int
	logger   *slog.Logger
}

func (s *micStream) Frames() <-chan []float32 { return s.frames }

// push accumulates raw little-endian float32 bytes into blocks.
func (s *micStream) push(input []byte) {
	for len(input) >= 4 {
		bits := binary.LittleEndian.Uint32(input[:4])
		s.block = append(s.block, math.Float32frombits(bits))
		input = input[4:]

		if len(s.block) == s.size {
			frame := make([]float32, s.size)
			copy(frame, s.block)
			s.block = s.block[:0]
			select {
			case s.frames <- frame:
			default:
				// Consumer is behind; losing capture audio is preferable to
				// blocking the audio thread.
			}
		}
	}
}

// Close stops the device and releases the audio context. The frames channel
// is closed once the device callback can no longer fire.
func (s *micStream) Close() error {
	if s.device != nil {
		_ = s.device.Stop()
		s.device.Uninit()
		s.device = nil
		close(s.frames)
	}
	if s.malgoCtx != nil {
		err := s.malgoCtx.Uninit()
		s.malgoCtx.Free()
		s.malgoCtx = nil
		if err != nil {
			return fmt.Errorf("release audio context: %w", err)
		}
	}
	return nil
}
