package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	internalaudio "github.com/vozcasa/vozcasa/internal/audio"
)

// frameSamples is the capture frame size: 4096 samples, 256 ms at 16 kHz.
const frameSamples = 4096

// MicCapture reads the default microphone through miniaudio, converts the
// float32 stream to 16-bit PCM and emits fixed-size frames in capture order.
// It implements repositories.AudioCapture.
type MicCapture struct {
	logger *zap.Logger

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	pending  []float32
}

func NewMicCapture(logger *zap.Logger) *MicCapture {
	return &MicCapture{logger: logger}
}

// Start opens the microphone and begins delivering frames to onFrame from the
// audio callback goroutine. All-or-nothing: on any error nothing is left
// acquired.
func (c *MicCapture) Start(_ context.Context, onFrame func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device != nil {
		return fmt.Errorf("capture already running")
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		c.logger.Debug("miniaudio", zap.String("message", message))
	})
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = internalaudio.CaptureRate
	deviceConfig.Alsa.NoMMap = 1

	c.pending = c.pending[:0]
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			c.onData(input, onFrame)
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("init capture device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		malgoCtx.Uninit()
		malgoCtx.Free()
		return fmt.Errorf("start capture device: %w", err)
	}

	c.malgoCtx = malgoCtx
	c.device = device
	c.logger.Info("Microphone capture started",
		zap.Int("sample_rate", internalaudio.CaptureRate),
		zap.Int("frame_samples", frameSamples))
	return nil
}

// onData accumulates callback buffers and emits whole frames. Runs on the
// audio thread; keep it allocation-light.
func (c *MicCapture) onData(input []byte, onFrame func(pcm []byte)) {
	samples, err := internalaudio.BytesToFloat32(input)
	if err != nil {
		c.logger.Warn("Discarding malformed capture buffer", zap.Error(err))
		return
	}
	c.pending = append(c.pending, samples...)
	for len(c.pending) >= frameSamples {
		frame := internalaudio.SamplesToBytes(internalaudio.FloatToPCM16(c.pending[:frameSamples]))
		c.pending = c.pending[:copy(c.pending, c.pending[frameSamples:])]
		onFrame(frame)
	}
}

// Stop releases the device and context. Idempotent.
func (c *MicCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.device == nil {
		return nil
	}
	c.device.Uninit()
	c.device = nil
	c.malgoCtx.Uninit()
	c.malgoCtx.Free()
	c.malgoCtx = nil
	c.pending = nil
	c.logger.Info("Microphone capture stopped")
	return nil
}
