package repositories

import "context"

// AudioCapture acquires the microphone and emits fixed-size PCM frames.
// Implementations request mono 16 kHz explicitly rather than relying on the
// device default.
type AudioCapture interface {
	// Start acquires the input device and begins emitting frames through
	// onFrame, in strict arrival order. Each frame is 16-bit LE mono PCM of
	// exactly the configured frame length. Start is all-or-nothing: if the
	// device cannot be acquired no frames are ever emitted and the error
	// describes why.
	Start(ctx context.Context, onFrame func(pcm []byte)) error

	// Stop releases the input device. Idempotent.
	Stop() error
}

// PlaybackSink plays PCM buffers on an output device clock. The scheduler
// guarantees ScheduleAt is called with monotonically non-decreasing,
// non-overlapping start times.
type PlaybackSink interface {
	// Now returns the current output clock time in seconds. The clock starts
	// at zero when the sink is opened and only moves forward.
	Now() float64

	// ScheduleAt queues a 16-bit LE mono PCM buffer to begin playing at the
	// given clock time.
	ScheduleAt(pcm []byte, startAt float64) error

	// Reset discards all buffers not yet played. The clock keeps running.
	Reset()

	// Close releases the output device, discarding pending audio.
	Close() error
}
