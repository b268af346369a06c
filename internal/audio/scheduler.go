package audio

import (
	"sync"

	"go.uber.org/zap"

	"github.com/vozcasa/vozcasa/domain/repositories"
)

// Scheduler plays an unbounded sequence of decoded buffers back-to-back on a
// shared output clock, with no gaps or overlaps, even though buffers arrive
// at irregular intervals.
//
// It keeps a single cursor: the clock time at which the next buffer should
// start. A buffer arriving while earlier audio is still pending is scheduled
// to abut the previous one exactly; a buffer arriving after the timeline ran
// dry starts immediately. If the peer cannot keep up with real time the
// cursor lags the clock and playback simply catches up without jitter.
type Scheduler struct {
	sink   repositories.PlaybackSink
	logger *zap.Logger

	mu        sync.Mutex
	nextStart float64
}

// NewScheduler creates a scheduler on top of the given sink's clock.
func NewScheduler(sink repositories.PlaybackSink, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		sink:   sink,
		logger: logger,
	}
}

// Schedule queues one decoded 16-bit LE mono PCM buffer at the playback rate
// and returns the clock time at which it will start.
func (s *Scheduler) Schedule(pcm []byte) (float64, error) {
	d := Duration(pcm, PlaybackRate)

	s.mu.Lock()
	defer s.mu.Unlock()

	startAt := s.sink.Now()
	if s.nextStart > startAt {
		startAt = s.nextStart
	}
	if err := s.sink.ScheduleAt(pcm, startAt); err != nil {
		return 0, err
	}
	s.nextStart = startAt + d

	s.logger.Debug("Scheduled playback buffer",
		zap.Float64("start_at", startAt),
		zap.Float64("duration", d))

	return startAt, nil
}

// Reset discards pending audio and clears the cursor to zero. Called when the
// session disconnects.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sink.Reset()
	s.nextStart = 0
}

// NextStart exposes the cursor for observability and tests.
func (s *Scheduler) NextStart() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextStart
}
