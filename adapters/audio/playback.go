package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/vozcasa/vozcasa/domain/repositories"
	internalaudio "github.com/vozcasa/vozcasa/internal/audio"
)

const bytesPerSecond = internalaudio.PlaybackRate * 2

// PlayerFactory hands out one playback sink per session on top of a shared
// oto context. The context is process-wide and initialized on first use; only
// players come and go.
type PlayerFactory struct {
	logger *zap.Logger

	once   sync.Once
	otoCtx *oto.Context
	err    error
}

func NewPlayerFactory(logger *zap.Logger) *PlayerFactory {
	return &PlayerFactory{logger: logger}
}

// NewSink opens a speaker sink at the playback rate. The sink's clock starts
// at zero and only ever moves forward.
func (f *PlayerFactory) NewSink() (repositories.PlaybackSink, error) {
	f.once.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   internalaudio.PlaybackRate,
			ChannelCount: 1,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			f.err = fmt.Errorf("init playback context: %w", err)
			return
		}
		<-ready
		f.otoCtx = ctx
	})
	if f.err != nil {
		return nil, f.err
	}

	sink := &speakerSink{logger: f.logger}
	sink.player = f.otoCtx.NewPlayer(&sink.timeline)
	sink.player.Play()
	return sink, nil
}

// speakerSink plays a continuous timeline: scheduled PCM buffers separated by
// generated silence. The player pulls from the timeline at the device rate,
// which makes the byte cursor the session clock.
type speakerSink struct {
	logger   *zap.Logger
	player   *oto.Player
	timeline timeline
}

func (s *speakerSink) Now() float64 {
	return float64(s.timeline.position()) / bytesPerSecond
}

// ScheduleAt queues pcm to start at startAt seconds on the timeline clock. A
// start that has already passed is clamped forward so nothing overlaps.
func (s *speakerSink) ScheduleAt(pcm []byte, startAt float64) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm buffer has odd length %d", len(pcm))
	}
	start := int64(startAt * bytesPerSecond)
	start -= start % 2
	s.timeline.schedule(pcm, start)
	return nil
}

// Reset discards everything not yet played. The clock keeps running.
func (s *speakerSink) Reset() {
	s.timeline.reset()
}

func (s *speakerSink) Close() error {
	return s.player.Close()
}

// timeline is the io.Reader the player consumes. Gaps between segments read
// as silence, so the device never starves and the clock never stalls.
type timeline struct {
	mu       sync.Mutex
	consumed int64
	segments []segment
}

type segment struct {
	start int64
	data  []byte
}

func (t *timeline) position() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumed
}

func (t *timeline) schedule(pcm []byte, start int64) {
	data := make([]byte, len(pcm))
	copy(data, pcm)

	t.mu.Lock()
	defer t.mu.Unlock()
	floor := t.consumed
	if n := len(t.segments); n > 0 {
		if end := t.segments[n-1].start + int64(len(t.segments[n-1].data)); end > floor {
			floor = end
		}
	}
	if start < floor {
		start = floor
	}
	t.segments = append(t.segments, segment{start: start, data: data})
}

func (t *timeline) reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.segments = nil
}

// Read fills p from the timeline at the current cursor: segment bytes where a
// segment covers the cursor, zeroes elsewhere.
func (t *timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	filled := 0
	for filled < len(p) {
		if len(t.segments) == 0 {
			// Open-ended silence.
			for i := filled; i < len(p); i++ {
				p[i] = 0
			}
			t.consumed += int64(len(p) - filled)
			filled = len(p)
			break
		}

		head := t.segments[0]
		if t.consumed < head.start {
			// Silence until the head segment begins.
			gap := head.start - t.consumed
			n := int64(len(p) - filled)
			if n > gap {
				n = gap
			}
			for i := filled; i < filled+int(n); i++ {
				p[i] = 0
			}
			t.consumed += n
			filled += int(n)
			continue
		}

		offset := t.consumed - head.start
		n := copy(p[filled:], head.data[offset:])
		t.consumed += int64(n)
		filled += n
		if offset+int64(n) >= int64(len(head.data)) {
			t.segments = t.segments[1:]
		}
	}
	return filled, nil
}
