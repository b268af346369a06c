package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vozcasa/vozcasa/domain/entities"
	"github.com/vozcasa/vozcasa/domain/repositories"
	"github.com/vozcasa/vozcasa/repository"
)

type fakeSession struct {
	mu          sync.Mutex
	frames      [][]byte
	toolBatches [][]entities.ToolResult

	inbound   chan *entities.ServerMessage
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		inbound: make(chan *entities.ServerMessage, 8),
		closed:  make(chan struct{}),
	}
}

func (s *fakeSession) SendAudioFrame(pcm []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(pcm))
	copy(buf, pcm)
	s.frames = append(s.frames, buf)
	return nil
}

func (s *fakeSession) SendToolResults(results []entities.ToolResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch := make([]entities.ToolResult, len(results))
	copy(batch, results)
	s.toolBatches = append(s.toolBatches, batch)
	return nil
}

func (s *fakeSession) Receive() (*entities.ServerMessage, error) {
	select {
	case msg := <-s.inbound:
		return msg, nil
	case <-s.closed:
		return nil, io.EOF
	}
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *fakeSession) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

type fakeConnector struct {
	mu   sync.Mutex
	sess *fakeSession
	err  error
	// gate, when non-nil, blocks Connect until closed. Simulates a slow
	// handshake.
	gate chan struct{}
}

func (c *fakeConnector) Connect(_ context.Context, _ repositories.LiveConfig) (repositories.LiveSession, error) {
	if c.gate != nil {
		<-c.gate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.sess, nil
}

type fakeCapture struct {
	mu       sync.Mutex
	onFrame  func(pcm []byte)
	started  bool
	everRan  bool
	startErr error
}

func (c *fakeCapture) Start(_ context.Context, onFrame func(pcm []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.onFrame = onFrame
	c.started = true
	c.everRan = true
	return nil
}

func (c *fakeCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	c.onFrame = nil
	return nil
}

func (c *fakeCapture) emit(pcm []byte) {
	c.mu.Lock()
	fn := c.onFrame
	c.mu.Unlock()
	if fn != nil {
		fn(pcm)
	}
}

type fakeManagerSink struct {
	mu        sync.Mutex
	now       float64
	scheduled []float64
	resets    int
	closes    int
}

func (s *fakeManagerSink) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

func (s *fakeManagerSink) ScheduleAt(_ []byte, startAt float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduled = append(s.scheduled, startAt)
	return nil
}

func (s *fakeManagerSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resets++
}

func (s *fakeManagerSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

type managerFixture struct {
	manager   *Manager
	connector *fakeConnector
	capture   *fakeCapture
	sink      *fakeManagerSink
	registry  *repository.DeviceRegistry
}

func newManagerFixture() *managerFixture {
	registry := repository.NewDeviceRegistry([]entities.Device{
		{ID: "1", Name: "Luz da Sala", Category: entities.CategoryLight, Room: "Sala"},
	})
	connector := &fakeConnector{sess: newFakeSession()}
	capture := &fakeCapture{}
	sink := &fakeManagerSink{}
	logger := zap.NewNop()
	manager := NewManager(
		connector,
		capture,
		func() (repositories.PlaybackSink, error) { return sink, nil },
		registry,
		NewToolDispatcher(registry, logger),
		SessionConfig{Model: "models/test-live", Voice: "Puck"},
		logger,
	)
	return &managerFixture{manager, connector, capture, sink, registry}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestManagerConnectAndDisconnect(t *testing.T) {
	f := newManagerFixture()

	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	snap := f.manager.Snapshot()
	if snap.Phase != entities.PhaseConnected {
		t.Fatalf("phase = %q, want %q", snap.Phase, entities.PhaseConnected)
	}
	if snap.SessionID == "" {
		t.Error("connected session has no session id")
	}
	f.capture.mu.Lock()
	started := f.capture.started
	f.capture.mu.Unlock()
	if !started {
		t.Error("capture did not start on connect")
	}

	f.manager.Disconnect()
	if got := f.manager.Snapshot().Phase; got != entities.PhaseClosed {
		t.Fatalf("phase after disconnect = %q, want %q", got, entities.PhaseClosed)
	}
	if !f.connector.sess.isClosed() {
		t.Error("live session was not closed")
	}
	f.sink.mu.Lock()
	resets, closes := f.sink.resets, f.sink.closes
	f.sink.mu.Unlock()
	if resets == 0 {
		t.Error("playback timeline was not reset on disconnect")
	}
	if closes == 0 {
		t.Error("playback sink was not closed on disconnect")
	}

	// Idempotent: a second disconnect is a no-op.
	f.manager.Disconnect()
	f.sink.mu.Lock()
	if f.sink.closes != closes {
		t.Error("repeated disconnect closed the sink again")
	}
	f.sink.mu.Unlock()
}

func TestManagerRejectsSecondConnect(t *testing.T) {
	f := newManagerFixture()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer f.manager.Disconnect()

	if err := f.manager.Connect(context.Background()); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("second Connect() error = %v, want ErrSessionActive", err)
	}
}

func TestManagerReconnectAfterClose(t *testing.T) {
	f := newManagerFixture()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	f.manager.Disconnect()

	f.connector.mu.Lock()
	f.connector.sess = newFakeSession()
	f.connector.mu.Unlock()

	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}
	if got := f.manager.Snapshot().Phase; got != entities.PhaseConnected {
		t.Fatalf("phase = %q, want %q", got, entities.PhaseConnected)
	}
	f.manager.Disconnect()
}

func TestManagerForwardsFramesInOrder(t *testing.T) {
	f := newManagerFixture()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer f.manager.Disconnect()

	f.capture.emit([]byte{1, 0})
	f.capture.emit([]byte{2, 0})
	f.capture.emit([]byte{3, 0})

	sess := f.connector.sess
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.frames) != 3 {
		t.Fatalf("forwarded %d frames, want 3", len(sess.frames))
	}
	for i, frame := range sess.frames {
		if frame[0] != byte(i+1) {
			t.Errorf("frame %d starts with %d, want %d", i, frame[0], i+1)
		}
	}
}

func TestManagerBatchesToolResponsesPerMessage(t *testing.T) {
	f := newManagerFixture()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer f.manager.Disconnect()

	sess := f.connector.sess
	sess.inbound <- &entities.ServerMessage{
		ToolCalls: []entities.ToolCall{
			{CallID: "a", Name: entities.ToolControlDevice, Args: map[string]any{"deviceName": "sala", "action": entities.ActionTurnOn}},
			{CallID: "b", Name: entities.ToolControlDevice, Args: map[string]any{"deviceName": "banheiro", "action": entities.ActionTurnOn}},
		},
	}

	waitFor(t, "tool response batch", func() bool {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		return len(sess.toolBatches) > 0
	})

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if len(sess.toolBatches) != 1 {
		t.Fatalf("sent %d batches, want 1", len(sess.toolBatches))
	}
	batch := sess.toolBatches[0]
	if len(batch) != 2 {
		t.Fatalf("batch has %d results, want 2", len(batch))
	}
	if batch[0].CallID != "a" || batch[1].CallID != "b" {
		t.Errorf("results out of order: %q then %q", batch[0].CallID, batch[1].CallID)
	}
	if batch[0].Status != entities.StatusOK {
		t.Errorf("first result status = %q, want ok", batch[0].Status)
	}
	if batch[1].Status != entities.StatusError {
		t.Errorf("second result status = %q, want error for an unknown device", batch[1].Status)
	}
}

func TestManagerSchedulesInboundAudioBackToBack(t *testing.T) {
	f := newManagerFixture()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer f.manager.Disconnect()

	// Two half-second buffers at the playback rate.
	buf := make([]byte, 24000)
	sess := f.connector.sess
	sess.inbound <- &entities.ServerMessage{Audio: buf}
	sess.inbound <- &entities.ServerMessage{Audio: buf}

	waitFor(t, "scheduled audio", func() bool {
		f.sink.mu.Lock()
		defer f.sink.mu.Unlock()
		return len(f.sink.scheduled) == 2
	})

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if f.sink.scheduled[1] != f.sink.scheduled[0]+0.5 {
		t.Errorf("second buffer starts at %v, want %v", f.sink.scheduled[1], f.sink.scheduled[0]+0.5)
	}
}

func TestManagerClosesOnRemoteEOF(t *testing.T) {
	f := newManagerFixture()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}

	f.connector.sess.Close()

	waitFor(t, "phase closed", func() bool {
		return f.manager.Snapshot().Phase == entities.PhaseClosed
	})
	if got := f.manager.Snapshot().LastError; got != "" {
		t.Errorf("clean remote close recorded error %q", got)
	}
	f.capture.mu.Lock()
	defer f.capture.mu.Unlock()
	if f.capture.started {
		t.Error("capture still running after remote close")
	}
}

func TestManagerDisconnectDuringHandshake(t *testing.T) {
	f := newManagerFixture()
	f.connector.gate = make(chan struct{})

	errc := make(chan error, 1)
	go func() { errc <- f.manager.Connect(context.Background()) }()

	waitFor(t, "connecting phase", func() bool {
		return f.manager.Snapshot().Phase == entities.PhaseConnecting
	})
	f.manager.Disconnect()
	if got := f.manager.Snapshot().Phase; got != entities.PhaseClosed {
		t.Fatalf("phase = %q, want %q", got, entities.PhaseClosed)
	}

	// The handshake now completes, too late.
	close(f.connector.gate)
	if err := <-errc; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("Connect() error = %v, want ErrSuperseded", err)
	}
	if !f.connector.sess.isClosed() {
		t.Error("late handshake session was not closed")
	}
	f.capture.mu.Lock()
	defer f.capture.mu.Unlock()
	if f.capture.everRan {
		t.Error("capture started for a superseded session")
	}
}

func TestManagerConnectFailureReleasesEverything(t *testing.T) {
	f := newManagerFixture()
	f.connector.err = errors.New("handshake refused")

	err := f.manager.Connect(context.Background())
	if err == nil {
		t.Fatal("Connect() succeeded, want error")
	}
	snap := f.manager.Snapshot()
	if snap.Phase != entities.PhaseClosed {
		t.Fatalf("phase = %q, want %q", snap.Phase, entities.PhaseClosed)
	}
	if snap.LastError == "" {
		t.Error("failed connect did not record an error")
	}
	f.capture.mu.Lock()
	defer f.capture.mu.Unlock()
	if f.capture.everRan {
		t.Error("capture started despite handshake failure")
	}
}

func TestManagerReconnectDuringTeardown(t *testing.T) {
	f := newManagerFixture()

	// Park the teardown goroutine inside the first Closed notification, after
	// it has released the old session's resources.
	resume := make(chan struct{})
	var park sync.Once
	f.manager.SubscribePhase(func(p entities.SessionPhase) {
		if p == entities.PhaseClosed {
			park.Do(func() { <-resume })
		}
	})

	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	oldSess := f.connector.sess

	// Remote close triggers an asynchronous teardown.
	oldSess.Close()
	waitFor(t, "phase closed", func() bool {
		return f.manager.Snapshot().Phase == entities.PhaseClosed
	})

	// By the time the phase flipped, the old generation must be fully
	// released: only then may a new session be admitted.
	f.capture.mu.Lock()
	stillRunning := f.capture.started
	f.capture.mu.Unlock()
	if stillRunning {
		t.Fatal("capture still running after the phase flipped to closed")
	}
	f.sink.mu.Lock()
	if f.sink.closes == 0 {
		t.Error("old session's sink not closed before the phase flipped")
	}
	f.sink.mu.Unlock()

	// Reconnect while the stale teardown goroutine is still parked.
	newSess := newFakeSession()
	f.connector.mu.Lock()
	f.connector.sess = newSess
	f.connector.mu.Unlock()
	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("reconnect error: %v", err)
	}
	defer f.manager.Disconnect()

	// Let the stale teardown finish; it must not touch the new session.
	close(resume)

	f.capture.emit([]byte{1, 0})
	waitFor(t, "frame on the new session", func() bool {
		newSess.mu.Lock()
		defer newSess.mu.Unlock()
		return len(newSess.frames) == 1
	})

	if got := f.manager.Snapshot().Phase; got != entities.PhaseConnected {
		t.Fatalf("phase = %q, want %q after the stale teardown resumed", got, entities.PhaseConnected)
	}
	f.capture.mu.Lock()
	defer f.capture.mu.Unlock()
	if !f.capture.started {
		t.Error("stale teardown stopped the new session's capture pipeline")
	}
}

func TestManagerNotifiesTurnComplete(t *testing.T) {
	f := newManagerFixture()
	var mu sync.Mutex
	turns := 0
	f.manager.SubscribeTurnComplete(func() {
		mu.Lock()
		turns++
		mu.Unlock()
	})

	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	defer f.manager.Disconnect()

	f.connector.sess.inbound <- &entities.ServerMessage{TurnComplete: true}

	waitFor(t, "turn notification", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return turns == 1
	})
}

func TestManagerPhaseObserver(t *testing.T) {
	f := newManagerFixture()
	var mu sync.Mutex
	var phases []entities.SessionPhase
	f.manager.SubscribePhase(func(p entities.SessionPhase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	})

	if err := f.manager.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	f.manager.Disconnect()

	mu.Lock()
	defer mu.Unlock()
	want := []entities.SessionPhase{entities.PhaseConnecting, entities.PhaseConnected, entities.PhaseClosed}
	if len(phases) != len(want) {
		t.Fatalf("observed %v, want %v", phases, want)
	}
	for i := range want {
		if phases[i] != want[i] {
			t.Fatalf("observed %v, want %v", phases, want)
		}
	}
}
