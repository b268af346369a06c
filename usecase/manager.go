package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vozcasa/vozcasa/domain/entities"
	"github.com/vozcasa/vozcasa/domain/repositories"
	"github.com/vozcasa/vozcasa/internal/audio"
	"github.com/vozcasa/vozcasa/internal/observability"
	"github.com/vozcasa/vozcasa/repository"
)

var (
	// ErrSessionActive is returned by Connect while a session is connecting
	// or connected. At most one session exists at a time.
	ErrSessionActive = errors.New("a voice session is already active")

	// ErrSuperseded is returned by Connect when a disconnect arrived while
	// the handshake was still pending. No resources are left acquired.
	ErrSuperseded = errors.New("session attempt superseded by disconnect")
)

// SessionConfig selects the remote model and synthesized voice.
type SessionConfig struct {
	Model string
	Voice string
}

// PhaseObserver is notified on every session phase change.
type PhaseObserver func(phase entities.SessionPhase)

// TurnObserver is notified each time the remote model finishes a speaking
// turn.
type TurnObserver func()

// SinkFactory acquires the output audio clock for one session. It is called
// once per connect and the sink is closed on teardown.
type SinkFactory func() (repositories.PlaybackSink, error)

// liveState bundles everything owned by one connected session generation.
// The frame and receive paths hold a *liveState and never touch Manager
// fields directly, so a stale generation can be ignored wholesale.
type liveState struct {
	gen   uint64
	sess  repositories.LiveSession
	sched *audio.Scheduler
	sink  repositories.PlaybackSink

	// sendMu serializes writes to the session (frames and tool results).
	sendMu sync.Mutex
}

// Manager owns the lifecycle of the duplex connection to the remote model:
// connect, stream outbound audio, route inbound audio and tool calls, and
// tear everything down on close or error.
//
// Phases move Idle -> Connecting -> Connected -> Closed. Closed is terminal
// for one attempt; the manager accepts a fresh Connect afterwards. A
// generation counter is bumped on every connect and disconnect, and every
// suspension point re-checks it, so a disconnect issued mid-handshake wins
// and stale callbacks from a superseded attempt are ignored.
type Manager struct {
	connector  repositories.LiveConnector
	capture    repositories.AudioCapture
	newSink    SinkFactory
	registry   *repository.DeviceRegistry
	dispatcher *ToolDispatcher
	cfg        SessionConfig
	logger     *zap.Logger

	mu        sync.Mutex
	phase     entities.SessionPhase
	gen       uint64
	sessionID string
	lastError string
	st            *liveState
	observers     []PhaseObserver
	turnObservers []TurnObserver

	// cur is read on the capture callback path without taking mu, so that
	// teardown can stop the capture device without deadlocking against an
	// in-flight frame.
	cur atomic.Pointer[liveState]
}

// NewManager wires the session manager. The registry reference is explicit:
// it is snapshotted at connect time for the system instruction and passed to
// the dispatcher, never captured implicitly.
func NewManager(
	connector repositories.LiveConnector,
	capture repositories.AudioCapture,
	newSink SinkFactory,
	registry *repository.DeviceRegistry,
	dispatcher *ToolDispatcher,
	cfg SessionConfig,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		connector:  connector,
		capture:    capture,
		newSink:    newSink,
		registry:   registry,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
		phase:      entities.PhaseIdle,
	}
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	Phase     entities.SessionPhase `json:"phase"`
	SessionID string                `json:"session_id,omitempty"`
	LastError string                `json:"last_error,omitempty"`
}

// Snapshot returns the current phase for the UI layer.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Phase: m.phase, SessionID: m.sessionID, LastError: m.lastError}
}

// SubscribePhase registers an observer for phase changes. Register before the
// first Connect.
func (m *Manager) SubscribePhase(obs PhaseObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, obs)
}

// SubscribeTurnComplete registers an observer for model turn boundaries.
// Register before the first Connect.
func (m *Manager) SubscribeTurnComplete(obs TurnObserver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turnObservers = append(m.turnObservers, obs)
}

// Connect starts a new session: snapshot the registry into a system
// instruction, perform the remote handshake, acquire the output clock and the
// microphone, then begin relaying traffic. On any failure everything acquired
// so far is released and the phase is Closed.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.phase == entities.PhaseConnecting || m.phase == entities.PhaseConnected {
		m.mu.Unlock()
		return ErrSessionActive
	}
	m.gen++
	myGen := m.gen
	m.sessionID = uuid.New().String()
	m.lastError = ""
	m.mu.Unlock()
	m.setPhase(myGen, entities.PhaseConnecting)

	instruction := BuildSystemInstruction(m.registry.List())

	sess, err := m.connector.Connect(ctx, repositories.LiveConfig{
		Model:             m.cfg.Model,
		SystemInstruction: instruction,
		Voice:             m.cfg.Voice,
	})
	if err != nil {
		m.failConnect(myGen, "handshake", err)
		return fmt.Errorf("live handshake: %w", err)
	}
	if !m.stillConnecting(myGen) {
		sess.Close()
		return ErrSuperseded
	}

	sink, err := m.newSink()
	if err != nil {
		sess.Close()
		m.failConnect(myGen, "setup", err)
		return fmt.Errorf("audio output: %w", err)
	}
	if !m.stillConnecting(myGen) {
		sess.Close()
		sink.Close()
		return ErrSuperseded
	}

	st := &liveState{
		gen:   myGen,
		sess:  sess,
		sched: audio.NewScheduler(sink, m.logger),
		sink:  sink,
	}

	// Publish the state before starting capture so the very first frame has
	// somewhere to go; cleared again on any failure below.
	m.cur.Store(st)

	if err := m.capture.Start(ctx, func(pcm []byte) { m.forwardFrame(st, pcm) }); err != nil {
		m.cur.CompareAndSwap(st, nil)
		sess.Close()
		sink.Close()
		m.failConnect(myGen, "setup", err)
		return fmt.Errorf("audio capture: %w", err)
	}

	m.mu.Lock()
	if m.gen != myGen {
		// Disconnected while the microphone was being acquired.
		m.mu.Unlock()
		m.cur.CompareAndSwap(st, nil)
		m.capture.Stop()
		sess.Close()
		sink.Close()
		return ErrSuperseded
	}
	m.st = st
	m.mu.Unlock()
	m.setPhase(myGen, entities.PhaseConnected)

	observability.RecordSessionStart()
	m.logger.Info("Voice session connected",
		zap.String("session_id", m.sessionID),
		zap.String("model", m.cfg.Model))

	go m.receiveLoop(st)
	return nil
}

// Disconnect tears the active session down. Idempotent: a no-op while Idle or
// Closed. Safe to call at any point, including mid-handshake; it takes
// priority over a pending Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.phase == entities.PhaseIdle || m.phase == entities.PhaseClosed {
		m.mu.Unlock()
		return
	}
	if m.phase == entities.PhaseConnected && m.st == nil {
		// A teardown for this session is already in flight; it will announce
		// Closed once the resources are released.
		m.mu.Unlock()
		return
	}
	m.gen++
	myGen := m.gen
	st := m.st
	m.st = nil
	m.mu.Unlock()

	// Release before announcing Closed: a new Connect is only admitted once
	// this session's resources are fully gone.
	if st != nil {
		m.cur.CompareAndSwap(st, nil)
		m.release(st)
	}
	m.setPhase(myGen, entities.PhaseClosed)
	m.logger.Info("Voice session disconnected", zap.String("session_id", m.sessionID))
}

// forwardFrame relays one captured frame, in arrival order, while this
// generation is still current.
func (m *Manager) forwardFrame(st *liveState, pcm []byte) {
	if m.cur.Load() != st {
		return
	}
	st.sendMu.Lock()
	err := st.sess.SendAudioFrame(pcm)
	st.sendMu.Unlock()
	if err != nil {
		m.logger.Warn("Failed to send audio frame", zap.Error(err))
		// Tear down asynchronously: teardown stops the capture device, which
		// may join this very callback.
		go m.teardown(st, "transport", err)
		return
	}
	observability.RecordFrameSent()
}

// receiveLoop routes inbound messages until the transport closes or the
// session is superseded.
func (m *Manager) receiveLoop(st *liveState) {
	for {
		msg, err := st.sess.Receive()
		if err != nil {
			if errors.Is(err, io.EOF) {
				m.teardown(st, "", nil)
			} else {
				m.teardown(st, "transport", err)
			}
			return
		}
		if m.cur.Load() != st {
			return
		}

		if len(msg.Audio) > 0 {
			if _, err := st.sched.Schedule(msg.Audio); err != nil {
				m.logger.Warn("Failed to schedule playback buffer", zap.Error(err))
			} else {
				observability.RecordAudioScheduled(audio.Duration(msg.Audio, audio.PlaybackRate))
			}
		}

		if len(msg.ToolCalls) > 0 {
			results := make([]entities.ToolResult, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				results = append(results, m.dispatcher.Dispatch(call))
			}
			st.sendMu.Lock()
			err := st.sess.SendToolResults(results)
			st.sendMu.Unlock()
			if err != nil {
				m.teardown(st, "transport", err)
				return
			}
		}

		if msg.TurnComplete {
			m.notifyTurnComplete()
		}
	}
}

func (m *Manager) notifyTurnComplete() {
	m.mu.Lock()
	observers := make([]TurnObserver, len(m.turnObservers))
	copy(observers, m.turnObservers)
	m.mu.Unlock()

	for _, obs := range observers {
		obs()
	}
}

// teardown closes a specific generation, ignoring the call when that
// generation has already been superseded.
func (m *Manager) teardown(st *liveState, kind string, cause error) {
	m.mu.Lock()
	if m.gen != st.gen {
		m.mu.Unlock()
		return
	}
	m.gen++
	myGen := m.gen
	m.st = nil
	if cause != nil {
		m.lastError = cause.Error()
	}
	m.mu.Unlock()

	if cause != nil {
		m.logger.Warn("Voice session closed on error",
			zap.String("kind", kind),
			zap.Error(cause))
		observability.RecordSessionError(kind)
	}

	// Release before announcing Closed, and only clear the pointer if it
	// still belongs to this generation: a reconnect admitted after the phase
	// change must never have its capture or cur pointer touched by a stale
	// teardown.
	m.cur.CompareAndSwap(st, nil)
	m.release(st)
	m.setPhase(myGen, entities.PhaseClosed)
}

// release stops and frees everything one session owns: the capture pipeline,
// the playback timeline (pending audio discarded, cursor cleared to zero) and
// the transport.
func (m *Manager) release(st *liveState) {
	if err := m.capture.Stop(); err != nil {
		m.logger.Warn("Failed to stop audio capture", zap.Error(err))
	}
	st.sched.Reset()
	if err := st.sess.Close(); err != nil {
		m.logger.Debug("Live session close", zap.Error(err))
	}
	if err := st.sink.Close(); err != nil {
		m.logger.Warn("Failed to close audio output", zap.Error(err))
	}
	observability.RecordSessionEnd()
}

// failConnect records a failed connection attempt unless a disconnect already
// superseded it.
func (m *Manager) failConnect(myGen uint64, kind string, cause error) {
	m.mu.Lock()
	if m.gen != myGen {
		m.mu.Unlock()
		return
	}
	m.lastError = cause.Error()
	m.mu.Unlock()
	m.setPhase(myGen, entities.PhaseClosed)
	observability.RecordSessionError(kind)
	m.logger.Warn("Voice session connect failed",
		zap.String("kind", kind),
		zap.Error(cause))
}

// stillConnecting reports whether this generation is still the live connect
// attempt. Checked after every suspension point.
func (m *Manager) stillConnecting(myGen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == myGen && m.phase == entities.PhaseConnecting
}

// setPhase records the phase for a generation and notifies observers outside
// the lock. Stale generations do not move the phase.
func (m *Manager) setPhase(myGen uint64, phase entities.SessionPhase) {
	m.mu.Lock()
	if m.gen != myGen {
		m.mu.Unlock()
		return
	}
	m.phase = phase
	observers := make([]PhaseObserver, len(m.observers))
	copy(observers, m.observers)
	m.mu.Unlock()

	for _, obs := range observers {
		obs(phase)
	}
}
