package repositories

import (
	"context"

	"github.com/vozcasa/vozcasa/domain/entities"
)

// LiveConfig carries everything the remote handshake needs: which model to
// talk to, the system instruction derived from the device registry snapshot,
// and the synthesized voice to request. Response modality is always audio.
type LiveConfig struct {
	Model             string
	SystemInstruction string
	Voice             string
}

// LiveConnector establishes duplex sessions with the remote conversational
// peer. Connect blocks until the handshake is acknowledged or fails; a nil
// error means the session is ready for realtime traffic.
type LiveConnector interface {
	Connect(ctx context.Context, cfg LiveConfig) (LiveSession, error)
}

// LiveSession is one established duplex connection. SendAudioFrame and
// SendToolResults may be called from different goroutines than Receive, but
// each individually must not be called concurrently with itself.
type LiveSession interface {
	// SendAudioFrame forwards one captured PCM frame (16-bit LE mono at the
	// capture rate) to the peer as a realtime input unit.
	SendAudioFrame(pcm []byte) error

	// SendToolResults sends one batched tool-response message containing one
	// entry per result, preserving order.
	SendToolResults(results []entities.ToolResult) error

	// Receive blocks for the next inbound message. It returns io.EOF after a
	// clean remote close and a non-nil error on transport failure; either way
	// the session is unusable afterwards.
	Receive() (*entities.ServerMessage, error)

	// Close tears the connection down. Safe to call more than once.
	Close() error
}
