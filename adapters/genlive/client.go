package genlive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/vozcasa/vozcasa/domain/entities"
	"github.com/vozcasa/vozcasa/domain/repositories"
	"github.com/vozcasa/vozcasa/internal/audio"
	"github.com/vozcasa/vozcasa/internal/observability"
)

const (
	// DefaultHost is the production endpoint for the realtime model API.
	DefaultHost = "generativelanguage.googleapis.com"

	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"
)

// Connector dials the realtime model API over WebSocket and performs the
// setup handshake. It implements repositories.LiveConnector.
type Connector struct {
	host   string
	scheme string
	apiKey string
	dialer *websocket.Dialer
	logger *zap.Logger
}

// NewConnector builds a connector for the given API key. An empty host
// selects the production endpoint over TLS; a host override (a local test
// server or proxy) is dialed in plain ws.
func NewConnector(apiKey, host string, logger *zap.Logger) *Connector {
	scheme := "wss"
	if host == "" {
		host = DefaultHost
	} else {
		scheme = "ws"
	}
	return &Connector{
		host:   host,
		scheme: scheme,
		apiKey: apiKey,
		dialer: websocket.DefaultDialer,
		logger: logger,
	}
}

// Connect dials the socket, sends the setup message and waits for the
// server's setupComplete before handing the session over. Any other first
// message fails the handshake.
func (c *Connector) Connect(ctx context.Context, cfg repositories.LiveConfig) (repositories.LiveSession, error) {
	endpoint := url.URL{
		Scheme:   c.scheme,
		Host:     c.host,
		Path:     bidiPath,
		RawQuery: url.Values{"key": {c.apiKey}}.Encode(),
	}

	conn, resp, err := c.dialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial live endpoint: %w (http %d)", err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial live endpoint: %w", err)
	}

	setup := clientMessage{Setup: &setupMessage{
		Model: cfg.Model,
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: cfg.Voice},
				},
			},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: cfg.SystemInstruction}},
		},
		Tools: deviceTools(),
	}}
	if err := conn.WriteJSON(&setup); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send setup: %w", err)
	}

	var first serverMessage
	if err := conn.ReadJSON(&first); err != nil {
		conn.Close()
		return nil, fmt.Errorf("await setup ack: %w", err)
	}
	if first.SetupComplete == nil {
		conn.Close()
		return nil, fmt.Errorf("handshake: expected setupComplete, got a different message")
	}

	c.logger.Info("Live session established",
		zap.String("model", cfg.Model),
		zap.String("voice", cfg.Voice))

	return &Session{conn: conn, logger: c.logger}, nil
}

// Session is one open duplex connection. Writes are serialized; Receive is
// called from a single goroutine.
type Session struct {
	conn    *websocket.Conn
	logger  *zap.Logger
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// SendAudioFrame sends one captured 16 kHz PCM frame as a realtime media
// chunk.
func (s *Session) SendAudioFrame(pcm []byte) error {
	msg := clientMessage{RealtimeInput: &realtimeInput{
		Media: &genai.Blob{MIMEType: audio.CaptureMIMEType, Data: pcm},
	}}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(&msg); err != nil {
		return fmt.Errorf("send audio frame: %w", err)
	}
	return nil
}

// SendToolResults sends one batched toolResponse for the given results,
// preserving order.
func (s *Session) SendToolResults(results []entities.ToolResult) error {
	msg := clientMessage{ToolResponse: &toolResponse{
		FunctionResponses: toFunctionResponses(results),
	}}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(&msg); err != nil {
		return fmt.Errorf("send tool results: %w", err)
	}
	return nil
}

// Receive blocks for the next inbound message and decodes it. Malformed
// payloads are dropped and logged, never fatal; a clean remote close is
// reported as io.EOF.
func (s *Session) Receive() (*entities.ServerMessage, error) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("read live message: %w", err)
		}

		var raw serverMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			s.logger.Warn("Dropping undecodable live message", zap.Error(err))
			observability.RecordDecodeDrop()
			continue
		}

		msg := s.decode(&raw)
		if msg == nil {
			// Nothing actionable in this message, keep reading.
			continue
		}
		return msg, nil
	}
}

// decode flattens a wire message into the domain shape. Audio parts with an
// odd byte count are dropped; they cannot be 16-bit PCM.
func (s *Session) decode(raw *serverMessage) *entities.ServerMessage {
	msg := &entities.ServerMessage{}
	actionable := false

	if raw.ServerContent != nil {
		msg.TurnComplete = raw.ServerContent.TurnComplete
		if raw.ServerContent.TurnComplete {
			actionable = true
		}
		if raw.ServerContent.ModelTurn != nil {
			for _, part := range raw.ServerContent.ModelTurn.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				if len(part.InlineData.Data)%2 != 0 {
					s.logger.Warn("Dropping audio part with odd byte count",
						zap.Int("bytes", len(part.InlineData.Data)))
					observability.RecordDecodeDrop()
					continue
				}
				msg.Audio = append(msg.Audio, part.InlineData.Data...)
				actionable = true
			}
		}
	}

	if raw.ToolCall != nil {
		for _, call := range raw.ToolCall.FunctionCalls {
			if call == nil || call.Name == "" {
				continue
			}
			msg.ToolCalls = append(msg.ToolCalls, entities.ToolCall{
				CallID: call.ID,
				Name:   call.Name,
				Args:   call.Args,
			})
			actionable = true
		}
	}

	if !actionable {
		return nil
	}
	return msg
}

// Close shuts the socket down. Idempotent; a best-effort close frame is sent
// first so the peer sees a clean departure.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		frame := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		s.writeMu.Lock()
		s.conn.WriteMessage(websocket.CloseMessage, frame)
		s.writeMu.Unlock()
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
