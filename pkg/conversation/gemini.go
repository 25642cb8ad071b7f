package conversation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Gemini Live API WebSocket endpoint.
	geminiLiveURL = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the Gemini Live model used when none is set.
	DefaultModel = "models/gemini-2.0-flash-exp"

	// DefaultVoice is the prebuilt voice used when none is set.
	DefaultVoice = "Puck"
)

// Config holds channel configuration.
type Config struct {
	// APIKey is the Gemini API key. If empty, CredentialsURL is used to
	// fetch one from the Phronesis backend.
	APIKey string

	// CredentialsURL is the backend endpoint serving the API key
	// (GET /api/get-api-key). Ignored when APIKey is set.
	CredentialsURL string

	// Model is the Gemini Live model name.
	Model string

	// Voice selects the prebuilt voice for synthesized speech.
	Voice string

	// SystemPrompt is the initial prompt sent verbatim in the setup
	// message. Built by the caller (see BuildPrompt); opaque here.
	SystemPrompt string

	// InputSampleRate is the uplink PCM16 rate in Hz.
	InputSampleRate int

	// OutputSampleRate is the downlink PCM16 rate in Hz.
	OutputSampleRate int

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// Logger for channel events. Defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the service's fixed audio rates:
// 16 kHz uplink, 24 kHz downlink.
func DefaultConfig() Config {
	return Config{
		Model:            DefaultModel,
		Voice:            DefaultVoice,
		InputSampleRate:  16000,
		OutputSampleRate: 24000,
		HandshakeTimeout: 10 * time.Second,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" && c.CredentialsURL == "" {
		return ErrMissingAPIKey
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return fmt.Errorf("conversation: sample rates must be positive")
	}
	return nil
}

// GeminiLive implements Channel over the Gemini Live websocket API.
type GeminiLive struct {
	config Config
	logger *slog.Logger

	mu        sync.RWMutex
	conn      *websocket.Conn
	state     ConnectionState
	cancelCtx context.CancelFunc

	wsMu sync.Mutex // guards writes to conn

	// Callbacks
	onAudio        func(pcm16 []byte)
	onTranscript   func(role, text string, isFinal bool)
	onInterrupted  func()
	onTurnComplete func()
	onCompletion   func(payload json.RawMessage)
	onError        func(err error)
	onClose        func(err error)

	messagesSent     atomic.Int64
	messagesReceived atomic.Int64
}

// NewGeminiLive creates a Gemini Live channel.
func NewGeminiLive(cfg Config) (*GeminiLive, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	return &GeminiLive{
		config: cfg,
		logger: cfg.Logger.With("component", "conversation.gemini"),
		state:  StateDisconnected,
	}, nil
}

// Connect opens the websocket and sends the setup message.
func (g *GeminiLive) Connect(ctx context.Context) error {
	g.mu.Lock()
	if g.state != StateDisconnected {
		g.mu.Unlock()
		return ErrAlreadyConnected
	}
	g.state = StateConnecting
	g.mu.Unlock()

	apiKey := g.config.APIKey
	if apiKey == "" {
		key, err := FetchAPIKey(ctx, g.config.CredentialsURL)
		if err != nil {
			g.setState(StateDisconnected)
			return newConnectError("fetch credentials", err)
		}
		apiKey = key
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: g.config.HandshakeTimeout,
	}

	g.logger.Info("connecting to Gemini Live", "model", g.config.Model)

	conn, resp, err := dialer.DialContext(ctx, geminiLiveURL+"?key="+apiKey, nil)
	if err != nil {
		g.setState(StateDisconnected)
		if resp != nil {
			return newConnectError(fmt.Sprintf("dial failed with status %d", resp.StatusCode), err)
		}
		return newConnectError("dial failed", err)
	}

	msgCtx, cancel := context.WithCancel(context.Background())

	g.mu.Lock()
	g.conn = conn
	g.state = StateConnected
	g.cancelCtx = cancel
	g.mu.Unlock()

	if err := g.sendSetup(); err != nil {
		_ = g.Close()
		return newConnectError("setup failed", err)
	}

	go g.handleMessages(msgCtx)

	g.logger.Info("connected to Gemini Live")
	return nil
}

// sendSetup sends the initial session configuration, including the
// verbatim session prompt.
func (g *GeminiLive) sendSetup() error {
	setup := map[string]any{
		"setup": map[string]any{
			"model": g.config.Model,
			"generation_config": map[string]any{
				"response_modalities": []string{"AUDIO"},
				"speech_config": map[string]any{
					"voice_config": map[string]any{
						"prebuilt_voice_config": map[string]any{
							"voice_name": g.config.Voice,
						},
					},
				},
			},
			"system_instruction": map[string]any{
				"parts": []map[string]any{
					{"text": g.config.SystemPrompt},
				},
			},
		},
	}
	return g.sendJSON(setup)
}

// Close shuts the channel down. Safe to call multiple times.
func (g *GeminiLive) Close() error {
	g.mu.Lock()
	if g.state == StateDisconnected {
		g.mu.Unlock()
		return nil
	}
	g.state = StateDisconnected
	conn := g.conn
	g.conn = nil
	cancel := g.cancelCtx
	g.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		_ = conn.Close()
	}

	g.logger.Info("disconnected from Gemini Live",
		"sent", g.messagesSent.Load(),
		"received", g.messagesReceived.Load(),
	)
	return nil
}

// IsConnected reports whether the channel is open.
func (g *GeminiLive) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state == StateConnected
}

// SendAudio transmits one uplink frame as a base64 PCM16 media chunk
// tagged with the sample rate.
func (g *GeminiLive) SendAudio(pcm16 []byte) error {
	if !g.IsConnected() {
		return ErrNotConnected
	}

	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      base64.StdEncoding.EncodeToString(pcm16),
					"mime_type": fmt.Sprintf("audio/pcm;rate=%d", g.config.InputSampleRate),
				},
			},
		},
	}
	return g.sendJSON(msg)
}

// SendText transmits a user text turn.
func (g *GeminiLive) SendText(text string) error {
	if !g.IsConnected() {
		return ErrNotConnected
	}

	msg := map[string]any{
		"client_content": map[string]any{
			"turns": []map[string]any{
				{
					"role":  "user",
					"parts": []map[string]any{{"text": text}},
				},
			},
			"turn_complete": true,
		},
	}
	return g.sendJSON(msg)
}

// Callback setters.

// OnAudio sets the inbound audio callback.
func (g *GeminiLive) OnAudio(fn func(pcm16 []byte)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onAudio = fn
}

// OnTranscript sets the transcription callback.
func (g *GeminiLive) OnTranscript(fn func(role, text string, isFinal bool)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTranscript = fn
}

// OnInterrupted sets the service-side interruption callback.
func (g *GeminiLive) OnInterrupted(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onInterrupted = fn
}

// OnTurnComplete sets the end-of-turn callback.
func (g *GeminiLive) OnTurnComplete(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onTurnComplete = fn
}

// OnCompletion sets the completion passthrough callback.
func (g *GeminiLive) OnCompletion(fn func(payload json.RawMessage)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onCompletion = fn
}

// OnError sets the asynchronous error callback.
func (g *GeminiLive) OnError(fn func(err error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onError = fn
}

// OnClose sets the close callback.
func (g *GeminiLive) OnClose(fn func(err error)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.onClose = fn
}

// InputSampleRate returns the uplink rate in Hz.
func (g *GeminiLive) InputSampleRate() int { return g.config.InputSampleRate }

// OutputSampleRate returns the downlink rate in Hz.
func (g *GeminiLive) OutputSampleRate() int { return g.config.OutputSampleRate }

// handleMessages reads and dispatches inbound messages until the channel
// closes.
func (g *GeminiLive) handleMessages(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			g.mu.RLock()
			closed := g.state == StateDisconnected
			g.mu.RUnlock()

			if closed || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				g.logger.Info("channel closed normally")
				g.emitClose(nil)
				return
			}

			cerr := newClosedError("read failed", err)
			g.logger.Error("channel read error", "error", err)
			g.setState(StateDisconnected)
			g.emitError(cerr)
			g.emitClose(cerr)
			return
		}

		g.messagesReceived.Add(1)

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			g.logger.Warn("failed to parse message", "error", err)
			continue
		}
		g.handleMessage(&msg)
	}
}

// handleMessage dispatches one parsed server message.
func (g *GeminiLive) handleMessage(msg *serverMessage) {
	switch {
	case msg.SetupComplete != nil:
		g.logger.Debug("session ready")

	case len(msg.InteractionSummary) > 0:
		// End-of-interaction payload: passed through, never interpreted.
		g.emitCompletion(msg.InteractionSummary)

	case msg.ServerContent != nil:
		g.handleServerContent(msg.ServerContent)
	}
}

func (g *GeminiLive) handleServerContent(sc *serverContent) {
	if sc.Interrupted {
		g.emitInterrupted()
	}
	if sc.ModelTurn != nil {
		for _, p := range sc.ModelTurn.Parts {
			if p.InlineData != nil && strings.HasPrefix(p.InlineData.MimeType, "audio/pcm") {
				audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
				if err != nil {
					g.logger.Warn("failed to decode audio chunk", "error", err)
					continue
				}
				if len(audio) > 0 {
					g.emitAudio(audio)
				}
			}
			if p.Text != "" {
				g.emitTranscript("model", p.Text, false)
			}
		}
	}
	if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
		g.emitTranscript("user", sc.InputTranscription.Text, true)
	}
	if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
		g.emitTranscript("model", sc.OutputTranscription.Text, true)
	}
	if sc.TurnComplete {
		g.emitTurnComplete()
	}
}

// sendJSON writes one message, serializing writers.
func (g *GeminiLive) sendJSON(v any) error {
	g.wsMu.Lock()
	defer g.wsMu.Unlock()

	g.mu.RLock()
	conn := g.conn
	g.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.WriteJSON(v); err != nil {
		return newClosedError("write failed", err)
	}
	g.messagesSent.Add(1)
	return nil
}

func (g *GeminiLive) setState(s ConnectionState) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Emit helpers.

func (g *GeminiLive) emitAudio(audio []byte) {
	g.mu.RLock()
	fn := g.onAudio
	g.mu.RUnlock()
	if fn != nil {
		fn(audio)
	}
}

func (g *GeminiLive) emitTranscript(role, text string, isFinal bool) {
	g.mu.RLock()
	fn := g.onTranscript
	g.mu.RUnlock()
	if fn != nil {
		fn(role, text, isFinal)
	}
}

func (g *GeminiLive) emitInterrupted() {
	g.mu.RLock()
	fn := g.onInterrupted
	g.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (g *GeminiLive) emitTurnComplete() {
	g.mu.RLock()
	fn := g.onTurnComplete
	g.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (g *GeminiLive) emitCompletion(payload json.RawMessage) {
	g.mu.RLock()
	fn := g.onCompletion
	g.mu.RUnlock()
	if fn != nil {
		fn(payload)
	}
}

func (g *GeminiLive) emitError(err error) {
	g.mu.RLock()
	fn := g.onError
	g.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

func (g *GeminiLive) emitClose(err error) {
	g.mu.RLock()
	fn := g.onClose
	g.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// Wire message types for the Gemini Live API.

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete,omitempty"`
	ServerContent *serverContent `json:"serverContent,omitempty"`

	// InteractionSummary is the out-of-band completion payload
	// (e.g. a quiz report). Opaque to this client.
	InteractionSummary json.RawMessage `json:"interactionSummary,omitempty"`
}

type serverContent struct {
	TurnComplete        bool           `json:"turnComplete,omitempty"`
	Interrupted         bool           `json:"interrupted,omitempty"`
	ModelTurn           *modelTurn     `json:"modelTurn,omitempty"`
	InputTranscription  *transcription `json:"inputTranscription,omitempty"`
	OutputTranscription *transcription `json:"outputTranscription,omitempty"`
}

type modelTurn struct {
	Parts []contentPart `json:"parts"`
}

type contentPart struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type transcription struct {
	Text string `json:"text"`
}

// Ensure GeminiLive implements Channel.
var _ Channel = (*GeminiLive)(nil)
