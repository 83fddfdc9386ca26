package tempo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const defaultConnectTimeout = 15 * time.Second

// RealtimeService opens realtime voice sessions against /realtime.
type RealtimeService struct {
	client *Client
}

// RealtimeConnectRequest configures a realtime voice session.
type RealtimeConnectRequest struct {
	// Microphone supplies input audio. Optional: a session without one can
	// still play assistant audio but StartListening fails.
	Microphone MicrophoneSource

	// Speaker plays assistant audio. Required.
	Speaker AudioSink

	// OnState receives every state transition. Called from session
	// goroutines; keep it fast.
	OnState func(State)
}

// RealtimeSession owns one duplex connection, the capture pipeline, and the
// playback queue for a realtime voice conversation.
type RealtimeSession struct {
	conn   *websocket.Conn
	logger *slog.Logger

	state   *sessionState
	queue   *PlaybackQueue
	capture *CapturePipeline
	router  *router

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	done      chan struct{}
}

// Connect dials the realtime endpoint with the bearer token and the client
// timezone offset as query parameters, and starts the session's read loop.
// A dial failure surfaces as a TransportError ("failed to establish").
func (s *RealtimeService) Connect(ctx context.Context, req *RealtimeConnectRequest) (*RealtimeSession, error) {
	if s == nil || s.client == nil {
		return nil, NewInvalidRequestError("realtime service is not initialized")
	}
	if req == nil {
		return nil, NewInvalidRequestError("req must not be nil")
	}
	if req.Speaker == nil {
		return nil, NewInvalidRequestError("realtime session requires an audio sink")
	}

	token, err := s.client.bearerToken()
	if err != nil {
		return nil, err
	}

	wsURL, err := realtimeEndpoint(s.client.baseURL, token, s.client.timezoneOffset())
	if err != nil {
		return nil, err
	}

	dialer := websocket.DefaultDialer
	if dialer == nil {
		dialer = &websocket.Dialer{}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, defaultConnectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		establishErr := fmt.Errorf("failed to establish realtime connection: %w", err)
		if resp != nil {
			establishErr = fmt.Errorf("failed to establish realtime connection (status %d): %w", resp.StatusCode, err)
		}
		return nil, &TransportError{Op: "GET", URL: wsURL, Err: establishErr}
	}

	logger := s.client.logger
	sess := &RealtimeSession{
		conn:   conn,
		logger: logger,
		done:   make(chan struct{}),
	}
	sess.state = newSessionState(req.OnState)
	r := &router{state: sess.state, logger: logger}
	sess.queue = NewPlaybackQueue(PlaybackConfig{
		Sink:      req.Speaker,
		Logger:    logger,
		OnDrained: r.onQueueDrained,
	})
	r.queue = sess.queue
	sess.router = r
	if req.Microphone != nil {
		sess.capture = NewCapturePipeline(CaptureConfig{
			Source:        req.Microphone,
			Send:          sess.SendAudio,
			TransportOpen: sess.open,
			Logger:        logger,
		})
	}

	// Dial success is transport-level open.
	sess.state.update(func(st *State) {
		st.Connected = true
		st.Err = nil
	})

	go sess.readLoop()
	return sess, nil
}

// realtimeEndpoint derives the socket URL from the REST base URL, switching
// to the secure-socket scheme when the API is served over https.
func realtimeEndpoint(base, token, timezone string) (string, error) {
	if strings.TrimSpace(base) == "" {
		return "", NewInvalidRequestError("base URL must not be empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", NewInvalidRequestError("invalid base URL")
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already a websocket scheme.
	default:
		return "", NewInvalidRequestError("base URL must use http(s) or ws(s)")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"
	q := u.Query()
	q.Set("token", token)
	q.Set("timezone", timezone)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// State returns a snapshot of the session state.
func (s *RealtimeSession) State() State {
	return s.state.snapshot()
}

// open reports whether the transport can accept outbound frames.
func (s *RealtimeSession) open() bool {
	return !s.closed.Load() && s.state.connected()
}

// SendAudio transmits one binary frame of 16-bit little-endian PCM.
func (s *RealtimeSession) SendAudio(pcm []byte) error {
	if s.closed.Load() {
		return NewInvalidRequestError("realtime connection is already closed")
	}
	if !s.state.connected() {
		return NewInvalidRequestError("realtime connection is not open")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// StartListening acquires the microphone (if not already acquired) and
// opens the capture gate. Fails with a permission error when the device is
// denied or unavailable; the failure is also surfaced on the session state.
func (s *RealtimeSession) StartListening(ctx context.Context) error {
	if s.capture == nil {
		return NewInvalidRequestError("no microphone source configured")
	}
	if err := s.capture.Start(ctx); err != nil {
		s.state.update(func(st *State) {
			st.Err = err
		})
		return err
	}
	s.capture.SetListening(true)
	s.state.update(func(st *State) {
		st.Listening = true
	})
	return nil
}

// StopListening closes the capture gate; frames already in flight are
// dropped. The device stays acquired until Close.
func (s *RealtimeSession) StopListening() {
	if s.capture != nil {
		s.capture.SetListening(false)
	}
	s.state.update(func(st *State) {
		st.Listening = false
	})
}

// Close tears the session down. Order: stop listening, close the socket if
// still open with the normal-closure code, stop capture, stop playback.
// Each step runs unconditionally and is idempotent. Blocks until the read
// loop has exited. Safe to call at any time, including concurrently with
// in-flight playback or a pending device prompt.
func (s *RealtimeSession) Close() error {
	s.closeOnce.Do(func() {
		s.StopListening()

		if !s.closed.Swap(true) {
			s.writeMu.Lock()
			_ = s.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(2*time.Second),
			)
			s.writeMu.Unlock()
			_ = s.conn.Close()
		}

		if s.capture != nil {
			s.capture.Stop()
		}
		s.queue.Stop()

		s.state.update(func(st *State) {
			st.Connected = false
			st.Speaking = false
			st.Loading = false
		})
	})
	<-s.done
	return nil
}

func (s *RealtimeSession) readLoop() {
	defer close(s.done)

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			s.handleReadError(err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		ev, decodeErr := decodeServerEvent(data)
		if decodeErr != nil {
			// One malformed frame must not kill the session.
			s.logger.Warn("dropping malformed frame", "error", decodeErr)
			continue
		}
		s.router.handle(ev)
	}
}

// handleReadError maps a read failure to session state. A normal closure
// (explicit teardown) produces no error; an abnormal close surfaces the
// close reason as a user-visible error.
func (s *RealtimeSession) handleReadError(err error) {
	if s.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		s.state.update(func(st *State) {
			st.Connected = false
		})
		return
	}

	var closeErr *websocket.CloseError
	var userErr error
	if errors.As(err, &closeErr) {
		reason := strings.TrimSpace(closeErr.Text)
		if reason == "" {
			reason = fmt.Sprintf("code %d", closeErr.Code)
		}
		userErr = fmt.Errorf("Connection closed: %s", reason)
	} else {
		userErr = fmt.Errorf("Connection closed: %v", err)
	}

	s.state.update(func(st *State) {
		st.Connected = false
		st.Err = &TransportError{Op: "read", Err: userErr}
	})
}
