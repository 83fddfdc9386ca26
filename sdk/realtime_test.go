package tempo

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tempo-ai/tempo-go/pkg/core/pcm"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// realtimeTestServer runs script against each upgraded connection.
func realtimeTestServer(t *testing.T, script func(conn *websocket.Conn, r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/realtime" {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		script(conn, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func connectTestSession(t *testing.T, srv *httptest.Server, req *RealtimeConnectRequest) *RealtimeSession {
	t.Helper()
	client := NewClient(srv.URL,
		WithToken("test-token"),
		WithLogger(discardLogger()),
		WithLocation(time.FixedZone("IST", 5*3600+1800)),
	)
	if req == nil {
		req = &RealtimeConnectRequest{Speaker: &fakeSink{}}
	}
	sess, err := client.Realtime.Connect(context.Background(), req)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestRealtimeConnectSendsCredentials(t *testing.T) {
	t.Parallel()

	gotQuery := make(chan map[string]string, 1)
	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		gotQuery <- map[string]string{
			"token":    r.URL.Query().Get("token"),
			"timezone": r.URL.Query().Get("timezone"),
		}
		// Hold the connection open until the client closes it.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := connectTestSession(t, srv, nil)
	if !sess.State().Connected {
		t.Fatal("not connected after dial")
	}

	q := <-gotQuery
	if q["token"] != "test-token" {
		t.Errorf("token = %q, want %q", q["token"], "test-token")
	}
	if q["timezone"] != "+05:30" {
		t.Errorf("timezone = %q, want %q", q["timezone"], "+05:30")
	}
}

func TestRealtimeConnectionUpdateEvent(t *testing.T) {
	t.Parallel()

	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection.update","status":"connected"}`)); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := connectTestSession(t, srv, nil)
	waitFor(t, time.Second, func() bool {
		st := sess.State()
		return st.Connected && st.Err == nil
	}, "connected state")
}

func TestRealtimeAudioTurn(t *testing.T) {
	t.Parallel()

	chunk := make([]byte, pcm.BytesForDurationMs(100, pcm.SampleRate))
	frames := []string{
		`{"type":"response.created","response":{"id":"resp_1"}}`,
		`{"type":"response.audio.delta","delta":"` + base64.StdEncoding.EncodeToString(chunk) + `"}`,
		`{"type":"response.audio.done"}`,
		`{"type":"response.output_item.done"}`,
		`{"type":"response.done","response":{"id":"resp_1"}}`,
	}
	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sink := &fakeSink{}
	sess := connectTestSession(t, srv, &RealtimeConnectRequest{Speaker: sink})

	waitFor(t, time.Second, func() bool { return sink.playedCount() == 1 }, "chunk played")
	if got := sink.playedChunks()[0]; len(got) != len(chunk) {
		t.Fatalf("played %d bytes, want %d", len(got), len(chunk))
	}
	waitFor(t, time.Second, func() bool {
		st := sess.State()
		return !st.Speaking && !st.Loading && st.TurnID == ""
	}, "turn fully settled")
	if err := sess.State().Err; err != nil {
		t.Fatalf("unexpected session error: %v", err)
	}
}

func TestRealtimeMalformedFrameSwallowed(t *testing.T) {
	t.Parallel()

	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`this is not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"response.created","response":{"id":"resp_after"}}`))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	sess := connectTestSession(t, srv, nil)
	waitFor(t, time.Second, func() bool { return sess.State().TurnID == "resp_after" }, "session survives malformed frame")
	if err := sess.State().Err; err != nil {
		t.Fatalf("malformed frame surfaced as error: %v", err)
	}
}

func TestRealtimeNormalClosure(t *testing.T) {
	t.Parallel()

	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_, _, _ = conn.ReadMessage()
	})

	sess := connectTestSession(t, srv, nil)
	waitFor(t, time.Second, func() bool { return !sess.State().Connected }, "disconnect observed")
	if err := sess.State().Err; err != nil {
		t.Fatalf("normal closure produced error: %v", err)
	}
}

func TestRealtimeAbnormalClosure(t *testing.T) {
	t.Parallel()

	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		// Drop the TCP connection without a close handshake.
		_ = conn.UnderlyingConn().Close()
	})

	sess := connectTestSession(t, srv, nil)
	waitFor(t, time.Second, func() bool { return sess.State().Err != nil }, "error surfaced")

	st := sess.State()
	if st.Connected {
		t.Fatal("still connected after abnormal closure")
	}
	if !strings.Contains(st.Err.Error(), "Connection closed") {
		t.Fatalf("error = %q, want it to contain %q", st.Err.Error(), "Connection closed")
	}
	var transportErr *TransportError
	if !errors.As(st.Err, &transportErr) {
		t.Fatalf("error %T is not a *TransportError", st.Err)
	}
}

func TestRealtimeServerCloseReason(t *testing.T) {
	t.Parallel()

	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "backend unavailable"), deadline)
		_, _, _ = conn.ReadMessage()
	})

	sess := connectTestSession(t, srv, nil)
	waitFor(t, time.Second, func() bool { return sess.State().Err != nil }, "error surfaced")
	if got := sess.State().Err.Error(); !strings.Contains(got, "backend unavailable") {
		t.Fatalf("error = %q, want close reason included", got)
	}
}

func TestRealtimeSendAudio(t *testing.T) {
	t.Parallel()

	gotBinary := make(chan []byte, 1)
	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				gotBinary <- data
			}
		}
	})

	sess := connectTestSession(t, srv, nil)
	frame := pcm.EncodeFloat32([]float32{0.25, -0.25, 1.0, -1.0})
	if err := sess.SendAudio(frame); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}

	select {
	case got := <-gotBinary:
		if string(got) != string(frame) {
			t.Fatalf("server received %x, want %x", got, frame)
		}
	case <-time.After(time.Second):
		t.Fatal("server never received the binary frame")
	}
}

func TestRealtimeListeningLifecycle(t *testing.T) {
	t.Parallel()

	gotBinary := make(chan []byte, 4)
	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if mt == websocket.BinaryMessage {
				gotBinary <- data
			}
		}
	})

	mic := newFakeMic()
	sess := connectTestSession(t, srv, &RealtimeConnectRequest{
		Microphone: mic,
		Speaker:    &fakeSink{},
	})

	if err := sess.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}
	if !sess.State().Listening {
		t.Fatal("listening flag not set")
	}

	mic.frames <- []float32{0.5, -0.5}
	select {
	case <-gotBinary:
	case <-time.After(time.Second):
		t.Fatal("captured frame never reached the server")
	}

	sess.StopListening()
	if sess.State().Listening {
		t.Fatal("listening flag not cleared")
	}
	mic.frames <- []float32{0.5}
	select {
	case <-gotBinary:
		t.Fatal("frame transmitted after StopListening")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestRealtimeStartListeningWithoutMicrophone(t *testing.T) {
	t.Parallel()

	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		_, _, _ = conn.ReadMessage()
	})

	sess := connectTestSession(t, srv, &RealtimeConnectRequest{Speaker: &fakeSink{}})
	if err := sess.StartListening(context.Background()); err == nil {
		t.Fatal("StartListening succeeded without a microphone source")
	}
}

func TestRealtimeCloseTeardown(t *testing.T) {
	t.Parallel()

	gotClose := make(chan int, 1)
	srv := realtimeTestServer(t, func(conn *websocket.Conn, r *http.Request) {
		conn.SetCloseHandler(func(code int, text string) error {
			gotClose <- code
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	mic := newFakeMic()
	sink := &fakeSink{}
	sess := connectTestSession(t, srv, &RealtimeConnectRequest{
		Microphone: mic,
		Speaker:    sink,
	})
	if err := sess.StartListening(context.Background()); err != nil {
		t.Fatalf("StartListening: %v", err)
	}

	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case code := <-gotClose:
		if code != websocket.CloseNormalClosure {
			t.Fatalf("close code = %d, want %d", code, websocket.CloseNormalClosure)
		}
	case <-time.After(time.Second):
		t.Fatal("server never saw a close frame")
	}

	st := sess.State()
	if st.Connected || st.Listening || st.Speaking || st.Loading {
		t.Fatalf("state not cleared by Close: %+v", st)
	}
	if !mic.isClosed() {
		t.Fatal("microphone stream not released")
	}
	if !sink.isClosed() {
		t.Fatal("audio sink not closed")
	}
	if err := sess.SendAudio([]byte{0x00, 0x00}); err == nil {
		t.Fatal("SendAudio succeeded after Close")
	}

	// Close is idempotent.
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestRealtimeConnectRejectedUpgrade(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upgrade refused", http.StatusForbidden)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, WithToken("test-token"), WithLogger(discardLogger()))
	_, err := client.Realtime.Connect(context.Background(), &RealtimeConnectRequest{Speaker: &fakeSink{}})
	if err == nil {
		t.Fatal("Connect succeeded against non-websocket endpoint")
	}
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error %T is not a *TransportError", err)
	}
	if !strings.Contains(err.Error(), "failed to establish realtime connection") {
		t.Fatalf("error = %q, want establish failure", err.Error())
	}
	if strings.Contains(err.Error(), "test-token") {
		t.Fatalf("error leaks the bearer token: %q", err.Error())
	}
}

func TestRealtimeConnectRequiresSpeaker(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:1", WithToken("t"))
	if _, err := client.Realtime.Connect(context.Background(), &RealtimeConnectRequest{}); err == nil {
		t.Fatal("Connect succeeded without a speaker")
	}
}

func TestRealtimeEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		base string
		want string
	}{
		{"http://localhost:8000", "ws://localhost:8000/realtime?timezone=%2B05%3A30&token=tok"},
		{"https://api.example.com", "wss://api.example.com/realtime?timezone=%2B05%3A30&token=tok"},
		{"https://api.example.com/v1/", "wss://api.example.com/v1/realtime?timezone=%2B05%3A30&token=tok"},
		{"ws://localhost:8000", "ws://localhost:8000/realtime?timezone=%2B05%3A30&token=tok"},
	}
	for _, tt := range tests {
		got, err := realtimeEndpoint(tt.base, "tok", "+05:30")
		if err != nil {
			t.Errorf("realtimeEndpoint(%q): %v", tt.base, err)
			continue
		}
		if got != tt.want {
			t.Errorf("realtimeEndpoint(%q) = %q, want %q", tt.base, got, tt.want)
		}
	}

	for _, base := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := realtimeEndpoint(base, "tok", "+00:00"); err == nil {
			t.Errorf("realtimeEndpoint(%q) succeeded, want error", base)
		}
	}
}
