package tempo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tempo-ai/tempo-go/pkg/core"
)

func TestChatSend(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("got %s %s, want POST /chat", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var body struct {
			Message  string `json:"message"`
			Timezone string `json:"timezone"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Message != "when is my next meeting?" {
			t.Errorf("message = %q", body.Message)
		}
		if body.Timezone != "-08:00" {
			t.Errorf("timezone = %q, want -08:00", body.Timezone)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "Tomorrow at 9am."})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL,
		WithToken("test-token"),
		WithLocation(time.FixedZone("PST", -8*3600)),
	)
	got, err := client.Chat.Send(context.Background(), "when is my next meeting?")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "Tomorrow at 9am." {
		t.Fatalf("reply = %q", got)
	}
}

func TestChatSendLegacyMessageField(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "hello"})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, WithToken("t"))
	got, err := client.Chat.Send(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got != "hello" {
		t.Fatalf("reply = %q, want %q", got, "hello")
	}
}

func TestChatSendUnauthorized(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "token expired"})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, WithToken("stale"))
	_, err := client.Chat.Send(context.Background(), "hi")

	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrAuthentication {
		t.Fatalf("error = %v, want authentication error", err)
	}
	if !strings.Contains(coreErr.Message, "token expired") {
		t.Fatalf("message = %q, want server detail", coreErr.Message)
	}
}

func TestChatSendServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "calendar backend down"})
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, WithToken("t"))
	_, err := client.Chat.Send(context.Background(), "hi")

	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrAPI {
		t.Fatalf("error = %v, want api error", err)
	}
	if !strings.Contains(coreErr.Message, "calendar backend down") {
		t.Fatalf("message = %q, want server detail", coreErr.Message)
	}
}

func TestChatSendTransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL, WithToken("t"))
	_, err := client.Chat.Send(context.Background(), "hi")

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("error %T = %v, want *TransportError", err, err)
	}
	if transportErr.Op != "POST" {
		t.Fatalf("Op = %q, want POST", transportErr.Op)
	}
}

func TestChatSendValidation(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:1", WithToken("t"))
	if _, err := client.Chat.Send(context.Background(), "   "); err == nil {
		t.Fatal("Send accepted a blank message")
	}

	noToken := NewClient("http://localhost:1")
	_, err := noToken.Chat.Send(context.Background(), "hi")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrAuthentication {
		t.Fatalf("error = %v, want authentication error without token provider", err)
	}
}
