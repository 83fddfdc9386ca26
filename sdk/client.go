// Package tempo provides the Go client for the Tempo calendar assistant.
//
// Two interaction modes are supported: request/response text chat
// (Client.Chat) and a realtime voice conversation over a websocket with
// streamed PCM audio (Client.Realtime).
package tempo

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Client is the main entry point for the SDK.
type Client struct {
	Chat     *ChatService
	Realtime *RealtimeService

	baseURL    string
	httpClient *http.Client
	tokens     TokenProvider
	logger     *slog.Logger
	location   *time.Location
}

// NewClient creates a client for the backend at baseURL (http or https).
// The bearer token comes from WithTokenProvider or WithToken.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		logger:   slog.Default(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = newDefaultHTTPClient()
	}

	c.Chat = &ChatService{client: c}
	c.Realtime = &RealtimeService{client: c}
	return c
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// timezoneOffset returns the client's current UTC offset as ±HH:MM.
func (c *Client) timezoneOffset() string {
	return FormatUTCOffset(time.Now().In(c.location))
}

// bearerToken resolves the credential from the configured provider.
func (c *Client) bearerToken() (string, error) {
	if c.tokens == nil {
		return "", NewAuthenticationError("no token provider configured")
	}
	return c.tokens.Token()
}
