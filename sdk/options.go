package tempo

import (
	"log/slog"
	"net/http"
	"time"
)

// ClientOption is a function that configures a Client.
type ClientOption func(*Client)

// WithToken sets a fixed bearer token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.tokens = StaticToken(token)
	}
}

// WithTokenProvider sets the credential source, e.g. a FileTokenStore.
func WithTokenProvider(p TokenProvider) ClientOption {
	return func(c *Client) {
		c.tokens = p
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for the client.
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = l
	}
}

// WithLocation sets the location used to derive the timezone offset sent to
// the backend. Defaults to time.Local.
func WithLocation(loc *time.Location) ClientOption {
	return func(c *Client) {
		if loc != nil {
			c.location = loc
		}
	}
}
