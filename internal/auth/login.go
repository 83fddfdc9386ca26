// Package auth implements the browser-based login flow. The backend handles
// Google OAuth itself; this package's job is to receive the token the
// backend hands off via redirect.
package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"
)

// LoginResult contains the outcome of the login flow.
type LoginResult struct {
	Token string
	Error error
}

// StartLogin starts a loopback HTTP server on an ephemeral port and returns
// the backend login URL to open in a browser. The backend redirects the
// browser to the loopback server with the bearer token in the `token` query
// parameter, which is delivered on the returned channel.
func StartLogin(baseURL string) (<-chan LoginResult, string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, "", fmt.Errorf("failed to start callback server: %w", err)
	}

	callbackURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())

	loginURL, err := url.Parse(baseURL)
	if err != nil {
		_ = listener.Close()
		return nil, "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	loginURL.Path = "/auth/google/login"
	loginURL.RawQuery = url.Values{"frontend_url": {callbackURL}}.Encode()

	resultChan := make(chan LoginResult, 1)

	server := &http.Server{
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	server.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "No token received", http.StatusBadRequest)
			resultChan <- LoginResult{Error: fmt.Errorf("no token received")}
			return
		}

		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head><title>Tempo Login</title></head>
<body style="font-family: sans-serif; display: flex; justify-content: center; align-items: center; height: 100vh; margin: 0;">
<div style="text-align: center; padding: 2rem;">
<h1>Login Complete</h1>
<p>You can close this window and return to the terminal.</p>
</div>
</body>
</html>`)

		resultChan <- LoginResult{Token: token}

		go func() {
			time.Sleep(500 * time.Millisecond)
			_ = server.Shutdown(context.Background())
		}()
	})

	go func() {
		if err := server.Serve(listener); err != http.ErrServerClosed {
			resultChan <- LoginResult{Error: err}
		}
	}()

	return resultChan, loginURL.String(), nil
}
