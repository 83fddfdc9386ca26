package tempo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ChatService is the plain request/response text interface to the assistant.
type ChatService struct {
	client *Client
}

type chatRequest struct {
	Message  string `json:"message"`
	Timezone string `json:"timezone"`
}

type chatResponse struct {
	Response string `json:"response"`
	Message  string `json:"message"`
	Detail   string `json:"detail"`
}

// Send posts a message and returns the assistant's reply.
func (s *ChatService) Send(ctx context.Context, message string) (string, error) {
	if s == nil || s.client == nil {
		return "", NewInvalidRequestError("chat service is not initialized")
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", NewInvalidRequestError("message must not be empty")
	}
	if s.client.baseURL == "" {
		return "", NewInvalidRequestError("base URL must not be empty")
	}

	token, err := s.client.bearerToken()
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Message:  message,
		Timezone: s.client.timezoneOffset(),
	})
	if err != nil {
		return "", fmt.Errorf("encode chat request: %w", err)
	}

	endpoint := s.client.baseURL + "/chat"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return "", &TransportError{Op: "POST", URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Op: "POST", URL: endpoint, Err: err}
	}

	var decoded chatResponse
	if err := json.Unmarshal(data, &decoded); err != nil && resp.StatusCode == http.StatusOK {
		return "", NewAPIError(fmt.Sprintf("malformed chat response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		msg := decoded.Detail
		if msg == "" {
			msg = "authentication failed"
		}
		return "", NewAuthenticationError(msg)
	case resp.StatusCode != http.StatusOK:
		msg := decoded.Detail
		if msg == "" {
			msg = fmt.Sprintf("chat request failed with status %d", resp.StatusCode)
		}
		return "", NewAPIError(msg)
	}

	// The backend replies with `response`; older deployments used `message`.
	if decoded.Response != "" {
		return decoded.Response, nil
	}
	return decoded.Message, nil
}
