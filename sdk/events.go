package tempo

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ServerEvent is a structured event received on the realtime socket.
type ServerEvent interface {
	serverEventType() string
}

// ConnectionUpdateEvent confirms the connection at the application level.
// A status of "connected" is treated identically to transport-level open.
type ConnectionUpdateEvent struct {
	Status string
}

func (e ConnectionUpdateEvent) serverEventType() string { return "connection.update" }

// TurnCreatedEvent marks the start of an assistant response turn.
type TurnCreatedEvent struct {
	TurnID string
}

func (e TurnCreatedEvent) serverEventType() string { return "response.created" }

// AudioDeltaEvent carries one base64-encoded PCM16 chunk of assistant speech.
type AudioDeltaEvent struct {
	Delta string
}

func (e AudioDeltaEvent) serverEventType() string { return "response.audio.delta" }

// AudioDoneEvent signals the end of the audio stream for the current turn.
// Turn completion is not inferred from this alone.
type AudioDoneEvent struct{}

func (e AudioDoneEvent) serverEventType() string { return "response.audio.done" }

// OutputItemDoneEvent marks completion of one output item within a turn.
type OutputItemDoneEvent struct{}

func (e OutputItemDoneEvent) serverEventType() string { return "response.output_item.done" }

// TurnDoneEvent marks server-side completion of the turn. Audio may still be
// queued or in flight when it arrives.
type TurnDoneEvent struct{}

func (e TurnDoneEvent) serverEventType() string { return "response.done" }

// ServerErrorEvent surfaces a server-reported error message.
type ServerErrorEvent struct {
	Message string
}

func (e ServerErrorEvent) serverEventType() string { return "error" }

// TranscriptionCompletedEvent reports a finished input transcription. The
// voice interface has no transcript display, so the router ignores it.
type TranscriptionCompletedEvent struct{}

func (e TranscriptionCompletedEvent) serverEventType() string {
	return "conversation.item.input_audio_transcription.completed"
}

// UnknownEvent wraps an unrecognized event type; non-fatal.
type UnknownEvent struct {
	Type string
	Raw  json.RawMessage
}

func (e UnknownEvent) serverEventType() string { return e.Type }

// decodeServerEvent parses one inbound text frame into a typed event.
func decodeServerEvent(data []byte) (ServerEvent, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, fmt.Errorf("event missing type")
	}

	switch typ {
	case "connection.update":
		var frame struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode connection.update: %w", err)
		}
		return ConnectionUpdateEvent{Status: frame.Status}, nil
	case "response.created":
		var frame struct {
			Response struct {
				ID string `json:"id"`
			} `json:"response"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode response.created: %w", err)
		}
		return TurnCreatedEvent{TurnID: frame.Response.ID}, nil
	case "response.audio.delta":
		var frame struct {
			Delta string `json:"delta"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode response.audio.delta: %w", err)
		}
		return AudioDeltaEvent{Delta: frame.Delta}, nil
	case "response.audio.done":
		return AudioDoneEvent{}, nil
	case "response.output_item.done":
		return OutputItemDoneEvent{}, nil
	case "response.done":
		return TurnDoneEvent{}, nil
	case "error":
		var frame struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(data, &frame); err != nil {
			return nil, fmt.Errorf("decode error event: %w", err)
		}
		return ServerErrorEvent{Message: frame.Error.Message}, nil
	case "conversation.item.input_audio_transcription.completed":
		return TranscriptionCompletedEvent{}, nil
	default:
		return UnknownEvent{
			Type: typ,
			Raw:  append(json.RawMessage(nil), data...),
		}, nil
	}
}
