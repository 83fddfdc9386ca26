package tempo

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/tempo-ai/tempo-go/pkg/core/pcm"
)

// router interprets server events and drives session state and the playback
// queue. Events arrive in order from the single read loop.
type router struct {
	state  *sessionState
	queue  *PlaybackQueue
	logger *slog.Logger

	mu       sync.Mutex
	turnDone bool
}

func (r *router) handle(ev ServerEvent) {
	switch e := ev.(type) {
	case ConnectionUpdateEvent:
		// Treated identically to transport-level open; re-confirmation is
		// idempotent.
		if strings.EqualFold(strings.TrimSpace(e.Status), "connected") {
			r.state.update(func(s *State) {
				s.Connected = true
				s.Err = nil
			})
		}
	case TurnCreatedEvent:
		r.mu.Lock()
		r.turnDone = false
		r.mu.Unlock()
		r.state.update(func(s *State) {
			s.TurnID = e.TurnID
			s.Loading = true
			s.Speaking = true
		})
	case AudioDeltaEvent:
		raw, err := pcm.DecodeBase64(e.Delta)
		if err != nil {
			// Malformed payload: drop this chunk, playback continues with
			// subsequent chunks.
			r.logger.Warn("dropping malformed audio delta", "error", err)
			return
		}
		r.queue.Enqueue(raw)
	case AudioDoneEvent:
		// Intentionally no state change. The audio stream ending does not
		// mean the queued audio has been played out; completion is the
		// conjunction of response.done and queue exhaustion.
	case OutputItemDoneEvent:
		// No client-side effect.
	case TurnDoneEvent:
		r.mu.Lock()
		r.turnDone = true
		r.mu.Unlock()
		r.state.update(func(s *State) {
			s.Loading = false
		})
		r.maybeClearSpeaking()
	case ServerErrorEvent:
		r.state.update(func(s *State) {
			s.Err = NewAPIError(e.Message)
			s.Loading = false
		})
	case TranscriptionCompletedEvent:
		// Voice-only interface: no transcript display.
	case UnknownEvent:
		r.logger.Debug("ignoring unrecognized event", "type", e.Type)
	}
}

// onQueueDrained is the playback queue's drain callback.
func (r *router) onQueueDrained() {
	r.maybeClearSpeaking()
}

// maybeClearSpeaking clears the speaking indicator only once the server has
// reported the turn done AND the playback queue is empty with no active
// drain. Audio deltas may still be queued when response.done arrives, in
// which case the queue's own drain callback finishes the job. This is a
// deterministic join, not a timer.
func (r *router) maybeClearSpeaking() {
	r.mu.Lock()
	turnDone := r.turnDone
	r.mu.Unlock()
	if !turnDone {
		return
	}
	if r.queue != nil && !r.queue.Idle() {
		return
	}
	r.state.update(func(s *State) {
		s.Speaking = false
		s.TurnID = ""
	})
}
