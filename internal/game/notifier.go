package game

// Notifier is the publish-only boundary to the real-time fan-out layer.
// Publish must not block the caller; delivery failures stay inside the
// implementation and never affect a committed state transition.
type Notifier interface {
	Publish(sessionID uint, event string, payload map[string]any)
}

// Event names emitted on externally visible state changes.
const (
	EventSessionCreated   = "session_created"
	EventPlayerJoined     = "player_joined"
	EventSessionStarted   = "session_started"
	EventCardRequested    = "card_requested"
	EventCardDealt        = "card_dealt"
	EventPlayerStood      = "player_stood"
	EventPlayerLeft       = "player_left"
	EventSessionFinished  = "session_finished"
	EventRematchProposed  = "rematch_proposed"
	EventRematchResponse  = "rematch_response"
	EventRematchRestarted = "rematch_restarted"
	EventRematchCancelled = "rematch_cancelled"
)

type NopNotifier struct{}

func (NopNotifier) Publish(uint, string, map[string]any) {}

// MultiNotifier fans one publish out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Publish(sessionID uint, event string, payload map[string]any) {
	for _, n := range m {
		n.Publish(sessionID, event, payload)
	}
}
