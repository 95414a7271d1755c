package session

// Phase is a step of the session lifecycle.
type Phase string

const (
	PhaseIdle             Phase = "idle"
	PhaseConnecting       Phase = "connecting"
	PhaseConnected        Phase = "connected"
	PhaseSubscribing      Phase = "subscribing"
	PhaseSubscribed       Phase = "subscribed"
	PhasePublishing       Phase = "publishing"
	PhaseAwaitingMessages Phase = "awaiting_messages"
	PhaseUnsubscribing    Phase = "unsubscribing"
	PhaseStopping         Phase = "stopping"
	PhaseStopped          Phase = "stopped"
	PhaseFailed           Phase = "failed"
)

// Terminal reports whether no further transitions follow.
func (p Phase) Terminal() bool {
	return p == PhaseStopped || p == PhaseFailed
}
