package model

// EventKind tags the outbound events the driver surfaces to its host
// UI (subtitle line, error message, loading indicator).
type EventKind string

const (
	EventSubtitle EventKind = "subtitle"
	EventError    EventKind = "error"
	EventLoading  EventKind = "loading"
)

// Event is one outbound callback payload, fanned out over pubsub so
// in-process and remote consumers both can watch.
type Event struct {
	Kind    EventKind `json:"kind"`
	Text    string    `json:"text,omitempty"`
	Loading bool      `json:"loading,omitempty"`
}
