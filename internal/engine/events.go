// internal/engine/events.go
package engine

import "restaurant-finder/internal/models"

// EventKind tags one variant of the streamed progress protocol.
type EventKind string

const (
	EventSearching           EventKind = "searching"
	EventExhausted           EventKind = "exhausted"
	EventBatchDiscovered     EventKind = "batch-discovered"
	EventCheckingRestaurants EventKind = "checking-restaurants"
	EventLookingForFallbacks EventKind = "looking-for-fallbacks"
	EventResult              EventKind = "result"
	EventRedirect            EventKind = "redirect"
)

// ProgressEvent is one entry of the progress stream. Only the fields relevant
// to the kind are populated.
type ProgressEvent struct {
	Kind      EventKind               `json:"kind"`
	Message   string                  `json:"message,omitempty"`
	Count     int                     `json:"count,omitempty"`
	Names     []string                `json:"names,omitempty"`
	Candidate *models.SearchCandidate `json:"candidate,omitempty"`
	URL       string                  `json:"url,omitempty"`
}

func searchingEvent(message string) ProgressEvent {
	return ProgressEvent{Kind: EventSearching, Message: message}
}

func exhaustedEvent(message string) ProgressEvent {
	return ProgressEvent{Kind: EventExhausted, Message: message}
}

func batchDiscoveredEvent(count int, message string) ProgressEvent {
	return ProgressEvent{Kind: EventBatchDiscovered, Count: count, Message: message}
}

func checkingRestaurantsEvent(names ...string) ProgressEvent {
	return ProgressEvent{Kind: EventCheckingRestaurants, Names: names}
}

func lookingForFallbacksEvent(message string) ProgressEvent {
	return ProgressEvent{Kind: EventLookingForFallbacks, Message: message}
}

func resultEvent(candidate *models.SearchCandidate) ProgressEvent {
	return ProgressEvent{Kind: EventResult, Candidate: candidate}
}
