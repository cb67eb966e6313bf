package bus

import "time"

// Event represents a domain event published on the bus. Kind is a dotted
// name whose prefix is the namespace: "connectivity.changed",
// "chat.created", "story.updated".
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
