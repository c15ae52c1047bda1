// Package events is the engine's outgoing notification bus. The snapshot/
// clone engine publishes one Event per snapshot or clone create, destroy
// or discard; the nexus child state machine publishes none. Nothing in
// this package consumes its own events, it only fans them out to whichever
// subscribers the process wires up (a CLI watch command, a metrics
// collector, a future gRPC event stream).
package events

import (
	"github.com/ethereum/go-ethereum/event"
)

// Event describes a single lifecycle transition worth telling the outside
// world about.
type Event struct {
	// EntityID is the UUID of the volume the event concerns.
	EntityID string

	// Component names the subsystem that generated the event: "snapshot"
	// or "clone".
	Component string

	// Action is a short verb: "create", "destroy" or "discard".
	Action string

	// Detail carries action-specific context. The engine's own events
	// leave it empty.
	Detail string
}

// Bus fans Events out to subscribers using a go-ethereum event.Feed, the
// same single-producer multi-consumer primitive the teacher's sibling
// example codebase uses for chain-event notification.
type Bus struct {
	feed event.Feed
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{}
}

// Subscribe registers ch to receive every Event published from this point
// on. The returned Subscription must be closed by the caller when done.
func (b *Bus) Subscribe(ch chan<- Event) event.Subscription {
	return b.feed.Subscribe(ch)
}

// Publish delivers ev to every current subscriber and returns the number
// reached. A slow subscriber can stall Publish, so callers should give
// their Subscribe channels enough buffer for their use.
func (b *Bus) Publish(ev Event) int {
	return b.feed.Send(ev)
}
