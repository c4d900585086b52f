// Package domain defines the push channel event model
package domain

// Kind names the event as it appears on the wire
type Kind string

// Wire event names, clients switch on these
const (
	KindSnapshot      Kind = "snapshot"
	KindCreated       Kind = "created"
	KindResponseAdded Kind = "responseAdded"
	KindDeleted       Kind = "deleted"
)

// Event is one push to a viewer session
// Seq increases monotonically across the hub so clients can detect gaps
type Event struct {
	Seq  uint64
	Kind Kind
	Data any
}
