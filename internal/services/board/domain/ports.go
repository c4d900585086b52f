package domain

import "context"

// IngestPort accepts uploads and fans resulting events out to viewers
type IngestPort interface {
	Publish(ctx context.Context, in SubmitInput) (Note, error)
	Respond(ctx context.Context, parentID string, in SubmitInput) (Response, error)
}

// ReaderPort serves the visible board state
type ReaderPort interface {
	Snapshot(ctx context.Context) ([]Note, error)
	Audio(ctx context.Context, id string) ([]byte, string, error)
}

// JanitorPort runs one eviction cycle, expired first then overflow
type JanitorPort interface {
	Sweep(ctx context.Context) (removed []string, err error)
}

// EventsPort is what the board needs from the push channel
// implementations fan out to every connected viewer, the board never blocks on it
type EventsPort interface {
	NoteCreated(n Note)
	ResponseAdded(parentID string, r Response)
	NoteDeleted(id string)
}

// NopEvents discards all events, used by offline maintenance runs
type NopEvents struct{}

func (NopEvents) NoteCreated(Note)               {}
func (NopEvents) ResponseAdded(string, Response) {}
func (NopEvents) NoteDeleted(string)             {}
