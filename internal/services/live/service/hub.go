// Package service implements the broadcast hub
package service

import (
	"context"
	"sync"

	perr "mural/internal/platform/errors"
	"mural/internal/platform/logger"
	bdomain "mural/internal/services/board/domain"
	"mural/internal/services/live/domain"
)

// DefaultQueueSize bounds each session's outbound queue
// a session that falls this far behind is disconnected, not waited on
const DefaultQueueSize = 64

// Session is one connected viewer
type Session struct {
	id uint64
	ch chan domain.Event

	// events published while the connect snapshot is still being computed
	// are staged here and reconciled against the snapshot before delivery
	started bool
	staged  []domain.Event
}

// Events is the session's ordered outbound queue
// the channel is closed when the session is detached or dropped
func (s *Session) Events() <-chan domain.Event { return s.ch }

// Hub fans board events out to every connected session
//
// all enqueues happen under one lock, so any two events are queued in the
// same order on every session; per-session channels are FIFO, which yields
// the per-id ordering viewers rely on
type Hub struct {
	log       logger.Logger
	queueSize int

	mu       sync.Mutex
	sessions map[uint64]*Session
	nextID   uint64
	seq      uint64
	closed   bool

	// snapshot is bound after the board module exists, see BindSnapshot
	snapshot func(context.Context) ([]bdomain.Note, error)
}

// interface check: the hub is the board's events port
var _ bdomain.EventsPort = (*Hub)(nil)

// NewHub constructs a hub with the given per-session queue size
func NewHub(log logger.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		log:       log,
		queueSize: queueSize,
		sessions:  map[uint64]*Session{},
	}
}

// BindSnapshot wires the connect-time snapshot source
// the hub is constructed before the board module, so this closes the loop
func (h *Hub) BindSnapshot(fn func(context.Context) ([]bdomain.Note, error)) {
	h.mu.Lock()
	h.snapshot = fn
	h.mu.Unlock()
}

// Attach registers a new session and queues its snapshot, to it only
//
// the snapshot source runs outside the hub lock: reading the board can
// itself broadcast lazy TTL evictions, which land back here via publish.
// the session is registered first so nothing is missed in between, and
// whatever gets staged while the source runs is replayed after the
// snapshot, minus events the snapshot already reflects
func (h *Hub) Attach(ctx context.Context) (*Session, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, perr.Unavailablef("hub is shut down")
	}
	if h.snapshot == nil {
		h.mu.Unlock()
		return nil, perr.Internalf("hub has no snapshot source")
	}
	snapshot := h.snapshot
	h.nextID++
	s := &Session{id: h.nextID, ch: make(chan domain.Event, h.queueSize)}
	h.sessions[s.id] = s
	h.mu.Unlock()

	notes, err := snapshot(ctx)
	if err != nil {
		h.Detach(s)
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; !ok {
		// hub stopped, or the session overflowed while the snapshot ran
		return nil, perr.Unavailablef("hub is shut down")
	}
	h.seq++
	s.ch <- domain.Event{Seq: h.seq, Kind: domain.KindSnapshot, Data: notes}
	if !h.replayStagedLocked(s, notes) {
		return nil, perr.Unavailablef("session overflowed during attach")
	}
	s.started = true

	h.log.Debug().Uint64("session", s.id).Int("notes", len(notes)).Msg("live: session attached")
	return s, nil
}

// replayStagedLocked queues the events staged during the snapshot fetch
//
// an event already reflected by the snapshot is skipped, as is a deletion
// for a note this session never learned about; both would otherwise show
// the viewer a duplicate or an unknown id. reports false when the session
// was dropped for overflowing its queue
func (h *Hub) replayStagedLocked(s *Session, notes []bdomain.Note) bool {
	if len(s.staged) == 0 {
		return true
	}
	known := make(map[string]bool, len(notes))
	for _, n := range notes {
		known[n.ID] = true
		for _, r := range n.Responses {
			known[r.ID] = true
		}
	}
	for _, ev := range s.staged {
		switch d := ev.Data.(type) {
		case bdomain.Note:
			if known[d.ID] {
				continue
			}
			known[d.ID] = true
		case bdomain.Response:
			if known[d.ID] {
				continue
			}
			known[d.ID] = true
		case string:
			if !known[d] {
				continue
			}
		}
		select {
		case s.ch <- ev:
		default:
			delete(h.sessions, s.id)
			close(s.ch)
			h.log.Warn().Uint64("session", s.id).Msg("live: session queue full, disconnected")
			return false
		}
	}
	s.staged = nil
	return true
}

// Detach removes a session, no broadcast, no further pushes
func (h *Hub) Detach(s *Session) {
	if s == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[s.id]; ok {
		delete(h.sessions, s.id)
		close(s.ch)
	}
}

// Stop disconnects every session and refuses new ones
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, s := range h.sessions {
		delete(h.sessions, id)
		close(s.ch)
	}
}

// SessionCount reports how many viewers are connected
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// NoteCreated implements the board events port
func (h *Hub) NoteCreated(n bdomain.Note) {
	h.publish(domain.KindCreated, n)
}

// ResponseAdded implements the board events port
func (h *Hub) ResponseAdded(_ string, r bdomain.Response) {
	h.publish(domain.KindResponseAdded, r)
}

// NoteDeleted implements the board events port
func (h *Hub) NoteDeleted(id string) {
	h.publish(domain.KindDeleted, id)
}

// publish enqueues to every session, dropping any session whose queue is full
func (h *Hub) publish(kind domain.Kind, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	h.seq++
	ev := domain.Event{Seq: h.seq, Kind: kind, Data: data}
	for id, s := range h.sessions {
		if !s.started {
			// still waiting on its snapshot, hold the event aside
			if len(s.staged) >= h.queueSize {
				delete(h.sessions, id)
				close(s.ch)
				h.log.Warn().Uint64("session", id).Msg("live: session queue full, disconnected")
				continue
			}
			s.staged = append(s.staged, ev)
			continue
		}
		select {
		case s.ch <- ev:
		default:
			// slow consumer, cut it loose rather than stall the board
			delete(h.sessions, id)
			close(s.ch)
			h.log.Warn().Uint64("session", id).Msg("live: session queue full, disconnected")
		}
	}
}
