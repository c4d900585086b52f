package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	perr "mural/internal/platform/errors"
	"mural/internal/services/board/domain"
)

// entry is one stored top-level note plus its payloads
type entry struct {
	note     domain.Note
	payload  []byte
	respBody map[string][]byte
}

// Memory is the in-process note store
// a single mutex guards all state, reads copy before returning
type Memory struct {
	cfg domain.Config

	mu      sync.Mutex
	notes   map[string]*entry
	parents map[string]string // response id -> parent id
	now     func() time.Time
}

// MemoryOption mutates Memory during construction
type MemoryOption func(*Memory)

// WithClock injects a clock, used by tests to simulate TTL passage
func WithClock(fn func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = fn }
}

// NewMemory constructs an empty in-process store
func NewMemory(cfg domain.Config, opts ...MemoryOption) *Memory {
	m := &Memory{
		cfg:     cfg.Defaulted(),
		notes:   map[string]*entry{},
		parents: map[string]string{},
		now:     time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Insert implements Storage
func (m *Memory) Insert(_ context.Context, n domain.Note, payload []byte) ([]domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := m.evictExpiredLocked()

	// make room before inserting so the bound holds at every observable point
	for len(m.notes) >= m.cfg.MaxActive {
		victim := m.oldestLocked()
		if victim == "" {
			break
		}
		evicted = append(evicted, m.removeLocked(victim))
	}

	cp := n
	cp.Responses = nil
	m.notes[n.ID] = &entry{
		note:     cp,
		payload:  append([]byte(nil), payload...),
		respBody: map[string][]byte{},
	}
	return evicted, nil
}

// AppendResponse implements Storage
func (m *Memory) AppendResponse(_ context.Context, parentID string, r domain.Response, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.notes[parentID]
	if !ok {
		return perr.NotFoundf("note %s not found", parentID)
	}
	if m.expiredLocked(e) {
		m.removeLocked(parentID)
		return perr.Expiredf("note %s expired", parentID)
	}
	e.note.Responses = append(e.note.Responses, r)
	e.respBody[r.ID] = append([]byte(nil), payload...)
	m.parents[r.ID] = parentID
	return nil
}

// Get implements Storage
func (m *Memory) Get(_ context.Context, id string) (domain.Note, []domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.notes[id]
	if !ok {
		return domain.Note{}, nil, perr.NotFoundf("note %s not found", id)
	}
	if m.expiredLocked(e) {
		victim := m.removeLocked(id)
		return domain.Note{}, []domain.Note{victim}, perr.Expiredf("note %s expired", id)
	}
	return copyNote(e.note), nil, nil
}

// Payload implements Storage, id may name a note or a response
func (m *Memory) Payload(_ context.Context, id string) ([]byte, string, []domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.notes[id]; ok {
		if m.expiredLocked(e) {
			victim := m.removeLocked(id)
			return nil, "", []domain.Note{victim}, perr.Expiredf("note %s expired", id)
		}
		return append([]byte(nil), e.payload...), e.note.Format, nil, nil
	}

	if pid, ok := m.parents[id]; ok {
		e, ok := m.notes[pid]
		if !ok {
			return nil, "", nil, perr.NotFoundf("note %s not found", id)
		}
		if m.expiredLocked(e) {
			victim := m.removeLocked(pid)
			return nil, "", []domain.Note{victim}, perr.Expiredf("note %s expired", id)
		}
		for _, r := range e.note.Responses {
			if r.ID == id {
				return append([]byte(nil), e.respBody[id]...), r.Format, nil, nil
			}
		}
	}
	return nil, "", nil, perr.NotFoundf("note %s not found", id)
}

// ListActive implements Storage
func (m *Memory) ListActive(_ context.Context) ([]domain.Note, []domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := m.evictExpiredLocked()

	out := make([]domain.Note, 0, len(m.notes))
	for _, e := range m.notes {
		out = append(out, copyNote(e.note))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > m.cfg.MaxActive {
		out = out[:m.cfg.MaxActive]
	}
	return out, evicted, nil
}

// EvictExpired implements Storage
func (m *Memory) EvictExpired(_ context.Context) ([]domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictExpiredLocked(), nil
}

// EvictOverflow implements Storage
func (m *Memory) EvictOverflow(_ context.Context) ([]domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var evicted []domain.Note
	for len(m.notes) > m.cfg.MaxActive {
		victim := m.oldestLocked()
		if victim == "" {
			break
		}
		evicted = append(evicted, m.removeLocked(victim))
	}
	return evicted, nil
}

func (m *Memory) expiredLocked(e *entry) bool {
	return !m.now().Before(e.note.ExpiresAt)
}

func (m *Memory) evictExpiredLocked() []domain.Note {
	var evicted []domain.Note
	for id, e := range m.notes {
		if m.expiredLocked(e) {
			evicted = append(evicted, m.removeLocked(id))
		}
	}
	return evicted
}

// oldestLocked returns the id of the oldest active note, ties broken by id
func (m *Memory) oldestLocked() string {
	var oldest string
	var oldestAt time.Time
	for id, e := range m.notes {
		if oldest == "" ||
			e.note.CreatedAt.Before(oldestAt) ||
			(e.note.CreatedAt.Equal(oldestAt) && id < oldest) {
			oldest = id
			oldestAt = e.note.CreatedAt
		}
	}
	return oldest
}

// removeLocked drops the note, its responses, and all payloads
func (m *Memory) removeLocked(id string) domain.Note {
	e := m.notes[id]
	delete(m.notes, id)
	for _, r := range e.note.Responses {
		delete(m.parents, r.ID)
	}
	return copyNote(e.note)
}

func copyNote(n domain.Note) domain.Note {
	cp := n
	cp.Responses = append([]domain.Response(nil), n.Responses...)
	return cp
}
