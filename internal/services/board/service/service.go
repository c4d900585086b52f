// Package service implements the board ingest, read, and sweep operations
package service

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	perr "mural/internal/platform/errors"
	"mural/internal/platform/logger"
	"mural/internal/platform/store"
	"mural/internal/services/board/domain"
	"mural/internal/services/board/repo"

	"github.com/google/uuid"
)

// AnalyticsTable receives one row per note lifecycle event when a sink is configured
const AnalyticsTable = "mural_note_events"

// Config controls validation and retry behavior
type Config struct {
	domain.Config

	// RetryAttempts bounds retries of transient storage failures
	RetryAttempts int

	// RetryBackoff is the initial backoff, doubled per attempt
	RetryBackoff time.Duration
}

func (c Config) defaulted() Config {
	c.Config = c.Config.Defaulted()
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	return c
}

// Service wires the note store to the push channel
//
// mu serializes commit+publish so hub enqueue order matches store commit
// order, which is what gives viewers created-before-deleted per id
type Service struct {
	cfg       Config
	store     repo.Storage
	events    domain.EventsPort
	analytics store.Analytics // nil when disabled

	mu sync.Mutex

	// seams for tests
	newID   func() string
	now     func() time.Time
	colorFn func() int
	sleep   func(context.Context, time.Duration)
}

// New constructs the board service
func New(st repo.Storage, events domain.EventsPort, analytics store.Analytics, cfg Config) *Service {
	if st == nil {
		panic("board.Service requires a non nil Storage")
	}
	if events == nil {
		events = domain.NopEvents{}
	}
	return &Service{
		cfg:       cfg.defaulted(),
		store:     st,
		events:    events,
		analytics: analytics,
		newID:     uuid.NewString,
		now:       time.Now,
		colorFn:   func() int { return rand.IntN(domain.ColorCount) + 1 },
		sleep:     sleepCtx,
	}
}

// Publish implements domain.IngestPort
func (s *Service) Publish(ctx context.Context, in domain.SubmitInput) (domain.Note, error) {
	if err := s.validate(in); err != nil {
		return domain.Note{}, err
	}

	now := s.now()
	n := domain.Note{
		ID:         s.newID(),
		ColorIndex: s.colorFn(),
		Format:     in.Format,
		SizeBytes:  int64(len(in.Payload)),
		OriginTag:  in.OriginTag,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []domain.Note
	err := s.withRetry(ctx, "insert", func() error {
		var err error
		evicted, err = s.store.Insert(ctx, n, in.Payload)
		return err
	})
	if err != nil {
		return domain.Note{}, err
	}

	for _, ev := range evicted {
		s.events.NoteDeleted(ev.ID)
	}
	s.events.NoteCreated(n)

	s.record(ctx, "created", n)
	for _, ev := range evicted {
		s.record(ctx, "evicted", ev)
	}
	return n, nil
}

// Respond implements domain.IngestPort
func (s *Service) Respond(ctx context.Context, parentID string, in domain.SubmitInput) (domain.Response, error) {
	if err := s.validate(in); err != nil {
		return domain.Response{}, err
	}
	if parentID == "" {
		return domain.Response{}, perr.Validationf("parent id required")
	}

	r := domain.Response{
		ID:        s.newID(),
		ParentID:  parentID,
		Format:    in.Format,
		SizeBytes: int64(len(in.Payload)),
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.withRetry(ctx, "append response", func() error {
		return s.store.AppendResponse(ctx, parentID, r, in.Payload)
	})
	if err != nil {
		return domain.Response{}, err
	}

	s.events.ResponseAdded(parentID, r)
	return r, nil
}

// Snapshot implements domain.ReaderPort
// reads share mu with writes so lazy-eviction broadcasts interleave with
// created and responseAdded events in commit order
func (s *Service) Snapshot(ctx context.Context) ([]domain.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	notes, evicted, err := s.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.broadcastEvicted(ctx, evicted)
	return notes, nil
}

// Audio implements domain.ReaderPort
func (s *Service) Audio(ctx context.Context, id string) ([]byte, string, error) {
	if id == "" {
		return nil, "", perr.Validationf("id required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, format, evicted, err := s.store.Payload(ctx, id)
	s.broadcastEvicted(ctx, evicted)
	if err != nil {
		return nil, "", err
	}
	return b, format, nil
}

// Sweep implements domain.JanitorPort
// expired first, then a defensive overflow pass, both broadcast deletions
func (s *Service) Sweep(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []domain.Note
	err := s.withRetry(ctx, "evict expired", func() error {
		ev, err := s.store.EvictExpired(ctx)
		evicted = ev
		return err
	})
	if err != nil {
		return nil, err
	}

	var overflow []domain.Note
	err = s.withRetry(ctx, "evict overflow", func() error {
		ov, err := s.store.EvictOverflow(ctx)
		overflow = ov
		return err
	})
	if err != nil {
		return nil, err
	}
	evicted = append(evicted, overflow...)

	removed := make([]string, 0, len(evicted))
	for _, ev := range evicted {
		s.events.NoteDeleted(ev.ID)
		s.record(ctx, "expired", ev)
		removed = append(removed, ev.ID)
	}
	return removed, nil
}

// broadcastEvicted pushes deletions observed lazily on a read path
// callers hold mu
func (s *Service) broadcastEvicted(ctx context.Context, evicted []domain.Note) {
	for _, ev := range evicted {
		s.events.NoteDeleted(ev.ID)
		s.record(ctx, "expired", ev)
	}
}

func (s *Service) validate(in domain.SubmitInput) error {
	if len(in.Payload) == 0 {
		return perr.WithField(perr.Validationf("audio payload required"), "audio")
	}
	if int64(len(in.Payload)) > s.cfg.MaxPayloadBytes {
		return perr.WithField(
			perr.Validationf("audio payload exceeds %d bytes", s.cfg.MaxPayloadBytes), "audio")
	}
	if !strings.HasPrefix(in.Format, "audio/") {
		return perr.WithField(perr.Validationf("format %q is not an audio type", in.Format), "audio")
	}
	return nil
}

// withRetry retries transient storage failures with doubling backoff
// coded domain errors (NotFound, Expired, Validation) surface immediately
func (s *Service) withRetry(ctx context.Context, op string, fn func() error) error {
	backoff := s.cfg.RetryBackoff
	var err error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !perr.Retryable(err) || ctx.Err() != nil {
			return err
		}
		logger.C(ctx).Warn().
			Err(err).
			Str("op", op).
			Int("attempt", attempt+1).
			Msg("board: transient storage failure, backing off")
		s.sleep(ctx, backoff)
		backoff *= 2
	}
	return err
}

// record feeds the optional analytics sink, failures are logged and dropped
func (s *Service) record(ctx context.Context, event string, n domain.Note) {
	if s.analytics == nil {
		return
	}
	row := []any{event, n.ID, n.OriginTag, n.Format, n.SizeBytes, s.now().UTC()}
	if err := s.analytics.Insert(ctx, AnalyticsTable, [][]any{row}); err != nil {
		logger.C(ctx).Warn().Err(err).Str("event", event).Msg("board: analytics insert failed")
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
