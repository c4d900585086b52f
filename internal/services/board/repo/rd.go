package repo

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	perr "mural/internal/platform/errors"
	"mural/internal/platform/store"
	"mural/internal/services/board/domain"

	"github.com/redis/go-redis/v9"
)

// redis key layout, everything under one prefix so instances can share a server
const (
	rdKeyPrefix = "mural:"
	rdKeyIndex  = rdKeyPrefix + "notes" // ZSET member=id score=createdAt unixnano
)

// safety margin past expiresAt before redis reaps the key itself
// logical expiry is enforced by this repo, the key TTL is a leak guard
const rdSafetyTTL = time.Minute

func rdNoteKey(id string) string  { return rdKeyPrefix + "note:" + id }
func rdRespsKey(id string) string { return rdKeyPrefix + "note:" + id + ":resps" }
func rdRespKey(id string) string  { return rdKeyPrefix + "resp:" + id }

// RD is the redis note store
// mutations are serialized with an in-process mutex, the single writer per
// process keeps insert+evict atomic without redis-side scripting
type RD struct {
	c   store.RedisCmdable
	cfg domain.Config

	mu  sync.Mutex
	now func() time.Time
}

// RDOption mutates RD during construction
type RDOption func(*RD)

// WithRDClock injects a clock, used by tests to simulate TTL passage
func WithRDClock(fn func() time.Time) RDOption {
	return func(r *RD) { r.now = fn }
}

// NewRD constructs the redis note store
func NewRD(c store.RedisCmdable, cfg domain.Config, opts ...RDOption) *RD {
	if c == nil {
		panic("board repo: nil redis client")
	}
	r := &RD{c: c, cfg: cfg.Defaulted(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Insert implements Storage
func (r *RD) Insert(ctx context.Context, n domain.Note, payload []byte) ([]domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted, err := r.evictExpiredLocked(ctx)
	if err != nil {
		return nil, err
	}

	count, err := r.c.ZCard(ctx, rdKeyIndex).Result()
	if err != nil {
		return nil, rdErr(err, "count notes")
	}
	if over := int(count) - (r.cfg.MaxActive - 1); over > 0 {
		ov, err := r.evictOldestLocked(ctx, over)
		if err != nil {
			return nil, err
		}
		evicted = append(evicted, ov...)
	}

	key := rdNoteKey(n.ID)
	pipe := r.c.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"format":  n.Format,
		"size":    n.SizeBytes,
		"color":   n.ColorIndex,
		"origin":  n.OriginTag,
		"created": n.CreatedAt.UnixNano(),
		"expires": n.ExpiresAt.UnixNano(),
		"payload": payload,
	})
	pipe.PExpireAt(ctx, key, n.ExpiresAt.Add(rdSafetyTTL))
	pipe.ZAdd(ctx, rdKeyIndex, redis.Z{Score: float64(n.CreatedAt.UnixNano()), Member: n.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, rdErr(err, "insert note")
	}
	return evicted, nil
}

// AppendResponse implements Storage
func (r *RD) AppendResponse(ctx context.Context, parentID string, resp domain.Response, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	parent, ok, err := r.readNoteLocked(ctx, parentID)
	if err != nil {
		return err
	}
	if !ok {
		return perr.NotFoundf("note %s not found", parentID)
	}
	if !r.now().Before(parent.ExpiresAt) {
		if err := r.removeLocked(ctx, parentID); err != nil {
			return err
		}
		return perr.Expiredf("note %s expired", parentID)
	}

	key := rdRespKey(resp.ID)
	pipe := r.c.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"parent":  parentID,
		"format":  resp.Format,
		"size":    resp.SizeBytes,
		"created": resp.CreatedAt.UnixNano(),
		"payload": payload,
	})
	pipe.PExpireAt(ctx, key, parent.ExpiresAt.Add(rdSafetyTTL))
	pipe.RPush(ctx, rdRespsKey(parentID), resp.ID)
	pipe.PExpireAt(ctx, rdRespsKey(parentID), parent.ExpiresAt.Add(rdSafetyTTL))
	if _, err := pipe.Exec(ctx); err != nil {
		return rdErr(err, "append response")
	}
	return nil
}

// Get implements Storage
func (r *RD) Get(ctx context.Context, id string) (domain.Note, []domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok, err := r.readNoteLocked(ctx, id)
	if err != nil {
		return domain.Note{}, nil, err
	}
	if !ok {
		return domain.Note{}, nil, perr.NotFoundf("note %s not found", id)
	}
	if !r.now().Before(n.ExpiresAt) {
		if err := r.removeLocked(ctx, id); err != nil {
			return domain.Note{}, nil, err
		}
		return domain.Note{}, []domain.Note{n}, perr.Expiredf("note %s expired", id)
	}
	n.Responses, err = r.readResponsesLocked(ctx, id)
	if err != nil {
		return domain.Note{}, nil, err
	}
	return n, nil, nil
}

// Payload implements Storage, id may name a note or a response
func (r *RD) Payload(ctx context.Context, id string) ([]byte, string, []domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok, err := r.readNoteLocked(ctx, id)
	if err != nil {
		return nil, "", nil, err
	}
	if ok {
		if !r.now().Before(n.ExpiresAt) {
			if err := r.removeLocked(ctx, id); err != nil {
				return nil, "", nil, err
			}
			return nil, "", []domain.Note{n}, perr.Expiredf("note %s expired", id)
		}
		b, err := r.c.HGet(ctx, rdNoteKey(id), "payload").Bytes()
		if err != nil {
			return nil, "", nil, rdErr(err, "get payload")
		}
		return b, n.Format, nil, nil
	}

	vals, err := r.c.HGetAll(ctx, rdRespKey(id)).Result()
	if err != nil {
		return nil, "", nil, rdErr(err, "get response")
	}
	if len(vals) == 0 {
		return nil, "", nil, perr.NotFoundf("note %s not found", id)
	}
	parentID := vals["parent"]
	parent, ok, err := r.readNoteLocked(ctx, parentID)
	if err != nil {
		return nil, "", nil, err
	}
	if !ok {
		return nil, "", nil, perr.NotFoundf("note %s not found", id)
	}
	if !r.now().Before(parent.ExpiresAt) {
		if err := r.removeLocked(ctx, parentID); err != nil {
			return nil, "", nil, err
		}
		return nil, "", []domain.Note{parent}, perr.Expiredf("note %s expired", id)
	}
	return []byte(vals["payload"]), vals["format"], nil, nil
}

// ListActive implements Storage
func (r *RD) ListActive(ctx context.Context) ([]domain.Note, []domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted, err := r.evictExpiredLocked(ctx)
	if err != nil {
		return nil, nil, err
	}

	ids, err := r.c.ZRevRange(ctx, rdKeyIndex, 0, int64(r.cfg.MaxActive)-1).Result()
	if err != nil {
		return nil, nil, rdErr(err, "list active")
	}

	notes := make([]domain.Note, 0, len(ids))
	for _, id := range ids {
		n, ok, err := r.readNoteLocked(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			// key reaped by the safety TTL, drop the dangling index entry
			_ = r.c.ZRem(ctx, rdKeyIndex, id).Err()
			continue
		}
		n.Responses, err = r.readResponsesLocked(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		notes = append(notes, n)
	}
	// ZREVRANGE ties are lex ascending, flip them so ties order newest-first by id
	sort.SliceStable(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return notes[i].ID > notes[j].ID
	})
	return notes, evicted, nil
}

// EvictExpired implements Storage
func (r *RD) EvictExpired(ctx context.Context) ([]domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictExpiredLocked(ctx)
}

// EvictOverflow implements Storage
func (r *RD) EvictOverflow(ctx context.Context) ([]domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count, err := r.c.ZCard(ctx, rdKeyIndex).Result()
	if err != nil {
		return nil, rdErr(err, "count notes")
	}
	if over := int(count) - r.cfg.MaxActive; over > 0 {
		return r.evictOldestLocked(ctx, over)
	}
	return nil, nil
}

func (r *RD) evictExpiredLocked(ctx context.Context) ([]domain.Note, error) {
	// the live set is capacity bounded, a full scan stays cheap
	ids, err := r.c.ZRange(ctx, rdKeyIndex, 0, -1).Result()
	if err != nil {
		return nil, rdErr(err, "scan expired")
	}
	now := r.now()
	var victims []string
	for _, id := range ids {
		n, ok, err := r.readNoteLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok || !now.Before(n.ExpiresAt) {
			victims = append(victims, id)
		}
	}
	return r.removeAllLocked(ctx, victims)
}

func (r *RD) evictOldestLocked(ctx context.Context, n int) ([]domain.Note, error) {
	ids, err := r.c.ZRange(ctx, rdKeyIndex, 0, int64(n)-1).Result()
	if err != nil {
		return nil, rdErr(err, "scan oldest")
	}
	return r.removeAllLocked(ctx, ids)
}

func (r *RD) removeAllLocked(ctx context.Context, ids []string) ([]domain.Note, error) {
	var evicted []domain.Note
	for _, id := range ids {
		n, ok, err := r.readNoteLocked(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := r.removeLocked(ctx, id); err != nil {
			return nil, err
		}
		if ok {
			evicted = append(evicted, n)
		}
	}
	return evicted, nil
}

// removeLocked drops the note, its response keys, and the index entry
func (r *RD) removeLocked(ctx context.Context, id string) error {
	respIDs, err := r.c.LRange(ctx, rdRespsKey(id), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return rdErr(err, "list responses")
	}

	pipe := r.c.TxPipeline()
	for _, rid := range respIDs {
		pipe.Del(ctx, rdRespKey(rid))
	}
	pipe.Del(ctx, rdRespsKey(id))
	pipe.Del(ctx, rdNoteKey(id))
	pipe.ZRem(ctx, rdKeyIndex, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return rdErr(err, "remove note")
	}
	return nil
}

func (r *RD) readNoteLocked(ctx context.Context, id string) (domain.Note, bool, error) {
	vals, err := r.c.HGetAll(ctx, rdNoteKey(id)).Result()
	if err != nil {
		return domain.Note{}, false, rdErr(err, "read note")
	}
	if len(vals) == 0 {
		return domain.Note{}, false, nil
	}
	n := domain.Note{
		ID:        id,
		Format:    vals["format"],
		OriginTag: vals["origin"],
	}
	n.ColorIndex, _ = strconv.Atoi(vals["color"])
	n.SizeBytes, _ = strconv.ParseInt(vals["size"], 10, 64)
	n.CreatedAt = rdTime(vals["created"])
	n.ExpiresAt = rdTime(vals["expires"])
	return n, true, nil
}

func (r *RD) readResponsesLocked(ctx context.Context, parentID string) ([]domain.Response, error) {
	ids, err := r.c.LRange(ctx, rdRespsKey(parentID), 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, rdErr(err, "list responses")
	}
	var out []domain.Response
	for _, rid := range ids {
		vals, err := r.c.HGetAll(ctx, rdRespKey(rid)).Result()
		if err != nil {
			return nil, rdErr(err, "read response")
		}
		if len(vals) == 0 {
			continue
		}
		resp := domain.Response{
			ID:       rid,
			ParentID: parentID,
			Format:   vals["format"],
		}
		resp.SizeBytes, _ = strconv.ParseInt(vals["size"], 10, 64)
		resp.CreatedAt = rdTime(vals["created"])
		out = append(out, resp)
	}
	return out, nil
}

func rdTime(s string) time.Time {
	ns, _ := strconv.ParseInt(s, 10, 64)
	return time.Unix(0, ns)
}

// rdErr marks redis failures retryable so ingest backoff applies
func rdErr(err error, msg string) error {
	if errors.Is(err, redis.Nil) {
		return perr.NotFoundf("%s: not found", msg)
	}
	return perr.Wrapf(err, perr.ErrorCodeUnavailable, "redis: %s", msg)
}
