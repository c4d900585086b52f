package repo

import (
	"context"
	"errors"
	"time"

	"mural/internal/modkit/repokit"
	perr "mural/internal/platform/errors"
	"mural/internal/services/board/domain"

	"github.com/jackc/pgx/v5"
)

// Schema is the postgres layout for the note store
// responses are rows with parent_id set, expires_at lives on the parent only
const Schema = `
CREATE TABLE IF NOT EXISTS notes (
	id          uuid PRIMARY KEY,
	parent_id   uuid REFERENCES notes(id) ON DELETE CASCADE,
	payload     bytea NOT NULL,
	format      text NOT NULL,
	size_bytes  bigint NOT NULL,
	color_index int NOT NULL DEFAULT 0,
	origin_tag  text NOT NULL DEFAULT '',
	created_at  timestamptz NOT NULL,
	expires_at  timestamptz
);
CREATE INDEX IF NOT EXISTS notes_active_created_idx ON notes (created_at) WHERE parent_id IS NULL;
CREATE INDEX IF NOT EXISTS notes_active_expires_idx ON notes (expires_at) WHERE parent_id IS NULL;
CREATE INDEX IF NOT EXISTS notes_parent_idx ON notes (parent_id);
`

type pgQueries struct{ q repokit.Queryer }

// PG is the postgres note store
// mutations run inside a transaction so the capacity bound holds atomically
type PG struct {
	db     repokit.TxRunner
	cfg    domain.Config
	binder repokit.Binder[pgQueries]
	now    func() time.Time
}

// NewPG constructs the postgres note store
func NewPG(db repokit.TxRunner, cfg domain.Config) *PG {
	if db == nil {
		panic("board repo: nil TxRunner")
	}
	return &PG{
		db:     db,
		cfg:    cfg.Defaulted(),
		binder: repokit.BindFunc[pgQueries](func(q repokit.Queryer) pgQueries { return pgQueries{q: q} }),
		now:    time.Now,
	}
}

// EnsureSchema creates the notes table and indexes when missing
func (s *PG) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return perr.FromPostgres(err, "ensure notes schema")
	}
	return nil
}

// Insert implements Storage
func (s *PG) Insert(ctx context.Context, n domain.Note, payload []byte) ([]domain.Note, error) {
	var evicted []domain.Note
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		qs := repokit.MustBind(s.binder, q)
		now := s.now()

		ev, err := qs.deleteExpired(ctx, now)
		if err != nil {
			return err
		}
		evicted = ev

		count, err := qs.activeCount(ctx)
		if err != nil {
			return err
		}
		if over := count - (s.cfg.MaxActive - 1); over > 0 {
			ov, err := qs.deleteOldest(ctx, over)
			if err != nil {
				return err
			}
			evicted = append(evicted, ov...)
		}

		return qs.insertNote(ctx, n, payload)
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "insert note")
	}
	return evicted, nil
}

// AppendResponse implements Storage
func (s *PG) AppendResponse(ctx context.Context, parentID string, r domain.Response, payload []byte) error {
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		qs := repokit.MustBind(s.binder, q)

		var expiresAt time.Time
		err := q.QueryRow(ctx,
			`SELECT expires_at FROM notes WHERE id = $1 AND parent_id IS NULL FOR UPDATE`,
			parentID,
		).Scan(&expiresAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return perr.NotFoundf("note %s not found", parentID)
		}
		if err != nil {
			return err
		}
		if !s.now().Before(expiresAt) {
			if _, err := q.Exec(ctx, `DELETE FROM notes WHERE id = $1`, parentID); err != nil {
				return err
			}
			return perr.Expiredf("note %s expired", parentID)
		}

		return qs.insertResponse(ctx, parentID, r, payload)
	})
	if perr.IsCode(err, perr.ErrorCodeNotFound) || perr.IsCode(err, perr.ErrorCodeExpired) {
		return err
	}
	if err != nil {
		return perr.FromPostgres(err, "append response")
	}
	return nil
}

// Get implements Storage
func (s *PG) Get(ctx context.Context, id string) (domain.Note, []domain.Note, error) {
	qs := repokit.MustBind(s.binder, repokit.PG(ctx, s.db))

	n, err := qs.getNote(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Note{}, nil, perr.NotFoundf("note %s not found", id)
	}
	if err != nil {
		return domain.Note{}, nil, perr.FromPostgres(err, "get note")
	}
	if !s.now().Before(n.ExpiresAt) {
		_, _ = s.db.Exec(ctx, `DELETE FROM notes WHERE id = $1`, id)
		return domain.Note{}, []domain.Note{n}, perr.Expiredf("note %s expired", id)
	}

	resp, err := qs.listResponses(ctx, []string{id})
	if err != nil {
		return domain.Note{}, nil, perr.FromPostgres(err, "get note responses")
	}
	n.Responses = resp[id]
	return n, nil, nil
}

// Payload implements Storage, id may name a note or a response
func (s *PG) Payload(ctx context.Context, id string) ([]byte, string, []domain.Note, error) {
	var (
		payload   []byte
		format    string
		topID     string
		expiresAt time.Time
	)
	err := s.db.QueryRow(ctx, `
		SELECT n.payload, n.format, COALESCE(n.parent_id, n.id)::text,
		       COALESCE(n.expires_at, p.expires_at)
		FROM notes n
		LEFT JOIN notes p ON p.id = n.parent_id
		WHERE n.id = $1`,
		id,
	).Scan(&payload, &format, &topID, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", nil, perr.NotFoundf("note %s not found", id)
	}
	if err != nil {
		return nil, "", nil, perr.FromPostgres(err, "get payload")
	}
	if !s.now().Before(expiresAt) {
		evicted := s.deleteNote(ctx, topID)
		return nil, "", evicted, perr.Expiredf("note %s expired", id)
	}
	return payload, format, nil, nil
}

// deleteNote removes one top-level note, best effort, returning its record
// a failed delete leaves the row for the next touch to reap
func (s *PG) deleteNote(ctx context.Context, id string) []domain.Note {
	rows, err := s.db.Query(ctx, `
		DELETE FROM notes
		WHERE id = $1 AND parent_id IS NULL
		RETURNING id::text, color_index, format, size_bytes, origin_tag, created_at, expires_at`,
		id,
	)
	if err != nil {
		return nil
	}
	evicted, _ := scanEvicted(rows)
	return evicted
}

// ListActive implements Storage
func (s *PG) ListActive(ctx context.Context) ([]domain.Note, []domain.Note, error) {
	qs := repokit.MustBind(s.binder, repokit.PG(ctx, s.db))
	now := s.now()

	// lazy evict so the scan never returns an expired note
	exp, err := s.db.Query(ctx, `
		DELETE FROM notes
		WHERE parent_id IS NULL AND expires_at <= $1
		RETURNING id::text, color_index, format, size_bytes, origin_tag, created_at, expires_at`,
		now,
	)
	if err != nil {
		return nil, nil, perr.FromPostgres(err, "evict expired")
	}
	evicted, err := scanEvicted(exp)
	if err != nil {
		return nil, nil, perr.FromPostgres(err, "evict expired")
	}

	rows, err := s.db.Query(ctx, `
		SELECT id::text, color_index, format, size_bytes, origin_tag, created_at, expires_at
		FROM notes
		WHERE parent_id IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $1`,
		s.cfg.MaxActive,
	)
	if err != nil {
		return nil, nil, perr.FromPostgres(err, "list active")
	}
	defer rows.Close()

	var notes []domain.Note
	var ids []string
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(
			&n.ID, &n.ColorIndex, &n.Format, &n.SizeBytes, &n.OriginTag, &n.CreatedAt, &n.ExpiresAt,
		); err != nil {
			return nil, nil, perr.FromPostgres(err, "scan note")
		}
		notes = append(notes, n)
		ids = append(ids, n.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, perr.FromPostgres(err, "list active")
	}

	if len(ids) > 0 {
		resp, err := qs.listResponses(ctx, ids)
		if err != nil {
			return nil, nil, perr.FromPostgres(err, "list responses")
		}
		for i := range notes {
			notes[i].Responses = resp[notes[i].ID]
		}
	}
	return notes, evicted, nil
}

// EvictExpired implements Storage
func (s *PG) EvictExpired(ctx context.Context) ([]domain.Note, error) {
	var evicted []domain.Note
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		qs := repokit.MustBind(s.binder, q)
		ev, err := qs.deleteExpired(ctx, s.now())
		evicted = ev
		return err
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "evict expired")
	}
	return evicted, nil
}

// EvictOverflow implements Storage
func (s *PG) EvictOverflow(ctx context.Context) ([]domain.Note, error) {
	var evicted []domain.Note
	err := s.db.Tx(ctx, func(q repokit.Queryer) error {
		qs := repokit.MustBind(s.binder, q)
		count, err := qs.activeCount(ctx)
		if err != nil {
			return err
		}
		if over := count - s.cfg.MaxActive; over > 0 {
			evicted, err = qs.deleteOldest(ctx, over)
			return err
		}
		return nil
	})
	if err != nil {
		return nil, perr.FromPostgres(err, "evict overflow")
	}
	return evicted, nil
}

//
// low level queries, bound per queryer so they trace inside transactions
//

func (qs pgQueries) activeCount(ctx context.Context) (int, error) {
	var count int
	err := qs.q.QueryRow(ctx, `SELECT count(*) FROM notes WHERE parent_id IS NULL`).Scan(&count)
	return count, err
}

func (qs pgQueries) insertNote(ctx context.Context, n domain.Note, payload []byte) error {
	_, err := qs.q.Exec(ctx, `
		INSERT INTO notes (id, payload, format, size_bytes, color_index, origin_tag, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, payload, n.Format, n.SizeBytes, n.ColorIndex, n.OriginTag, n.CreatedAt, n.ExpiresAt,
	)
	return err
}

func (qs pgQueries) insertResponse(ctx context.Context, parentID string, r domain.Response, payload []byte) error {
	_, err := qs.q.Exec(ctx, `
		INSERT INTO notes (id, parent_id, payload, format, size_bytes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, parentID, payload, r.Format, r.SizeBytes, r.CreatedAt,
	)
	return err
}

func (qs pgQueries) getNote(ctx context.Context, id string) (domain.Note, error) {
	var n domain.Note
	err := qs.q.QueryRow(ctx, `
		SELECT id::text, color_index, format, size_bytes, origin_tag, created_at, expires_at
		FROM notes
		WHERE id = $1 AND parent_id IS NULL`,
		id,
	).Scan(&n.ID, &n.ColorIndex, &n.Format, &n.SizeBytes, &n.OriginTag, &n.CreatedAt, &n.ExpiresAt)
	return n, err
}

func (qs pgQueries) deleteExpired(ctx context.Context, now time.Time) ([]domain.Note, error) {
	rows, err := qs.q.Query(ctx, `
		DELETE FROM notes
		WHERE parent_id IS NULL AND expires_at <= $1
		RETURNING id::text, color_index, format, size_bytes, origin_tag, created_at, expires_at`,
		now,
	)
	if err != nil {
		return nil, err
	}
	return scanEvicted(rows)
}

func (qs pgQueries) deleteOldest(ctx context.Context, n int) ([]domain.Note, error) {
	rows, err := qs.q.Query(ctx, `
		DELETE FROM notes
		WHERE id IN (
			SELECT id FROM notes
			WHERE parent_id IS NULL
			ORDER BY created_at ASC, id ASC
			LIMIT $1
		)
		RETURNING id::text, color_index, format, size_bytes, origin_tag, created_at, expires_at`,
		n,
	)
	if err != nil {
		return nil, err
	}
	return scanEvicted(rows)
}

func (qs pgQueries) listResponses(ctx context.Context, parentIDs []string) (map[string][]domain.Response, error) {
	rows, err := qs.q.Query(ctx, `
		SELECT id::text, parent_id::text, format, size_bytes, created_at
		FROM notes
		WHERE parent_id = ANY($1::uuid[])
		ORDER BY created_at ASC, id ASC`,
		parentIDs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string][]domain.Response{}
	for rows.Next() {
		var r domain.Response
		if err := rows.Scan(&r.ID, &r.ParentID, &r.Format, &r.SizeBytes, &r.CreatedAt); err != nil {
			return nil, err
		}
		out[r.ParentID] = append(out[r.ParentID], r)
	}
	return out, rows.Err()
}

func scanEvicted(rows repokit.Rows) ([]domain.Note, error) {
	defer rows.Close()
	var out []domain.Note
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(
			&n.ID, &n.ColorIndex, &n.Format, &n.SizeBytes, &n.OriginTag, &n.CreatedAt, &n.ExpiresAt,
		); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
