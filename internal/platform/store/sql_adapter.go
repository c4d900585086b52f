package store

import (
	"context"
	"errors"
	"time"

	perr "mural/internal/platform/errors"
	"mural/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgAdapter wraps pg.PG and implements RowQuerier + TxRunner
// it also emits query trace events when a tracer is configured on pg.PG
//
// every statement runs under its own deadline (pg.PG.OpTimeout) so a hung
// server surfaces as a retryable Timeout instead of stalling the caller
type pgAdapter struct {
	p *pg.PG
}

func newPGAdapter(p *pg.PG) *pgAdapter { return &pgAdapter{p: p} }

// opCtx derives the per-statement deadline
func (a *pgAdapter) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.p.OpTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.p.OpTimeout)
}

// opErr converts a statement that hit the per-statement deadline into a
// coded Timeout, which the ingest retry loop treats as transient
// caller cancellation passes through untouched
func opErr(parent context.Context, err error) error {
	if err == nil || parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return perr.Wrapf(err, perr.ErrorCodeTimeout, "postgres: statement deadline exceeded")
	}
	return err
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error { a.p.Close(); return nil }

func (a *pgAdapter) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	octx, cancel := a.opCtx(ctx)
	defer cancel()
	start := time.Now()
	ct, err := a.p.Pool.Exec(octx, sql, args...)
	err = opErr(ctx, err)
	a.emit(ctx, sql, args, start, err)
	return tag{ct}, err
}

func (a *pgAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	octx, cancel := a.opCtx(ctx)
	start := time.Now()
	rs, err := a.p.Pool.Query(octx, sql, args...)
	err = opErr(ctx, err)
	a.emit(ctx, sql, args, start, err)
	if err != nil {
		cancel()
		return nil, err
	}
	// cancel released on Close so iteration stays under the same deadline
	return rows{
		r:    rs,
		done: cancel,
		wrap: func(err error) error { return opErr(ctx, err) },
	}, nil
}

func (a *pgAdapter) QueryRow(ctx context.Context, sql string, args ...any) Row {
	octx, cancel := a.opCtx(ctx)
	start := time.Now()
	r := a.p.Pool.QueryRow(octx, sql, args...)
	// wrap to emit after Scan completes, capturing error from Scan
	return row{
		r:    r,
		wrap: func(err error) error { return opErr(ctx, err) },
		after: func(scanErr error) {
			cancel()
			a.emit(ctx, sql, args, start, scanErr)
		},
	}
}

func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	bctx, cancel := a.opCtx(ctx)
	tx, err := a.p.Pool.Begin(bctx)
	cancel()
	if err != nil {
		return opErr(ctx, err)
	}
	q := txQuerier{
		tx:      tx,
		tracer:  a.p.Tracer,
		slowUS:  int64(a.p.SlowMs) * 1000,
		timeout: a.p.OpTimeout,
	}
	if err := fn(q); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	cctx, cancel := a.opCtx(ctx)
	defer cancel()
	return opErr(ctx, tx.Commit(cctx))
}

// emit sends a query event to the configured tracer
func (a *pgAdapter) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if a == nil || a.p == nil || a.p.Tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	slow := a.p.SlowMs >= 0 && elapsedUS >= int64(a.p.SlowMs)*1000
	a.p.Tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      slow,
	})
}

// adapters for pgx to our tiny Row/Rows/CommandTag

type row struct {
	r     pgx.Row
	wrap  func(error) error
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.wrap != nil {
		err = x.wrap(err)
	}
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct {
	r    pgx.Rows
	done func()
	wrap func(error) error
}

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }

func (x rows) Err() error {
	err := x.r.Err()
	if x.wrap != nil {
		err = x.wrap(err)
	}
	return err
}

func (x rows) Close() {
	x.r.Close()
	if x.done != nil {
		x.done()
	}
}
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = string(f[i].Name)
	}
	return out
}

// wrap pgconn.CommandTag so we satisfy our CommandTag interface
type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }

// txQuerier uses pgx.Tx to satisfy RowQuerier inside a Tx
// it mirrors pgAdapter emit and deadline behavior so queries inside
// transactions are traced and bounded the same way
type txQuerier struct {
	tx      pgx.Tx
	tracer  pg.QueryTracer
	slowUS  int64
	timeout time.Duration
}

func (t txQuerier) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func (t txQuerier) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	octx, cancel := t.opCtx(ctx)
	defer cancel()
	start := time.Now()
	ct, err := t.tx.Exec(octx, sql, args...)
	err = opErr(ctx, err)
	t.emit(ctx, sql, args, start, err)
	return tag{ct}, err
}

func (t txQuerier) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	octx, cancel := t.opCtx(ctx)
	start := time.Now()
	rs, err := t.tx.Query(octx, sql, args...)
	err = opErr(ctx, err)
	t.emit(ctx, sql, args, start, err)
	if err != nil {
		cancel()
		return nil, err
	}
	return rows{
		r:    rs,
		done: cancel,
		wrap: func(err error) error { return opErr(ctx, err) },
	}, nil
}

func (t txQuerier) QueryRow(ctx context.Context, sql string, args ...any) Row {
	octx, cancel := t.opCtx(ctx)
	start := time.Now()
	r := t.tx.QueryRow(octx, sql, args...)
	return row{
		r:    r,
		wrap: func(err error) error { return opErr(ctx, err) },
		after: func(scanErr error) {
			cancel()
			t.emit(ctx, sql, args, start, scanErr)
		},
	}
}

func (t txQuerier) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if t.tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	slow := t.slowUS >= 0 && elapsedUS >= t.slowUS
	t.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      slow,
	})
}
