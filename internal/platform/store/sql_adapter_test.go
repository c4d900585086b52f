package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	perr "mural/internal/platform/errors"
	"mural/internal/platform/store/pg"
)

func TestOpErrMapsDeadlineToTimeout(t *testing.T) {
	parent := context.Background()
	cause := fmt.Errorf("query failed: %w", context.DeadlineExceeded)

	err := opErr(parent, cause)
	if !perr.IsCode(err, perr.ErrorCodeTimeout) {
		t.Fatalf("want Timeout code, got %v", err)
	}
	if !perr.Retryable(err) {
		t.Fatal("a statement deadline must be retryable")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("cause must remain unwrappable")
	}
}

func TestOpErrPassesThroughCallerCancellation(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	cancel()

	// the caller gave up, that is not a server timeout
	err := opErr(parent, context.DeadlineExceeded)
	if perr.IsCode(err, perr.ErrorCodeTimeout) {
		t.Fatalf("caller cancellation must not be recoded, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error must pass through unchanged, got %v", err)
	}
}

func TestOpErrLeavesOtherErrorsAlone(t *testing.T) {
	if got := opErr(context.Background(), nil); got != nil {
		t.Fatalf("nil in, nil out, got %v", got)
	}
	cause := errors.New("constraint violation")
	if got := opErr(context.Background(), cause); got != cause {
		t.Fatalf("non deadline errors must pass through, got %v", got)
	}
}

func TestAdapterAppliesStatementDeadline(t *testing.T) {
	a := newPGAdapter(&pg.PG{OpTimeout: time.Minute})
	octx, cancel := a.opCtx(context.Background())
	defer cancel()
	if _, ok := octx.Deadline(); !ok {
		t.Fatal("OpTimeout must put a deadline on every statement")
	}

	bare := newPGAdapter(&pg.PG{})
	bctx, bcancel := bare.opCtx(context.Background())
	defer bcancel()
	if _, ok := bctx.Deadline(); ok {
		t.Fatal("zero OpTimeout must leave the caller context untouched")
	}
}

func TestTxQuerierAppliesStatementDeadline(t *testing.T) {
	q := txQuerier{timeout: time.Minute}
	octx, cancel := q.opCtx(context.Background())
	defer cancel()
	if _, ok := octx.Deadline(); !ok {
		t.Fatal("transactions must bound each statement too")
	}
}
