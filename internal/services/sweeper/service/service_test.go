package service

import (
	"context"
	"sync"
	"testing"
	"time"

	perr "mural/internal/platform/errors"

	"github.com/rs/zerolog"
)

type fakeJanitor struct {
	mu      sync.Mutex
	sweeps  int
	removed []string
	err     error
}

func (j *fakeJanitor) Sweep(ctx context.Context) ([]string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sweeps++
	return j.removed, j.err
}

func (j *fakeJanitor) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.sweeps
}

func TestNewRequiresJanitor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic on nil janitor")
		}
	}()
	New(zerolog.Nop(), nil, Config{})
}

func TestSweepOncePassesThrough(t *testing.T) {
	j := &fakeJanitor{removed: []string{"a", "b"}}
	s := New(zerolog.Nop(), j, Config{})

	removed, err := s.SweepOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(removed) != 2 || j.count() != 1 {
		t.Fatalf("want one passthrough sweep, got %v after %d calls", removed, j.count())
	}
}

func TestRunSweepsAtStartupAndOnTicks(t *testing.T) {
	j := &fakeJanitor{}
	s := New(zerolog.Nop(), j, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for j.count() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("want startup sweep plus ticks, got %d", j.count())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("want context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestRunSurvivesFailingCycles(t *testing.T) {
	j := &fakeJanitor{err: perr.Unavailablef("store down")}
	s := New(zerolog.Nop(), j, Config{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for j.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("failing cycles must not stop the loop")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	<-done
}
